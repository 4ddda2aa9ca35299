package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/finflow/authcore"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app holds the global flags shared by every subcommand.
type app struct {
	envFile         string
	apiURL          string
	credentialsFile string
	redisURL        string
	jsonOutput      bool
	verbose         bool

	out io.Writer
	err io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "finflowctl",
		Short: "Command-line client for the FinFlow auth core",
		Long: `finflowctl logs in to a FinFlow backend, keeps the session between runs
and exposes the session, profile and refresh operations of the auth core.

Environment Variables:
  FINFLOW_API_BASE_URL         Backend base URL
  FINFLOW_API_VERSION          API-Version header (default 1)
  FINFLOW_CREDENTIAL_BACKEND   memory, file or redis (default file for this tool)
  FINFLOW_CREDENTIAL_PATH      Credential file for the file backend
  FINFLOW_REDIS_URL            Redis URL for redis backends
  FINFLOW_PASSWORD             Password used by login when --password is not set

Variables are also read from the file named by --env-file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.out = cmd.OutOrStdout()
			a.err = cmd.ErrOrStderr()
			return a.loadEnvFile(cmd.Flags().Changed("env-file"))
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file to load before reading FINFLOW_* variables")
	flags.StringVar(&a.apiURL, "api-url", "", "backend base URL (overrides FINFLOW_API_BASE_URL)")
	flags.StringVar(&a.credentialsFile, "credentials", "", "credential file (default <user config dir>/finflow/credentials.json)")
	flags.StringVar(&a.redisURL, "redis-url", "", "store credentials and cached profiles in redis")
	flags.BoolVar(&a.jsonOutput, "json", false, "print JSON instead of text")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests and responses to stderr")

	root.AddCommand(
		newLoginCmd(a),
		newGoogleLoginCmd(a),
		newLogoutCmd(a),
		newRefreshCmd(a),
		newStatusCmd(a),
		newProfileCmd(a),
		newPasswordResetCmd(a),
		newLoadTestCmd(a),
	)
	return root
}

// loadEnvFile loads the dotenv file. A missing default file is not an error.
func (a *app) loadEnvFile(explicit bool) error {
	if a.envFile == "" {
		return nil
	}
	err := godotenv.Load(a.envFile)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("load %s: %w", a.envFile, err)
}

// config layers flags over FINFLOW_* variables. The in-memory credential
// backend is useless across invocations, so it is replaced by a file.
func (a *app) config() (authcore.Config, error) {
	cfg, err := authcore.LoadConfig()
	if err != nil {
		return authcore.Config{}, err
	}
	if a.apiURL != "" {
		cfg.API.BaseURL = a.apiURL
	}
	if a.redisURL != "" {
		cfg.Redis.URL = a.redisURL
		cfg.Credentials.Backend = authcore.CredentialRedis
		if cfg.Cache.Backend == authcore.CacheNone {
			cfg.Cache.Backend = authcore.CacheRedis
		}
	}
	if a.credentialsFile != "" {
		cfg.Credentials.Backend = authcore.CredentialFile
		cfg.Credentials.Path = a.credentialsFile
	}
	if cfg.Credentials.Backend == authcore.CredentialMemory {
		dir, err := os.UserConfigDir()
		if err != nil {
			return authcore.Config{}, fmt.Errorf("locate config dir: %w", err)
		}
		cfg.Credentials.Backend = authcore.CredentialFile
		cfg.Credentials.Path = filepath.Join(dir, "finflow", "credentials.json")
	}
	if cfg.Credentials.Backend == authcore.CredentialFile && cfg.Cache.Backend == authcore.CacheNone {
		cfg.Cache.Backend = authcore.CacheFile
		cfg.Cache.Dir = filepath.Join(filepath.Dir(cfg.Credentials.Path), "cache")
	}
	if a.verbose {
		cfg.RequestLog.Enabled = true
		cfg.Metrics.EnableLatencyHistograms = true
	}
	return cfg, nil
}

func (a *app) logger() *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.err, &slog.HandlerOptions{Level: level}))
}

// core builds an auth core. The caller must Close it.
func (a *app) core() (*authcore.Core, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	logger := a.logger()
	b := authcore.New().WithConfig(cfg).WithLogger(logger)
	if a.verbose {
		b.WithLogSink(authcore.NewSlogSink(logger))
	}
	return b.Build()
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
