package authcore

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings consumed by [Builder.Build].
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	API         APIConfig         `envPrefix:"API_"`
	Credentials CredentialsConfig `envPrefix:"CREDENTIAL_"`
	Cache       CacheConfig       `envPrefix:"CACHE_"`
	Redis       RedisConfig       `envPrefix:"REDIS_"`
	RequestLog  RequestLogConfig  `envPrefix:"REQUEST_LOG_"`
	Metrics     MetricsConfig     `envPrefix:"METRICS_"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig points the client at the backend.
type APIConfig struct {
	BaseURL       string `env:"BASE_URL"`
	Version       string `env:"VERSION"`
	MaxLoggedBody int    `env:"MAX_LOGGED_BODY"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// CredentialBackend selects the credential store built when none is supplied.
type CredentialBackend string

const (
	CredentialMemory CredentialBackend = "memory"
	CredentialFile   CredentialBackend = "file"
	CredentialRedis  CredentialBackend = "redis"
)

// CredentialsConfig configures the credential store.
type CredentialsConfig struct {
	Backend CredentialBackend `env:"BACKEND"`
	// Path is the JSON file used by the file backend.
	Path string `env:"PATH"`
	// Prefix namespaces keys for the redis backend.
	Prefix string `env:"PREFIX"`
}

// CacheBackend selects the profile cache built when none is supplied.
type CacheBackend string

const (
	CacheNone  CacheBackend = "none"
	CacheFile  CacheBackend = "file"
	CacheRedis CacheBackend = "redis"
)

// CacheConfig configures the profile cache.
type CacheConfig struct {
	Backend CacheBackend  `env:"BACKEND"`
	Dir     string        `env:"DIR"`
	Prefix  string        `env:"PREFIX"`
	TTL     time.Duration `env:"TTL"`
}

// RedisConfig is used only when a redis backend is selected and no client
// was passed to [Builder.WithRedis].
type RedisConfig struct {
	URL string `env:"URL"`
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// RequestLogConfig controls asynchronous request/response logging.
type RequestLogConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

// DefaultConfig returns the configuration used by [New].
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Version:       "1",
			MaxLoggedBody: 2048,
		},
		Credentials: CredentialsConfig{
			Backend: CredentialMemory,
			Prefix:  "finflow",
		},
		Cache: CacheConfig{
			Backend: CacheNone,
			Prefix:  "finflow:cache",
		},
		RequestLog: RequestLogConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// LoadConfig starts from the defaults and overrides them with FINFLOW_*
// environment variables, e.g. FINFLOW_API_BASE_URL or
// FINFLOW_CREDENTIAL_BACKEND.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "FINFLOW_"}); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.API.Version) == "" {
		return errors.New("API Version is required")
	}
	if c.API.MaxLoggedBody < 0 {
		return errors.New("API MaxLoggedBody must be >= 0")
	}

	// Credentials
	switch c.Credentials.Backend {
	case CredentialMemory:
	case CredentialFile:
		if strings.TrimSpace(c.Credentials.Path) == "" {
			return errors.New("file credential backend requires Path")
		}
	case CredentialRedis:
		if strings.TrimSpace(c.Credentials.Prefix) == "" {
			return errors.New("redis credential backend requires Prefix")
		}
	default:
		return fmt.Errorf("unsupported credential backend %q", c.Credentials.Backend)
	}

	// Cache
	switch c.Cache.Backend {
	case CacheNone:
	case CacheFile:
		if strings.TrimSpace(c.Cache.Dir) == "" {
			return errors.New("file cache backend requires Dir")
		}
	case CacheRedis:
		if c.Cache.TTL < 0 {
			return errors.New("Cache TTL must be >= 0")
		}
	default:
		return fmt.Errorf("unsupported cache backend %q", c.Cache.Backend)
	}

	// Request log
	if c.RequestLog.Enabled && c.RequestLog.BufferSize <= 0 {
		return errors.New("RequestLog BufferSize must be > 0")
	}

	return nil
}
