package authcore

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://api.finflow.test"
	return cfg
}

func TestDefaultConfigNeedsOnlyBaseURL(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with base URL should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, "BaseURL is required"},
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api" }, "absolute"},
		{"ftp base url", func(c *Config) { c.API.BaseURL = "ftp://files.test" }, "absolute"},
		{"empty version", func(c *Config) { c.API.Version = " " }, "Version"},
		{"negative body limit", func(c *Config) { c.API.MaxLoggedBody = -1 }, "MaxLoggedBody"},
		{"file store without path", func(c *Config) { c.Credentials.Backend = CredentialFile }, "Path"},
		{"redis store without prefix", func(c *Config) {
			c.Credentials.Backend = CredentialRedis
			c.Credentials.Prefix = ""
		}, "Prefix"},
		{"unknown store", func(c *Config) { c.Credentials.Backend = "keychain" }, "unsupported credential backend"},
		{"file cache without dir", func(c *Config) { c.Cache.Backend = CacheFile }, "Dir"},
		{"negative cache ttl", func(c *Config) {
			c.Cache.Backend = CacheRedis
			c.Cache.TTL = -time.Second
		}, "TTL"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "sqlite" }, "unsupported cache backend"},
		{"request log without buffer", func(c *Config) {
			c.RequestLog.Enabled = true
			c.RequestLog.BufferSize = 0
		}, "BufferSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("FINFLOW_API_BASE_URL", "https://api.finflow.test")
	t.Setenv("FINFLOW_API_VERSION", "2")
	t.Setenv("FINFLOW_CREDENTIAL_BACKEND", "file")
	t.Setenv("FINFLOW_CREDENTIAL_PATH", "/tmp/finflow/credentials.json")
	t.Setenv("FINFLOW_CACHE_BACKEND", "redis")
	t.Setenv("FINFLOW_CACHE_TTL", "10m")
	t.Setenv("FINFLOW_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("FINFLOW_REQUEST_LOG_ENABLED", "true")
	t.Setenv("FINFLOW_METRICS_LATENCY_HISTOGRAMS", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.API.BaseURL != "https://api.finflow.test" || cfg.API.Version != "2" {
		t.Fatalf("unexpected API config %+v", cfg.API)
	}
	if cfg.Credentials.Backend != CredentialFile || cfg.Credentials.Path != "/tmp/finflow/credentials.json" {
		t.Fatalf("unexpected credentials config %+v", cfg.Credentials)
	}
	if cfg.Cache.Backend != CacheRedis || cfg.Cache.TTL != 10*time.Minute {
		t.Fatalf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Redis.URL != "redis://localhost:6379/2" {
		t.Fatalf("unexpected redis url %q", cfg.Redis.URL)
	}
	if !cfg.RequestLog.Enabled || cfg.RequestLog.BufferSize != 256 {
		t.Fatalf("unexpected request log config %+v", cfg.RequestLog)
	}
	if !cfg.Metrics.Enabled || !cfg.Metrics.EnableLatencyHistograms {
		t.Fatalf("unexpected metrics config %+v", cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded config should validate: %v", err)
	}
}

func TestLoadConfigRejectsMalformedValues(t *testing.T) {
	t.Setenv("FINFLOW_CACHE_TTL", "soon")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error")
	}
}
