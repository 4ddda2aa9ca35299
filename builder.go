package authcore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/finflow/authcore/credential"
	"github.com/finflow/authcore/httpclient"
	"github.com/finflow/authcore/identity"
	"github.com/finflow/authcore/internal/metrics"
	"github.com/finflow/authcore/internal/netlog"
	"github.com/finflow/authcore/profilecache"
	"github.com/finflow/authcore/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Core].
//
// Builder instances are intended to be configured during initialization and
// then discarded; Build may be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	httpClient *http.Client
	store      credential.Store
	cache      profilecache.Cache
	logSink    LogSink
	logger     *slog.Logger

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis supplies the client used by redis backends. The caller keeps
// ownership and must close it after [Core.Close].
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient replaces the transport used for API calls.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithCredentialStore overrides Config.Credentials.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithProfileCache overrides Config.Cache.
func (b *Builder) WithProfileCache(cache profilecache.Cache) *Builder {
	b.cache = cache
	return b
}

// WithLogSink enables request logging to sink.
func (b *Builder) WithLogSink(sink LogSink) *Builder {
	b.logSink = sink
	b.config.RequestLog.Enabled = sink != nil
	return b
}

// WithLogger sets the operational logger shared by all components.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled overrides Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms overrides Config.Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the core.
//
// The API client is built without auth hooks; they are installed once the
// gateway and session controller exist.
func (b *Builder) Build() (*Core, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	core := &Core{logger: logger}

	// -------- REDIS --------
	rdb := b.redis
	if rdb == nil && b.needsRedis(cfg) {
		if cfg.Redis.URL == "" {
			return nil, ErrRedisRequired
		}
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		rdb = client
		core.ownedRedis = client
	}

	// -------- CREDENTIAL STORE --------
	store := b.store
	if store == nil {
		var err error
		store, err = newCredentialStore(cfg.Credentials, rdb)
		if err != nil {
			core.closeOwned()
			return nil, err
		}
	}

	// -------- PROFILE CACHE --------
	cache := b.cache
	if cache == nil {
		var err error
		cache, err = newProfileCache(cfg.Cache, rdb, logger)
		if err != nil {
			core.closeOwned()
			return nil, err
		}
	}

	// -------- METRICS & REQUEST LOG --------
	m := metrics.New(metrics.Config{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})
	sink := b.logSink
	if sink == nil {
		sink = netlog.NewSlogSink(logger)
	}
	events := netlog.NewDispatcher(netlog.Config{
		Enabled:    cfg.RequestLog.Enabled,
		BufferSize: cfg.RequestLog.BufferSize,
		DropIfFull: cfg.RequestLog.DropIfFull,
	}, sink)

	// -------- API CLIENT --------
	clientOpts := []httpclient.Option{
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(m),
		httpclient.WithEventLog(events),
	}
	if b.httpClient != nil {
		clientOpts = append(clientOpts, httpclient.WithHTTPClient(b.httpClient))
	}
	client, err := httpclient.New(httpclient.Config{
		BaseURL:       cfg.API.BaseURL,
		APIVersion:    cfg.API.Version,
		MaxLoggedBody: cfg.API.MaxLoggedBody,
	}, store, clientOpts...)
	if err != nil {
		events.Close()
		core.closeOwned()
		return nil, err
	}

	// -------- GATEWAY & SESSION --------
	gateway := identity.New(client, store, cache,
		identity.WithLogger(logger),
		identity.WithMetrics(m),
	)
	controller := session.New(store, gateway,
		session.WithLogger(logger),
		session.WithMetrics(m),
	)

	client.ConfigureAuthHooks(gateway.RefreshHandler(), func(ctx context.Context) {
		if err := store.Clear(ctx); err != nil {
			logger.WarnContext(ctx, "clear credentials after unauthorized", "error", err)
		}
		controller.HandleSessionExpired()
	})

	core.config = cfg
	core.store = store
	core.cache = cache
	core.client = client
	core.gateway = gateway
	core.session = controller
	core.metrics = m
	core.events = events

	b.built = true
	return core, nil
}

func (b *Builder) needsRedis(cfg Config) bool {
	return (b.store == nil && cfg.Credentials.Backend == CredentialRedis) ||
		(b.cache == nil && cfg.Cache.Backend == CacheRedis)
}

func newCredentialStore(cfg CredentialsConfig, rdb redis.UniversalClient) (credential.Store, error) {
	switch cfg.Backend {
	case CredentialFile:
		return credential.NewFileStore(cfg.Path)
	case CredentialRedis:
		if rdb == nil {
			return nil, ErrRedisRequired
		}
		return credential.NewRedisStore(rdb, cfg.Prefix), nil
	default:
		return credential.NewMemoryStore(), nil
	}
}

func newProfileCache(cfg CacheConfig, rdb redis.UniversalClient, logger *slog.Logger) (profilecache.Cache, error) {
	switch cfg.Backend {
	case CacheFile:
		return profilecache.NewFileCache(cfg.Dir, logger)
	case CacheRedis:
		if rdb == nil {
			return nil, ErrRedisRequired
		}
		return profilecache.NewRedisCache(rdb, cfg.Prefix, cfg.TTL), nil
	default:
		return nil, nil
	}
}
