package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/finflow/authcore/apperr"
	"github.com/finflow/authcore/credential"
	"github.com/finflow/authcore/internal/metrics"
	"github.com/finflow/authcore/internal/netlog"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Transport timeouts. They are fixed and not caller-overridable.
const (
	RequestTimeout  = 30 * time.Second
	ResourceTimeout = 60 * time.Second
)

const (
	DefaultAPIVersion    = "1"
	DefaultMaxLoggedBody = 2048
	maxResponseBody      = 8 << 20
	refreshKey           = "refresh"
	requestIDHeader      = "X-Request-ID"
)

// ErrRefreshUnavailable is wrapped into the Unauthorized error returned for
// a 401 when no refresh handler has been configured.
var ErrRefreshUnavailable = errors.New("refresh handler not configured")

// RefreshFunc obtains and persists a new access token.
type RefreshFunc func(ctx context.Context) (string, error)

// UnauthorizedFunc is invoked when a session cannot be recovered.
type UnauthorizedFunc func(ctx context.Context)

// Config holds the endpoint settings of a Client.
type Config struct {
	BaseURL    string
	APIVersion string
	// MaxLoggedBody caps the body bytes copied into log events.
	MaxLoggedBody int
}

// Request describes one API call.
type Request struct {
	Method   string
	Endpoint string
	Query    url.Values
	Body     any
	Headers  map[string]string
	// APIVersion overrides the configured API-Version header.
	APIVersion string
	// DisableRefreshRetry turns a 401 into a plain server error.
	DisableRefreshRetry bool
}

// Client issues authenticated requests. It is safe for concurrent use.
type Client struct {
	baseURL       string
	apiVersion    string
	maxLoggedBody int
	store         credential.Store
	http          *http.Client
	logger        *slog.Logger
	events        *netlog.Dispatcher
	metrics       *metrics.Metrics

	refreshGroup singleflight.Group

	hooksMu        sync.RWMutex
	refresh        RefreshFunc
	onUnauthorized UnauthorizedFunc
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default transport. Intended for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEventLog sends request/response events to d.
func WithEventLog(d *netlog.Dispatcher) Option {
	return func(c *Client) { c.events = d }
}

// WithMetrics sets the request and refresh counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New returns a Client with auth hooks unset.
func New(cfg Config, store credential.Store, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("base URL required")
	}
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("base URL must be absolute")
	}
	if store == nil {
		return nil, errors.New("credential store required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.MaxLoggedBody < 0 {
		cfg.MaxLoggedBody = 0
	}

	c := &Client{
		baseURL:       base,
		apiVersion:    cfg.APIVersion,
		maxLoggedBody: cfg.MaxLoggedBody,
		store:         store,
		http:          defaultHTTPClient(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "httpclient")
	return c, nil
}

func defaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = RequestTimeout
	return &http.Client{Transport: transport, Timeout: ResourceTimeout}
}

// ConfigureAuthHooks installs the refresh handler and unauthorized hook.
// Calling it again replaces both.
func (c *Client) ConfigureAuthHooks(refresh RefreshFunc, onUnauthorized UnauthorizedFunc) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.refresh = refresh
	c.onUnauthorized = onUnauthorized
}

// BaseURL returns the API root every endpoint is appended to.
func (c *Client) BaseURL() string { return c.baseURL }

// APIVersion returns the default API-Version header value.
func (c *Client) APIVersion() string { return c.apiVersion }

// Call performs req and decodes a 2xx body into a T.
func Call[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	err := c.Do(ctx, req, &out)
	return out, err
}

// Do performs req and decodes a 2xx body into out. With a nil out the body
// is ignored; otherwise an empty body is a decoding error.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	var payload []byte
	if req.Body != nil {
		var err error
		if payload, err = json.Marshal(req.Body); err != nil {
			return apperr.Unknown(err)
		}
	}

	var tokenOverride string
	retried := false
	for {
		res, err := c.send(ctx, req, payload, tokenOverride)
		if err != nil {
			return err
		}

		if res.status >= 200 && res.status <= 299 {
			return decode(res.body, out)
		}

		if res.status != http.StatusUnauthorized || req.DisableRefreshRetry {
			return apperr.FromResponse(res.status, res.body)
		}

		c.metrics.Inc(metrics.Unauthorized401)
		if retried {
			c.logger.Warn("request unauthorized after refresh", "endpoint", req.Endpoint, "request_id", res.requestID)
			c.unauthorized(ctx)
			return apperr.Unauthorized("session expired", nil)
		}

		token, err := c.tokenAfter401(ctx, res.bearer)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return apperr.Network("request canceled", ctxErr)
			}
			c.logger.Warn("token refresh failed", "endpoint", req.Endpoint, "error", err)
			c.unauthorized(ctx)
			return apperr.Unauthorized("session refresh failed", err)
		}
		retried = true
		tokenOverride = token
	}
}

// tokenAfter401 returns the token to retry with. When another caller already
// replaced the token that was rejected, the stored one is reused.
func (c *Client) tokenAfter401(ctx context.Context, rejected string) (string, error) {
	if current, err := c.store.AccessToken(ctx); err == nil && current != "" && current != rejected {
		c.metrics.Inc(metrics.RefreshShared)
		return current, nil
	}
	return c.refreshAccessToken(ctx)
}

// Refresh runs the configured refresh handler and returns the new access
// token. A refresh already in flight, including one started for a 401, is
// joined rather than repeated. The unauthorized hook is not invoked.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.refreshAccessToken(ctx)
}

func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	c.hooksMu.RLock()
	refresh := c.refresh
	c.hooksMu.RUnlock()
	if refresh == nil {
		return "", ErrRefreshUnavailable
	}

	// The shared refresh must outlive any single waiter.
	detached := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan(refreshKey, func() (any, error) {
		c.metrics.Inc(metrics.RefreshStarted)
		c.logger.Info("refreshing access token")
		token, err := refresh(detached)
		if err == nil && token == "" {
			err = errors.New("refresh returned empty token")
		}
		if err != nil {
			c.metrics.Inc(metrics.RefreshFailure)
			return "", err
		}
		c.metrics.Inc(metrics.RefreshSuccess)
		return token, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.Inc(metrics.RefreshShared)
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) unauthorized(ctx context.Context) {
	c.hooksMu.RLock()
	hook := c.onUnauthorized
	c.hooksMu.RUnlock()
	c.metrics.Inc(metrics.UnauthorizedHook)
	if hook != nil {
		hook(context.WithoutCancel(ctx))
	}
}

type response struct {
	status    int
	body      []byte
	bearer    string
	requestID string
}

func (c *Client) send(ctx context.Context, req Request, payload []byte, tokenOverride string) (*response, error) {
	target := c.baseURL + req.Endpoint
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, apperr.Network("invalid request URL", err)
	}

	version := req.APIVersion
	if version == "" {
		version = c.apiVersion
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("API-Version", version)
	httpReq.Header.Set(requestIDHeader, requestID)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	bearer := tokenOverride
	if bearer == "" {
		bearer, err = c.store.AccessToken(ctx)
		if err != nil {
			c.logger.Warn("credential store read failed", "error", err)
			bearer = ""
		}
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}

	c.emitRequest(ctx, httpReq, requestID, payload)
	c.metrics.Inc(metrics.Requests)

	start := time.Now()
	httpRes, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.Inc(metrics.RequestFailures)
		c.emitFailure(ctx, httpReq, requestID, time.Since(start), err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, apperr.Network("request canceled", ctxErr)
		}
		return nil, apperr.Network(err.Error(), err)
	}
	defer httpRes.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpRes.Body, maxResponseBody))
	elapsed := time.Since(start)
	c.metrics.Observe(metrics.RequestLatency, elapsed)
	if err != nil {
		c.metrics.Inc(metrics.RequestFailures)
		c.emitFailure(ctx, httpReq, requestID, elapsed, err)
		return nil, apperr.Network("reading response body", err)
	}
	if httpRes.StatusCode < 200 || httpRes.StatusCode > 299 {
		c.metrics.Inc(metrics.RequestFailures)
	}
	c.emitResponse(ctx, httpReq, httpRes, requestID, data, elapsed)

	return &response{status: httpRes.StatusCode, body: data, bearer: bearer, requestID: requestID}, nil
}

func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return apperr.Decoding(errors.New("empty response body"))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Decoding(err)
	}
	return nil
}
