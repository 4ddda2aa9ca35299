package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/finflow/authcore/apperr"
	"github.com/finflow/authcore/credential"
	"github.com/finflow/authcore/identity"
	"github.com/finflow/authcore/internal/metrics"
)

// Gateway is the part of identity.Gateway the controller needs.
type Gateway interface {
	RefreshToken(ctx context.Context) (identity.RefreshTokenResponse, error)
	GetProfile(ctx context.Context) (identity.UserProfile, error)
}

// Controller is the authentication state machine.
//
// High-level operations are serialized. HandleSessionExpired and the
// accessors only take the state lock, so they may be called from inside an
// operation (for example by the client's unauthorized hook).
type Controller struct {
	store   credential.Store
	gateway Gateway
	logger  *slog.Logger
	metrics *metrics.Metrics

	opMu sync.Mutex

	mu     sync.Mutex
	state  State
	user   *identity.UserProfile
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the counter of state transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New returns a controller in the Loading state.
func New(store credential.Store, gateway Gateway, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		gateway: gateway,
		logger:  slog.Default(),
		state:   Loading(),
		subs:    map[uint64]*subscriber{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "session")
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentUser returns the in-memory profile of the signed-in user.
func (c *Controller) CurrentUser() (identity.UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return identity.UserProfile{}, false
	}
	return *c.user, true
}

// UpdateCurrentUser replaces the in-memory profile. State is unchanged. It is
// ignored once the session is Unauthenticated or SessionExpired.
func (c *Controller) UpdateCurrentUser(profile identity.UserProfile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase == PhaseUnauthenticated || c.state.Phase == PhaseSessionExpired {
		return
	}
	c.user = &profile
}

// RestoreSession derives the state from the stored access token. A failed
// profile load leaves the session authenticated.
func (c *Controller) RestoreSession(ctx context.Context) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.logger.Info("restoring session")
	c.setState(Loading())

	token, err := c.store.AccessToken(ctx)
	if err != nil {
		c.logger.Warn("reading stored token failed", "error", err)
	}
	if token == "" {
		c.setState(Unauthenticated())
		return
	}
	c.setState(Authenticated(token))
	c.loadCurrentUser(ctx)
}

// Login persists the access token of res and enters Authenticated.
func (c *Controller) Login(ctx context.Context, res identity.LoginResponse) error {
	if res.Token == "" {
		return apperr.Validation("login response has no token")
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := c.store.SetAccessToken(ctx, res.Token); err != nil {
		return apperr.Unknown(err)
	}
	c.logger.Info("logged in", "username", res.Username)
	c.setState(Authenticated(res.Token))
	c.loadCurrentUser(ctx)
	return nil
}

// Logout clears stored credentials and enters Unauthenticated. It is
// idempotent. The state changes even when the store fails.
func (c *Controller) Logout(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	err := c.store.Clear(ctx)
	if err != nil {
		c.logger.Error("clearing credentials failed", "error", err)
	}

	c.mu.Lock()
	c.user = nil
	c.setStateLocked(Unauthenticated())
	c.mu.Unlock()
	c.logger.Info("logged out")
	return err
}

// RefreshSession exchanges the refresh token for a new access token. On
// failure the session expires and the error is returned.
func (c *Controller) RefreshSession(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.State().Phase == PhaseSessionExpired {
		return apperr.Unauthorized("session expired", nil)
	}

	c.setState(Refreshing())
	res, err := c.gateway.RefreshToken(ctx)
	if err == nil && res.Token == "" {
		err = apperr.Decoding(errors.New("refresh response without token"))
	}
	if err != nil {
		c.logger.Error("session refresh failed", "error", err)
		c.HandleSessionExpired()
		return err
	}
	c.setState(Authenticated(res.Token))
	c.logger.Info("session refreshed")
	return nil
}

// HandleSessionExpired enters SessionExpired and drops the in-memory
// profile. Only Login and RestoreSession leave that state.
func (c *Controller) HandleSessionExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = nil
	c.setStateLocked(SessionExpired())
	c.logger.Warn("session expired")
}

func (c *Controller) loadCurrentUser(ctx context.Context) {
	profile, err := c.gateway.GetProfile(ctx)
	if err != nil {
		c.logger.Warn("loading profile failed", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseAuthenticated {
		return
	}
	c.user = &profile
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setStateLocked(s)
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("state change", "from", c.state.String(), "to", s.String())
	c.state = s
	c.metrics.Inc(metrics.SessionTransitions)
	for _, sub := range c.subs {
		sub.push(s)
	}
}

// Subscribe returns a channel that yields the current state, then every
// later change in order. Calling cancel or canceling ctx stops delivery and
// closes the channel.
func (c *Controller) Subscribe(ctx context.Context) (<-chan State, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	sub := newSubscriber()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.stop()
		close(sub.out)
		return sub.out, func() {}
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = sub
	sub.push(c.state)
	c.mu.Unlock()

	go sub.run(ctx, func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	})
	return sub.out, sub.stop
}

// Subscribers returns the number of live subscriptions.
func (c *Controller) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Close ends every subscription. The controller keeps working, but new
// subscriptions are closed immediately.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	subs := make([]*subscriber, 0, len(c.subs))
	for _, sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()
	for _, sub := range subs {
		sub.stop()
	}
}
