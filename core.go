package authcore

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/finflow/authcore/apperr"
	"github.com/finflow/authcore/credential"
	"github.com/finflow/authcore/httpclient"
	"github.com/finflow/authcore/identity"
	"github.com/finflow/authcore/internal/metrics"
	"github.com/finflow/authcore/internal/netlog"
	"github.com/finflow/authcore/profilecache"
	"github.com/finflow/authcore/session"
	"github.com/redis/go-redis/v9"
)

// MinPasswordLength is the shortest password accepted by ResetPassword.
const MinPasswordLength = 6

// Core is the assembled auth core returned by [Builder.Build].
type Core struct {
	config  Config
	logger  *slog.Logger
	store   credential.Store
	cache   profilecache.Cache
	client  *httpclient.Client
	gateway *identity.Gateway
	session *session.Controller
	metrics *metrics.Metrics
	events  *netlog.Dispatcher

	ownedRedis *redis.Client
}

// Client returns the API client shared by every component.
func (c *Core) Client() *httpclient.Client { return c.client }

// Gateway returns the auth gateway.
func (c *Core) Gateway() *identity.Gateway { return c.gateway }

// Session returns the session controller.
func (c *Core) Session() *session.Controller { return c.session }

// CredentialStore returns the store holding the access and refresh tokens.
func (c *Core) CredentialStore() credential.Store { return c.store }

// Config returns the validated configuration the core was built with.
func (c *Core) Config() Config { return c.config }

// Close ends session subscriptions, drains the request log and closes the
// redis client if Build created it.
func (c *Core) Close() {
	if c == nil {
		return
	}
	if c.session != nil {
		c.session.Close()
	}
	c.events.Close()
	c.closeOwned()
}

func (c *Core) closeOwned() {
	if c.ownedRedis == nil {
		return
	}
	if err := c.ownedRedis.Close(); err != nil {
		c.logger.Warn("closing redis client", "error", err)
	}
	c.ownedRedis = nil
}

// LogDropped returns the number of request log events dropped because the
// buffer was full.
func (c *Core) LogDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.events.Dropped()
}

// MetricsSnapshot returns the current counter values.
func (c *Core) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

// SessionPhase returns the current session phase.
func (c *Core) SessionPhase() session.Phase {
	if c == nil || c.session == nil {
		return session.PhaseLoading
	}
	return c.session.State().Phase
}

/*
====================================
USE CASES
====================================
*/

// Login trims both fields, authenticates and moves the session to
// Authenticated. Empty input fails with a validation error and no request.
func (c *Core) Login(ctx context.Context, username, password string) (identity.LoginResponse, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return identity.LoginResponse{}, apperr.Validation("username and password are required")
	}

	res, err := c.gateway.Login(ctx, identity.LoginRequest{Username: username, Password: password})
	if err != nil {
		return identity.LoginResponse{}, err
	}
	if err := c.session.Login(ctx, res); err != nil {
		return identity.LoginResponse{}, err
	}
	return res, nil
}

// LoginWithGoogle exchanges a Google ID token and moves the session to
// Authenticated.
func (c *Core) LoginWithGoogle(ctx context.Context, idToken string) (identity.LoginResponse, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return identity.LoginResponse{}, apperr.Validation("google id token is required")
	}

	res, err := c.gateway.LoginWithGoogle(ctx, idToken)
	if err != nil {
		return identity.LoginResponse{}, err
	}
	if err := c.session.Login(ctx, res); err != nil {
		return identity.LoginResponse{}, err
	}
	return res, nil
}

// Logout ends the session on the server when reachable and always clears
// local state. It is idempotent.
func (c *Core) Logout(ctx context.Context) error {
	gwErr := c.gateway.Logout(ctx)
	sessErr := c.session.Logout(ctx)
	return errors.Join(gwErr, sessErr)
}

// Register validates and trims the form, then creates the account. The
// password is sent as entered.
func (c *Core) Register(ctx context.Context, req identity.RegisterRequest, registrationToken string) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return apperr.Validation("username, email and password are required")
	}
	req.FirstName = trimOptional(req.FirstName)
	req.LastName = trimOptional(req.LastName)
	return c.gateway.Register(ctx, req, registrationToken)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// SendRegistrationOTP mails a one-time password for account creation.
func (c *Core) SendRegistrationOTP(ctx context.Context, email string) error {
	return c.gateway.SendOTP(ctx, strings.TrimSpace(email), identity.OTPPurposeRegister)
}

// VerifyRegistrationOTP returns the registration token for [Core.Register].
func (c *Core) VerifyRegistrationOTP(ctx context.Context, email, otp string) (identity.VerifyOTPResponse, error) {
	return c.gateway.VerifyOTP(ctx, strings.TrimSpace(email), strings.TrimSpace(otp), identity.OTPPurposeRegister)
}

// SendPasswordResetOTP mails a one-time password for the reset flow.
func (c *Core) SendPasswordResetOTP(ctx context.Context, email string) error {
	return c.gateway.SendOTP(ctx, strings.TrimSpace(email), identity.OTPPurposeResetPassword)
}

// VerifyPasswordResetOTP returns the reset token for [Core.ResetPassword].
func (c *Core) VerifyPasswordResetOTP(ctx context.Context, email, otp string) (identity.VerifyOTPResponse, error) {
	return c.gateway.VerifyOTP(ctx, strings.TrimSpace(email), strings.TrimSpace(otp), identity.OTPPurposeResetPassword)
}

// ResetPassword sets a new password using a verified reset token. A
// mismatched confirmation or a short password fails without a request.
func (c *Core) ResetPassword(ctx context.Context, password, confirmPassword, resetToken string) error {
	if password != confirmPassword {
		return apperr.Validation("passwords do not match")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Validation("password must be at least 6 characters")
	}
	return c.gateway.ResetPassword(ctx, identity.ResetPasswordRequest{
		Password:        password,
		ConfirmPassword: confirmPassword,
	}, resetToken)
}

// CheckUserExistence reports whether an account uses email.
func (c *Core) CheckUserExistence(ctx context.Context, email string) (bool, error) {
	return c.gateway.CheckUserExistence(ctx, strings.TrimSpace(email))
}

// Profile returns the current user's profile, served from cache when the
// backend is unreachable, and publishes it to the session.
func (c *Core) Profile(ctx context.Context) (identity.UserProfile, error) {
	profile, err := c.gateway.GetProfileWithCacheFallback(ctx)
	if err != nil {
		return identity.UserProfile{}, err
	}
	c.session.UpdateCurrentUser(profile)
	return profile, nil
}

// UpdateProfile saves profile fields and publishes the result to the session.
func (c *Core) UpdateProfile(ctx context.Context, req identity.UpdateProfileRequest) (identity.UserProfile, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	profile, err := c.gateway.UpdateProfile(ctx, req)
	if err != nil {
		return identity.UserProfile{}, err
	}
	c.session.UpdateCurrentUser(profile)
	return profile, nil
}
