package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/finflow/authcore/apperr"
	"github.com/finflow/authcore/credential"
	"github.com/finflow/authcore/httpclient"
	"github.com/finflow/authcore/internal/metrics"
	"github.com/finflow/authcore/jwt"
	"github.com/finflow/authcore/profilecache"
)

// Endpoint paths of the FinFlow API.
const (
	PathLogin         = "/auth/login"
	PathGoogleLogin   = "/auth/google"
	PathRegister      = "/auth/register"
	PathRefresh       = "/auth/refresh"
	PathLogout        = "/auth/logout"
	PathSendOTP       = "/auth/send-otp"
	PathVerifyOTP     = "/auth/verify-otp"
	PathResetPassword = "/auth/reset-password"
	PathCheckUser     = "/auth/check-user"
	PathMyProfile     = "/users/my-profile"
)

const (
	registrationTokenHeader = "X-Registration-Token"
	resetTokenHeader        = "X-Reset-Token"
)

// Gateway combines the API client, the credential store and the profile
// cache. It is safe for concurrent use.
type Gateway struct {
	client  *httpclient.Client
	store   credential.Store
	cache   profilecache.Cache
	logger  *slog.Logger
	metrics *metrics.Metrics

	lastRefreshMu sync.Mutex
	lastRefresh   RefreshTokenResponse
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics sets the counters updated by gateway operations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// New returns a Gateway. cache may be nil to disable profile caching.
func New(client *httpclient.Client, store credential.Store, cache profilecache.Cache, opts ...Option) *Gateway {
	g := &Gateway{
		client: client,
		store:  store,
		cache:  cache,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "identity")
	return g
}

// RefreshHandler returns the refresh hook for httpclient.Client.
func (g *Gateway) RefreshHandler() httpclient.RefreshFunc {
	return func(ctx context.Context) (string, error) {
		res, err := g.exchangeRefreshToken(ctx)
		if err != nil {
			return "", err
		}
		return res.Token, nil
	}
}

// Login authenticates with a username and password. A failed login never
// triggers a token refresh.
func (g *Gateway) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	res, err := httpclient.Call[LoginResponse](ctx, g.client, httpclient.Request{
		Method:              http.MethodPost,
		Endpoint:            PathLogin,
		Body:                req,
		DisableRefreshRetry: true,
	})
	return g.completeLogin(ctx, "password", res, err)
}

// LoginWithGoogle exchanges a Google ID token for FinFlow tokens.
func (g *Gateway) LoginWithGoogle(ctx context.Context, idToken string) (LoginResponse, error) {
	res, err := httpclient.Call[LoginResponse](ctx, g.client, httpclient.Request{
		Method:              http.MethodPost,
		Endpoint:            PathGoogleLogin,
		Body:                GoogleLoginRequest{IDToken: idToken},
		DisableRefreshRetry: true,
	})
	return g.completeLogin(ctx, "google", res, err)
}

func (g *Gateway) completeLogin(ctx context.Context, method string, res LoginResponse, err error) (LoginResponse, error) {
	if err == nil && !res.Authenticated() {
		err = apperr.Decoding(errors.New("login response without token"))
	}
	if err != nil {
		g.metrics.Inc(metrics.LoginFailures)
		g.logger.Warn("login failed", "method", method, "error", err)
		return LoginResponse{}, err
	}
	if err := g.persistTokens(ctx, res.Token, res.RefreshToken); err != nil {
		g.metrics.Inc(metrics.LoginFailures)
		return LoginResponse{}, apperr.Unknown(err)
	}
	g.metrics.Inc(metrics.Logins)
	g.logger.Info("login succeeded", "method", method, "username", res.Username)
	return res, nil
}

// persistTokens stores access and refresh together. An empty refresh token
// keeps the stored one.
func (g *Gateway) persistTokens(ctx context.Context, access, refresh string) error {
	if refresh == "" {
		return g.store.SetAccessToken(ctx, access)
	}
	return g.store.Save(ctx, credential.Credentials{AccessToken: access, RefreshToken: refresh})
}

// Register creates an account. It does not authenticate.
func (g *Gateway) Register(ctx context.Context, req RegisterRequest, registrationToken string) error {
	_, err := httpclient.Call[RegisterResponse](ctx, g.client, httpclient.Request{
		Method:              http.MethodPost,
		Endpoint:            PathRegister,
		Body:                req,
		Headers:             map[string]string{registrationTokenHeader: registrationToken},
		DisableRefreshRetry: true,
	})
	if err != nil {
		g.logger.Warn("registration failed", "error", err)
		return err
	}
	g.logger.Info("registration succeeded", "username", req.Username)
	return nil
}

// GetProfile fetches the current user's profile and caches it. A 401 the
// client could not resolve gets one explicit refresh and one more attempt.
func (g *Gateway) GetProfile(ctx context.Context) (UserProfile, error) {
	profile, err := g.fetchProfile(ctx)
	if err == nil {
		return profile, nil
	}
	if !needsExplicitRefresh(err) {
		g.logger.Warn("get profile failed", "error", err)
		return UserProfile{}, err
	}

	g.logger.Warn("profile request unauthorized, refreshing")
	if _, rerr := g.RefreshToken(ctx); rerr != nil {
		return UserProfile{}, apperr.Unauthorized("session expired", rerr)
	}
	profile, err = g.fetchProfile(ctx)
	if err != nil {
		return UserProfile{}, apperr.Unauthorized("session expired", err)
	}
	return profile, nil
}

func needsExplicitRefresh(err error) bool {
	if apperr.IsUnauthorizedServer(err) {
		return true
	}
	return errors.Is(err, apperr.ErrUnauthorized) && errors.Is(err, httpclient.ErrRefreshUnavailable)
}

func (g *Gateway) fetchProfile(ctx context.Context) (UserProfile, error) {
	profile, err := httpclient.Call[UserProfile](ctx, g.client, httpclient.Request{
		Method:   http.MethodGet,
		Endpoint: PathMyProfile,
	})
	if err != nil {
		return UserProfile{}, err
	}
	g.cacheProfile(ctx, profile)
	return profile, nil
}

// GetProfileWithCacheFallback returns the cached profile of the current user
// when the fetch fails and one exists. An Unauthorized failure ends the
// session, so it is returned as is.
func (g *Gateway) GetProfileWithCacheFallback(ctx context.Context) (UserProfile, error) {
	// Read first: a failed refresh during the fetch clears the cache.
	cached, hasCached := g.CachedProfile(ctx)

	profile, err := g.GetProfile(ctx)
	if err == nil {
		return profile, nil
	}
	if errors.Is(err, apperr.ErrUnauthorized) {
		return UserProfile{}, err
	}
	if hasCached {
		g.metrics.Inc(metrics.ProfileCacheFallbackHit)
		g.logger.Warn("serving cached profile", "error", err)
		return cached, nil
	}
	g.metrics.Inc(metrics.ProfileCacheFallbackMiss)
	return UserProfile{}, err
}

// CachedProfile looks up the current user's cached profile without network.
func (g *Gateway) CachedProfile(ctx context.Context) (UserProfile, bool) {
	key, ok := g.cacheKey(ctx, "")
	if !ok {
		return UserProfile{}, false
	}
	var profile UserProfile
	found, err := g.cache.Load(ctx, key, &profile)
	if err != nil {
		g.logger.Warn("profile cache read failed", "error", err)
		return UserProfile{}, false
	}
	return profile, found
}

// UpdateProfile saves profile fields and refreshes the cache.
func (g *Gateway) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (UserProfile, error) {
	profile, err := httpclient.Call[UserProfile](ctx, g.client, httpclient.Request{
		Method:   http.MethodPut,
		Endpoint: PathMyProfile,
		Body:     req,
	})
	if err != nil {
		g.logger.Warn("update profile failed", "error", err)
		return UserProfile{}, err
	}
	g.cacheProfile(ctx, profile)
	g.logger.Info("profile updated")
	return profile, nil
}

func (g *Gateway) cacheProfile(ctx context.Context, profile UserProfile) {
	key, ok := g.cacheKey(ctx, profile.ID)
	if !ok {
		return
	}
	if err := g.cache.Save(ctx, key, profile); err != nil {
		g.logger.Warn("profile cache write failed", "error", err)
	}
}

// cacheKey prefers userID, else the unverified subject of the stored access
// token. No key means caching is skipped.
func (g *Gateway) cacheKey(ctx context.Context, userID string) (string, bool) {
	if g.cache == nil {
		return "", false
	}
	if userID != "" {
		return profilecache.UserProfileKey(userID), true
	}
	token, err := g.store.AccessToken(ctx)
	if err != nil || token == "" {
		return "", false
	}
	subject, ok := jwt.SubjectHint(token)
	if !ok {
		return "", false
	}
	return profilecache.UserProfileKey(subject), true
}

// RefreshToken exchanges the stored refresh token for new tokens. Without a
// stored refresh token it fails without a network call. Any failure clears
// local credentials and the profile cache.
//
// When the client's refresh handler is configured the exchange runs through
// it, so a concurrent refresh triggered by a 401 is shared and a single-use
// refresh token is presented once.
func (g *Gateway) RefreshToken(ctx context.Context) (RefreshTokenResponse, error) {
	token, err := g.client.Refresh(ctx)
	if errors.Is(err, httpclient.ErrRefreshUnavailable) {
		return g.exchangeRefreshToken(ctx)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return RefreshTokenResponse{}, apperr.Network("refresh canceled", ctxErr)
		}
		if !errors.Is(err, apperr.ErrUnauthorized) {
			err = apperr.Unauthorized("session refresh failed", err)
		}
		return RefreshTokenResponse{}, err
	}

	g.lastRefreshMu.Lock()
	defer g.lastRefreshMu.Unlock()
	if g.lastRefresh.Token == token {
		return g.lastRefresh, nil
	}
	return RefreshTokenResponse{Token: token}, nil
}

func (g *Gateway) exchangeRefreshToken(ctx context.Context) (RefreshTokenResponse, error) {
	refreshToken, err := g.store.RefreshToken(ctx)
	if err != nil {
		return RefreshTokenResponse{}, apperr.Unauthorized("refresh token unavailable", err)
	}
	if refreshToken == "" {
		g.logger.Warn("no refresh token stored")
		return RefreshTokenResponse{}, apperr.Unauthorized("refresh token not found", nil)
	}

	res, err := httpclient.Call[RefreshTokenResponse](ctx, g.client, httpclient.Request{
		Method:              http.MethodPost,
		Endpoint:            PathRefresh,
		Body:                RefreshTokenRequest{RefreshToken: refreshToken},
		DisableRefreshRetry: true,
	})
	if err == nil && res.Token == "" {
		err = apperr.Decoding(errors.New("refresh response without token"))
	}
	if err == nil {
		err = g.persistTokens(ctx, res.Token, res.RefreshToken)
	}
	if err != nil {
		g.logger.Error("token refresh failed", "error", err)
		_ = g.clearLocal(ctx)
		return RefreshTokenResponse{}, apperr.Unauthorized("session refresh failed", err)
	}

	g.lastRefreshMu.Lock()
	g.lastRefresh = res
	g.lastRefreshMu.Unlock()
	g.logger.Info("token refreshed")
	return res, nil
}

// Logout invalidates the session server-side on a best-effort basis, then
// always clears local credentials and the profile cache. Only local cleanup
// failures are returned.
func (g *Gateway) Logout(ctx context.Context) error {
	err := g.client.Do(ctx, httpclient.Request{
		Method:              http.MethodPost,
		Endpoint:            PathLogout,
		DisableRefreshRetry: true,
	}, nil)
	if err != nil {
		g.logger.Warn("server logout failed, clearing local state", "error", err)
	}
	g.metrics.Inc(metrics.Logouts)
	return g.clearLocal(ctx)
}

func (g *Gateway) clearLocal(ctx context.Context) error {
	var errs []error
	if err := g.store.Clear(ctx); err != nil {
		g.logger.Error("clearing credentials failed", "error", err)
		errs = append(errs, err)
	}
	if g.cache != nil {
		if err := g.cache.Clear(ctx); err != nil {
			g.logger.Warn("clearing profile cache failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendOTP asks the backend to email a one-time password.
func (g *Gateway) SendOTP(ctx context.Context, email string, purpose OTPPurpose) error {
	return g.client.Do(ctx, httpclient.Request{
		Method:              http.MethodPost,
		Endpoint:            PathSendOTP,
		Body:                SendOTPRequest{Email: email, Purpose: purpose},
		DisableRefreshRetry: true,
	}, nil)
}

// VerifyOTP checks otp and returns the follow-up token for purpose.
func (g *Gateway) VerifyOTP(ctx context.Context, email, otp string, purpose OTPPurpose) (VerifyOTPResponse, error) {
	return httpclient.Call[VerifyOTPResponse](ctx, g.client, httpclient.Request{
		Method:              http.MethodPost,
		Endpoint:            PathVerifyOTP,
		Body:                VerifyOTPRequest{Email: email, OTP: otp, Purpose: purpose},
		DisableRefreshRetry: true,
	})
}

// ResetPassword sets a new password using the token from VerifyOTP.
func (g *Gateway) ResetPassword(ctx context.Context, req ResetPasswordRequest, resetToken string) error {
	return g.client.Do(ctx, httpclient.Request{
		Method:              http.MethodPost,
		Endpoint:            PathResetPassword,
		Body:                req,
		Headers:             map[string]string{resetTokenHeader: resetToken},
		DisableRefreshRetry: true,
	}, nil)
}

// CheckUserExistence reports whether an account uses email.
func (g *Gateway) CheckUserExistence(ctx context.Context, email string) (bool, error) {
	res, err := httpclient.Call[userExistenceResponse](ctx, g.client, httpclient.Request{
		Method:              http.MethodGet,
		Endpoint:            PathCheckUser,
		Query:               url.Values{"email": {email}},
		DisableRefreshRetry: true,
	})
	return res.Exists, err
}
