package credential

import (
	"context"
	"errors"
)

// Secret names used by every backend.
const (
	AccessTokenKey  = "auth_token"
	RefreshTokenKey = "refresh_token"
)

// ErrStoreUnavailable wraps backend failures (I/O, Redis).
var ErrStoreUnavailable = errors.New("credential store unavailable")

// Credentials is the token pair held for the current user. An empty field
// means the secret is absent.
type Credentials struct {
	AccessToken  string `json:"auth_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Empty reports whether neither secret is present.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Store is an opaque secret store. Implementations must be safe for
// concurrent use.
type Store interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	// SetAccessToken replaces the access token; "" clears it.
	SetAccessToken(ctx context.Context, token string) error
	// SetRefreshToken replaces the refresh token; "" clears it.
	SetRefreshToken(ctx context.Context, token string) error
	// Save replaces both secrets atomically. Empty fields clear the secret.
	Save(ctx context.Context, creds Credentials) error
	ClearAccessToken(ctx context.Context) error
	Clear(ctx context.Context) error
}

// Load reads both secrets from s.
func Load(ctx context.Context, s Store) (Credentials, error) {
	access, err := s.AccessToken(ctx)
	if err != nil {
		return Credentials{}, err
	}
	refresh, err := s.RefreshToken(ctx)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}
