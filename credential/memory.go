package credential

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	creds Credentials
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AccessToken returns the stored access token or "".
func (s *MemoryStore) AccessToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.AccessToken, nil
}

// RefreshToken returns the stored refresh token or "".
func (s *MemoryStore) RefreshToken(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.RefreshToken, nil
}

// SetAccessToken stores token.
func (s *MemoryStore) SetAccessToken(_ context.Context, token string) error {
	s.mu.Lock()
	s.creds.AccessToken = token
	s.mu.Unlock()
	return nil
}

// SetRefreshToken stores token.
func (s *MemoryStore) SetRefreshToken(_ context.Context, token string) error {
	s.mu.Lock()
	s.creds.RefreshToken = token
	s.mu.Unlock()
	return nil
}

// Save stores both tokens at once.
func (s *MemoryStore) Save(_ context.Context, creds Credentials) error {
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

// ClearAccessToken removes the access token.
func (s *MemoryStore) ClearAccessToken(ctx context.Context) error {
	return s.SetAccessToken(ctx, "")
}

// Clear removes both tokens.
func (s *MemoryStore) Clear(ctx context.Context) error {
	return s.Save(ctx, Credentials{})
}
