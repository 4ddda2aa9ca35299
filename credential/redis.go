package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps credentials in Redis under <prefix>:auth_token and
// <prefix>:refresh_token. Pair writes run in one MULTI/EXEC transaction.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store using client. An empty prefix defaults to "finflow".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "finflow"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *RedisStore) get(ctx context.Context, name string) (string, error) {
	v, err := s.redis.Get(ctx, s.key(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return v, nil
}

func (s *RedisStore) set(ctx context.Context, name, value string) error {
	var err error
	if value == "" {
		err = s.redis.Del(ctx, s.key(name)).Err()
	} else {
		err = s.redis.Set(ctx, s.key(name), value, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// AccessToken returns the stored access token or "".
func (s *RedisStore) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, AccessTokenKey)
}

// RefreshToken returns the stored refresh token or "".
func (s *RedisStore) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, RefreshTokenKey)
}

// SetAccessToken stores token.
func (s *RedisStore) SetAccessToken(ctx context.Context, token string) error {
	return s.set(ctx, AccessTokenKey, token)
}

// SetRefreshToken stores token.
func (s *RedisStore) SetRefreshToken(ctx context.Context, token string) error {
	return s.set(ctx, RefreshTokenKey, token)
}

// Save stores both tokens in one transaction.
func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, value := range map[string]string{
			AccessTokenKey:  creds.AccessToken,
			RefreshTokenKey: creds.RefreshToken,
		} {
			if value == "" {
				pipe.Del(ctx, s.key(name))
				continue
			}
			pipe.Set(ctx, s.key(name), value, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// ClearAccessToken removes the access token.
func (s *RedisStore) ClearAccessToken(ctx context.Context) error {
	return s.set(ctx, AccessTokenKey, "")
}

// Clear removes both tokens.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key(AccessTokenKey), s.key(RefreshTokenKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
