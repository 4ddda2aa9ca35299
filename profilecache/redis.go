package profilecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries under <prefix>:<key> and tracks them in the
// <prefix>:keys set so Clear removes exactly this cache's entries.
type RedisCache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache returns a cache using client. ttl <= 0 keeps entries until
// removed.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "finflow:cache"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCache{redis: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + escapeKey(key)
}

func (c *RedisCache) indexKey() string {
	return c.prefix + ":keys"
}

// Save stores v as JSON with the configured TTL and records the key in the index.
func (c *RedisCache) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	full := c.key(key)
	_, err = c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, full, data, c.ttl)
		pipe.SAdd(ctx, c.indexKey(), full)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Load decodes the value under key. Expired and corrupt values are misses.
func (c *RedisCache) Load(ctx context.Context, key string, out any) (bool, error) {
	full := c.key(key)
	data, err := c.redis.Get(ctx, full).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.Remove(ctx, key)
		return false, nil
	}
	return true, nil
}

// Remove deletes key and drops it from the index.
func (c *RedisCache) Remove(ctx context.Context, key string) error {
	full := c.key(key)
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, full)
		pipe.SRem(ctx, c.indexKey(), full)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Clear deletes every indexed key of this cache.
func (c *RedisCache) Clear(ctx context.Context) error {
	keys, err := c.redis.SMembers(ctx, c.indexKey()).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	keys = append(keys, c.indexKey())
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
