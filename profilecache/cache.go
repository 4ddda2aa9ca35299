package profilecache

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrCacheUnavailable wraps backend failures.
var ErrCacheUnavailable = errors.New("profile cache unavailable")

// Cache is a JSON blob cache. Implementations must be safe for concurrent use.
type Cache interface {
	Save(ctx context.Context, key string, v any) error
	// Load decodes the blob stored under key into out. A missing or corrupt
	// entry reports false with a nil error.
	Load(ctx context.Context, key string, out any) (bool, error)
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

const userProfilePrefix = "user_profile_"

// UserProfileKey returns the cache key for the profile of userID. Backends
// escape keys on storage, so any userID is safe here.
func UserProfileKey(userID string) string {
	return userProfilePrefix + userID
}

// escapeKey maps key to a name usable as a file name or redis key segment.
// Bytes outside [A-Za-z0-9-_@.] become %XX, so distinct keys stay distinct.
func escapeKey(key string) string {
	if key == "" {
		return "%"
	}
	if strings.Trim(key, ".") == "" {
		return strings.Repeat("%2E", len(key))
	}
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if isKeyByte(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isKeyByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '_', c == '@', c == '.':
		return true
	}
	return false
}
