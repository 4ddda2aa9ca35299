package profilecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileCache writes one JSON file per key under a directory.
type FileCache struct {
	dir    string
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewFileCache creates dir if needed and returns a cache rooted there.
func NewFileCache(dir string, logger *slog.Logger) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("cache directory required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("profile cache ready", "component", "profilecache", "dir", dir)
	return &FileCache{dir: dir, logger: logger}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, escapeKey(key))
}

// Save writes v as JSON, replacing any previous blob atomically.
func (c *FileCache) Save(_ context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := os.Rename(tmpName, c.path(key)); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	c.logger.Debug("cached entry", "component", "profilecache", "key", key)
	return nil
}

// Load decodes the blob under key. A corrupt blob is deleted and reported as a miss.
func (c *FileCache) Load(_ context.Context, key string, out any) (bool, error) {
	c.mu.RLock()
	data, err := os.ReadFile(c.path(key))
	c.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("dropping corrupt cache entry", "component", "profilecache", "key", key, "error", err)
		c.mu.Lock()
		_ = os.Remove(c.path(key))
		c.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Remove deletes the blob under key. A missing blob is not an error.
func (c *FileCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Clear deletes every blob in the cache directory.
func (c *FileCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
	}
	c.logger.Info("cleared profile cache", "component", "profilecache")
	return nil
}
