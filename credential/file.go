package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const filePerm = 0o600

// FileStore keeps credentials in a JSON file readable only by its owner.
// Writes go through a temporary file and a rename, so a crash never leaves a
// torn pair behind.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The parent directory is
// created if missing; the file itself is created on first write.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("credential file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) read() (Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		// A corrupt file holds nothing usable.
		return Credentials{}, nil
	}
	return creds, nil
}

func (s *FileStore) write(creds Credentials) error {
	if creds.Empty() {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *FileStore) update(fn func(*Credentials)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.read()
	if err != nil {
		return err
	}
	fn(&creds)
	return s.write(creds)
}

// AccessToken returns the stored access token or "".
func (s *FileStore) AccessToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds, err := s.read()
	return creds.AccessToken, err
}

// RefreshToken returns the stored refresh token or "".
func (s *FileStore) RefreshToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds, err := s.read()
	return creds.RefreshToken, err
}

// SetAccessToken stores token and rewrites the file.
func (s *FileStore) SetAccessToken(_ context.Context, token string) error {
	return s.update(func(c *Credentials) { c.AccessToken = token })
}

// SetRefreshToken stores token and rewrites the file.
func (s *FileStore) SetRefreshToken(_ context.Context, token string) error {
	return s.update(func(c *Credentials) { c.RefreshToken = token })
}

// Save stores both tokens in one file write.
func (s *FileStore) Save(_ context.Context, creds Credentials) error {
	return s.update(func(c *Credentials) { *c = creds })
}

// ClearAccessToken removes the access token.
func (s *FileStore) ClearAccessToken(ctx context.Context) error {
	return s.SetAccessToken(ctx, "")
}

// Clear removes both tokens.
func (s *FileStore) Clear(ctx context.Context) error {
	return s.Save(ctx, Credentials{})
}
