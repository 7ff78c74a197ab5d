package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Local stores files below Root and serves them under BaseURL.
type Local struct {
	Root    string
	BaseURL string
	now     func() time.Time
}

// NewLocal creates a local file store. baseURL is the public prefix the HTTP
// layer serves Root under, e.g. "/media/".
func NewLocal(root, baseURL string) *Local {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Local{Root: root, BaseURL: baseURL, now: time.Now}
}

func (s *Local) full(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid file key %q", key)
	}
	return filepath.Join(s.Root, clean), nil
}

// Put writes r to a new key.
func (s *Local) Put(_ context.Context, name string, r io.Reader) (string, error) {
	key := NewKey(name, s.now().UTC())
	full, err := s.full(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}
	return key, nil
}

// Delete removes the file stored under key.
func (s *Local) Delete(_ context.Context, key string) error {
	full, err := s.full(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// URL returns BaseURL joined with key.
func (s *Local) URL(_ context.Context, key string) (string, error) {
	return s.BaseURL + key, nil
}

// KeyFromURL strips BaseURL from raw. Absolute URLs match when their path
// starts with a relative BaseURL.
func (s *Local) KeyFromURL(raw string) (string, bool) {
	if key, ok := strings.CutPrefix(raw, s.BaseURL); ok && key != "" {
		return key, true
	}
	if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		if key, ok := strings.CutPrefix(u.Path, s.BaseURL); ok && key != "" {
			return key, true
		}
	}
	return "", false
}
