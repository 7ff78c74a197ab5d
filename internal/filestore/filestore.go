// Package filestore stores image files referenced by image attributes.
//
// Records never hold file bytes or URLs, only storage keys. A FileStore turns
// a key into a retrievable URL and, for values echoed back by clients, a URL
// back into its key.
package filestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore persists files by key.
type FileStore interface {
	// Put stores the content under a fresh key derived from name.
	Put(ctx context.Context, name string, r io.Reader) (key string, err error)
	// Delete removes a stored file. Missing files are not an error.
	Delete(ctx context.Context, key string) error
	// URL returns a retrievable URL for key.
	URL(ctx context.Context, key string) (string, error)
	// KeyFromURL maps a URL produced by URL back to its key.
	KeyFromURL(raw string) (string, bool)
}

// ErrNotDataURI is returned by DecodeDataURI for plain strings.
var ErrNotDataURI = errors.New("not a data URI")

// NewKey builds a storage key "YYYY/MM/<uuid><ext>" for an uploaded file.
func NewKey(name string, now time.Time) string {
	ext := strings.ToLower(path.Ext(name))
	return fmt.Sprintf("%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), ext)
}

// IsDataURI reports whether s looks like a base64 data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:") && strings.Contains(s, ";base64,")
}

// DecodeDataURI decodes "data:<mime>;base64,<payload>" and returns a file
// name carrying an extension for the mime type.
func DecodeDataURI(s string) (name string, data []byte, err error) {
	if !IsDataURI(s) {
		return "", nil, ErrNotDataURI
	}
	header, payload, _ := strings.Cut(strings.TrimPrefix(s, "data:"), ";base64,")
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URI: %w", err)
	}
	name = "upload"
	if exts, _ := mime.ExtensionsByType(header); len(exts) > 0 {
		name += exts[0]
	}
	return name, data, nil
}
