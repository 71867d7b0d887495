// Package storage keeps uploaded media files outside the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("storage: object not found")

// Storage saves and serves media blobs by key.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// CleanKey rejects keys that would escape the storage root.
func CleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(key))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || cleaned != strings.TrimPrefix(strings.TrimSpace(key), "/") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return cleaned, nil
}
