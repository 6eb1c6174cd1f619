// Package store publishes conversion artifacts to a destination backend.
//
// Two backends are provided: a filesystem store that copies artifacts
// into a directory, and an S3 store for remote publication. Both report
// the final location of each artifact so callers can surface it.
package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pyrite-io/smelt/iox"
)

// Store publishes a local artifact file to a backend.
type Store interface {
	// Put uploads the file at localPath and returns its destination location.
	Put(ctx context.Context, localPath string) (string, error)
}

// FSStore copies artifacts into a local directory.
type FSStore struct {
	dir string
}

// NewFSStore creates a filesystem store rooted at dir, creating it if needed.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

// Put copies the artifact into the store directory under its base name.
func (s *FSStore) Put(_ context.Context, localPath string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer iox.DiscardClose(src)

	dest := filepath.Join(s.dir, filepath.Base(localPath))
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		iox.DiscardClose(dst)
		return "", fmt.Errorf("failed to copy artifact: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize destination: %w", err)
	}
	return dest, nil
}
