package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes images below root. A stored path is relative, e.g.
// "uploads/images/cu1k2.png", and maps to root/images/cu1k2.png on disk.
type LocalStore struct {
	root string
}

// NewLocalStore creates root/images if it does not exist yet.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(root, "images"), 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating image directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Dir is the directory that holds the images, for static file serving.
func (s *LocalStore) Dir() string {
	return filepath.Join(s.root, "images")
}

func (s *LocalStore) Save(ctx context.Context, ext string, r io.Reader) (string, error) {
	key, err := newKey(ext)
	if err != nil {
		return "", err
	}

	full := s.fullPath(key)
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", key, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("storage: writing %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("storage: closing %s: %w", key, err)
	}

	return key, nil
}

// Delete removes the file. A file that is already gone is not an error.
func (s *LocalStore) Delete(ctx context.Context, path string) error {
	if !strings.HasPrefix(path, keyPrefix) || strings.Contains(path, "..") {
		return fmt.Errorf("storage: refusing to delete %q", path)
	}
	if err := os.Remove(s.fullPath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: deleting %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) fullPath(key string) string {
	return filepath.Join(s.root, "images", filepath.Base(key))
}
