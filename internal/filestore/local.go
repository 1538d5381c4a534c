// Package filestore persists uploaded documents and generated exports
// on the local filesystem, addressed by paths relative to a root
// directory so database rows never embed absolute paths.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStore stores files under a single root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create file store root %s: %w", root, err)
	}
	return &LocalStore{root: root}, nil
}

// Save writes r under subdir with a collision-proof name derived from
// filename, and returns the path relative to the store root.
func (s *LocalStore) Save(r io.Reader, subdir, filename string) (string, error) {
	dir := filepath.Join(s.root, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	name := fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext)
	rel := filepath.Join(subdir, name)

	f, err := os.Create(filepath.Join(s.root, rel))
	if err != nil {
		return "", fmt.Errorf("create file %s: %w", rel, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write file %s: %w", rel, err)
	}
	return rel, nil
}

// Path resolves a relative path to an absolute one inside the root.
func (s *LocalStore) Path(rel string) string {
	return filepath.Join(s.root, rel)
}

// Open opens a stored file for reading.
func (s *LocalStore) Open(rel string) (*os.File, error) {
	f, err := os.Open(s.Path(rel))
	if err != nil {
		return nil, fmt.Errorf("open stored file %s: %w", rel, err)
	}
	return f, nil
}

// Remove deletes a stored file, ignoring files already gone.
func (s *LocalStore) Remove(rel string) error {
	err := os.Remove(s.Path(rel))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stored file %s: %w", rel, err)
	}
	return nil
}
