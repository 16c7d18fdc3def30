// Package imagestore adapts the filesystem directory holding uploaded
// images. Its removal contract is "try your best, never crash the caller":
// all failures are swallowed and logged.
package imagestore

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store manages image files under a root directory.
type Store struct {
	root string
	log  *slog.Logger
}

// New constructs a Store rooted at dir, creating it if missing.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("image directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &Store{root: dir, log: logger}, nil
}

// normalize resolves a stored image path to an on-disk location. Paths may
// be recorded with or without a leading separator; both resolve to the same
// file.
func (s *Store) normalize(path string) string {
	trimmed := filepath.ToSlash(strings.TrimSpace(path))
	for strings.HasPrefix(trimmed, "/") {
		trimmed = trimmed[1:]
	}
	if trimmed == "" {
		return ""
	}
	// Stored paths usually carry the root prefix (e.g. "images/...").
	root := strings.TrimPrefix(filepath.ToSlash(s.root), "/")
	if strings.HasPrefix(trimmed, root+"/") {
		trimmed = strings.TrimPrefix(trimmed, root+"/")
	}
	if trimmed == "" {
		return ""
	}
	return filepath.Join(s.root, filepath.FromSlash(trimmed))
}

// Exists reports whether the referenced image is present.
func (s *Store) Exists(path string) bool {
	target := s.normalize(path)
	if target == "" {
		return false
	}
	_, err := os.Stat(target)
	return err == nil
}

// Remove deletes the referenced image. Removing an absent file is a no-op;
// every other failure is logged and swallowed.
func (s *Store) Remove(path string) {
	target := s.normalize(path)
	if target == "" {
		return
	}
	if _, err := os.Stat(target); err != nil {
		return
	}
	if err := os.Remove(target); err != nil {
		s.log.Warn("image removal failed", "path", path, "error", err)
	}
}

// Save stores an uploaded image under a timestamped name derived from the
// original filename and returns its public path.
func (s *Store) Save(originalName string, r io.Reader) (string, error) {
	name := time.Now().UTC().Format(time.RFC3339Nano) + "-" + filepath.Base(originalName)
	name = strings.ReplaceAll(name, ":", "-")
	target := filepath.Join(s.root, name)
	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("write image file: %w", err)
	}
	return filepath.ToSlash(filepath.Join(s.root, name)), nil
}
