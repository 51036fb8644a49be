package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps generated files in a single flat directory on disk.
type LocalStorage struct {
	dir string
}

// NewLocalStorage creates the directory when missing and returns a handle.
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if dir == "" {
		dir = "./exports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// Save writes data under filename and returns the stored name. Filenames must
// be plain names without path separators.
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return filename, nil
}

// Open returns a read handle for a previously saved file.
func (s *LocalStorage) Open(filename string) (*os.File, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filename, err)
	}
	return f, nil
}

// CleanupOlderThan deletes files whose modification time is older than ttl
// and reports the removed names.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list storage directory: %w", err)
	}

	cutoff := time.Now().Add(-ttl)
	removed := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return removed, err
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

func (s *LocalStorage) resolve(filename string) (string, error) {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid storage filename %q", filename)
	}
	return filepath.Join(s.dir, filename), nil
}
