package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// tempPrefix marks in-progress writes. Anything carrying it was never
// committed and is ignored by Valid.
const tempPrefix = ".artifact-"

// LocalStore stores project artifacts on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local filesystem store rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Path returns the absolute-or-root-relative filesystem path for key.
func (s *LocalStore) Path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalStore) Save(ctx context.Context, key string, data []byte, contentType string) error {
	tmpPath, err := s.CreateTemp(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	return s.Commit(tmpPath, key)
}

// SaveFrom streams r into key with the same temp + rename guarantee as Save.
func (s *LocalStore) SaveFrom(ctx context.Context, key string, r io.Reader) error {
	tmpPath, err := s.CreateTemp(key)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("open temp: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	return s.Commit(tmpPath, key)
}

// CreateTemp reserves an empty temp file next to key's final location so the
// later rename stays on one filesystem. ext is kept so tools that sniff the
// output format from the file name (ffmpeg) still work.
func (s *LocalStore) CreateTemp(key string) (string, error) {
	path := s.Path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, tempPrefix+"*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close: %w", err)
	}
	return tmp.Name(), nil
}

// Commit atomically moves a temp file written by the caller into key.
func (s *LocalStore) Commit(tmpPath, key string) error {
	if err := os.Rename(tmpPath, s.Path(key)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return os.Open(s.Path(key))
}

func (s *LocalStore) Exists(ctx context.Context, key string) bool {
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// Valid reports whether key names a committed, non-empty regular file.
func (s *LocalStore) Valid(key string) bool {
	if key == "" || strings.HasPrefix(filepath.Base(key), tempPrefix) {
		return false
	}
	info, err := os.Stat(s.Path(key))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// CleanTemps removes leftovers of interrupted writes under dir.
func (s *LocalStore) CleanTemps(dir string) (int, error) {
	entries, err := os.ReadDir(s.Path(dir))
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.Path(dir), e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *LocalStore) Type() string { return "local" }

// Dir returns the project root.
func (s *LocalStore) Dir() string { return s.root }
