package store

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// FileStore keeps one file per key under a base directory. This is the
// "disc" storage mode. Keys are path-escaped into file names, so "table/key"
// keys stay flat files.
type FileStore struct {
	basePath string
}

func NewFileStore(dbPath string) (*FileStore, error) {
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{basePath: dbPath}, nil
}

func (s *FileStore) getPath(key string) string {
	return filepath.Join(s.basePath, url.PathEscape(key))
}

func (s *FileStore) Put(key, value string) error {
	return os.WriteFile(s.getPath(key), []byte(value), 0o644)
}

func (s *FileStore) Get(key string) (string, error) {
	raw, err := os.ReadFile(s.getPath(key))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *FileStore) Del(key string) error {
	err := os.Remove(s.getPath(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FileStore) List() ([]string, error) {
	files, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(files))
	for _, file := range files {
		key, err := url.PathUnescape(file.Name())
		if err != nil {
			return nil, fmt.Errorf("malformed store file %s: %w", file.Name(), err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Destroy removes the store directory and everything in it.
func (s *FileStore) Destroy() error {
	return os.RemoveAll(s.basePath)
}
