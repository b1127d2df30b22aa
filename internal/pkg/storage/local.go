package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage implements Storage on the local file system
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath == "" {
		return nil, errors.New("local storage path is not configured")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// Put writes body under basePath/key
func (s *LocalStorage) Put(ctx context.Context, key string, body []byte, contentType string) error {
	// rooting the key keeps ".." segments inside basePath
	fullPath := filepath.Join(s.basePath, filepath.Clean("/"+key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, body, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
