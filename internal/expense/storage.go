package expense

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage keeps receipt images. Paths are relative to the store and are
// what a Record carries in FilePath.
type Storage interface {
	// Save writes a receipt and returns the path to record
	Save(filename string, data []byte) (string, error)

	// Get reads the receipt at path
	Get(path string) ([]byte, error)

	// Delete drops the receipt at path
	Delete(path string) error
}

// LocalStorage keeps receipts as files in one directory
type LocalStorage struct {
	dir string
}

// NewLocalStorage opens the receipts directory, creating it when missing
func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating receipts directory: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

// resolve maps a receipt path into the directory. Absolute paths and paths
// climbing out with ".." are refused.
func (l *LocalStorage) resolve(path string) (string, error) {
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return filepath.Join(l.dir, path), nil
}

func (l *LocalStorage) Save(filename string, data []byte) (string, error) {
	full, err := l.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("writing receipt %s: %w", filename, err)
	}
	return filename, nil
}

func (l *LocalStorage) Get(path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading receipt %s: %w", path, err)
	}
	return data, nil
}

func (l *LocalStorage) Delete(path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("removing receipt %s: %w", path, err)
	}
	return nil
}
