package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeKeyCharacters = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// FileStore writes each key to its own file under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}

	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, unsafeKeyCharacters.ReplaceAllString(key, "_")+".json")
}

func (s *FileStore) Load(_ context.Context, key string) ([]byte, error) {
	contents, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return contents, nil
}

// Save replaces the file through a rename so readers never see a partial write.
func (s *FileStore) Save(_ context.Context, key string, value []byte) error {
	tmpFile, err := os.CreateTemp(s.Dir, "*.tmp")
	if err != nil {
		return err
	}

	if _, err := tmpFile.Write(value); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return err
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return err
	}

	if err := os.Rename(tmpFile.Name(), s.path(key)); err != nil {
		os.Remove(tmpFile.Name())
		return err
	}

	return nil
}
