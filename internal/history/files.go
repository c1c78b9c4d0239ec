package history

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// FileKV implements the KV interface with one file per key under a directory
type FileKV struct {
	basePath string
}

// NewFileKV creates a new FileKV rooted at basePath
func NewFileKV(basePath string) (*FileKV, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &FileKV{basePath: basePath}, nil
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.basePath, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

// Put writes the value to a temp file and renames it over the old one so a
// crash never leaves a half-written record
func (f *FileKV) Put(key string, value []byte) error {
	tmp, err := os.CreateTemp(f.basePath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("replacing file: %w", err)
	}
	return nil
}

// Get reads the value under key
func (f *FileKV) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes the file for key
func (f *FileKV) Delete(key string) error {
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// Close is a no-op for the filesystem
func (f *FileKV) Close() error {
	return nil
}
