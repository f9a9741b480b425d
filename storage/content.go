package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrContentNotFound is returned when a markdown file does not exist.
var ErrContentNotFound = errors.New("content not found")

// ContentStore keeps each project's markdown body as a standalone file in one directory:
//
//	<dir>/
//	  project-1.md
//	  project-2.md
type ContentStore struct {
	dir string
}

// NewContentStore creates the directory if needed.
func NewContentStore(dir string) (*ContentStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create markdown directory: %w", err)
	}
	return &ContentStore{dir: dir}, nil
}

// Dir returns the directory holding the markdown files.
func (s *ContentStore) Dir() string {
	return s.dir
}

// Write replaces the file name with body using a temp file and rename, so readers
// never observe a partially written body.
func (s *ContentStore) Write(name string, body string) error {
	destPath, err := s.path(name)
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.WriteString(body); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Read returns the body stored under name.
func (s *ContentStore) Read(name string) (string, error) {
	srcPath, err := s.path(name)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrContentNotFound, name)
		}
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	return string(data), nil
}

// Exists reports whether a file is stored under name.
func (s *ContentStore) Exists(name string) (bool, error) {
	p, err := s.path(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes the file. A missing file is not an error.
func (s *ContentStore) Remove(name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove content: %w", err)
	}
	return nil
}

// path resolves name inside the store directory. Names are plain file names.
func (s *ContentStore) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid content file name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}
