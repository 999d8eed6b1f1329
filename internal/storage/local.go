package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider stores objects as flat files in one directory.
type LocalProvider struct {
	root    string
	absRoot string
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider creates the root directory if needed.
func NewLocalProvider(root string) (*LocalProvider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalProvider{root: root, absRoot: abs}, nil
}

// Root returns the absolute storage directory.
func (l *LocalProvider) Root() string {
	return l.absRoot
}

func (l *LocalProvider) Put(_ context.Context, name string, body io.Reader, _ int64, _ string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	location := filepath.Join(l.root, name)

	f, err := os.OpenFile(filepath.Join(l.absRoot, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", ErrObjectExists
	}
	if err != nil {
		return "", fmt.Errorf("create object: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close object: %w", err)
	}
	return location, nil
}

func (l *LocalProvider) Open(_ context.Context, location string) (*Object, error) {
	if !l.Contains(location) {
		return nil, ErrOutsideRoot
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, ErrOutsideRoot
	}

	f, err := os.Open(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat object: %w", err)
	}
	if stat.IsDir() {
		f.Close()
		return nil, ErrObjectNotFound
	}

	return &Object{
		Body:          f,
		ContentLength: stat.Size(),
		ContentType:   "application/octet-stream",
		LastModified:  stat.ModTime(),
	}, nil
}

func (l *LocalProvider) Delete(_ context.Context, location string) error {
	if !l.Contains(location) {
		return ErrOutsideRoot
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return ErrOutsideRoot
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Contains reports whether the absolute form of location is strictly below the root.
func (l *LocalProvider) Contains(location string) bool {
	if location == "" {
		return false
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(l.absRoot, abs)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
