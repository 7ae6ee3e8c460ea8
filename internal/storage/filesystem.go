package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FS keeps blobs under Root; PublicURL is where Root is served over HTTP.
type FS struct {
	Root      string
	PublicURL string
}

func NewFS(root, publicURL string) (*FS, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", absRoot, err)
	}
	return &FS{Root: absRoot, PublicURL: publicURL}, nil
}

func (s *FS) Put(_ context.Context, name, _ string, r io.Reader, _ int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	full := filepath.Join(s.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, r)
	errClose := f.Close()
	if err != nil {
		return err
	}
	return errClose
}

func (s *FS) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FS) URL(name string) string {
	return joinURL(s.PublicURL, name)
}
