// Package storage abstracts the blob store that holds member avatars.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	DriverFS  = "fs"
	DriverGCS = "gcs"
)

var ErrInvalidName = errors.New("invalid object name")

type Store interface {
	Put(ctx context.Context, name, contentType string, r io.Reader, size int64) error
	Delete(ctx context.Context, name string) error
	// URL is the public address of name.
	URL(name string) string
}

type Options struct {
	Driver    string
	Dir       string
	Bucket    string
	PublicURL string
}

func New(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverFS:
		return NewFS(opts.Dir, opts.PublicURL)
	case DriverGCS:
		return NewGCS(ctx, opts.Bucket, opts.PublicURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

func checkName(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.HasPrefix(name, "/") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

func joinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}
