// Package loader opens spider files from the configured storage backend.
package loader

import (
	"context"
	"fmt"
	"io"
)

// Backend types selectable by configuration.
const (
	TypeFile = "FILE"
	TypeS3   = "S3"
	TypeHTTP = "HTTP"
)

// Loader returns a readable stream for a spider file name.
// Missing files fail with an error matching syncerr.ErrNotFound.
type Loader interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Config selects and configures a backend.
type Config struct {
	Type string

	// FILE
	BasePath string

	// S3
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string

	// HTTP
	BaseURL string
}

// New creates the loader named by cfg.Type.
func New(ctx context.Context, cfg Config) (Loader, error) {
	switch cfg.Type {
	case TypeFile:
		if cfg.BasePath == "" {
			return nil, fmt.Errorf("file loader: base path required")
		}
		return NewFileSystem(cfg.BasePath), nil

	case TypeS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 loader: bucket required")
		}
		l, err := NewS3(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create s3 loader: %w", err)
		}
		return l, nil

	case TypeHTTP:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("http loader: base URL required")
		}
		return NewHTTP(cfg.BaseURL, nil), nil

	default:
		return nil, fmt.Errorf("unknown file loader %q", cfg.Type)
	}
}

// ReadAll opens name and reads it completely.
func ReadAll(ctx context.Context, l Loader, name string) ([]byte, error) {
	rc, err := l.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}
