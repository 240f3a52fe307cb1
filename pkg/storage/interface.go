package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Storage stores message attachments.
type Storage interface {
	// Write stores content from the reader with the given key.
	// The size parameter is the expected content size (-1 if unknown).
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Delete removes the content with the given key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// GetURL returns a URL clients can fetch the content from. Backends without
	// expiring links ignore expires.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Config selects and configures a storage backend.
type Config struct {
	Driver string        `mapstructure:"driver"` // "local", "s3"
	Local  LocalConfig   `mapstructure:"local"`
	S3     S3Config      `mapstructure:"s3"`
	URLTTL time.Duration `mapstructure:"url_ttl"`
}

// New creates the configured backend.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.Local)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
