package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"bacopilot/internal/config"
)

var ErrNotFound = errors.New("object not found")

// Store is the object storage bucket holding generated documents and uploads.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// NewFromConfig creates a Store implementation based on the storage driver.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Driver)
	}
}
