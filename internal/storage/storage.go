package storage

import (
	"context"
)

// Repository is the interface for the local key/value persistence.
// Values are opaque, callers own the encoding.
type Repository interface {
	// GetValue returns model.ErrNotFound when the key is missing.
	GetValue(ctx context.Context, key string) ([]byte, error)
	SetValue(ctx context.Context, key string, value []byte) error
	// DeleteValue is a no-op for missing keys.
	DeleteValue(ctx context.Context, key string) error
}
