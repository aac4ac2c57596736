package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository.
type Repository struct {
	values map[string][]byte
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		values: make(map[string][]byte),
		logger: cfg.Logger,
	}, nil
}

// GetValue returns a copy of the value stored under key.
func (r *Repository) GetValue(ctx context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[key]
	if !ok {
		return nil, fmt.Errorf("key %s: %w", key, model.ErrNotFound)
	}

	return bytes.Clone(v), nil
}

// SetValue stores a copy of value under key, replacing any previous one.
func (r *Repository) SetValue(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("key is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] = bytes.Clone(value)
	r.logger.Debugf("Stored key %s (%d bytes)", key, len(value))

	return nil
}

// DeleteValue removes key.
func (r *Repository) DeleteValue(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.values, key)
	r.logger.Debugf("Deleted key %s", key)

	return nil
}
