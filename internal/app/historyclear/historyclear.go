package historyclear

import (
	"context"
	"fmt"

	"github.com/slok/convq/internal/log"
)

// History clears the history.
type History interface {
	Clear(ctx context.Context) error
	Len() int
}

// ServiceConfig is the configuration for the history clear service.
type ServiceConfig struct {
	History History
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.History == nil {
		return fmt.Errorf("history is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	return nil
}

// Service removes every history entry.
type Service struct {
	history History
	logger  log.Logger
}

// NewService creates a new history clear service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Service{
		history: cfg.History,
		logger:  cfg.Logger,
	}, nil
}

// Run clears the history and returns the number of removed entries.
func (s *Service) Run(ctx context.Context) (int, error) {
	n := s.history.Len()
	if err := s.history.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	s.logger.Infof("%d history entries removed", n)
	return n, nil
}
