package historyremove

import (
	"context"
	"fmt"

	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

// History removes history entries.
type History interface {
	Remove(ctx context.Context, id int64) error
}

// ServiceConfig is the configuration for the history remove service.
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

// Service removes history entries.
type Service struct {
	history History
	logger  log.Logger
}

// NewService creates a new history remove service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Service{
		history: cfg.History,
		logger:  cfg.Logger,
	}, nil
}

// Request is the remove request parameters.
type Request struct {
	IDs []int64
}

// Run removes every entry, it stops on the first failure.
func (s *Service) Run(ctx context.Context, req Request) error {
	if len(req.IDs) == 0 {
		return fmt.Errorf("at least one id is required: %w", model.ErrNotValid)
	}

	for _, id := range req.IDs {
		if err := s.history.Remove(ctx, id); err != nil {
			return fmt.Errorf("removing history entry %d: %w", id, err)
		}
		s.logger.Infof("history entry %d removed", id)
	}
	return nil
}
