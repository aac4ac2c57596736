package historyshow

import (
	"fmt"

	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

// History gets single history entries.
type History interface {
	Get(id int64) (*model.HistoryEntry, error)
}

// ServiceConfig is the configuration for the history show service.
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

// Service gets one history entry.
type Service struct {
	history History
	logger  log.Logger
}

// NewService creates a new history show service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Service{
		history: cfg.History,
		logger:  cfg.Logger,
	}, nil
}

// Request is the show request parameters.
type Request struct {
	ID int64
}

// Run returns the entry.
func (s *Service) Run(req Request) (*model.HistoryEntry, error) {
	e, err := s.history.Get(req.ID)
	if err != nil {
		return nil, fmt.Errorf("could not get history entry %d: %w", req.ID, err)
	}
	return e, nil
}
