package historylist

import (
	"fmt"

	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

// History is the read side of the history store.
type History interface {
	List() []model.HistoryEntry
	Search(term string) []model.HistoryEntry
}

// ServiceConfig is the configuration for the history list service.
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

// Service lists the conversion history.
type Service struct {
	history History
	logger  log.Logger
}

// NewService creates a new history list service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		history: cfg.History,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the history list request parameters.
type Request struct {
	// Search filters the entries by filename or markdown content.
	Search string
	// Limit caps the number of returned entries, 0 returns all.
	Limit int
}

// Run lists the history entries, newest first.
func (s *Service) Run(req Request) ([]model.HistoryEntry, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	entries := s.history.List()
	if req.Search != "" {
		entries = s.history.Search(req.Search)
	}
	if req.Limit > 0 && len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	s.logger.Debugf("found %d history entries", len(entries))
	return entries, nil
}
