package md2word

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/slok/convq/internal/converter"
	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

// DefaultFilename is the document name sent when none is given.
const DefaultFilename = "markdown-document"

// ServiceConfig is the configuration for the markdown to word service.
type ServiceConfig struct {
	Client converter.Client
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	return nil
}

// Service renders markdown as a Word document.
type Service struct {
	client converter.Client
	logger log.Logger
}

// NewService creates a new markdown to word service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Service{
		client: cfg.Client,
		logger: cfg.Logger,
	}, nil
}

// Request is the markdown to word request parameters.
type Request struct {
	Markdown string
	// Filename is the document name without extension, paths and extensions are stripped.
	Filename string
}

// Run converts the markdown.
func (s *Service) Run(ctx context.Context, req Request) (*model.WordDocument, error) {
	if strings.TrimSpace(req.Markdown) == "" {
		return nil, fmt.Errorf("markdown is empty: %w", model.ErrNotValid)
	}

	name := filepath.Base(req.Filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = DefaultFilename
	}

	doc, err := s.client.MarkdownToWord(ctx, req.Markdown, name)
	if err != nil {
		return nil, fmt.Errorf("could not convert markdown to word: %w", err)
	}

	s.logger.Debugf("markdown converted into %s (%d bytes)", doc.Filename, len(doc.Data))
	return doc, nil
}
