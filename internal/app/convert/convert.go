package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/convq/internal/conventions"
	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

// Engine is the part of the conversion engine the service needs.
type Engine interface {
	Enqueue(ctx context.Context, docs ...model.Document) ([]model.StatusRecord, error)
	Retry(ctx context.Context, jobID string) error
	WaitSettled(ctx context.Context) ([]model.StatusRecord, error)
}

// ServiceConfig is the configuration for the convert service.
type ServiceConfig struct {
	Engine Engine
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Engine == nil {
		return fmt.Errorf("engine is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Convert"})
	return nil
}

// Service converts a batch of local files.
type Service struct {
	engine Engine
	logger log.Logger
}

// NewService creates a new convert service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		engine: cfg.Engine,
		logger: cfg.Logger,
	}, nil
}

// Request represents the convert request parameters.
type Request struct {
	// Paths are the local files to convert, in submission order.
	Paths []string
	// Documents are converted after the files in Paths.
	Documents []model.Document
	// OutputDir is where the markdown of every completed job is written, empty disables it.
	OutputDir string
	// Retries is the number of times failed jobs are queued again.
	Retries int
}

// Response is the outcome of a conversion batch.
type Response struct {
	Records []model.StatusRecord
	// Outputs maps job IDs to the written markdown files.
	Outputs map[string]string
	Failed  int
}

// Run queues every file, waits for the batch to settle retrying the failed
// jobs and writes the results.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if len(req.Paths)+len(req.Documents) == 0 {
		return nil, fmt.Errorf("at least one document is required: %w", model.ErrNotValid)
	}
	if req.Retries < 0 {
		return nil, fmt.Errorf("retries can't be negative: %w", model.ErrNotValid)
	}

	docs := make([]model.Document, 0, len(req.Paths)+len(req.Documents))
	for _, p := range req.Paths {
		doc, err := documentFromPath(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	for _, doc := range req.Documents {
		if doc.Name == "" || doc.Content == nil {
			return nil, fmt.Errorf("documents need a name and content: %w", model.ErrNotValid)
		}
		docs = append(docs, doc)
	}

	if _, err := s.engine.Enqueue(ctx, docs...); err != nil {
		return nil, fmt.Errorf("could not enqueue documents: %w", err)
	}

	records, err := s.engine.WaitSettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("waiting for conversions: %w", err)
	}

	for attempt := 0; attempt < req.Retries; attempt++ {
		retried := 0
		for _, r := range records {
			if r.Status != model.JobStatusError {
				continue
			}
			if err := s.engine.Retry(ctx, r.JobID); err != nil {
				s.logger.Warningf("could not retry %s: %s", r.Name, err)
				continue
			}
			retried++
		}
		if retried == 0 {
			break
		}
		s.logger.Infof("retrying %d failed jobs (%d/%d)", retried, attempt+1, req.Retries)

		records, err = s.engine.WaitSettled(ctx)
		if err != nil {
			return nil, fmt.Errorf("waiting for conversions: %w", err)
		}
	}

	resp := &Response{Records: records, Outputs: map[string]string{}}
	used := map[string]int{}
	for _, r := range records {
		switch {
		case r.Status == model.JobStatusError:
			resp.Failed++
		case r.Status == model.JobStatusCompleted && r.Result != nil && req.OutputDir != "":
			path := outputPath(req.OutputDir, r.Name, used)
			if err := os.WriteFile(path, []byte(r.Result.Markdown), 0o644); err != nil {
				return nil, fmt.Errorf("could not write %s: %w", path, err)
			}
			resp.Outputs[r.JobID] = path
			s.logger.Debugf("markdown of %s written to %s", r.Name, path)
		}
	}

	return resp, nil
}

func documentFromPath(path string) (model.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("could not stat %s: %w", path, err)
	}
	if info.IsDir() {
		return model.Document{}, fmt.Errorf("%s is a directory: %w", path, model.ErrNotValid)
	}

	return model.Document{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Content: model.FileContent(path),
	}, nil
}

// outputPath returns a unique markdown path for name, file names may repeat in a batch.
func outputPath(dir, name string, used map[string]int) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	n := used[base]
	used[base]++
	if n > 0 {
		base = fmt.Sprintf("%s-%d", base, n)
	}
	return filepath.Join(dir, base+conventions.MarkdownExt)
}
