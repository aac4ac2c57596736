// Package fake is an in-memory scripted conversion backend.
package fake

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/convq/internal/converter"
	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

// Script is the scripted behaviour of the backend for one document name.
type Script struct {
	// StartErr fails the upload (PDF and DOCX).
	StartErr error
	// Reports are returned by consecutive polls, the last one repeats.
	Reports []model.ProgressReport
	// ProgressErr fails every poll.
	ProgressErr error
	// Result is the DOCX conversion result.
	Result *model.ConversionResult
}

// ClientConfig is the configuration for the fake client.
type ClientConfig struct {
	// Scripts are keyed by document name, documents without script convert cleanly.
	Scripts map[string]Script
	Now     func() time.Time
	Logger  log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Scripts == nil {
		c.Scripts = map[string]Script{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "converter.Fake"})
	return nil
}

type conversion struct {
	name  string
	polls int
}

// Client is a fake implementation of converter.Client.
type Client struct {
	mu          sync.Mutex
	scripts     map[string]Script
	conversions map[string]*conversion
	calls       map[string]int
	now         func() time.Time
	logger      log.Logger
}

var _ converter.Client = &Client{}

// NewClient returns a new fake backend.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		scripts:     cfg.Scripts,
		conversions: map[string]*conversion{},
		calls:       map[string]int{},
		now:         cfg.Now,
		logger:      cfg.Logger,
	}, nil
}

// SetScript replaces the script of a document.
func (c *Client) SetScript(name string, s Script) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[name] = s
}

// Calls returns how many times a method has been called.
func (c *Client) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// StartConversion satisfies converter.Client.
func (c *Client) StartConversion(ctx context.Context, job model.Job) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls["StartConversion"]++
	if s := c.scripts[job.Name]; s.StartErr != nil {
		return "", s.StartErr
	}

	id := ulid.MustNew(ulid.Timestamp(c.now()), rand.Reader).String()
	c.conversions[id] = &conversion{name: job.Name}
	c.logger.Debugf("conversion %s started for %s", id, job.Name)

	return id, nil
}

// ConvertWord satisfies converter.Client.
func (c *Client) ConvertWord(ctx context.Context, job model.Job) (*model.ConversionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls["ConvertWord"]++
	s := c.scripts[job.Name]
	if s.StartErr != nil {
		return nil, s.StartErr
	}
	if s.Result != nil {
		res := *s.Result
		return &res, nil
	}

	return c.result(job.Name, nil), nil
}

// Progress satisfies converter.Client.
func (c *Client) Progress(ctx context.Context, conversionID string) (*model.ProgressReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls["Progress"]++
	conv, ok := c.conversions[conversionID]
	if !ok {
		return nil, &converter.BackendError{StatusCode: 404}
	}

	s := c.scripts[conv.name]
	if s.ProgressErr != nil {
		return nil, s.ProgressErr
	}

	reports := s.Reports
	if len(reports) == 0 {
		reports = c.defaultReports(conv.name)
	}

	i := min(conv.polls, len(reports)-1)
	conv.polls++
	r := reports[i]
	return &r, nil
}

// MarkdownToWord satisfies converter.Client.
func (c *Client) MarkdownToWord(ctx context.Context, markdown, filename string) (*model.WordDocument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls["MarkdownToWord"]++
	if strings.TrimSpace(markdown) == "" {
		return nil, &converter.BackendError{StatusCode: 400}
	}
	if filename == "" {
		filename = "document"
	}

	return &model.WordDocument{
		Filename: filename + ".docx",
		Data:     []byte(markdown),
	}, nil
}

func (c *Client) defaultReports(name string) []model.ProgressReport {
	pages := 2
	return []model.ProgressReport{
		{Status: model.ProgressStatusProcessing, Progress: 10, Stage: "Loading PDF..."},
		{Status: model.ProgressStatusProcessing, Progress: 50, Stage: "Processing page 1 of 2...", TotalPages: 2, CurrentPage: 1},
		{Status: model.ProgressStatusCompleted, Progress: 100, Stage: "Conversion complete!", TotalPages: 2, CurrentPage: 2, Result: c.result(name, &pages)},
	}
}

func (c *Client) result(name string, pages *int) *model.ConversionResult {
	return &model.ConversionResult{
		Markdown:  "# " + name,
		Filename:  name,
		FileSize:  "1.0 KB",
		PageCount: pages,
		Timestamp: c.now(),
	}
}
