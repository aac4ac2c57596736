// Package http is the HTTP implementation of the conversion backend client.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/slok/convq/internal/converter"
	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

const (
	// DefaultBaseURL is the address of a locally running backend.
	DefaultBaseURL = "http://localhost:6201"
	// DefaultWordFilename is used when the backend doesn't name the generated document.
	DefaultWordFilename = "document.docx"
	// DefaultMarkdownFilename is the base name sent when rendering markdown to Word.
	DefaultMarkdownFilename = "markdown-document"

	defaultTimeout   = 5 * time.Minute
	requestIDHeader  = "X-Request-Id"
	maxErrorBodySize = 4 * 1024
)

// ClientConfig is the configuration for the HTTP backend client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	// Timeout is applied to every request when HTTPClient is not set.
	Timeout time.Duration
	// RequestsPerSecond limits the request rate to the backend, 0 disables the limit.
	RequestsPerSecond float64
	// NewRequestID returns the id sent on every request in the X-Request-Id header.
	NewRequestID func() string
	Logger       log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url must be http or https, got: %q", c.BaseURL)
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")

	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second can't be negative")
	}
	if c.NewRequestID == nil {
		c.NewRequestID = uuid.NewString
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "converter.HTTPClient"})
	return nil
}

// Client implements converter.Client over the backend HTTP API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	newRequestID func() string
	logger       log.Logger
}

var _ converter.Client = &Client{}

// NewClient returns a new HTTP backend client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(math.Max(1, math.Ceil(cfg.RequestsPerSecond)))
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		httpClient:   cfg.HTTPClient,
		limiter:      rate.NewLimiter(limit, burst),
		newRequestID: cfg.NewRequestID,
		logger:       cfg.Logger,
	}, nil
}

// --- JSON wire types ---

type startResponseJSON struct {
	Success      bool   `json:"success"`
	ConversionID string `json:"conversion_id"`
	Error        string `json:"error"`
}

type resultJSON struct {
	Success   bool   `json:"success"`
	Markdown  string `json:"markdown"`
	Filename  string `json:"filename"`
	FileSize  string `json:"fileSize"`
	PageCount *int   `json:"pageCount"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

type progressJSON struct {
	Status      string      `json:"status"`
	Progress    float64     `json:"progress"`
	Stage       string      `json:"stage"`
	TotalPages  int         `json:"total_pages"`
	CurrentPage int         `json:"current_page"`
	Result      *resultJSON `json:"result"`
	Error       string      `json:"error"`
}

type markdownToWordJSON struct {
	Markdown string `json:"markdown"`
	Filename string `json:"filename"`
}

func (r resultJSON) toModel() model.ConversionResult {
	return model.ConversionResult{
		Markdown:  r.Markdown,
		Filename:  r.Filename,
		FileSize:  r.FileSize,
		PageCount: r.PageCount,
		Timestamp: model.ParseTimestamp(r.Timestamp),
	}
}

// StartConversion uploads a PDF to /convert.
func (c *Client) StartConversion(ctx context.Context, job model.Job) (string, error) {
	var resp startResponseJSON
	if err := c.upload(ctx, "/convert", "pdf", job, &resp); err != nil {
		return "", err
	}

	if !resp.Success || resp.ConversionID == "" {
		return "", &converter.BackendError{Message: resp.Error}
	}

	c.logger.Debugf("conversion %s started for %s", resp.ConversionID, job.Name)
	return resp.ConversionID, nil
}

// ConvertWord uploads a DOCX to /convert-word-to-markdown.
func (c *Client) ConvertWord(ctx context.Context, job model.Job) (*model.ConversionResult, error) {
	var resp resultJSON
	if err := c.upload(ctx, "/convert-word-to-markdown", "document", job, &resp); err != nil {
		return nil, err
	}

	if !resp.Success || resp.Markdown == "" {
		return nil, &converter.BackendError{Message: resp.Error}
	}

	res := resp.toModel()
	if res.Filename == "" {
		res.Filename = job.Name
	}
	return &res, nil
}

// Progress polls /progress/{id}.
func (c *Client) Progress(ctx context.Context, conversionID string) (*model.ProgressReport, error) {
	if conversionID == "" {
		return nil, fmt.Errorf("conversion id is required: %w", model.ErrNotValid)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/progress/"+url.PathEscape(conversionID), nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	var resp progressJSON
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}

	report := &model.ProgressReport{
		Status:      model.ProgressStatus(resp.Status),
		Progress:    int(math.Round(resp.Progress)),
		Stage:       resp.Stage,
		TotalPages:  resp.TotalPages,
		CurrentPage: resp.CurrentPage,
		Error:       resp.Error,
	}
	if resp.Result != nil {
		res := resp.Result.toModel()
		report.Result = &res
	}

	return report, nil
}

// MarkdownToWord posts markdown to /convert-markdown-to-word and returns the DOCX.
func (c *Client) MarkdownToWord(ctx context.Context, markdown, filename string) (*model.WordDocument, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, fmt.Errorf("markdown is empty: %w", model.ErrNotValid)
	}
	if filename == "" {
		filename = DefaultMarkdownFilename
	}

	body, err := json.Marshal(markdownToWordJSON{Markdown: markdown, Filename: filename})
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert-markdown-to-word", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read document: %w", err)
	}

	return &model.WordDocument{
		Filename: FilenameFromContentDisposition(resp.Header.Get("Content-Disposition"), DefaultWordFilename),
		Data:     data,
	}, nil
}

// upload streams the job content as a multipart form with a single file field.
func (c *Client) upload(ctx context.Context, path, field string, job model.Job, out any) error {
	if job.Content == nil {
		return fmt.Errorf("job %s has no content: %w", job.ID, model.ErrNotValid)
	}
	content, err := job.Content.Open()
	if err != nil {
		return fmt.Errorf("could not open %s: %w", job.Name, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer content.Close()

		part, err := mw.CreateFormFile(field, job.Name)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, pr)
	if err != nil {
		_ = pr.Close()
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	err = c.doJSON(req, out)
	// Unblock the writer if the request ended before reading the whole body.
	_ = pr.Close()
	return err
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// do sends the request and returns a *converter.BackendError on non 2xx responses.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqID := c.newRequestID()
	req.Header.Set(requestIDHeader, reqID)

	logger := c.logger.WithValues(log.Kv{"request-id": reqID})
	logger.Debugf("%s %s", req.Method, req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		resp.Body.Close()
		logger.Debugf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
		return nil, &converter.BackendError{StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// FilenameFromContentDisposition returns the filename of an attachment header, or def.
func FilenameFromContentDisposition(header, def string) string {
	if header == "" {
		return def
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return def
	}
	name := params["filename"]
	if name == "" {
		return def
	}
	// Never let the backend pick a directory.
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	if name == "" || name == "." || name == ".." {
		return def
	}
	return name
}
