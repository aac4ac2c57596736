// Package classify decides what kind of conversion a document needs before it is queued.
package classify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ClassifierConfig is the configuration for the classifier.
type ClassifierConfig struct {
	// DetectPages enables the local PDF page count detection.
	DetectPages bool
	Logger      log.Logger
}

func (c *ClassifierConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "classify.Classifier"})
	return nil
}

// Classifier knows how to classify documents.
type Classifier struct {
	detectPages bool
	logger      log.Logger
}

// NewClassifier returns a new classifier.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Classifier{
		detectPages: cfg.DetectPages,
		logger:      cfg.Logger,
	}, nil
}

// Result is the outcome of a classification.
type Result struct {
	Kind        model.JobKind
	ContentType string
	PageHint    int
}

// Classify returns the kind of the document. Documents that are neither PDF nor DOCX
// return model.ErrUnsupportedKind.
func (c *Classifier) Classify(ctx context.Context, doc model.Document) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	contentType := doc.ContentType
	if contentType == "" {
		contentType = c.sniff(doc)
	}

	kind := KindOf(doc.Name, contentType)
	if kind == model.JobKindUnknown {
		return Result{ContentType: contentType}, fmt.Errorf("%q (%s): %w", doc.Name, contentType, model.ErrUnsupportedKind)
	}

	res := Result{Kind: kind, ContentType: contentType}
	if kind == model.JobKindPDF && c.detectPages {
		pages, err := PageCount(doc)
		if err != nil {
			c.logger.Debugf("could not detect pages of %q: %s", doc.Name, err)
		}
		res.PageHint = pages
	}

	return res, nil
}

func (c *Classifier) sniff(doc model.Document) string {
	if doc.Content == nil {
		return ""
	}

	r, err := doc.Content.Open()
	if err != nil {
		c.logger.Debugf("could not open %q for content detection: %s", doc.Name, err)
		return ""
	}
	defer r.Close()

	mt, err := mimetype.DetectReader(r)
	if err != nil {
		c.logger.Debugf("could not detect content type of %q: %s", doc.Name, err)
		return ""
	}

	return mt.String()
}

// KindOf classifies by content type first and file extension after.
func KindOf(name, contentType string) model.JobKind {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(contentType, "pdf") || strings.HasSuffix(name, ".pdf"):
		return model.JobKindPDF
	case strings.Contains(contentType, mimeDOCX) || strings.HasSuffix(name, ".docx"):
		return model.JobKindDOCX
	}
	return model.JobKindUnknown
}

// PageCount reads the number of pages of a PDF document.
func PageCount(doc model.Document) (pages int, err error) {
	if doc.Content == nil {
		return 0, fmt.Errorf("document has no content")
	}

	r, err := doc.Content.Open()
	if err != nil {
		return 0, fmt.Errorf("could not open document: %w", err)
	}
	defer r.Close()

	ra, size, err := readerAt(r, doc.Size)
	if err != nil {
		return 0, err
	}

	// The PDF parser panics on some malformed xref tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = 0, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	pr, err := pdf.NewReader(ra, size)
	if err != nil {
		return 0, fmt.Errorf("could not read pdf: %w", err)
	}

	return pr.NumPage(), nil
}

func readerAt(r io.Reader, size int64) (io.ReaderAt, int64, error) {
	if ra, ok := r.(io.ReaderAt); ok && size > 0 {
		return ra, size, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("could not read document: %w", err)
	}

	return bytes.NewReader(data), int64(len(data)), nil
}
