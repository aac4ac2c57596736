// Package converter is the boundary with the remote conversion backend.
package converter

import (
	"context"
	"fmt"

	"github.com/slok/convq/internal/model"
)

// Client talks to the conversion backend.
type Client interface {
	// StartConversion uploads a PDF and returns the conversion id to poll.
	StartConversion(ctx context.Context, job model.Job) (conversionID string, err error)
	// ConvertWord uploads a DOCX and returns the markdown synchronously.
	ConvertWord(ctx context.Context, job model.Job) (*model.ConversionResult, error)
	// Progress returns the current state of an asynchronous conversion.
	Progress(ctx context.Context, conversionID string) (*model.ProgressReport, error)
	// MarkdownToWord renders markdown as a DOCX document.
	MarkdownToWord(ctx context.Context, markdown, filename string) (*model.WordDocument, error)
}

// BackendError is a failure reported by the backend, either an HTTP status
// outside 2xx or an explicit unsuccessful answer.
type BackendError struct {
	// StatusCode is 0 when the HTTP exchange succeeded but the backend reported a failure.
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 && e.Message == "" {
		return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
	}
	return e.Message
}
