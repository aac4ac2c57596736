package model

import (
	"bytes"
	"io"
	"os"
	"time"
)

// JobKind is the kind of document a job converts.
type JobKind string

const (
	// JobKindUnknown is a document that can't be converted.
	JobKindUnknown JobKind = ""
	// JobKindPDF documents are converted asynchronously and polled.
	JobKindPDF JobKind = "pdf"
	// JobKindDOCX documents are converted synchronously.
	JobKindDOCX JobKind = "docx"
)

// Async returns true when the backend answers with a conversion id that needs polling.
func (k JobKind) Async() bool { return k == JobKindPDF }

// Opener gives access to the raw content of a document.
type Opener interface {
	Open() (io.ReadCloser, error)
}

// FileContent is an Opener backed by a file on disk.
type FileContent string

// Open opens the file.
func (f FileContent) Open() (io.ReadCloser, error) { return os.Open(string(f)) }

// BytesContent is an Opener backed by in-memory data.
type BytesContent []byte

// Open returns a reader over the data.
func (b BytesContent) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Document is a raw document as selected by the user, before classification.
type Document struct {
	Name        string
	Size        int64
	ContentType string
	Content     Opener
}

// Job is a classified document ready to be queued. Immutable once enqueued.
type Job struct {
	ID        string
	Name      string
	Kind      JobKind
	SizeBytes int64
	// PageHint is the page count detected locally, 0 if unknown.
	PageHint   int
	Content    Opener
	EnqueuedAt time.Time
}
