package lib

import (
	"errors"
	"time"

	"github.com/slok/convq/internal/model"
)

// Errors returned by the SDK, use [errors.Is] to check them.
var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when the input is not valid.
	ErrNotValid = errors.New("not valid")
)

// Document is a document to convert, either a local file (Path) or in-memory
// data (Name and Data).
type Document struct {
	// Name is the display name, defaults to the base of Path.
	Name string
	// Path is a local file.
	Path string
	// Data is the document content, it takes precedence over Path.
	Data []byte
	// ContentType is optional, it's detected from the content when empty.
	ContentType string
}

// JobKind is the conversion a document needs.
type JobKind string

const (
	JobKindPDF  JobKind = "pdf"
	JobKindDOCX JobKind = "docx"
)

// JobState is the state of a conversion job.
//
//	queued -> uploading -> processing -> completed | error
//
// Skipped documents are never sent to the backend.
type JobState string

const (
	JobStatusQueued     JobState = "queued"
	JobStatusUploading  JobState = "uploading"
	JobStatusProcessing JobState = "processing"
	JobStatusCompleted  JobState = "completed"
	JobStatusError      JobState = "error"
	JobStatusSkipped    JobState = "skipped"
)

// JobStatus is a snapshot of a conversion job.
type JobStatus struct {
	JobID string
	Name  string
	// Kind is empty for unsupported documents.
	Kind  JobKind
	State JobState
	Stage string
	// Progress is a 0-100 percentage.
	Progress    int
	TotalPages  int
	CurrentPage int
	Error       string
	// Markdown is set once the job is completed.
	Markdown string
	// Attempt is the run number, incremented on every retry.
	Attempt int
}

// HistoryEntry is a completed conversion.
type HistoryEntry struct {
	ID        int64
	Filename  string
	Markdown  string
	FileSize  string
	PageCount *int
	Timestamp time.Time
}

// WordDocument is a DOCX document rendered from markdown.
type WordDocument struct {
	Filename string
	Data     []byte
}

func fromInternalStatus(r model.StatusRecord) JobStatus {
	s := JobStatus{
		JobID:       r.JobID,
		Name:        r.Name,
		Kind:        JobKind(r.Kind),
		State:       JobState(r.Status),
		Stage:       r.Stage,
		Progress:    r.Progress,
		TotalPages:  r.TotalUnits,
		CurrentPage: r.CurrentUnit,
		Error:       r.Error,
		Attempt:     r.Attempt,
	}
	if r.Result != nil {
		s.Markdown = r.Result.Markdown
	}
	return s
}

func fromInternalStatusList(rs []model.StatusRecord) []JobStatus {
	result := make([]JobStatus, len(rs))
	for i, r := range rs {
		result[i] = fromInternalStatus(r)
	}
	return result
}

func fromInternalHistoryEntry(e model.HistoryEntry) HistoryEntry {
	return HistoryEntry{
		ID:        e.ID,
		Filename:  e.Filename,
		Markdown:  e.Markdown,
		FileSize:  e.FileSize,
		PageCount: e.PageCount,
		Timestamp: e.Timestamp,
	}
}

func fromInternalHistoryList(es []model.HistoryEntry) []HistoryEntry {
	result := make([]HistoryEntry, len(es))
	for i, e := range es {
		result[i] = fromInternalHistoryEntry(e)
	}
	return result
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case isInternalError(err, model.ErrNotFound):
		return joinErrors(err, ErrNotFound)
	case isInternalError(err, model.ErrNotValid):
		return joinErrors(err, ErrNotValid)
	default:
		return err
	}
}

func isInternalError(err, target error) bool {
	return errors.Is(err, target)
}

func joinErrors(original, sentinel error) error {
	return &mappedError{original: original, sentinel: sentinel}
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
