package model

import (
	"strings"
	"time"
)

// ProgressStatus is the backend state of an asynchronous conversion.
type ProgressStatus string

const (
	ProgressStatusProcessing ProgressStatus = "processing"
	ProgressStatusCompleted  ProgressStatus = "completed"
	ProgressStatusError      ProgressStatus = "error"
)

// ConversionResult is the markdown produced by the backend for one document.
type ConversionResult struct {
	Markdown string
	Filename string
	// FileSize is the human readable size reported by the backend (e.g. "1.2 MB").
	FileSize string
	// PageCount is nil when the backend can't tell (e.g. DOCX).
	PageCount *int
	Timestamp time.Time
}

// ProgressReport is one poll response of an asynchronous conversion.
type ProgressReport struct {
	Status      ProgressStatus
	Progress    int
	Stage       string
	TotalPages  int
	CurrentPage int
	Result      *ConversionResult
	Error       string
}

// WordDocument is a DOCX generated from markdown.
type WordDocument struct {
	Filename string
	Data     []byte
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses ISO 8601 timestamps as produced by the backend.
// Timestamps without a zone are local time, unparseable values return the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}
