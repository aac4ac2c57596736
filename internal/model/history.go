package model

import "time"

// HistoryEntry is a completed conversion kept in the local history.
// Entries are never mutated after creation.
type HistoryEntry struct {
	// ID is the creation time in unix milliseconds, strictly increasing.
	ID        int64
	Filename  string
	Markdown  string
	FileSize  string
	PageCount *int
	Timestamp time.Time
}
