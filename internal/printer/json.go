package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/convq/internal/history"
	"github.com/slok/convq/internal/model"
)

// JSONPrinter prints conversion information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// historyItem represents a history entry in the list output (no markdown).
type historyItem struct {
	ID        int64     `json:"id"`
	Group     string    `json:"group"`
	Filename  string    `json:"filename"`
	FileSize  string    `json:"file_size,omitempty"`
	PageCount *int      `json:"page_count"`
	Timestamp time.Time `json:"timestamp"`
}

// historyEntryOutput represents the full history entry output.
type historyEntryOutput struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	FileSize  string    `json:"file_size,omitempty"`
	PageCount *int      `json:"page_count"`
	Timestamp time.Time `json:"timestamp"`
	Markdown  string    `json:"markdown"`
}

// statusOutput represents the status of a job.
type statusOutput struct {
	JobID       string `json:"job_id"`
	Name        string `json:"name"`
	Kind        string `json:"kind,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	Status      string `json:"status"`
	Stage       string `json:"stage,omitempty"`
	Progress    int    `json:"progress"`
	TotalPages  int    `json:"total_pages,omitempty"`
	CurrentPage int    `json:"current_page,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempt     int    `json:"attempt"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintHistoryList prints the history entries in JSON format without the markdown.
func (j *JSONPrinter) PrintHistoryList(entries []model.HistoryEntry, now time.Time) error {
	items := []historyItem{}
	for _, g := range history.GroupByDay(entries, now) {
		for _, e := range g.Entries {
			items = append(items, historyItem{
				ID:        e.ID,
				Group:     g.Name,
				Filename:  e.Filename,
				FileSize:  e.FileSize,
				PageCount: e.PageCount,
				Timestamp: e.Timestamp.UTC(),
			})
		}
	}
	return j.encode(items)
}

// PrintHistoryEntry prints a history entry in JSON format.
func (j *JSONPrinter) PrintHistoryEntry(e model.HistoryEntry) error {
	return j.encode(historyEntryOutput{
		ID:        e.ID,
		Filename:  e.Filename,
		FileSize:  e.FileSize,
		PageCount: e.PageCount,
		Timestamp: e.Timestamp.UTC(),
		Markdown:  e.Markdown,
	})
}

// PrintStatuses prints the status of every job in JSON format.
func (j *JSONPrinter) PrintStatuses(records []model.StatusRecord) error {
	out := make([]statusOutput, 0, len(records))
	for _, r := range records {
		out = append(out, newStatusOutput(r))
	}
	return j.encode(out)
}

// PrintStatus prints one job status as a single JSON line.
func (j *JSONPrinter) PrintStatus(r model.StatusRecord) error {
	return json.NewEncoder(j.writer).Encode(newStatusOutput(r))
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatusOutput(r model.StatusRecord) statusOutput {
	return statusOutput{
		JobID:       r.JobID,
		Name:        r.Name,
		Kind:        string(r.Kind),
		SizeBytes:   r.SizeBytes,
		Status:      string(r.Status),
		Stage:       r.Stage,
		Progress:    r.Progress,
		TotalPages:  r.TotalUnits,
		CurrentPage: r.CurrentUnit,
		Error:       r.Error,
		Attempt:     r.Attempt,
	}
}
