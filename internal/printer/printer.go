package printer

import (
	"time"

	"github.com/slok/convq/internal/model"
)

// Printer knows how to print conversion information in different formats.
type Printer interface {
	PrintHistoryList(entries []model.HistoryEntry, now time.Time) error
	PrintHistoryEntry(entry model.HistoryEntry) error
	PrintStatuses(records []model.StatusRecord) error
	PrintStatus(record model.StatusRecord) error
	PrintMessage(msg string) error
}
