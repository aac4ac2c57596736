package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/slok/convq/internal/history"
	"github.com/slok/convq/internal/model"
)

// TablePrinter prints conversion information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintHistoryList prints the history grouped by day.
func (t *TablePrinter) PrintHistoryList(entries []model.HistoryEntry, now time.Time) error {
	if len(entries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	for i, g := range history.GroupByDay(entries, now) {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s\n", strings.ToUpper(g.Name))
		fmt.Fprintln(tw, "ID\tFILENAME\tSIZE\tPAGES\tCONVERTED")
		for _, e := range g.Entries {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.ID, e.Filename, orDash(e.FileSize), pages(e.PageCount), RelativeTime(e.Timestamp, now))
		}
	}

	return nil
}

// PrintHistoryEntry prints the entry details followed by its markdown.
func (t *TablePrinter) PrintHistoryEntry(e model.HistoryEntry) error {
	fmt.Fprintf(t.writer, "ID:         %d\n", e.ID)
	fmt.Fprintf(t.writer, "Filename:   %s\n", e.Filename)
	fmt.Fprintf(t.writer, "Size:       %s\n", orDash(e.FileSize))
	fmt.Fprintf(t.writer, "Pages:      %s\n", pages(e.PageCount))
	fmt.Fprintf(t.writer, "Converted:  %s\n", FormatTimestamp(e.Timestamp))
	fmt.Fprintln(t.writer)
	fmt.Fprintln(t.writer, e.Markdown)
	return nil
}

// PrintStatuses prints the status of every job of a batch.
func (t *TablePrinter) PrintStatuses(records []model.StatusRecord) error {
	if len(records) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "NAME\tKIND\tSIZE\tSTATUS\tPROGRESS\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d%%\t%s\n", r.Name, kind(r.Kind), FormatBytes(r.SizeBytes), r.Status, r.Progress, detail(r))
	}

	return nil
}

// PrintStatus prints a single status line, used to follow a batch as it runs.
func (t *TablePrinter) PrintStatus(r model.StatusRecord) error {
	switch {
	case r.Status.Active():
		fmt.Fprintf(t.writer, "%s %s %s\n", r.Name, ProgressBar(r.Progress), detail(r))
	default:
		fmt.Fprintf(t.writer, "%s: %s\n", r.Name, strings.TrimSpace(fmt.Sprintf("%s %s", r.Status, detail(r))))
	}
	return nil
}

// PrintMessage prints a simple message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func detail(r model.StatusRecord) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.TotalUnits > 0 && r.Status.Active():
		return fmt.Sprintf("%s (page %d/%d)", r.Stage, r.CurrentUnit, r.TotalUnits)
	}
	return r.Stage
}

func kind(k model.JobKind) string {
	if k == model.JobKindUnknown {
		return "-"
	}
	return string(k)
}

func pages(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
