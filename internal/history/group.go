package history

import (
	"time"

	"github.com/slok/convq/internal/model"
)

// Group names, in display order.
const (
	GroupToday     = "Today"
	GroupYesterday = "Yesterday"
	GroupThisWeek  = "This week"
	GroupOlder     = "Older"
)

// Group is a named bucket of history entries.
type Group struct {
	Name    string
	Entries []model.HistoryEntry
}

// GroupByDay buckets entries by their timestamp relative to now, using the
// local day boundaries of now. Empty groups are omitted, entry order is kept.
func GroupByDay(entries []model.HistoryEntry, now time.Time) []Group {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)
	weekAgo := today.AddDate(0, 0, -7)

	buckets := map[string][]model.HistoryEntry{}
	for _, e := range entries {
		ts := e.Timestamp.In(loc)
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc)

		var name string
		switch {
		case day.Equal(today):
			name = GroupToday
		case day.Equal(yesterday):
			name = GroupYesterday
		case !ts.Before(weekAgo):
			name = GroupThisWeek
		default:
			name = GroupOlder
		}
		buckets[name] = append(buckets[name], e)
	}

	var groups []Group
	for _, name := range []string{GroupToday, GroupYesterday, GroupThisWeek, GroupOlder} {
		if len(buckets[name]) > 0 {
			groups = append(groups, Group{Name: name, Entries: buckets[name]})
		}
	}
	return groups
}
