package printer

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// RelativeTime returns a short relative time string.
// Examples: "Just now", "5m ago", "3h ago", "2d ago", "In 10m", "Upcoming".
// Past times older than a week and future times further than a day are shown as dates.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "Invalid date"
	}

	diff := now.Sub(t)

	if diff < 0 {
		minutes := int(-diff / time.Minute)
		switch {
		case minutes < 1:
			return "Upcoming"
		case minutes < 60:
			return fmt.Sprintf("In %dm", minutes)
		case minutes/60 < 24:
			return fmt.Sprintf("In %dh", minutes/60)
		}
		return "On " + t.Local().Format(dateLayout)
	}

	minutes := int(diff / time.Minute)
	if minutes < 1 {
		return "Just now"
	}
	if minutes < 60 {
		return fmt.Sprintf("%dm ago", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd ago", days)
	}

	return t.Local().Format(dateLayout)
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
