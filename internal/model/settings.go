package model

import "time"

// Settings are the user tunables loaded from the settings file. Zero values mean
// "not set" and are replaced by defaults or flags.
type Settings struct {
	BackendURL        string
	PollInterval      time.Duration
	DismissDelay      time.Duration
	HistoryLimit      int
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}
