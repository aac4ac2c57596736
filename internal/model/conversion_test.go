package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/convq/internal/model"
)

func TestParseTimestamp(t *testing.T) {
	tests := map[string]struct {
		in  string
		exp time.Time
	}{
		"Naive ISO timestamps should be local.": {
			in:  "2025-05-01T10:20:30",
			exp: time.Date(2025, 5, 1, 10, 20, 30, 0, time.Local),
		},
		"Fractional seconds should be kept.": {
			in:  "2025-05-01T10:20:30.5",
			exp: time.Date(2025, 5, 1, 10, 20, 30, 500000000, time.Local),
		},
		"Zoned timestamps should keep their instant.": {
			in:  "2025-05-01T10:20:30+02:00",
			exp: time.Date(2025, 5, 1, 8, 20, 30, 0, time.UTC),
		},
		"Empty timestamps should be zero.": {
			in: "",
		},
		"Garbage should be zero.": {
			in: "yesterday",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := model.ParseTimestamp(test.in)
			assert.True(t, test.exp.Equal(got), "got %s", got)
		})
	}
}
