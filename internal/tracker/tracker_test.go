package tracker_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/convq/internal/model"
	"github.com/slok/convq/internal/tracker"
)

func newTracker(t *testing.T) *tracker.Tracker {
	t.Helper()
	tr, err := tracker.NewTracker(tracker.TrackerConfig{})
	require.NoError(t, err)
	return tr
}

func queued(id string) model.StatusRecord {
	return model.StatusRecord{JobID: id, Name: id + ".pdf", Kind: model.JobKindPDF, Status: model.JobStatusQueued, Stage: "Queued"}
}

func result() model.ConversionResult {
	return model.ConversionResult{Markdown: "# a", Filename: "a.pdf"}
}

func TestTrackerTransitions(t *testing.T) {
	tests := map[string]struct {
		steps     func(tr *tracker.Tracker) error
		expStatus model.JobStatus
		expErr    error
	}{
		"Queued to uploading should be allowed.": {
			steps: func(tr *tracker.Tracker) error {
				return tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{})
			},
			expStatus: model.JobStatusUploading,
		},
		"Queued to processing should be rejected.": {
			steps: func(tr *tracker.Tracker) error {
				return tr.Transition("j1", model.JobStatusProcessing, model.StatusPatch{})
			},
			expStatus: model.JobStatusQueued,
			expErr:    model.ErrInvalidTransition,
		},
		"Uploading directly to completed should be allowed for synchronous jobs.": {
			steps: func(tr *tracker.Tracker) error {
				_ = tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{})
				return tr.Transition("j1", model.JobStatusCompleted, model.StatusPatch{}.WithResult(result()))
			},
			expStatus: model.JobStatusCompleted,
		},
		"Completing without result should fail.": {
			steps: func(tr *tracker.Tracker) error {
				_ = tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{})
				return tr.Transition("j1", model.JobStatusCompleted, model.StatusPatch{})
			},
			expStatus: model.JobStatusUploading,
			expErr:    model.ErrNotValid,
		},
		"Failing without message should fail.": {
			steps: func(tr *tracker.Tracker) error {
				_ = tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{})
				return tr.Transition("j1", model.JobStatusError, model.StatusPatch{})
			},
			expStatus: model.JobStatusUploading,
			expErr:    model.ErrNotValid,
		},
		"Completed to error should be rejected.": {
			steps: func(tr *tracker.Tracker) error {
				_ = tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{})
				_ = tr.Transition("j1", model.JobStatusCompleted, model.StatusPatch{}.WithResult(result()))
				return tr.Transition("j1", model.JobStatusError, model.StatusPatch{}.WithError("late"))
			},
			expStatus: model.JobStatusCompleted,
			expErr:    model.ErrInvalidTransition,
		},
		"Error to queued should be allowed as a retry.": {
			steps: func(tr *tracker.Tracker) error {
				_ = tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{})
				_ = tr.Transition("j1", model.JobStatusError, model.StatusPatch{}.WithError("boom"))
				return tr.Transition("j1", model.JobStatusQueued, model.StatusPatch{}.WithStage("Queued"))
			},
			expStatus: model.JobStatusQueued,
		},
		"Missing records should fail.": {
			steps: func(tr *tracker.Tracker) error {
				return tr.Transition("missing", model.JobStatusUploading, model.StatusPatch{})
			},
			expStatus: model.JobStatusQueued,
			expErr:    model.ErrNotFound,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			tr := newTracker(t)
			require.NoError(tr.Add(queued("j1")))

			err := test.steps(tr)
			if test.expErr != nil {
				assert.True(errors.Is(err, test.expErr), "got %v", err)
			} else {
				assert.NoError(err)
			}

			got, err := tr.Get("j1")
			require.NoError(err)
			assert.Equal(test.expStatus, got.Status)
		})
	}
}

func TestTrackerAdd(t *testing.T) {
	tr := newTracker(t)

	require.NoError(t, tr.Add(queued("j1")))
	assert.ErrorIs(t, tr.Add(queued("j1")), model.ErrAlreadyExists)
	assert.ErrorIs(t, tr.Add(model.StatusRecord{JobID: "j2", Status: model.JobStatusProcessing}), model.ErrInvalidTransition)
	assert.ErrorIs(t, tr.Add(model.StatusRecord{Status: model.JobStatusQueued}), model.ErrNotValid)
	require.NoError(t, tr.Add(model.StatusRecord{JobID: "j3", Status: model.JobStatusSkipped, Error: "Unsupported file type"}))

	got, err := tr.Get("j1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempt)
	assert.Equal(t, 2, tr.Len())
}

func TestTrackerUpdateMergesFields(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tr := newTracker(t)
	require.NoError(tr.Add(queued("j1")))
	require.NoError(tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{}))
	require.NoError(tr.Transition("j1", model.JobStatusProcessing, model.StatusPatch{}.WithStage("Waiting")))

	// Two partial updates should not clobber each other.
	require.NoError(tr.Update("j1", model.StatusPatch{}.WithProgress(40)))
	require.NoError(tr.Update("j1", model.StatusPatch{}.WithStage("Processing page 2 of 5...").WithUnits(5, 2)))

	got, err := tr.Get("j1")
	require.NoError(err)
	assert.Equal(40, got.Progress)
	assert.Equal("Processing page 2 of 5...", got.Stage)
	assert.Equal(5, got.TotalUnits)
	assert.Equal(2, got.CurrentUnit)
	assert.Equal("j1.pdf", got.Name)
}

func TestTrackerUpdateProgressIsMonotonic(t *testing.T) {
	tr := newTracker(t)
	require.NoError(t, tr.Add(queued("j1")))
	require.NoError(t, tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{}))
	require.NoError(t, tr.Transition("j1", model.JobStatusProcessing, model.StatusPatch{}))

	require.NoError(t, tr.Update("j1", model.StatusPatch{}.WithProgress(60)))
	require.NoError(t, tr.Update("j1", model.StatusPatch{}.WithProgress(30)))
	require.NoError(t, tr.Update("j1", model.StatusPatch{}.WithProgress(250)))

	got, err := tr.Get("j1")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
}

func TestTrackerUpdateRejectsTerminalRecords(t *testing.T) {
	tr := newTracker(t)
	require.NoError(t, tr.Add(queued("j1")))
	require.NoError(t, tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{}))
	require.NoError(t, tr.Transition("j1", model.JobStatusError, model.StatusPatch{}.WithError("corrupt file")))

	err := tr.Update("j1", model.StatusPatch{}.WithProgress(90).WithStage("late"))
	assert.ErrorIs(t, err, model.ErrTerminal)

	got, err := tr.Get("j1")
	require.NoError(t, err)
	assert.Equal(t, "corrupt file", got.Error)
	assert.NotEqual(t, "late", got.Stage)
}

func TestTrackerRetryStartsNewRun(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tr := newTracker(t)
	require.NoError(tr.Add(queued("j1")))
	require.NoError(tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{}))
	require.NoError(tr.Transition("j1", model.JobStatusProcessing, model.StatusPatch{}))
	require.NoError(tr.Update("j1", model.StatusPatch{}.WithProgress(70).WithUnits(10, 7)))
	require.NoError(tr.Transition("j1", model.JobStatusError, model.StatusPatch{}.WithError("boom")))
	require.NoError(tr.Transition("j1", model.JobStatusQueued, model.StatusPatch{}.WithStage("Queued")))

	got, err := tr.Get("j1")
	require.NoError(err)
	assert.Equal(2, got.Attempt)
	assert.Equal(0, got.Progress)
	assert.Equal(0, got.TotalUnits)
	assert.Empty(got.Error)
}

func TestTrackerListAndRemove(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tr := newTracker(t)
	for _, id := range []string{"j1", "j2", "j3"} {
		require.NoError(tr.Add(queued(id)))
	}
	require.NoError(tr.Remove("j2"))
	assert.ErrorIs(tr.Remove("j2"), model.ErrNotFound)

	var ids []string
	for _, r := range tr.List() {
		ids = append(ids, r.JobID)
	}
	assert.Equal([]string{"j1", "j3"}, ids)

	tr.Clear()
	assert.Equal(0, tr.Len())
	assert.True(tr.AllTerminal())
}

func TestTrackerTerminalAndErrors(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	tr := newTracker(t)
	require.NoError(tr.Add(queued("j1")))
	require.NoError(tr.Add(model.StatusRecord{JobID: "j2", Status: model.JobStatusSkipped}))
	assert.False(tr.AllTerminal())

	require.NoError(tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{}))
	require.NoError(tr.Transition("j1", model.JobStatusError, model.StatusPatch{}.WithError("boom")))
	assert.True(tr.AllTerminal())
	assert.True(tr.HasErrors())
}

func TestTrackerOnChange(t *testing.T) {
	var got []model.JobStatus
	tr, err := tracker.NewTracker(tracker.TrackerConfig{
		OnChange: func(r model.StatusRecord) { got = append(got, r.Status) },
	})
	require.NoError(t, err)

	require.NoError(t, tr.Add(queued("j1")))
	require.NoError(t, tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{}))
	require.NoError(t, tr.Update("j1", model.StatusPatch{}.WithProgress(10)))
	assert.Error(t, tr.Transition("j1", model.JobStatusQueued, model.StatusPatch{}))

	assert.Equal(t, []model.JobStatus{model.JobStatusQueued, model.JobStatusUploading, model.JobStatusUploading}, got)
}

func TestTrackerCurrent(t *testing.T) {
	tr := newTracker(t)
	require.NoError(t, tr.Add(queued("j1")))
	require.NoError(t, tr.Transition("j1", model.JobStatusUploading, model.StatusPatch{}))

	_, ok := tr.Current()
	assert.False(t, ok)

	tr.SetCurrent(model.CurrentJob{JobID: "j1", Progress: 40})
	c, ok := tr.Current()
	require.True(t, ok)
	assert.Equal(t, 40, c.Progress)

	// Reaching a terminal state clears the current job.
	require.NoError(t, tr.Transition("j1", model.JobStatusCompleted, model.StatusPatch{}.WithResult(result())))
	_, ok = tr.Current()
	assert.False(t, ok)
}
