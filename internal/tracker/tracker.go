// Package tracker keeps the status record of every job in the current batch.
package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

// TrackerConfig is the configuration for the status tracker.
type TrackerConfig struct {
	// OnChange is called with a copy of every record after it changes.
	OnChange func(model.StatusRecord)
	Now      func() time.Time
	Logger   log.Logger
}

func (c *TrackerConfig) defaults() error {
	if c.OnChange == nil {
		c.OnChange = func(model.StatusRecord) {}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "tracker.Tracker"})
	return nil
}

// Tracker maps job IDs to status records. It is the single source of truth of
// the observable state of every job.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*model.StatusRecord
	order   []string
	current *model.CurrentJob

	onChange func(model.StatusRecord)
	now      func() time.Time
	logger   log.Logger
}

// NewTracker returns a new empty tracker.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Tracker{
		records:  map[string]*model.StatusRecord{},
		onChange: cfg.OnChange,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

// Add registers a new record. New records can only start as queued or skipped.
func (t *Tracker) Add(r model.StatusRecord) error {
	if r.JobID == "" {
		return fmt.Errorf("job id is required: %w", model.ErrNotValid)
	}
	if r.Status != model.JobStatusQueued && r.Status != model.JobStatusSkipped {
		return fmt.Errorf("record %s can't start as %s: %w", r.JobID, r.Status, model.ErrInvalidTransition)
	}

	t.mu.Lock()
	if _, ok := t.records[r.JobID]; ok {
		t.mu.Unlock()
		return fmt.Errorf("record %s: %w", r.JobID, model.ErrAlreadyExists)
	}
	if r.Attempt == 0 {
		r.Attempt = 1
	}
	r.UpdatedAt = t.now()
	t.records[r.JobID] = &r
	t.order = append(t.order, r.JobID)
	t.mu.Unlock()

	t.onChange(r)
	return nil
}

// Transition moves a record to a new status applying the patch, only edges of the
// job state machine are accepted.
func (t *Tracker) Transition(jobID string, to model.JobStatus, patch model.StatusPatch) error {
	t.mu.Lock()
	r, ok := t.records[jobID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("record %s: %w", jobID, model.ErrNotFound)
	}

	from := r.Status
	if !from.CanTransition(to) {
		t.mu.Unlock()
		return fmt.Errorf("record %s %s -> %s: %w", jobID, from, to, model.ErrInvalidTransition)
	}

	next := *r
	next.Status = to
	if from == model.JobStatusError && to == model.JobStatusQueued {
		// A retry is a new run.
		next.Attempt++
		next.Progress = 0
		next.TotalUnits = 0
		next.CurrentUnit = 0
	}
	apply(&next, patch, false)

	switch to {
	case model.JobStatusCompleted:
		if next.Result == nil {
			t.mu.Unlock()
			return fmt.Errorf("record %s can't complete without a result: %w", jobID, model.ErrNotValid)
		}
		next.Error = ""
	case model.JobStatusError:
		if next.Error == "" {
			t.mu.Unlock()
			return fmt.Errorf("record %s can't fail without an error message: %w", jobID, model.ErrNotValid)
		}
		next.Result = nil
	default:
		next.Error = ""
		next.Result = nil
	}

	next.UpdatedAt = t.now()
	*r = next
	if to.Terminal() && t.current != nil && t.current.JobID == jobID {
		t.current = nil
	}
	t.mu.Unlock()

	t.logger.Debugf("job %s: %s -> %s", jobID, from, to)
	t.onChange(next)
	return nil
}

// Update merges the non nil fields of the patch into the record. Records in a
// terminal state reject updates, progress never goes backwards within a run.
func (t *Tracker) Update(jobID string, patch model.StatusPatch) error {
	t.mu.Lock()
	r, ok := t.records[jobID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("record %s: %w", jobID, model.ErrNotFound)
	}
	if r.Status.Terminal() {
		t.mu.Unlock()
		return fmt.Errorf("record %s is %s: %w", jobID, r.Status, model.ErrTerminal)
	}

	// Errors and results are only set through transitions.
	patch.Error = nil
	patch.Result = nil
	apply(r, patch, true)
	r.UpdatedAt = t.now()
	rec := *r
	t.mu.Unlock()

	t.onChange(rec)
	return nil
}

func apply(r *model.StatusRecord, p model.StatusPatch, monotonic bool) {
	if p.Stage != nil {
		r.Stage = *p.Stage
	}
	if p.Progress != nil {
		progress := clamp(*p.Progress)
		if !monotonic || !r.Status.Active() || progress >= r.Progress {
			r.Progress = progress
		}
	}
	if p.TotalUnits != nil {
		r.TotalUnits = *p.TotalUnits
	}
	if p.CurrentUnit != nil {
		r.CurrentUnit = *p.CurrentUnit
	}
	if p.Error != nil {
		r.Error = *p.Error
	}
	if p.Result != nil {
		res := *p.Result
		r.Result = &res
	}
}

func clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Get returns a copy of a record.
func (t *Tracker) Get(jobID string) (*model.StatusRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.records[jobID]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", jobID, model.ErrNotFound)
	}

	rCopy := *r
	return &rCopy, nil
}

// List returns copies of all records in insertion order.
func (t *Tracker) List() []model.StatusRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := make([]model.StatusRecord, 0, len(t.order))
	for _, id := range t.order {
		records = append(records, *t.records[id])
	}
	return records
}

// Remove deletes a record.
func (t *Tracker) Remove(jobID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.records[jobID]; !ok {
		return fmt.Errorf("record %s: %w", jobID, model.ErrNotFound)
	}

	delete(t.records, jobID)
	for i, id := range t.order {
		if id == jobID {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	if t.current != nil && t.current.JobID == jobID {
		t.current = nil
	}

	t.logger.Debugf("removed record %s", jobID)
	return nil
}

// Clear deletes all the records.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.records = map[string]*model.StatusRecord{}
	t.order = nil
	t.current = nil
}

// Len returns the number of records.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// AllTerminal returns true when every record is in a terminal state.
func (t *Tracker) AllTerminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, r := range t.records {
		if !r.Status.Terminal() {
			return false
		}
	}
	return true
}

// HasErrors returns true if any record is in error.
func (t *Tracker) HasErrors() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, r := range t.records {
		if r.Status == model.JobStatusError {
			return true
		}
	}
	return false
}

// SetCurrent replaces the current job display state.
func (t *Tracker) SetCurrent(c model.CurrentJob) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = &c
}

// ResetCurrent clears the current job display state.
func (t *Tracker) ResetCurrent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
}

// Current returns the current job display state.
func (t *Tracker) Current() (model.CurrentJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.current == nil {
		return model.CurrentJob{}, false
	}
	return *t.current, true
}
