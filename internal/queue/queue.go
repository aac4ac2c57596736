// Package queue serializes the submission of jobs: a FIFO of pending jobs with
// exactly one job in flight.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

// StageUploading is the stage of a job that has just been admitted.
const StageUploading = "Uploading file..."

// Submitter sends an admitted job to the backend. Submit must not block on
// network I/O, the outcome is reported through the tracker.
type Submitter interface {
	Submit(ctx context.Context, job model.Job)
}

// SubmitterFunc is a helper to use functions as Submitter.
type SubmitterFunc func(ctx context.Context, job model.Job)

// Submit satisfies Submitter.
func (f SubmitterFunc) Submit(ctx context.Context, job model.Job) { f(ctx, job) }

// StatusTransitioner is the part of the status tracker the queue needs.
type StatusTransitioner interface {
	Transition(jobID string, to model.JobStatus, patch model.StatusPatch) error
}

// ManagerConfig is the configuration for the queue manager.
type ManagerConfig struct {
	Tracker   StatusTransitioner
	Submitter Submitter
	Logger    log.Logger
}

func (c *ManagerConfig) defaults() error {
	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}
	if c.Submitter == nil {
		return fmt.Errorf("submitter is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "queue.Manager"})
	return nil
}

// Manager holds the pending jobs and the in-flight slot.
type Manager struct {
	mu       sync.Mutex
	pending  []model.Job
	inFlight string

	tracker   StatusTransitioner
	submitter Submitter
	logger    log.Logger
}

// NewManager returns a new empty queue manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Manager{
		tracker:   cfg.Tracker,
		submitter: cfg.Submitter,
		logger:    cfg.Logger,
	}, nil
}

// Enqueue appends jobs to the tail keeping their order.
func (m *Manager) Enqueue(jobs ...model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = append(m.pending, jobs...)
}

// EnqueueRetry inserts a job at the head so it runs next.
func (m *Manager) EnqueueRetry(job model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = append([]model.Job{job}, m.pending...)
}

// TryAdvance admits the head of the queue if nothing is in flight. It returns
// true when a job has been handed to the submitter.
func (m *Manager) TryAdvance(ctx context.Context) bool {
	for {
		job, ok := m.pop()
		if !ok {
			return false
		}

		patch := model.StatusPatch{}.WithStage(StageUploading).WithProgress(0)
		if err := m.tracker.Transition(job.ID, model.JobStatusUploading, patch); err != nil {
			m.logger.Warningf("skipping job %s: %s", job.ID, err)
			m.Release(job.ID)
			continue
		}

		m.logger.Debugf("job %s (%s) admitted", job.ID, job.Name)
		m.submitter.Submit(ctx, job)
		return true
	}
}

// pop takes the head and reserves the in-flight slot for it.
func (m *Manager) pop() (model.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inFlight != "" || len(m.pending) == 0 {
		return model.Job{}, false
	}
	job := m.pending[0]
	m.pending = m.pending[1:]
	m.inFlight = job.ID
	return job, true
}

// Release frees the in-flight slot if it belongs to jobID.
func (m *Manager) Release(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if jobID == "" || m.inFlight != jobID {
		return false
	}
	m.inFlight = ""
	return true
}

// Remove drops a pending job. The in-flight job can't be removed.
func (m *Manager) Remove(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, j := range m.pending {
		if j.ID == jobID {
			m.pending = append(m.pending[:i:i], m.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Clear drops every pending job.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = nil
}

// Len returns the number of pending jobs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// InFlight returns the ID of the in-flight job, empty if idle.
func (m *Manager) InFlight() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

// Pending returns a copy of the pending jobs in order.
func (m *Manager) Pending() []model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Job(nil), m.pending...)
}
