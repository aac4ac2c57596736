// Package poller follows the progress of asynchronous conversions. There is at
// most one active poll session, starting a new one supersedes the previous.
package poller

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/convq/internal/converter"
	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
)

const (
	// DefaultInterval is the time between two status requests.
	DefaultInterval = 500 * time.Millisecond

	// StageProcessing is used when the backend doesn't report a stage.
	StageProcessing = "Processing..."
	// StageCompleted is the stage of a converted job.
	StageCompleted = "Completed"
	// StageError is the stage of a failed job.
	StageError = "Error"

	// UnknownErrorMessage is used when the backend fails without a message.
	UnknownErrorMessage = "Unknown conversion error"
)

// Tracker is the part of the status tracker the poller mutates.
type Tracker interface {
	Update(jobID string, patch model.StatusPatch) error
	Transition(jobID string, to model.JobStatus, patch model.StatusPatch) error
	SetCurrent(c model.CurrentJob)
}

// History stores successful conversions.
type History interface {
	Add(ctx context.Context, res model.ConversionResult) (model.HistoryEntry, error)
}

// Releaser frees the in-flight slot of the queue.
type Releaser interface {
	Release(jobID string) bool
}

// Session is the cancellation token of one poll loop.
type Session struct {
	ID           string
	ConversionID string
	JobID        string
	JobName      string

	cancelled atomic.Bool
	once      sync.Once
	cancelC   chan struct{}
	done      chan struct{}
}

// Cancel marks the session as obsolete. Results that arrive later are dropped.
func (s *Session) Cancel() {
	s.once.Do(func() {
		s.cancelled.Store(true)
		close(s.cancelC)
	})
}

// Cancelled returns true once the session has been cancelled or finished.
func (s *Session) Cancelled() bool { return s.cancelled.Load() }

// Done is closed when the poll loop goroutine exits.
func (s *Session) Done() <-chan struct{} { return s.done }

// PollerConfig is the configuration for the progress poller.
type PollerConfig struct {
	Client  converter.Client
	Tracker Tracker
	History History
	Queue   Releaser
	// Dispatch runs the application of a poll result on the owner goroutine.
	// By default results are applied on the poll goroutine.
	Dispatch func(func())
	Interval time.Duration
	// Now stamps the session ids.
	Now    func() time.Time
	Logger log.Logger
}

func (c *PollerConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}
	if c.History == nil {
		return fmt.Errorf("history is required")
	}
	if c.Queue == nil {
		return fmt.Errorf("queue is required")
	}
	if c.Dispatch == nil {
		c.Dispatch = func(f func()) { f() }
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "poller.Poller"})
	return nil
}

// Poller runs the poll sessions.
type Poller struct {
	mu     sync.Mutex
	active *Session

	client   converter.Client
	tracker  Tracker
	history  History
	queue    Releaser
	dispatch func(func())
	interval time.Duration
	now      func() time.Time
	logger   log.Logger
}

// NewPoller returns a new idle poller.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Poller{
		client:   cfg.Client,
		tracker:  cfg.Tracker,
		history:  cfg.History,
		queue:    cfg.Queue,
		dispatch: cfg.Dispatch,
		interval: cfg.Interval,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}, nil
}

// Start cancels the active session, if any, and starts polling conversionID on
// behalf of jobID.
func (p *Poller) Start(ctx context.Context, conversionID, jobID, jobName string) *Session {
	s := &Session{
		ID:           ulid.MustNew(ulid.Timestamp(p.now()), rand.Reader).String(),
		ConversionID: conversionID,
		JobID:        jobID,
		JobName:      jobName,
		cancelC:      make(chan struct{}),
		done:         make(chan struct{}),
	}

	p.mu.Lock()
	prev := p.active
	p.active = s
	p.mu.Unlock()

	if prev != nil {
		p.logger.Debugf("session %s superseded by %s", prev.ID, s.ID)
		prev.Cancel()
	}

	go p.run(ctx, s)
	return s
}

// Stop cancels the active session.
func (p *Poller) Stop() {
	p.mu.Lock()
	s := p.active
	p.active = nil
	p.mu.Unlock()

	if s != nil {
		s.Cancel()
	}
}

// Active returns the active session, nil when idle.
func (p *Poller) Active() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Poller) isActive(s *Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active == s && !s.Cancelled()
}

// end deactivates s, it won't mutate anything after this.
func (p *Poller) end(s *Session) {
	p.mu.Lock()
	if p.active == s {
		p.active = nil
	}
	p.mu.Unlock()
	s.Cancel()
}

func (p *Poller) run(ctx context.Context, s *Session) {
	defer close(s.done)

	logger := p.logger.WithValues(log.Kv{"session": s.ID, "job": s.JobID})
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.cancelC:
			return
		case <-ticker.C:
		}

		if !p.isActive(s) {
			return
		}

		report, err := p.client.Progress(ctx, s.ConversionID)
		if ctx.Err() != nil {
			return
		}

		// Wait for the result to be applied so requests of a session never overlap.
		stopC := make(chan bool, 1)
		p.dispatch(func() { stopC <- p.apply(ctx, logger, s, report, err) })

		select {
		case stop := <-stopC:
			if stop {
				return
			}
		case <-s.cancelC:
			return
		case <-ctx.Done():
			return
		}
	}
}

// apply processes one poll result and returns true when polling must stop.
func (p *Poller) apply(ctx context.Context, logger log.Logger, s *Session, report *model.ProgressReport, err error) bool {
	if !p.isActive(s) {
		logger.Debugf("discarding result of stale session")
		return true
	}

	if err != nil {
		p.fail(logger, s, "Polling failed: "+err.Error())
		return true
	}
	if report == nil {
		p.fail(logger, s, "Polling failed: empty progress report")
		return true
	}

	switch report.Status {
	case model.ProgressStatusProcessing:
		stage := report.Stage
		if stage == "" {
			stage = StageProcessing
		}
		patch := model.StatusPatch{}.
			WithStage(stage).
			WithProgress(report.Progress).
			WithUnits(report.TotalPages, report.CurrentPage)
		if err := p.tracker.Update(s.JobID, patch); err != nil {
			logger.Warningf("could not update job progress: %s", err)
		}
		p.tracker.SetCurrent(model.CurrentJob{
			JobID:       s.JobID,
			Name:        s.JobName,
			Stage:       stage,
			Progress:    report.Progress,
			TotalUnits:  report.TotalPages,
			CurrentUnit: report.CurrentPage,
		})
		return false

	case model.ProgressStatusCompleted:
		if report.Result == nil {
			p.fail(logger, s, "Polling failed: completed conversion without result")
			return true
		}
		p.complete(ctx, logger, s, *report.Result)
		return true

	case model.ProgressStatusError:
		msg := report.Error
		if msg == "" {
			msg = UnknownErrorMessage
		}
		p.fail(logger, s, msg)
		return true
	}

	p.fail(logger, s, fmt.Sprintf("Polling failed: unknown conversion status %q", report.Status))
	return true
}

func (p *Poller) complete(ctx context.Context, logger log.Logger, s *Session, res model.ConversionResult) {
	p.end(s)

	if _, err := p.history.Add(ctx, res); err != nil {
		logger.Errorf("could not store conversion in history: %s", err)
	}

	patch := model.StatusPatch{}.WithStage(StageCompleted).WithProgress(100).WithResult(res)
	if err := p.tracker.Transition(s.JobID, model.JobStatusCompleted, patch); err != nil {
		logger.Errorf("could not complete job: %s", err)
	}
	p.queue.Release(s.JobID)
	logger.Infof("conversion of %s completed", s.JobName)
}

func (p *Poller) fail(logger log.Logger, s *Session, msg string) {
	p.end(s)

	patch := model.StatusPatch{}.WithStage(StageError).WithProgress(0).WithError(msg)
	if err := p.tracker.Transition(s.JobID, model.JobStatusError, patch); err != nil {
		logger.Errorf("could not fail job: %s", err)
	}
	p.queue.Release(s.JobID)
	logger.Warningf("conversion of %s failed: %s", s.JobName, msg)
}
