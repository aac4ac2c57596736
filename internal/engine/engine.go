// Package engine composes the conversion queue components and runs them on a
// single event loop goroutine. Network I/O runs on helper goroutines that post
// their results back to the loop.
package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/convq/internal/batch"
	"github.com/slok/convq/internal/classify"
	"github.com/slok/convq/internal/converter"
	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
	"github.com/slok/convq/internal/poller"
	"github.com/slok/convq/internal/queue"
	"github.com/slok/convq/internal/submit"
	"github.com/slok/convq/internal/tracker"
)

const (
	// StageQueued is the stage of a job waiting in the queue.
	StageQueued = "Queued"
	// StageSkipped is the stage of a document that was never queued.
	StageSkipped = "Skipped"
	// UnsupportedMessage is the error of a skipped unsupported document.
	UnsupportedMessage = "Unsupported file type"
)

// ErrStopped is returned by the operations once the event loop has exited.
var ErrStopped = errors.New("engine is not running")

// Classifier classifies documents before they are queued.
type Classifier interface {
	Classify(ctx context.Context, doc model.Document) (classify.Result, error)
}

// Config is the configuration of the engine.
type Config struct {
	Client     converter.Client
	History    poller.History
	Classifier Classifier
	// PollInterval is the time between progress requests.
	PollInterval time.Duration
	// DismissDelay is the time a cleanly resolved batch stays visible.
	DismissDelay time.Duration
	// OnChange is called on the loop goroutine after every status record change.
	// It must not call the engine.
	OnChange  func(model.StatusRecord)
	OnDismiss func()
	Now       func() time.Time
	Logger    log.Logger
}

func (c *Config) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.History == nil {
		return fmt.Errorf("history is required")
	}
	if c.Classifier == nil {
		cl, err := classify.NewClassifier(classify.ClassifierConfig{Logger: c.Logger})
		if err != nil {
			return fmt.Errorf("could not create classifier: %w", err)
		}
		c.Classifier = cl
	}
	if c.PollInterval <= 0 {
		c.PollInterval = poller.DefaultInterval
	}
	if c.DismissDelay <= 0 {
		c.DismissDelay = batch.DefaultDelay
	}
	if c.OnChange == nil {
		c.OnChange = func(model.StatusRecord) {}
	}
	if c.OnDismiss == nil {
		c.OnDismiss = func() {}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "engine.Engine"})
	return nil
}

// Engine owns one instance of every component of a conversion session.
type Engine struct {
	actions chan loopAction
	stopped chan struct{}
	running sync.Once
	// runCtx is the context of Run, used by the network calls. Only set on the loop.
	runCtx context.Context

	changeMu sync.Mutex
	changeC  chan struct{}

	tracker    *tracker.Tracker
	queue      *queue.Manager
	poller     *poller.Poller
	submitter  *submit.Submitter
	batch      *batch.Controller
	classifier Classifier
	onDismiss  func()
	now        func() time.Time
	logger     log.Logger
}

// New returns a new engine, Run must be called for it to do anything.
func New(cfg Config) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	e := &Engine{
		actions:    make(chan loopAction),
		stopped:    make(chan struct{}),
		changeC:    make(chan struct{}),
		classifier: cfg.Classifier,
		onDismiss:  cfg.OnDismiss,
		now:        cfg.Now,
		logger:     cfg.Logger,
	}

	var err error
	e.tracker, err = tracker.NewTracker(tracker.TrackerConfig{
		OnChange: cfg.OnChange,
		Now:      cfg.Now,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create tracker: %w", err)
	}

	// The queue needs the submitter and the submitter needs the queue.
	submitter := queue.SubmitterFunc(func(ctx context.Context, job model.Job) { e.submitter.Submit(ctx, job) })
	e.queue, err = queue.NewManager(queue.ManagerConfig{
		Tracker:   e.tracker,
		Submitter: submitter,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create queue: %w", err)
	}

	e.poller, err = poller.NewPoller(poller.PollerConfig{
		Client:   cfg.Client,
		Tracker:  e.tracker,
		History:  cfg.History,
		Queue:    e.queue,
		Dispatch: e.post,
		Interval: cfg.PollInterval,
		Now:      cfg.Now,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create poller: %w", err)
	}

	e.submitter, err = submit.NewSubmitter(submit.SubmitterConfig{
		Client:   cfg.Client,
		Tracker:  e.tracker,
		Poller:   e.poller,
		History:  cfg.History,
		Queue:    e.queue,
		Dispatch: e.post,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create submitter: %w", err)
	}

	e.batch, err = batch.NewController(batch.ControllerConfig{
		Queue:     e.queue,
		Tracker:   e.tracker,
		Delay:     cfg.DismissDelay,
		Dispatch:  e.post,
		OnDismiss: e.onDismiss,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create batch controller: %w", err)
	}

	return e, nil
}

// Run runs the event loop until the context is cancelled. It can only be called once.
func (e *Engine) Run(ctx context.Context) error {
	started := false
	e.running.Do(func() { started = true })
	if !started {
		return fmt.Errorf("engine already ran")
	}

	e.runCtx = ctx
	defer close(e.stopped)

	e.logger.Debugf("event loop started")
	for {
		select {
		case <-ctx.Done():
			e.poller.Stop()
			e.batch.Cancel()
			e.logger.Debugf("event loop stopped")
			return nil
		case a := <-e.actions:
			a.run()
			if !a.readOnly {
				e.afterChange()
			}
		}
	}
}

// afterChange advances the queue and re-evaluates the batch after every loop action.
func (e *Engine) afterChange() {
	e.queue.TryAdvance(e.runCtx)

	if e.queue.Len() == 0 && e.queue.InFlight() == "" {
		e.tracker.ResetCurrent()
	}
	e.batch.Evaluate()

	e.changeMu.Lock()
	close(e.changeC)
	e.changeC = make(chan struct{})
	e.changeMu.Unlock()
}

// loopAction is a unit of work for the event loop. Read only actions don't
// count as a state change.
type loopAction struct {
	run      func()
	readOnly bool
}

// post queues f on the loop. Once the loop has exited f is dropped.
func (e *Engine) post(f func()) {
	select {
	case e.actions <- loopAction{run: f}:
	case <-e.stopped:
	}
}

// do runs f on the loop and waits for it.
func (e *Engine) do(ctx context.Context, f func() error) error {
	return e.exec(ctx, f, false)
}

// view runs f on the loop and waits for it, f must not mutate any state.
func (e *Engine) view(ctx context.Context, f func() error) error {
	return e.exec(ctx, f, true)
}

func (e *Engine) exec(ctx context.Context, f func() error, readOnly bool) error {
	errC := make(chan error, 1)
	action := loopAction{run: func() { errC <- f() }, readOnly: readOnly}

	select {
	case e.actions <- action:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	return <-errC
}

// Enqueue classifies the documents and queues the supported ones in order.
// Unsupported documents are recorded as skipped and never sent. Enqueueing on
// top of a finished batch replaces it.
func (e *Engine) Enqueue(ctx context.Context, docs ...model.Document) ([]model.StatusRecord, error) {
	type classified struct {
		doc model.Document
		res classify.Result
		err error
	}

	// Classification reads the documents, keep it out of the loop.
	cs := make([]classified, 0, len(docs))
	for _, doc := range docs {
		res, err := e.classifier.Classify(ctx, doc)
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		cs = append(cs, classified{doc: doc, res: res, err: err})
	}

	var records []model.StatusRecord
	err := e.do(ctx, func() error {
		if e.tracker.Len() > 0 && e.tracker.AllTerminal() && e.queue.Len() == 0 && e.queue.InFlight() == "" {
			e.batch.Cancel()
			e.tracker.Clear()
			e.logger.Debugf("previous batch replaced")
		}

		var jobs []model.Job
		for _, c := range cs {
			id := e.newID()
			rec := model.StatusRecord{
				JobID:     id,
				Name:      c.doc.Name,
				Kind:      c.res.Kind,
				SizeBytes: c.doc.Size,
				Source:    c.doc,
			}

			if c.err != nil {
				rec.Status = model.JobStatusSkipped
				rec.Stage = StageSkipped
				rec.Error = UnsupportedMessage
				if !errors.Is(c.err, model.ErrUnsupportedKind) {
					rec.Error = c.err.Error()
				}
				e.logger.Warningf("skipping %s: %s", c.doc.Name, c.err)
			} else {
				rec.Status = model.JobStatusQueued
				rec.Stage = StageQueued
				jobs = append(jobs, e.newJob(id, c.doc, c.res))
			}

			if err := e.tracker.Add(rec); err != nil {
				return fmt.Errorf("could not track %s: %w", c.doc.Name, err)
			}
			records = append(records, rec)
		}

		e.queue.Enqueue(jobs...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Retry queues a failed job again at the head of the queue. The document is
// classified again from its source.
func (e *Engine) Retry(ctx context.Context, jobID string) error {
	rec, err := e.tracker.Get(jobID)
	if err != nil {
		return err
	}
	if rec.Status != model.JobStatusError {
		return fmt.Errorf("job %s is %s: %w", jobID, rec.Status, model.ErrInvalidTransition)
	}

	res, err := e.classifier.Classify(ctx, rec.Source)
	if err != nil {
		return fmt.Errorf("could not validate %s: %w", rec.Name, err)
	}

	return e.do(ctx, func() error {
		patch := model.StatusPatch{}.WithStage(StageQueued).WithProgress(0)
		if err := e.tracker.Transition(jobID, model.JobStatusQueued, patch); err != nil {
			return err
		}
		e.queue.EnqueueRetry(e.newJob(jobID, rec.Source, res))
		return nil
	})
}

// Dismiss removes a job that is not in flight. Queued jobs are also removed
// from the queue.
func (e *Engine) Dismiss(ctx context.Context, jobID string) error {
	return e.do(ctx, func() error {
		rec, err := e.tracker.Get(jobID)
		if err != nil {
			return err
		}
		if rec.Status.Active() {
			return fmt.Errorf("job %s: %w", jobID, model.ErrInFlight)
		}

		e.queue.Remove(jobID)
		return e.tracker.Remove(jobID)
	})
}

// DismissAll removes every job in a terminal state.
func (e *Engine) DismissAll(ctx context.Context) error {
	return e.do(ctx, func() error {
		for _, r := range e.tracker.List() {
			if !r.Status.Terminal() {
				continue
			}
			if err := e.tracker.Remove(r.JobID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Statuses returns the status records in submission order.
func (e *Engine) Statuses() []model.StatusRecord { return e.tracker.List() }

// Status returns one status record.
func (e *Engine) Status(jobID string) (*model.StatusRecord, error) { return e.tracker.Get(jobID) }

// Current returns the progress of the job being converted right now.
func (e *Engine) Current() (model.CurrentJob, bool) { return e.tracker.Current() }

// WaitSettled blocks until nothing is queued or in flight and every record is
// terminal. It returns a snapshot of the records taken at that moment.
func (e *Engine) WaitSettled(ctx context.Context) ([]model.StatusRecord, error) {
	for {
		e.changeMu.Lock()
		changed := e.changeC
		e.changeMu.Unlock()

		var records []model.StatusRecord
		settled := false
		err := e.view(ctx, func() error {
			if e.queue.Len() == 0 && e.queue.InFlight() == "" && e.tracker.AllTerminal() {
				settled = true
				records = e.tracker.List()
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		if settled {
			return records, nil
		}

		select {
		case <-changed:
		case <-e.stopped:
			return nil, ErrStopped
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (e *Engine) newID() string {
	return ulid.MustNew(ulid.Timestamp(e.now()), rand.Reader).String()
}

func (e *Engine) newJob(id string, doc model.Document, res classify.Result) model.Job {
	return model.Job{
		ID:         id,
		Name:       doc.Name,
		Kind:       res.Kind,
		SizeBytes:  doc.Size,
		PageHint:   res.PageHint,
		Content:    doc.Content,
		EnqueuedAt: e.now(),
	}
}
