// Package submit sends admitted jobs to the conversion backend.
package submit

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/convq/internal/converter"
	"github.com/slok/convq/internal/log"
	"github.com/slok/convq/internal/model"
	"github.com/slok/convq/internal/poller"
)

const (
	// StageWaiting is the stage of a PDF accepted by the backend.
	StageWaiting = "Waiting for conversion..."

	// PDFStartFailedMessage is used when the backend refuses a PDF without a message.
	PDFStartFailedMessage = "PDF conversion failed to start"
	// WordFailedMessage is used when the backend fails a DOCX without a message.
	WordFailedMessage = "Word to Markdown conversion failed"
)

// Tracker is the part of the status tracker the submitter mutates.
type Tracker interface {
	Transition(jobID string, to model.JobStatus, patch model.StatusPatch) error
}

// Poller starts following an asynchronous conversion.
type Poller interface {
	Start(ctx context.Context, conversionID, jobID, jobName string) *poller.Session
}

// SubmitterConfig is the configuration for the job submitter.
type SubmitterConfig struct {
	Client  converter.Client
	Tracker Tracker
	Poller  Poller
	History poller.History
	Queue   poller.Releaser
	// Dispatch runs the application of a submission result on the owner goroutine.
	Dispatch func(func())
	Logger   log.Logger
}

func (c *SubmitterConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}
	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}
	if c.Poller == nil {
		return fmt.Errorf("poller is required")
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
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "submit.Submitter"})
	return nil
}

// Submitter uploads jobs and routes the outcome.
type Submitter struct {
	client   converter.Client
	tracker  Tracker
	poller   Poller
	history  poller.History
	queue    poller.Releaser
	dispatch func(func())
	logger   log.Logger
}

// NewSubmitter returns a new submitter.
func NewSubmitter(cfg SubmitterConfig) (*Submitter, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Submitter{
		client:   cfg.Client,
		tracker:  cfg.Tracker,
		poller:   cfg.Poller,
		history:  cfg.History,
		queue:    cfg.Queue,
		dispatch: cfg.Dispatch,
		logger:   cfg.Logger,
	}, nil
}

// Submit uploads the job in the background. The job must already be uploading.
func (s *Submitter) Submit(ctx context.Context, job model.Job) {
	logger := s.logger.WithValues(log.Kv{"job": job.ID, "kind": job.Kind})

	switch {
	case job.Kind.Async():
		go func() {
			id, err := s.client.StartConversion(ctx, job)
			s.dispatch(func() { s.applyStart(ctx, logger, job, id, err) })
		}()
	case job.Kind == model.JobKindDOCX:
		go func() {
			res, err := s.client.ConvertWord(ctx, job)
			s.dispatch(func() { s.applyWord(ctx, logger, job, res, err) })
		}()
	default:
		s.fail(logger, job, fmt.Sprintf("unsupported document kind %q", job.Kind))
	}
}

func (s *Submitter) applyStart(ctx context.Context, logger log.Logger, job model.Job, conversionID string, err error) {
	if err != nil {
		s.fail(logger, job, failureMessage(err, PDFStartFailedMessage))
		return
	}

	patch := model.StatusPatch{}.WithStage(StageWaiting)
	if err := s.tracker.Transition(job.ID, model.JobStatusProcessing, patch); err != nil {
		logger.Errorf("could not move job to processing: %s", err)
		s.queue.Release(job.ID)
		return
	}

	s.poller.Start(ctx, conversionID, job.ID, job.Name)
	logger.Debugf("conversion %s started", conversionID)
}

func (s *Submitter) applyWord(ctx context.Context, logger log.Logger, job model.Job, res *model.ConversionResult, err error) {
	if err != nil {
		s.fail(logger, job, failureMessage(err, WordFailedMessage))
		return
	}
	if res == nil {
		s.fail(logger, job, WordFailedMessage)
		return
	}

	if _, err := s.history.Add(ctx, *res); err != nil {
		logger.Errorf("could not store conversion in history: %s", err)
	}

	patch := model.StatusPatch{}.WithStage(poller.StageCompleted).WithProgress(100).WithResult(*res)
	if err := s.tracker.Transition(job.ID, model.JobStatusCompleted, patch); err != nil {
		logger.Errorf("could not complete job: %s", err)
	}
	s.queue.Release(job.ID)
	logger.Infof("conversion of %s completed", job.Name)
}

func (s *Submitter) fail(logger log.Logger, job model.Job, msg string) {
	patch := model.StatusPatch{}.WithStage(poller.StageError).WithProgress(0).WithError(msg)
	if err := s.tracker.Transition(job.ID, model.JobStatusError, patch); err != nil {
		logger.Errorf("could not fail job: %s", err)
	}
	s.queue.Release(job.ID)
	logger.Warningf("submission of %s failed: %s", job.Name, msg)
}

// failureMessage returns the backend message, or def when the backend gave none.
func failureMessage(err error, def string) string {
	var berr *converter.BackendError
	if errors.As(err, &berr) && berr.Error() == "" {
		return def
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return def
}
