// Package batch dismisses cleanly resolved batches after a delay.
package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/slok/convq/internal/log"
)

// DefaultDelay is the time a resolved batch stays visible.
const DefaultDelay = 5 * time.Second

// Queue is the observable state of the queue manager.
type Queue interface {
	Len() int
	InFlight() string
}

// Tracker is the part of the status tracker the controller needs.
type Tracker interface {
	Len() int
	AllTerminal() bool
	HasErrors() bool
	Clear()
}

// ControllerConfig is the configuration for the batch lifecycle controller.
type ControllerConfig struct {
	Queue   Queue
	Tracker Tracker
	Delay   time.Duration
	// Dispatch runs the timer callback on the owner goroutine.
	Dispatch func(func())
	// OnDismiss is called after a batch has been cleared.
	OnDismiss func()
	Logger    log.Logger
}

func (c *ControllerConfig) defaults() error {
	if c.Queue == nil {
		return fmt.Errorf("queue is required")
	}
	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}
	if c.Delay <= 0 {
		c.Delay = DefaultDelay
	}
	if c.Dispatch == nil {
		c.Dispatch = func(f func()) { f() }
	}
	if c.OnDismiss == nil {
		c.OnDismiss = func() {}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "batch.Controller"})
	return nil
}

// Controller schedules the auto dismissal of a batch.
type Controller struct {
	mu    sync.Mutex
	timer *time.Timer
	// gen identifies the scheduled timer, a fired timer with an old generation was cancelled.
	gen uint64

	queue     Queue
	tracker   Tracker
	delay     time.Duration
	dispatch  func(func())
	onDismiss func()
	logger    log.Logger
}

// NewController returns a new controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Controller{
		queue:     cfg.Queue,
		tracker:   cfg.Tracker,
		delay:     cfg.Delay,
		dispatch:  cfg.Dispatch,
		onDismiss: cfg.OnDismiss,
		logger:    cfg.Logger,
	}, nil
}

// Resolved returns true when the batch can be dismissed: nothing queued or in
// flight, every record terminal and none in error.
func (c *Controller) Resolved() bool {
	return c.queue.Len() == 0 &&
		c.queue.InFlight() == "" &&
		c.tracker.Len() > 0 &&
		c.tracker.AllTerminal() &&
		!c.tracker.HasErrors()
}

// Evaluate must be called after every state change. It starts the dismissal
// timer when the batch becomes resolved and cancels it when it stops being so.
func (c *Controller) Evaluate() {
	resolved := c.Resolved()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !resolved {
		c.cancel()
		return
	}
	if c.timer != nil {
		return
	}

	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.delay, func() {
		c.dispatch(func() { c.fire(gen) })
	})
	c.logger.Debugf("batch resolved, dismissing in %s", c.delay)
}

// Cancel stops a pending dismissal.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancel()
}

// Pending returns true while a dismissal is scheduled.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Controller) cancel() {
	if c.timer == nil {
		return
	}
	c.timer.Stop()
	c.timer = nil
	c.gen++
	c.logger.Debugf("batch dismissal cancelled")
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	// The state may have changed between the timer firing and now.
	if !c.Resolved() {
		c.logger.Debugf("batch no longer resolved, dismissal deferred")
		return
	}

	c.tracker.Clear()
	c.logger.Infof("batch dismissed")
	c.onDismiss()
}
