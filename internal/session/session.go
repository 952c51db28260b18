// Package session runs one conversation: it owns the transcript event loop,
// pauses the source around replies, and answers control socket requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/fsm"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/turn"
)

var (
	// ErrAlreadyStarted is returned when Run is called more than once.
	ErrAlreadyStarted = errors.New("conversation already started")
	// ErrTerminatedByServer reports a transcription session the server ended on its own.
	ErrTerminatedByServer = errors.New("transcription session terminated by server")
)

// Source is the transcript event source. Events must outlive Start/Stop
// cycles. Generation names the live connection and matches the Connection
// stamped on its turn.Error events.
type Source interface {
	Start(context.Context) error
	Stop(ctx context.Context, terminate bool) (turn.SessionTerminated, error)
	Events() <-chan turn.Event
	Generation() uint64
}

// Greeter speaks an assistant line outside of a user turn.
type Greeter interface {
	Speak(ctx context.Context, text string) error
}

// Options carries the optional parts of a controller.
type Options struct {
	ConversationID string
	Greeting       string
	Greeter        Greeter
	HistoryLen     func() int
	Counters       func() map[string]float64
}

// Result is the outcome of one Run.
type Result struct {
	ConversationID string
	State          fsm.State
	Submissions    int
	Err            error
	StopRequested  bool
	Termination    turn.SessionTerminated
	StartedAt      time.Time
	FinishedAt     time.Time
}

// Controller drives a turn.Coordinator from a Source.
type Controller struct {
	logger      *slog.Logger
	source      Source
	coordinator *turn.Coordinator
	observer    turn.Observer
	opts        Options

	started   atomic.Bool
	startedAt time.Time

	mu            sync.Mutex
	cancel        context.CancelFunc
	stopRequested bool
	resumeErr     error
}

// NewController wires a coordinator around policy and pipeline with the
// controller as its pausable stream.
func NewController(
	logger *slog.Logger,
	source Source,
	policy turn.Policy,
	pipeline turn.Pipeline,
	observer turn.Observer,
	opts Options,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if observer == nil {
		observer = turn.Observers{}
	}
	if opts.HistoryLen == nil {
		opts.HistoryLen = func() int { return 0 }
	}

	c := &Controller{
		logger:   logger,
		source:   source,
		observer: observer,
		opts:     opts,
	}
	c.coordinator = turn.NewCoordinator(logger, policy, pipeline, c, observer)
	return c
}

// Coordinator exposes the wrapped coordinator.
func (c *Controller) Coordinator() *turn.Coordinator {
	return c.coordinator
}

// Run starts listening and consumes events until ctx ends, a stop is
// requested, or the source fails.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{ConversationID: c.opts.ConversationID, StartedAt: time.Now()}
	finish := func(err error) Result {
		result.Err = err
		result.State = c.coordinator.State()
		result.Submissions = c.coordinator.Submissions()
		result.FinishedAt = time.Now()
		c.mu.Lock()
		result.StopRequested = c.stopRequested
		c.mu.Unlock()
		return result
	}

	if !c.started.CompareAndSwap(false, true) {
		return finish(ErrAlreadyStarted)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancel = cancel
	c.startedAt = result.StartedAt
	c.mu.Unlock()

	if err := c.coordinator.Start(); err != nil {
		return finish(err)
	}

	if c.opts.Greeting != "" && c.opts.Greeter != nil {
		if err := c.opts.Greeter.Speak(runCtx, c.opts.Greeting); err != nil && runCtx.Err() == nil {
			c.logger.Warn("greeting failed", "error", err)
			c.observer.Diagnostic(turn.Error{Err: err})
		}
	}

	if err := c.source.Start(runCtx); err != nil {
		if runCtx.Err() != nil {
			c.coordinator.Stop()
			return finish(nil)
		}
		c.coordinator.Fail()
		return finish(fmt.Errorf("start listening: %w", err))
	}

	err := c.loop(runCtx)

	terminate := err == nil
	cleanupCtx, cleanupCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cleanupCancel()
	summary, stopErr := c.source.Stop(cleanupCtx, terminate)
	if stopErr != nil {
		c.logger.Warn("stop listening failed", "error", stopErr)
	}
	result.Termination = summary

	if err != nil {
		c.coordinator.Fail()
		c.logger.Error("conversation ended", "error", err, "kind", kindLabel(err))
	} else {
		c.coordinator.Stop()
		c.logger.Info("conversation ended", "audio_seconds", summary.AudioSeconds)
	}
	return finish(err)
}

func (c *Controller) loop(ctx context.Context) error {
	events := c.source.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return fault.Wrap(fault.Connection, "transcription events", errors.New("source closed"))
			}
			c.coordinator.OnEvent(ctx, event)
			if err := c.fatal(event); err != nil {
				return err
			}
			if err := c.takeResumeErr(); err != nil {
				return err
			}
		}
	}
}

// fatal reports events that end the conversation. The source never forwards
// a termination it asked for, so any termination seen here is unprompted.
// Errors from a connection already replaced by Resume are not fatal.
func (c *Controller) fatal(event turn.Event) error {
	switch ev := event.(type) {
	case turn.Error:
		if !fault.EndsSession(ev.Err) {
			return nil
		}
		if current := c.source.Generation(); ev.Connection != 0 && ev.Connection != current {
			c.logger.Warn("stale transcription error ignored",
				"error", ev.Err,
				"connection", ev.Connection,
				"current", current,
			)
			return nil
		}
		return ev.Err
	case turn.SessionTerminated:
		return fault.Wrap(fault.Connection, "transcription session", ErrTerminatedByServer)
	}
	return nil
}

// Pause stops the source and ends its transcription session. The source is
// stopped even when the polite termination fails, so Resume always follows.
func (c *Controller) Pause(ctx context.Context) error {
	summary, err := c.source.Stop(ctx, true)
	if err != nil {
		c.logger.Warn("transcription terminate failed during pause", "error", err)
		return nil
	}
	c.logger.Debug("listening paused", "audio_seconds", summary.AudioSeconds)
	return nil
}

// Resume reconnects the source. A failure ends Run after the current event.
func (c *Controller) Resume(ctx context.Context) error {
	if err := c.source.Start(ctx); err != nil {
		c.mu.Lock()
		c.resumeErr = fmt.Errorf("resume listening: %w", err)
		c.mu.Unlock()
		return err
	}
	return nil
}

func (c *Controller) takeResumeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.resumeErr
	c.resumeErr = nil
	return err
}

// Handle serves control socket commands for the running conversation.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	state := string(c.coordinator.State())
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{OK: true, State: state, Message: "status", Status: c.status()}
	case ipc.CommandStop:
		return c.requestStop(state)
	default:
		return ipc.Response{OK: false, State: state, Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

func (c *Controller) status() *ipc.Status {
	c.mu.Lock()
	startedAt := c.startedAt
	c.mu.Unlock()

	status := &ipc.Status{
		ConversationID: c.opts.ConversationID,
		Policy:         c.coordinator.Policy().Name(),
		Submissions:    c.coordinator.Submissions(),
		HistoryLength:  c.opts.HistoryLen(),
	}
	if !startedAt.IsZero() {
		status.UptimeSeconds = time.Since(startedAt).Seconds()
	}
	if c.opts.Counters != nil {
		status.Counters = c.opts.Counters()
	}
	return status
}

func (c *Controller) requestStop(state string) ipc.Response {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return ipc.Response{OK: false, State: state, Error: "conversation not running"}
	}
	if c.stopRequested {
		return ipc.Response{OK: true, State: state, Message: "stop already requested"}
	}
	c.stopRequested = true
	c.cancel()
	return ipc.Response{OK: true, State: state, Message: "stop requested"}
}

func kindLabel(err error) string {
	if kind, ok := fault.KindOf(err); ok {
		return string(kind)
	}
	return "unknown"
}
