package turn

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/parley/internal/fsm"
)

// Pipeline turns one accepted utterance into a spoken reply.
type Pipeline interface {
	Respond(ctx context.Context, utterance string) error
}

// PipelineFunc adapts a function into a Pipeline.
type PipelineFunc func(context.Context, string) error

// Respond calls f(ctx, utterance).
func (f PipelineFunc) Respond(ctx context.Context, utterance string) error {
	return f(ctx, utterance)
}

// Stream is the transcript source as seen by policies that pause capture.
type Stream interface {
	Pause(context.Context) error
	Resume(context.Context) error
}

// Observer receives user-facing coordinator notifications.
type Observer interface {
	Listening()
	Partial(text string)
	Discarded(text string, reason Reason)
	Submitting(text string)
	Settled(utterance string, elapsed time.Duration, err error)
	Diagnostic(Event)
}

// Observers fans notifications out in order.
type Observers []Observer

func (o Observers) Listening() {
	for _, obs := range o {
		obs.Listening()
	}
}

func (o Observers) Partial(text string) {
	for _, obs := range o {
		obs.Partial(text)
	}
}

func (o Observers) Discarded(text string, reason Reason) {
	for _, obs := range o {
		obs.Discarded(text, reason)
	}
}

func (o Observers) Submitting(text string) {
	for _, obs := range o {
		obs.Submitting(text)
	}
}

func (o Observers) Settled(utterance string, elapsed time.Duration, err error) {
	for _, obs := range o {
		obs.Settled(utterance, elapsed, err)
	}
}

func (o Observers) Diagnostic(event Event) {
	for _, obs := range o {
		obs.Diagnostic(event)
	}
}

type noopStream struct{}

func (noopStream) Pause(context.Context) error  { return nil }
func (noopStream) Resume(context.Context) error { return nil }

// Coordinator gates transcript events into at most one in-flight submission.
type Coordinator struct {
	logger   *slog.Logger
	policy   Policy
	pipeline Pipeline
	stream   Stream
	observer Observer
	now      func() time.Time

	mu          sync.Mutex
	state       fsm.State
	submissions int
}

// NewCoordinator constructs a coordinator; nil collaborators become no-ops.
func NewCoordinator(
	logger *slog.Logger,
	policy Policy,
	pipeline Pipeline,
	stream Stream,
	observer Observer,
) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if policy == nil {
		policy = NewEchoPolicy()
	}
	if pipeline == nil {
		pipeline = PipelineFunc(func(context.Context, string) error { return nil })
	}
	if stream == nil {
		stream = noopStream{}
	}
	if observer == nil {
		observer = Observers(nil)
	}

	return &Coordinator{
		logger:   logger,
		policy:   policy,
		pipeline: pipeline,
		stream:   stream,
		observer: observer,
		now:      time.Now,
		state:    fsm.StateIdle,
	}
}

// Start moves the coordinator from idle to listening.
func (c *Coordinator) Start() error {
	return c.transition(fsm.EventStart)
}

// Stop returns the coordinator to idle. Later turns are discarded.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == fsm.StateListening || c.state == fsm.StateResponding {
		c.state = fsm.StateIdle
	}
}

// Fail parks the coordinator in the error state. Later turns are discarded.
func (c *Coordinator) Fail() {
	_ = c.transition(fsm.EventFail)
}

// State returns the current lifecycle state.
func (c *Coordinator) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a submission is in flight.
func (c *Coordinator) Busy() bool {
	return c.State() == fsm.StateResponding
}

// Submissions returns the number of utterances handed to the pipeline.
func (c *Coordinator) Submissions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submissions
}

// Policy returns the active suppression policy.
func (c *Coordinator) Policy() Policy { return c.policy }

// OnEvent handles one transcript event. A submitted turn blocks until the
// reply has played; events delivered meanwhile are discarded as busy.
func (c *Coordinator) OnEvent(ctx context.Context, event Event) {
	switch e := event.(type) {
	case SessionBegun:
		c.logger.Info("transcription session begun", "session_id", e.SessionID, "expires_at", e.ExpiresAt)
		if c.State() == fsm.StateListening {
			c.observer.Listening()
		}
	case SessionTerminated:
		c.logger.Info("transcription session terminated",
			"audio_seconds", e.AudioSeconds,
			"session_seconds", e.SessionSeconds,
		)
		c.observer.Diagnostic(e)
	case Error:
		c.logger.Warn("transcript source error", "error", e.Message())
		c.observer.Diagnostic(e)
	case Turn:
		c.onTurn(ctx, e)
	}
}

func (c *Coordinator) onTurn(ctx context.Context, t Turn) {
	c.mu.Lock()
	switch c.state {
	case fsm.StateListening:
	case fsm.StateResponding:
		c.mu.Unlock()
		c.discard(t.Text, ReasonBusy)
		return
	default:
		c.mu.Unlock()
		c.discard(t.Text, ReasonIdle)
		return
	}

	if strings.TrimSpace(t.Text) == "" {
		c.mu.Unlock()
		c.discard(t.Text, ReasonBlank)
		return
	}

	decision := c.policy.Observe(c.now(), t)
	if !decision.Submit {
		c.mu.Unlock()
		if decision.Reason == ReasonPartial {
			c.observer.Partial(t.Text)
			return
		}
		c.discard(t.Text, decision.Reason)
		return
	}

	next, err := fsm.Transition(c.state, fsm.EventSubmit)
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("submit transition rejected", "error", err.Error())
		return
	}
	c.state = next
	c.submissions++
	c.mu.Unlock()

	c.submit(ctx, decision.Text)
}

func (c *Coordinator) submit(ctx context.Context, utterance string) {
	logger := c.logger.With("turn_id", uuid.NewString())
	logger.Info("utterance accepted", "policy", c.policy.Name(), "chars", len(utterance))
	c.observer.Submitting(utterance)

	started := c.now()
	paused := false
	var respondErr error

	defer func() {
		c.mu.Lock()
		c.policy.Settle(c.now())
		if c.state == fsm.StateResponding {
			c.state = fsm.StateListening
		}
		c.mu.Unlock()

		if paused && ctx.Err() == nil {
			if err := c.stream.Resume(ctx); err != nil {
				logger.Error("resume transcript stream failed", "error", err.Error())
				c.observer.Diagnostic(Error{Err: err})
			}
		}

		elapsed := c.now().Sub(started)
		if respondErr != nil {
			logger.Error("reply failed", "error", respondErr.Error(), "elapsed_ms", elapsed.Milliseconds())
		} else {
			logger.Info("reply complete", "elapsed_ms", elapsed.Milliseconds())
		}
		c.observer.Settled(utterance, elapsed, respondErr)
	}()

	if c.policy.PausesCapture() {
		if err := c.stream.Pause(ctx); err != nil {
			logger.Warn("pause transcript stream failed", "error", err.Error())
		} else {
			paused = true
		}
	}

	respondErr = c.pipeline.Respond(ctx, utterance)
}

func (c *Coordinator) discard(text string, reason Reason) {
	c.logger.Debug("turn discarded", "reason", string(reason), "chars", len(text))
	c.observer.Discarded(text, reason)
}

func (c *Coordinator) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}
