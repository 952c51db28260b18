// Package indicator mirrors conversation state as desktop notifications and
// short synthesized audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/turn"
)

// Notifier implements turn.Observer with desktop notifications and cues.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	notifyFn  func(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error)
	dismissFn func(ctx context.Context, id uint32) error
	cueFn     func(ctx context.Context, kind cueKind) error

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
	cues           sync.WaitGroup
}

// NewNotifier creates an indicator from config.
func NewNotifier(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Notifier{
		cfg:       cfg,
		logger:    logger,
		messages:  messagesFromEnv(),
		notifyFn:  desktopNotify,
		dismissFn: desktopDismiss,
		cueFn:     emitCue,
	}
}

func (n *Notifier) Listening() {
	n.playCue(cueListening)
	n.show(context.Background(), 0, n.messages.listening)
}

func (n *Notifier) Partial(string) {}

func (n *Notifier) Discarded(string, turn.Reason) {}

func (n *Notifier) Submitting(string) {
	n.playCue(cueAccepted)
	n.show(context.Background(), 0, n.messages.thinking)
}

func (n *Notifier) Settled(_ string, _ time.Duration, err error) {
	if err == nil {
		n.playCue(cueComplete)
		return
	}
	n.ShowError(context.Background(), "")
}

func (n *Notifier) Diagnostic(event turn.Event) {
	if ev, ok := event.(turn.Error); ok {
		n.ShowError(context.Background(), ev.Message())
	}
}

// ShowError plays the error cue and shows text, or the default error text.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	n.playCue(cueError)
	if strings.TrimSpace(text) == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	n.show(ctx, timeout, text)
}

// Close dismisses the notification and waits for queued cues.
func (n *Notifier) Close(ctx context.Context) {
	n.cues.Wait()
	if !n.cfg.Enable {
		return
	}

	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()
	if id == 0 {
		return
	}
	n.run(ctx, func(ctx context.Context) error { return n.dismissFn(ctx, id) })
}

// show replaces the current notification. A zero timeout keeps it until replaced.
func (n *Notifier) show(ctx context.Context, timeoutMS int, text string) {
	if !n.cfg.Enable {
		return
	}

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "parley"
	}

	n.run(ctx, func(ctx context.Context) error {
		n.mu.Lock()
		replaceID := n.notificationID
		n.mu.Unlock()

		id, err := n.notifyFn(ctx, appName, replaceID, text, timeoutMS)
		if err != nil {
			return err
		}

		n.mu.Lock()
		n.notificationID = id
		n.mu.Unlock()
		return nil
	})
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.logger.Debug("indicator dispatch failed", "error", err.Error())
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	n.cues.Add(1)
	go func() {
		defer n.cues.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := n.cueFn(ctx, kind); err != nil {
			n.logger.Debug("indicator audio cue failed", "cue", kind.String(), "error", err.Error())
		}
	}()
}
