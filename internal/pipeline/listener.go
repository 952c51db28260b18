// Package pipeline connects the microphone to the streaming transcription
// service and delivers its events in arrival order.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/parley/internal/assemblyai"
	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/turn"
)

// ErrAlreadyListening is returned by Start while a connection is open.
var ErrAlreadyListening = errors.New("listener already started")

const (
	eventBuffer      = 64
	terminateTimeout = 5 * time.Second
)

type transcriptionConn interface {
	Events() <-chan turn.Event
	SendAudio(pcm []byte) error
	Terminate(ctx context.Context) (turn.SessionTerminated, error)
	Close() error
}

type captureSource interface {
	Chunks() <-chan []byte
	Stop() error
	RawPCM() []byte
	BytesCaptured() int64
}

// Listener owns microphone capture plus one transcription connection at a
// time. Start and Stop may be repeated; Events spans every connection.
type Listener struct {
	cfg    config.Config
	apiKey string
	logger *slog.Logger

	selectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
	dial         func(ctx context.Context, cfg assemblyai.Config) (transcriptionConn, error)
	startCapture func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (captureSource, error)

	events chan turn.Event

	mu         sync.Mutex
	active     *connection
	selection  *audio.Selection
	generation uint64
}

// connection is the per-Start state torn down by Stop.
type connection struct {
	generation uint64
	conn       transcriptionConn
	capture    captureSource

	sendDone    chan struct{}
	stopForward chan struct{}
	forwardDone chan struct{}
}

// NewListener builds a listener from runtime config.
func NewListener(cfg config.Config, apiKey string, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	l := &Listener{
		cfg:          cfg,
		apiKey:       apiKey,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		startCapture: func(ctx context.Context, device audio.Device, opts audio.CaptureOptions) (captureSource, error) {
			return audio.StartCapture(ctx, device, opts)
		},
		events: make(chan turn.Event, eventBuffer),
	}
	l.dial = func(ctx context.Context, ac assemblyai.Config) (transcriptionConn, error) {
		return assemblyai.Dial(ctx, ac, l.logger)
	}
	return l
}

// Events yields transcription events from every connection in arrival order.
// It is never closed.
func (l *Listener) Events() <-chan turn.Event {
	return l.events
}

// TranscriptionConfig maps runtime config onto one streaming session.
func TranscriptionConfig(cfg config.Config, apiKey string) assemblyai.Config {
	t := cfg.Transcription
	return assemblyai.Config{
		APIKey:                       apiKey,
		Endpoint:                     assemblyai.Endpoint(t.Host),
		SampleRate:                   t.SampleRate,
		FormatTurns:                  t.FormatTurns,
		EndOfTurnConfidenceThreshold: t.EndOfTurnConfidenceThreshold,
		MinEndOfTurnSilence:          time.Duration(t.MinEndOfTurnSilenceMS) * time.Millisecond,
		MaxTurnSilence:               time.Duration(t.MaxTurnSilenceMS) * time.Millisecond,
	}
}

// Start resolves the input device once, opens a transcription session, and
// starts streaming microphone audio into it.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active != nil {
		return ErrAlreadyListening
	}

	if l.selection == nil {
		selection, err := l.selectDevice(ctx, l.cfg.Audio.Input, l.cfg.Audio.Fallback)
		if err != nil {
			return err
		}
		if selection.Warning != "" {
			l.logger.Warn(selection.Warning)
		}
		l.logger.Info("input device selected", "device", describeDevice(selection.Device), "fallback", selection.Fallback)
		l.selection = &selection
	}

	conn, err := l.dial(ctx, TranscriptionConfig(l.cfg, l.apiKey))
	if err != nil {
		return err
	}

	capture, err := l.startCapture(ctx, l.selection.Device, audio.CaptureOptions{
		SampleRate: l.cfg.Transcription.SampleRate,
		KeepRaw:    l.cfg.Debug.EnableAudioDump,
	})
	if err != nil {
		_ = conn.Close()
		return err
	}

	l.generation++
	c := &connection{
		generation:  l.generation,
		conn:        conn,
		capture:     capture,
		sendDone:    make(chan struct{}),
		stopForward: make(chan struct{}),
		forwardDone: make(chan struct{}),
	}
	go l.sendLoop(c)
	go l.forward(c)

	l.active = c
	return nil
}

// Stop halts capture and closes the connection. With terminate set, the
// session is ended politely first. The termination summary is returned to the
// caller and never delivered on Events.
func (l *Listener) Stop(ctx context.Context, terminate bool) (turn.SessionTerminated, error) {
	l.mu.Lock()
	c := l.active
	l.active = nil
	l.mu.Unlock()

	if c == nil {
		return turn.SessionTerminated{}, nil
	}

	_ = c.capture.Stop()
	close(c.stopForward)
	<-c.sendDone
	<-c.forwardDone

	var (
		summary turn.SessionTerminated
		err     error
	)
	if terminate {
		termCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), terminateTimeout)
		summary, err = c.conn.Terminate(termCtx)
		cancel()
		if err != nil {
			l.logger.Warn("transcription terminate failed", "error", err)
		} else {
			l.logger.Info("transcription session terminated",
				"audio_seconds", summary.AudioSeconds,
				"session_seconds", summary.SessionSeconds,
			)
		}
	}
	_ = c.conn.Close()

	l.logger.Debug("capture stopped", "bytes_captured", c.capture.BytesCaptured())
	l.writeDebugAudio(c.capture.RawPCM())
	return summary, err
}

// Generation numbers the most recent connection. It starts at zero and
// advances on every successful Start.
func (l *Listener) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.generation
}

// Listening reports whether a connection is open.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active != nil
}

// sendLoop forwards capture chunks and reports the first send failure as an
// event.
func (l *Listener) sendLoop(c *connection) {
	defer close(c.sendDone)

	for chunk := range c.capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		if err := c.conn.SendAudio(chunk); err != nil {
			_ = c.capture.Stop()
			for range c.capture.Chunks() {
			}
			l.deliver(c, turn.Error{Err: fault.Wrap(fault.Connection, "stream audio", err)})
			return
		}
	}
}

// forward copies connection events onto the lifetime channel until the
// connection ends or Stop detaches it.
func (l *Listener) forward(c *connection) {
	defer close(c.forwardDone)

	events := c.conn.Events()
	for {
		select {
		case <-c.stopForward:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if !l.deliver(c, event) {
				return
			}
		}
	}
}

// deliver stamps errors with the generation of the connection that raised them.
func (l *Listener) deliver(c *connection, event turn.Event) bool {
	if ev, ok := event.(turn.Error); ok {
		ev.Connection = c.generation
		event = ev
	}
	select {
	case l.events <- event:
		return true
	case <-c.stopForward:
		return false
	}
}

// describeDevice formats device metadata for logs.
func describeDevice(device audio.Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}
