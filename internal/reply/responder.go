// Package reply turns one accepted utterance into a spoken assistant reply.
package reply

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/conversation"
	"github.com/rbright/parley/internal/fault"
)

// Stage names used for latency observations.
const (
	StageGenerate   = "generate"
	StageSynthesize = "synthesize"
	StagePlay       = "play"
)

// Generator streams reply fragments for a conversation.
type Generator interface {
	Respond(ctx context.Context, messages []conversation.Message) iter.Seq2[string, error]
}

// Synthesizer renders text to audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio.Clip, error)
}

// Player plays a clip to completion.
type Player interface {
	Play(ctx context.Context, clip audio.Clip) error
}

// Printer shows the conversation as it happens.
type Printer interface {
	User(text string)
	AssistantStart()
	AssistantFragment(text string)
	AssistantEnd()
}

// Timer records how long each stage took.
type Timer interface {
	ObserveStage(stage string, elapsed time.Duration)
}

type noopPrinter struct{}

func (noopPrinter) User(string)              {}
func (noopPrinter) AssistantStart()          {}
func (noopPrinter) AssistantFragment(string) {}
func (noopPrinter) AssistantEnd()            {}

type noopTimer struct{}

func (noopTimer) ObserveStage(string, time.Duration) {}

// Option customizes a Responder.
type Option func(*Responder)

func WithPrinter(p Printer) Option { return func(r *Responder) { r.printer = p } }

func WithTimer(t Timer) Option { return func(r *Responder) { r.timer = t } }

func WithLogger(l *slog.Logger) Option { return func(r *Responder) { r.logger = l } }

// WithNormalizer rewrites each utterance before it is recorded.
func WithNormalizer(fn func(string) string) Option {
	return func(r *Responder) { r.normalize = fn }
}

// Responder runs generate, synthesize, and play for one utterance at a time.
type Responder struct {
	history   *conversation.History
	generator Generator
	synth     Synthesizer
	player    Player

	printer   Printer
	timer     Timer
	logger    *slog.Logger
	normalize func(string) string
}

// New wires a responder around history.
func New(history *conversation.History, generator Generator, synth Synthesizer, player Player, opts ...Option) *Responder {
	r := &Responder{
		history:   history,
		generator: generator,
		synth:     synth,
		player:    player,
		printer:   noopPrinter{},
		timer:     noopTimer{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond appends utterance as a user message, generates the assistant
// reply, appends it, and speaks it.
//
// A failed generation leaves the user message in history without a reply.
func (r *Responder) Respond(ctx context.Context, utterance string) error {
	if r.normalize != nil {
		utterance = r.normalize(utterance)
	}
	r.history.Append(conversation.Message{Role: conversation.RoleUser, Content: utterance})
	r.printer.User(utterance)

	text, err := r.generate(ctx)
	if err != nil {
		return fault.Wrap(fault.Service, "generate reply", err)
	}

	r.history.Append(conversation.Message{Role: conversation.RoleAssistant, Content: text})
	return r.speak(ctx, text)
}

// Speak appends text as an assistant message and speaks it.
func (r *Responder) Speak(ctx context.Context, text string) error {
	r.history.Append(conversation.Message{Role: conversation.RoleAssistant, Content: text})
	r.printer.AssistantStart()
	r.printer.AssistantFragment(text)
	r.printer.AssistantEnd()
	return r.speak(ctx, text)
}

func (r *Responder) generate(ctx context.Context) (string, error) {
	started := time.Now()
	defer func() { r.timer.ObserveStage(StageGenerate, time.Since(started)) }()

	var b strings.Builder
	r.printer.AssistantStart()
	defer r.printer.AssistantEnd()

	for fragment, err := range r.generator.Respond(ctx, r.history.Snapshot()) {
		if err != nil {
			return "", err
		}
		b.WriteString(fragment)
		r.printer.AssistantFragment(fragment)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("model returned an empty reply")
	}
	r.logger.Debug("reply generated", "chars", len(text), "elapsed_ms", time.Since(started).Milliseconds())
	return text, nil
}

func (r *Responder) speak(ctx context.Context, text string) error {
	started := time.Now()
	clip, err := r.synth.Synthesize(ctx, text)
	r.timer.ObserveStage(StageSynthesize, time.Since(started))
	if err != nil {
		return fault.Wrap(fault.Service, "synthesize reply", err)
	}

	started = time.Now()
	err = r.player.Play(ctx, clip)
	r.timer.ObserveStage(StagePlay, time.Since(started))
	if err != nil {
		return fault.Wrap(fault.Playback, "play reply", err)
	}

	r.logger.Debug("reply played", "format", clip.Format, "bytes", len(clip.Data))
	return nil
}
