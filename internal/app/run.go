package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/console"
	"github.com/rbright/parley/internal/conversation"
	"github.com/rbright/parley/internal/elevenlabs"
	"github.com/rbright/parley/internal/indicator"
	"github.com/rbright/parley/internal/ipc"
	"github.com/rbright/parley/internal/llm"
	"github.com/rbright/parley/internal/metrics"
	"github.com/rbright/parley/internal/pipeline"
	"github.com/rbright/parley/internal/reply"
	"github.com/rbright/parley/internal/session"
	"github.com/rbright/parley/internal/transcript"
	"github.com/rbright/parley/internal/turn"
)

func llmConfig(cfg config.Config, apiKey string) llm.Config {
	return llm.Config{
		APIKey:    apiKey,
		Model:     cfg.LLM.Model,
		Stream:    cfg.LLM.Stream,
		BaseURL:   cfg.LLM.BaseURL,
		MaxTokens: cfg.LLM.MaxTokens,
	}
}

func speechConfig(cfg config.Config, apiKey string) elevenlabs.Config {
	s := cfg.Speech
	return elevenlabs.Config{
		APIKey:       apiKey,
		VoiceID:      s.VoiceID,
		ModelID:      s.ModelID,
		OutputFormat: s.OutputFormat,
		Settings: elevenlabs.VoiceSettings{
			Stability:       s.Stability,
			SimilarityBoost: s.SimilarityBoost,
			Style:           s.Style,
			Speed:           s.Speed,
			UseSpeakerBoost: s.UseSpeakerBoost,
		},
	}
}

// utteranceNormalizer returns nil when utterances are submitted verbatim.
// Server-formatted turns already carry casing, so only whitespace is tidied.
func utteranceNormalizer(cfg config.Config) func(string) string {
	if !cfg.Conversation.NormalizeUtterances {
		return nil
	}
	opts := transcript.Options{CapitalizeSentences: !cfg.Transcription.FormatTurns}
	return func(text string) string {
		return transcript.Normalize(text, opts)
	}
}

func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger, debug bool) int {
	creds := config.CredentialsFromEnv()
	if err := creds.Require(); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	policy, err := turn.NewPolicy(cfg.Turn.Policy, cfg.Turn.Cooldown())
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	claim, err := ipc.Acquire(ctx, socketPath, ipc.ClaimOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8})
	if errors.Is(err, ipc.ErrAlreadyRunning) {
		fmt.Fprintf(r.Stderr, "error: %v (use %q to end it)\n", err, binaryName+" stop")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer claim.Release()

	conversationID := uuid.NewString()
	logger = logger.With("conversation_id", conversationID)

	history := conversation.New(cfg.LLM.SystemPrompt)
	counters := metrics.New()
	display := console.New(r.Stdout, debug)
	notifier := indicator.NewNotifier(cfg.Indicator, logger)

	responder := reply.New(
		history,
		llm.New(llmConfig(cfg, creds.OpenAI)),
		elevenlabs.NewSynthesizer(speechConfig(cfg, creds.ElevenLabs)),
		audio.NewPlayer(cfg.Playback.Command.Argv, logger),
		reply.WithPrinter(display),
		reply.WithTimer(counters),
		reply.WithLogger(logger),
		reply.WithNormalizer(utteranceNormalizer(cfg)),
	)

	controller := session.NewController(
		logger,
		pipeline.NewListener(cfg, creds.AssemblyAI, logger),
		policy,
		responder,
		turn.Observers{display, notifier, counters},
		session.Options{
			ConversationID: conversationID,
			Greeting:       cfg.Conversation.Greeting,
			Greeter:        responder,
			HistoryLen:     history.Len,
			Counters:       counters.Snapshot,
		},
	)

	logger.Info("conversation start",
		"policy", policy.Name(),
		"model", cfg.LLM.Model,
		"voice", cfg.Speech.VoiceID,
		"output_format", cfg.Speech.OutputFormat,
	)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, claim.Listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	serverErr := <-serverErrCh

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
	notifier.Close(closeCtx)
	closeCancel()

	logSessionResult(logger, result, history.Len(), counters.Snapshot())

	if serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "Conversation ended after %d turns.\n", result.Submissions)
	return 0
}

func logSessionResult(logger *slog.Logger, result session.Result, historyLen int, counters map[string]float64) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"stop_requested", result.StopRequested,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"submissions", result.Submissions,
		"history_length", historyLen,
		"audio_seconds", result.Termination.AudioSeconds,
		"counters", counters,
	}

	if result.Err != nil {
		logger.Error("conversation failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("conversation complete", fields...)
}
