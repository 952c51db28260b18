// Package doctor runs readiness diagnostics for config, credentials, audio,
// and the remote services a conversation depends on.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/parley/internal/audio"
	"github.com/rbright/parley/internal/config"
	"github.com/rbright/parley/internal/elevenlabs"
	"github.com/rbright/parley/internal/pipeline"
)

const probeTimeout = 5 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ModelProber confirms the configured language model is reachable.
type ModelProber interface {
	Model() string
	Probe(ctx context.Context) error
}

// VoiceLister lists the voices available to the speech credentials.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]elevenlabs.Voice, error)
}

// Probes are the remote checks; nil probes are skipped.
type Probes struct {
	Model  ModelProber
	Voices VoiceLister
	// SelectDevice defaults to audio.SelectDevice.
	SelectDevice func(ctx context.Context, input, fallback string) (audio.Selection, error)
}

// Run executes environment, config, and service checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, creds config.Credentials, probes Probes) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks,
		checkCredential(config.EnvAssemblyAIKey, creds.AssemblyAI),
		checkCredential(config.EnvOpenAIKey, creds.OpenAI),
		checkCredential(config.EnvElevenLabsKey, creds.ElevenLabs),
	)

	checks = append(checks, checkTranscriptionEndpoint(cfg))

	selectDevice := probes.SelectDevice
	if selectDevice == nil {
		selectDevice = audio.SelectDevice
	}
	checks = append(checks, checkAudioSelection(ctx, cfg, selectDevice))

	if !strings.HasPrefix(cfg.Speech.OutputFormat, "pcm_") {
		checks = append(checks, checkCommand(cfg.Playback.Command.Argv, "playback.command"))
	}
	if cfg.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}

	if probes.Model != nil && creds.OpenAI != "" {
		checks = append(checks, checkModel(ctx, probes.Model))
	}
	if probes.Voices != nil && creds.ElevenLabs != "" {
		checks = append(checks, checkVoice(ctx, probes.Voices, cfg.Speech.VoiceID))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(" (%d warnings)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

func checkCredential(name, value string) Check {
	if strings.TrimSpace(value) == "" {
		return Check{Name: name, Pass: false, Message: "not set in environment or .env"}
	}
	return Check{Name: name, Pass: true, Message: "set"}
}

func checkTranscriptionEndpoint(cfg config.Config) Check {
	ac := pipeline.TranscriptionConfig(cfg, "")
	if _, err := ac.URL(); err != nil {
		return Check{Name: "transcription.endpoint", Pass: false, Message: err.Error()}
	}
	return Check{Name: "transcription.endpoint", Pass: true, Message: ac.Endpoint}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(
	ctx context.Context,
	cfg config.Config,
	selectDevice func(context.Context, string, string) (audio.Selection, error),
) Check {
	selection, err := selectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkModel(ctx context.Context, prober ModelProber) Check {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := prober.Probe(probeCtx); err != nil {
		return Check{Name: "llm.model", Pass: false, Message: err.Error()}
	}
	return Check{Name: "llm.model", Pass: true, Message: fmt.Sprintf("%q available", prober.Model())}
}

func checkVoice(ctx context.Context, lister VoiceLister, voiceID string) Check {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	voices, err := lister.ListVoices(probeCtx)
	if err != nil {
		return Check{Name: "speech.voice", Pass: false, Message: err.Error()}
	}
	for _, voice := range voices {
		if voice.ID == voiceID {
			return Check{Name: "speech.voice", Pass: true, Message: fmt.Sprintf("%s (%s)", voice.Name, voice.ID)}
		}
	}
	return Check{Name: "speech.voice", Pass: false, Message: fmt.Sprintf("voice %q not in %d available voices", voiceID, len(voices))}
}
