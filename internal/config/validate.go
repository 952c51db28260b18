package config

import (
	"fmt"
	"net/url"
	"strings"
)

var speechFormatPrefixes = []string{"pcm_", "mp3_", "opus_", "ulaw_", "alaw_"}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	tr := cfg.Transcription
	if strings.TrimSpace(tr.Host) == "" {
		return nil, fmt.Errorf("transcription.host must not be empty")
	}
	if tr.SampleRate <= 0 {
		return nil, fmt.Errorf("transcription.sample_rate must be > 0")
	}
	if tr.EndOfTurnConfidenceThreshold < 0 || tr.EndOfTurnConfidenceThreshold > 1 {
		return nil, fmt.Errorf("transcription.end_of_turn_confidence_threshold must be within [0, 1]")
	}
	if tr.MinEndOfTurnSilenceMS < 0 {
		return nil, fmt.Errorf("transcription.min_end_of_turn_silence_ms must be >= 0")
	}
	if tr.MaxTurnSilenceMS < tr.MinEndOfTurnSilenceMS {
		return nil, fmt.Errorf("transcription.max_turn_silence_ms must be >= min_end_of_turn_silence_ms")
	}

	switch cfg.Turn.Policy {
	case "echo":
		if cfg.Turn.CooldownMS != Default().Turn.CooldownMS {
			warnings = append(warnings, Warning{Message: "turn.cooldown_ms only applies when turn.policy=cooldown"})
		}
	case "cooldown":
	default:
		return nil, fmt.Errorf("turn.policy must be one of: echo, cooldown")
	}
	if cfg.Turn.CooldownMS < 0 {
		return nil, fmt.Errorf("turn.cooldown_ms must be >= 0")
	}

	if strings.TrimSpace(cfg.LLM.Model) == "" {
		return nil, fmt.Errorf("llm.model must not be empty")
	}
	if cfg.LLM.MaxTokens < 0 {
		return nil, fmt.Errorf("llm.max_tokens must be >= 0")
	}
	if raw := strings.TrimSpace(cfg.LLM.BaseURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			return nil, fmt.Errorf("llm.base_url must be an absolute http(s) URL")
		}
	}
	if strings.TrimSpace(cfg.LLM.SystemPrompt) == "" {
		warnings = append(warnings, Warning{Message: "llm.system_prompt is empty; the model receives no instructions"})
	}

	sp := cfg.Speech
	if strings.TrimSpace(sp.VoiceID) == "" {
		return nil, fmt.Errorf("speech.voice_id must not be empty")
	}
	if strings.TrimSpace(sp.ModelID) == "" {
		return nil, fmt.Errorf("speech.model_id must not be empty")
	}
	if !hasAnyPrefix(sp.OutputFormat, speechFormatPrefixes) {
		return nil, fmt.Errorf("speech.output_format %q is not a known format", sp.OutputFormat)
	}
	for name, value := range map[string]float64{
		"speech.stability":        sp.Stability,
		"speech.similarity_boost": sp.SimilarityBoost,
		"speech.style":            sp.Style,
	} {
		if value < 0 || value > 1 {
			return nil, fmt.Errorf("%s must be within [0, 1]", name)
		}
	}
	if sp.Speed < 0.7 || sp.Speed > 1.2 {
		return nil, fmt.Errorf("speech.speed must be within [0.7, 1.2]")
	}

	if !strings.HasPrefix(sp.OutputFormat, "pcm_") {
		if cfg.Playback.Command.Raw != "" && len(cfg.Playback.Command.Argv) == 0 {
			return nil, fmt.Errorf("playback.command is configured but empty")
		}
		if len(cfg.Playback.Command.Argv) == 0 {
			return nil, fmt.Errorf("playback.command must not be empty when speech.output_format=%s", sp.OutputFormat)
		}
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	return warnings, nil
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) && len(value) > len(prefix) {
			return true
		}
	}
	return false
}
