package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	warnings, err := Validate(Default())
	require.NoError(t, err)
	require.Empty(t, warnings)
}

func TestValidateRejectsInvalidCoreFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "empty host", mutate: func(c *Config) { c.Transcription.Host = "" }, wantErr: "transcription.host"},
		{name: "zero sample rate", mutate: func(c *Config) { c.Transcription.SampleRate = 0 }, wantErr: "sample_rate"},
		{name: "threshold above one", mutate: func(c *Config) { c.Transcription.EndOfTurnConfidenceThreshold = 1.5 }, wantErr: "confidence_threshold"},
		{name: "negative min silence", mutate: func(c *Config) { c.Transcription.MinEndOfTurnSilenceMS = -1 }, wantErr: "min_end_of_turn_silence_ms"},
		{name: "max below min", mutate: func(c *Config) { c.Transcription.MaxTurnSilenceMS = 10 }, wantErr: "max_turn_silence_ms"},
		{name: "unknown policy", mutate: func(c *Config) { c.Turn.Policy = "vad" }, wantErr: "turn.policy"},
		{name: "negative cooldown", mutate: func(c *Config) {
			c.Turn.Policy = "cooldown"
			c.Turn.CooldownMS = -1
		}, wantErr: "cooldown_ms"},
		{name: "empty model", mutate: func(c *Config) { c.LLM.Model = " " }, wantErr: "llm.model"},
		{name: "negative max tokens", mutate: func(c *Config) { c.LLM.MaxTokens = -5 }, wantErr: "max_tokens"},
		{name: "relative base url", mutate: func(c *Config) { c.LLM.BaseURL = "localhost:8080" }, wantErr: "llm.base_url"},
		{name: "empty voice", mutate: func(c *Config) { c.Speech.VoiceID = "" }, wantErr: "voice_id"},
		{name: "empty speech model", mutate: func(c *Config) { c.Speech.ModelID = "" }, wantErr: "model_id"},
		{name: "unknown format", mutate: func(c *Config) { c.Speech.OutputFormat = "wav_44100" }, wantErr: "output_format"},
		{name: "bare format prefix", mutate: func(c *Config) { c.Speech.OutputFormat = "pcm_" }, wantErr: "output_format"},
		{name: "stability range", mutate: func(c *Config) { c.Speech.Stability = 2 }, wantErr: "speech.stability"},
		{name: "speed range", mutate: func(c *Config) { c.Speech.Speed = 2 }, wantErr: "speech.speed"},
		{name: "mp3 without player", mutate: func(c *Config) {
			c.Speech.OutputFormat = "mp3_22050_32"
			c.Playback.Command = CommandConfig{}
		}, wantErr: "playback.command must not be empty"},
		{name: "player raw but empty argv", mutate: func(c *Config) {
			c.Speech.OutputFormat = "mp3_22050_32"
			c.Playback.Command = CommandConfig{Raw: "# disabled"}
		}, wantErr: "configured but empty"},
		{name: "empty desktop app name", mutate: func(c *Config) { c.Indicator.DesktopAppName = "" }, wantErr: "desktop_app_name"},
		{name: "negative error timeout", mutate: func(c *Config) { c.Indicator.ErrorTimeoutMS = -1 }, wantErr: "error_timeout"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)

			_, err := Validate(cfg)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestValidatePCMOutputNeedsNoPlayer(t *testing.T) {
	cfg := Default()
	cfg.Playback.Command = CommandConfig{}

	_, err := Validate(cfg)
	require.NoError(t, err)
}

func TestValidateWarnsOnEmptySystemPrompt(t *testing.T) {
	cfg := Default()
	cfg.LLM.SystemPrompt = ""

	warnings, err := Validate(cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0].Message, "system_prompt")
}
