// Package config resolves, parses, validates, and defaults parley configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by parley.
type Config struct {
	Audio         AudioConfig
	Transcription TranscriptionConfig
	Turn          TurnConfig
	LLM           LLMConfig
	Speech        SpeechConfig
	Playback      PlaybackConfig
	Conversation  ConversationConfig
	Indicator     IndicatorConfig
	Debug         DebugConfig
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// TranscriptionConfig controls the streaming speech-to-text session.
type TranscriptionConfig struct {
	Host                         string
	SampleRate                   int
	FormatTurns                  bool
	EndOfTurnConfidenceThreshold float64
	MinEndOfTurnSilenceMS        int
	MaxTurnSilenceMS             int
}

// TurnConfig selects the duplicate-suppression policy.
type TurnConfig struct {
	Policy     string
	CooldownMS int
}

// Cooldown returns CooldownMS as a duration.
func (t TurnConfig) Cooldown() time.Duration {
	return time.Duration(t.CooldownMS) * time.Millisecond
}

// LLMConfig controls chat completion requests.
type LLMConfig struct {
	Model        string
	Stream       bool
	SystemPrompt string
	BaseURL      string
	MaxTokens    int
}

// SpeechConfig controls voice synthesis.
type SpeechConfig struct {
	VoiceID         string
	ModelID         string
	OutputFormat    string
	Stability       float64
	SimilarityBoost float64
	Style           float64
	Speed           float64
	UseSpeakerBoost bool
}

// PlaybackConfig controls how non-PCM clips are played.
type PlaybackConfig struct {
	Command CommandConfig
}

// ConversationConfig controls conversation-level behavior.
type ConversationConfig struct {
	Greeting string
	// NormalizeUtterances tidies whitespace and casing before an utterance
	// reaches history. Off submits transcripts verbatim.
	NormalizeUtterances bool
}

// IndicatorConfig controls desktop notification and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	DesktopAppName string
	SoundEnable    bool
	ErrorTimeoutMS int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls verbose logging and optional debug artifacts.
type DebugConfig struct {
	Verbose         bool
	EnableAudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
