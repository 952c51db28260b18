package config

const (
	DefaultSystemPrompt = "You are a helpful virtual assistant."
	DefaultGreeting     = "Hey there, how may I assist you today?"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	player := "mpv --no-video --really-quiet"

	return Config{
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Transcription: TranscriptionConfig{
			Host:                         "streaming.assemblyai.com",
			SampleRate:                   16000,
			FormatTurns:                  false,
			EndOfTurnConfidenceThreshold: 0.6,
			MinEndOfTurnSilenceMS:        80,
			MaxTurnSilenceMS:             1300,
		},
		Turn: TurnConfig{
			Policy:     "echo",
			CooldownMS: 3000,
		},
		LLM: LLMConfig{
			Model:        "gpt-4.1-mini",
			Stream:       true,
			SystemPrompt: DefaultSystemPrompt,
		},
		Speech: SpeechConfig{
			VoiceID:         "pNInz6obpgDQGcFmaJgB",
			ModelID:         "eleven_turbo_v2_5",
			OutputFormat:    "pcm_22050",
			Stability:       0,
			SimilarityBoost: 1,
			Style:           0,
			Speed:           1,
			UseSpeakerBoost: true,
		},
		Playback: PlaybackConfig{
			Command: CommandConfig{Raw: player, Argv: mustParseArgv(player)},
		},
		Conversation: ConversationConfig{Greeting: DefaultGreeting},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "parley",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Debug: DebugConfig{},
	}
}
