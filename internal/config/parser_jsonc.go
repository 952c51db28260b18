package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Audio         *jsoncAudio         `json:"audio"`
	Transcription *jsoncTranscription `json:"transcription"`
	Turn          *jsoncTurn          `json:"turn"`
	LLM           *jsoncLLM           `json:"llm"`
	Speech        *jsoncSpeech        `json:"speech"`
	Playback      *jsoncPlayback      `json:"playback"`
	Conversation  *jsoncConversation  `json:"conversation"`
	Indicator     *jsoncIndicator     `json:"indicator"`
	Debug         *jsoncDebug         `json:"debug"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncTranscription struct {
	Host                         *string  `json:"host"`
	SampleRate                   *int     `json:"sample_rate"`
	FormatTurns                  *bool    `json:"format_turns"`
	EndOfTurnConfidenceThreshold *float64 `json:"end_of_turn_confidence_threshold"`
	MinEndOfTurnSilenceMS        *int     `json:"min_end_of_turn_silence_ms"`
	MaxTurnSilenceMS             *int     `json:"max_turn_silence_ms"`
}

type jsoncTurn struct {
	Policy     *string `json:"policy"`
	CooldownMS *int    `json:"cooldown_ms"`
}

type jsoncLLM struct {
	Model        *string `json:"model"`
	Stream       *bool   `json:"stream"`
	SystemPrompt *string `json:"system_prompt"`
	BaseURL      *string `json:"base_url"`
	MaxTokens    *int    `json:"max_tokens"`
}

type jsoncSpeech struct {
	VoiceID         *string  `json:"voice_id"`
	ModelID         *string  `json:"model_id"`
	OutputFormat    *string  `json:"output_format"`
	Stability       *float64 `json:"stability"`
	SimilarityBoost *float64 `json:"similarity_boost"`
	Style           *float64 `json:"style"`
	Speed           *float64 `json:"speed"`
	UseSpeakerBoost *bool    `json:"use_speaker_boost"`
}

type jsoncPlayback struct {
	Command *string `json:"command"`
}

type jsoncConversation struct {
	Greeting            *string `json:"greeting"`
	NormalizeUtterances *bool   `json:"normalize_utterances"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
}

type jsoncDebug struct {
	Verbose   *bool `json:"verbose"`
	AudioDump *bool `json:"audio_dump"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if a := payload.Audio; a != nil {
		setString(&cfg.Audio.Input, a.Input)
		setString(&cfg.Audio.Fallback, a.Fallback)
	}

	if t := payload.Transcription; t != nil {
		setString(&cfg.Transcription.Host, t.Host)
		setValue(&cfg.Transcription.SampleRate, t.SampleRate)
		setValue(&cfg.Transcription.FormatTurns, t.FormatTurns)
		setValue(&cfg.Transcription.EndOfTurnConfidenceThreshold, t.EndOfTurnConfidenceThreshold)
		setValue(&cfg.Transcription.MinEndOfTurnSilenceMS, t.MinEndOfTurnSilenceMS)
		setValue(&cfg.Transcription.MaxTurnSilenceMS, t.MaxTurnSilenceMS)
	}

	if t := payload.Turn; t != nil {
		if t.Policy != nil {
			cfg.Turn.Policy = strings.ToLower(strings.TrimSpace(*t.Policy))
		}
		setValue(&cfg.Turn.CooldownMS, t.CooldownMS)
	}

	if l := payload.LLM; l != nil {
		setString(&cfg.LLM.Model, l.Model)
		setValue(&cfg.LLM.Stream, l.Stream)
		if l.SystemPrompt != nil {
			cfg.LLM.SystemPrompt = *l.SystemPrompt
		}
		setString(&cfg.LLM.BaseURL, l.BaseURL)
		setValue(&cfg.LLM.MaxTokens, l.MaxTokens)
	}

	if s := payload.Speech; s != nil {
		setString(&cfg.Speech.VoiceID, s.VoiceID)
		setString(&cfg.Speech.ModelID, s.ModelID)
		if s.OutputFormat != nil {
			cfg.Speech.OutputFormat = strings.ToLower(strings.TrimSpace(*s.OutputFormat))
		}
		setValue(&cfg.Speech.Stability, s.Stability)
		setValue(&cfg.Speech.SimilarityBoost, s.SimilarityBoost)
		setValue(&cfg.Speech.Style, s.Style)
		setValue(&cfg.Speech.Speed, s.Speed)
		setValue(&cfg.Speech.UseSpeakerBoost, s.UseSpeakerBoost)
	}

	if payload.Playback != nil && payload.Playback.Command != nil {
		raw := *payload.Playback.Command
		argv, err := parseArgv(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid playback.command: %w", err)
		}
		cfg.Playback.Command = CommandConfig{Raw: raw, Argv: argv}
	}

	if c := payload.Conversation; c != nil {
		if c.Greeting != nil {
			cfg.Conversation.Greeting = strings.TrimSpace(*c.Greeting)
		}
		setValue(&cfg.Conversation.NormalizeUtterances, c.NormalizeUtterances)
	}

	if i := payload.Indicator; i != nil {
		setValue(&cfg.Indicator.Enable, i.Enable)
		setString(&cfg.Indicator.DesktopAppName, i.DesktopAppName)
		setValue(&cfg.Indicator.SoundEnable, i.SoundEnable)
		setValue(&cfg.Indicator.ErrorTimeoutMS, i.ErrorTimeoutMS)
	}

	if d := payload.Debug; d != nil {
		setValue(&cfg.Debug.Verbose, d.Verbose)
		setValue(&cfg.Debug.EnableAudioDump, d.AudioDump)
	}

	return warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
