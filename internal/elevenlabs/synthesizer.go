// Package elevenlabs synthesizes speech with the ElevenLabs text-to-speech API.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/rbright/parley/internal/audio"
)

const (
	DefaultStreamURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	DefaultAPIURL    = "https://api.elevenlabs.io"
)

// VoiceSettings tunes one synthesis request.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	Speed           float64 `json:"speed"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Config selects the voice, model, and endpoints.
type Config struct {
	APIKey       string
	StreamURL    string
	APIURL       string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Settings     VoiceSettings
	DialTimeout  time.Duration
}

type (
	bosMessage struct {
		Text          string        `json:"text"`
		VoiceSettings VoiceSettings `json:"voice_settings"`
	}

	textMessage struct {
		Text  string `json:"text"`
		Flush bool   `json:"flush,omitempty"`
	}

	serverMessage struct {
		Audio   *string `json:"audio"`
		IsFinal bool    `json:"isFinal"`
		Error   string  `json:"error"`
		Message string  `json:"message"`
	}
)

// Synthesizer converts reply text to audio clips, one connection per clip.
type Synthesizer struct {
	cfg Config
}

// NewSynthesizer fills endpoint defaults.
func NewSynthesizer(cfg Config) *Synthesizer {
	if cfg.StreamURL == "" {
		cfg.StreamURL = DefaultStreamURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	return &Synthesizer{cfg: cfg}
}

func (s *Synthesizer) streamURL() (string, error) {
	u, err := url.Parse(strings.TrimRight(s.cfg.StreamURL, "/") + "/" + url.PathEscape(s.cfg.VoiceID) + "/stream-input")
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	q := u.Query()
	q.Set("model_id", s.cfg.ModelID)
	q.Set("output_format", s.cfg.OutputFormat)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Synthesize renders text as one clip in the configured output format.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (audio.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return audio.Clip{}, errors.New("nothing to synthesize")
	}
	if strings.TrimSpace(s.cfg.APIKey) == "" {
		return audio.Clip{}, errors.New("missing ElevenLabs API key")
	}

	target, err := s.streamURL()
	if err != nil {
		return audio.Clip{}, err
	}

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: s.cfg.DialTimeout}
	header := http.Header{}
	header.Set("xi-api-key", s.cfg.APIKey)

	conn, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return audio.Clip{}, fmt.Errorf("dial synthesis stream (http %d): %w", resp.StatusCode, err)
		}
		return audio.Clip{}, fmt.Errorf("dial synthesis stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, msg := range []any{
		bosMessage{Text: " ", VoiceSettings: s.cfg.Settings},
		textMessage{Text: text + " ", Flush: true},
		textMessage{Text: ""},
	} {
		if err := writeJSON(conn, msg); err != nil {
			return audio.Clip{}, ctxErr(ctx, fmt.Errorf("send synthesis request: %w", err))
		}
	}

	clip := audio.Clip{Format: s.cfg.OutputFormat}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && !clip.Empty() {
				return clip, nil
			}
			return audio.Clip{}, ctxErr(ctx, fmt.Errorf("read synthesis stream: %w", err))
		}

		var msg serverMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			return audio.Clip{}, fmt.Errorf("decode synthesis message: %w", err)
		}
		if msg.Error != "" {
			return audio.Clip{}, fmt.Errorf("synthesis error %s: %s", msg.Error, msg.Message)
		}
		if msg.Audio != nil && *msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(*msg.Audio)
			if err != nil {
				return audio.Clip{}, fmt.Errorf("decode synthesis audio: %w", err)
			}
			clip.Data = append(clip.Data, chunk...)
		}
		if msg.IsFinal {
			return clip, nil
		}
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	payload, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// ctxErr prefers the context error when cancellation closed the socket.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
