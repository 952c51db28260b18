package assemblyai

import (
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/rbright/parley/internal/fault"
	"github.com/rbright/parley/internal/turn"
)

const (
	typeBegin       = "Begin"
	typeTurn        = "Turn"
	typeTermination = "Termination"
)

type message struct {
	Type string `json:"type"`

	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`

	TurnOrder  int    `json:"turn_order"`
	EndOfTurn  bool   `json:"end_of_turn"`
	Transcript string `json:"transcript"`

	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`

	Error string `json:"error"`
}

// decodeMessage maps one server frame to an event. Unknown message types
// yield a nil event.
func decodeMessage(data []byte) (turn.Event, error) {
	var msg message
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON frame: %w", err)
	}

	if msg.Error != "" {
		return turn.Error{Err: fault.Wrap(fault.Service, "transcription", errors.New(msg.Error))}, nil
	}

	switch msg.Type {
	case typeBegin:
		var expires time.Time
		if msg.ExpiresAt > 0 {
			expires = time.Unix(msg.ExpiresAt, 0)
		}
		return turn.SessionBegun{SessionID: msg.ID, ExpiresAt: expires}, nil
	case typeTurn:
		return turn.Turn{Text: msg.Transcript, Final: msg.EndOfTurn, Order: msg.TurnOrder}, nil
	case typeTermination:
		return turn.SessionTerminated{
			AudioSeconds:   msg.AudioDurationSeconds,
			SessionSeconds: msg.SessionDurationSeconds,
		}, nil
	case "":
		return nil, errors.New("message has no type")
	default:
		return nil, nil
	}
}
