// Package fault classifies failures raised by the conversation loop.
package fault

import (
	"errors"
	"fmt"
)

// Kind is one failure class of the conversation loop.
type Kind string

const (
	// Connection covers an unreachable or dropped transcript source.
	Connection Kind = "connection"
	// Service covers language-model and speech-synthesis call failures.
	Service Kind = "service"
	// Playback covers audio device and player failures.
	Playback Kind = "playback"
	// Protocol covers malformed or unexpected transcript source frames.
	Protocol Kind = "protocol"
)

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap classifies err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the outermost Kind found in err's chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// EndsSession reports whether err must terminate the current session.
func EndsSession(err error) bool {
	return Is(err, Connection) || Is(err, Protocol)
}
