// Package turn decides when a transcript is final enough to answer.
//
// A Coordinator consumes transcript events in arrival order, drops anything
// that arrives while a reply is in flight, and delegates the
// partial/final/duplicate bookkeeping to one Policy.
package turn

import "time"

// Event is one message from the transcript source.
type Event interface {
	event()
}

// SessionBegun marks an opened transcription session.
type SessionBegun struct {
	SessionID string
	ExpiresAt time.Time
}

// Turn carries the transcript of the current turn so far.
//
// Order is the upstream turn counter; it is only compared between turns of
// one connection.
type Turn struct {
	Text  string
	Final bool
	Order int
}

// SessionTerminated marks a transcription session closed by the server.
type SessionTerminated struct {
	AudioSeconds   float64
	SessionSeconds float64
}

// Error reports a transcript source failure. Connection identifies the
// source connection that failed; zero means unknown.
type Error struct {
	Err        error
	Connection uint64
}

func (SessionBegun) event()      {}
func (Turn) event()              {}
func (SessionTerminated) event() {}
func (Error) event()             {}

// Message returns the error text, or "unknown error" when Err is nil.
func (e Error) Message() string {
	if e.Err == nil {
		return "unknown error"
	}
	return e.Err.Error()
}
