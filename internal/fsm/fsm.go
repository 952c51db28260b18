// Package fsm defines the conversation lifecycle states and legal transitions.
package fsm

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition reports an event that is not legal in the current state.
var ErrInvalidTransition = errors.New("invalid transition")

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateResponding State = "responding"
	StateError      State = "error"
)

const (
	EventStart  Event = "start"
	EventSubmit Event = "submit"
	EventSettle Event = "settle"
	EventStop   Event = "stop"
	EventFail   Event = "fail"
	EventReset  Event = "reset"
)

// Transition returns the state reached by applying event to current.
func Transition(current State, event Event) (State, error) {
	if event == EventFail {
		return StateError, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventSubmit:
			return StateResponding, nil
		case EventStop:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateResponding:
		switch event {
		case EventSettle:
			return StateListening, nil
		case EventStop:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateError:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("%w: %s --(%s)--> ?", ErrInvalidTransition, state, event)
}
