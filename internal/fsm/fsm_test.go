package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionConversationCycle(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateListening, next)

	for i := 0; i < 3; i++ {
		next, err = Transition(next, EventSubmit)
		require.NoError(t, err)
		require.Equal(t, StateResponding, next)

		next, err = Transition(next, EventSettle)
		require.NoError(t, err)
		require.Equal(t, StateListening, next)
	}

	next, err = Transition(next, EventStop)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionFailFromAnyStateGoesError(t *testing.T) {
	for _, state := range []State{StateIdle, StateListening, StateResponding, StateError} {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateError, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		event   Event
		want    State
		wantErr bool
	}{
		{name: "idle submit invalid", state: StateIdle, event: EventSubmit, want: StateIdle, wantErr: true},
		{name: "idle stop invalid", state: StateIdle, event: EventStop, want: StateIdle, wantErr: true},
		{name: "listening start invalid", state: StateListening, event: EventStart, want: StateListening, wantErr: true},
		{name: "listening settle invalid", state: StateListening, event: EventSettle, want: StateListening, wantErr: true},
		{name: "responding submit invalid", state: StateResponding, event: EventSubmit, want: StateResponding, wantErr: true},
		{name: "responding stop valid", state: StateResponding, event: EventStop, want: StateIdle, wantErr: false},
		{name: "error start invalid", state: StateError, event: EventStart, want: StateError, wantErr: true},
		{name: "error reset valid", state: StateError, event: EventReset, want: StateIdle, wantErr: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
