package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateAwaitingMessage

	next, err := Transition(s, EventReceived)
	require.NoError(t, err)
	require.Equal(t, StateDispatching, next)

	next, err = Transition(next, EventReplied)
	require.NoError(t, err)
	require.Equal(t, StateReplied, next)

	next, err = Transition(next, EventClose)
	require.NoError(t, err)
	require.Equal(t, StateClosed, next)
}

func TestTransitionFailFromOpenStatesCloses(t *testing.T) {
	states := []State{StateAwaitingMessage, StateDispatching, StateReplied}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateClosed, next)
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
		{name: "awaiting replied invalid", state: StateAwaitingMessage, event: EventReplied, want: StateAwaitingMessage, wantErr: true},
		{name: "awaiting close without reply", state: StateAwaitingMessage, event: EventClose, want: StateClosed},
		{name: "dispatching received invalid", state: StateDispatching, event: EventReceived, want: StateDispatching, wantErr: true},
		{name: "dispatching close without reply", state: StateDispatching, event: EventClose, want: StateClosed},
		{name: "replied received invalid", state: StateReplied, event: EventReceived, want: StateReplied, wantErr: true},
		{name: "replied replied invalid", state: StateReplied, event: EventReplied, want: StateReplied, wantErr: true},
		{name: "closed close invalid", state: StateClosed, event: EventClose, want: StateClosed, wantErr: true},
		{name: "closed fail invalid", state: StateClosed, event: EventFail, want: StateClosed, wantErr: true},
		{name: "closed received invalid", state: StateClosed, event: EventReceived, want: StateClosed, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.want, next)
			if tc.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventReceived)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
