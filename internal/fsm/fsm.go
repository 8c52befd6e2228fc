package fsm

import "fmt"

type State string

type Event string

const (
	StateAwaitingMessage State = "awaiting_message"
	StateDispatching     State = "dispatching"
	StateReplied         State = "replied"
	StateClosed          State = "closed"
)

const (
	EventReceived Event = "received"
	EventReplied  Event = "replied"
	EventClose    Event = "close"
	EventFail     Event = "fail"
)

// Transition advances one server-side exchange. Every exchange ends in
// StateClosed; a closed exchange accepts no further events.
func Transition(current State, event Event) (State, error) {
	if current == StateClosed {
		return current, invalidTransition(current, event)
	}
	if event == EventFail {
		switch current {
		case StateAwaitingMessage, StateDispatching, StateReplied:
			return StateClosed, nil
		}
	}

	switch current {
	case StateAwaitingMessage:
		switch event {
		case EventReceived:
			return StateDispatching, nil
		case EventClose:
			return StateClosed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDispatching:
		switch event {
		case EventReplied:
			return StateReplied, nil
		case EventClose:
			return StateClosed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateReplied:
		switch event {
		case EventClose:
			return StateClosed, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
