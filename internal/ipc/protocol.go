// Package ipc implements the loopback single-instance protocol: a framed
// (kind, payload) codec, timeout-bounded connections, a one-shot client and a
// concurrent listener that hands requests to the running application.
package ipc

import (
	"fmt"
	"slices"
)

// Identifier is the application identifier a primary instance answers PING with.
const Identifier = "refkeep"

// Kind is the closed set of protocol message kinds.
type Kind uint8

const (
	KindPing Kind = iota + 1
	KindPong
	KindSendCommandLineArguments
	KindFocus
	KindOK
)

func (k Kind) String() string {
	switch k {
	case KindPing:
		return "PING"
	case KindPong:
		return "PONG"
	case KindSendCommandLineArguments:
		return "SEND_COMMAND_LINE_ARGUMENTS"
	case KindFocus:
		return "FOCUS"
	case KindOK:
		return "OK"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the protocol kinds.
func (k Kind) Valid() bool {
	return k >= KindPing && k <= KindOK
}

// Message is one protocol envelope. The variants below are the only
// implementations; the unexported marker keeps the set closed.
type Message interface {
	Kind() Kind
	message()
}

// Ping asks whether a primary instance is listening.
type Ping struct{}

// Pong answers Ping with the responder's application identifier.
type Pong struct {
	Identifier string
}

// CommandLineArguments hands a launch argv to the primary instance.
type CommandLineArguments struct {
	Args []string
}

// Focus asks the primary instance to bring its window to the front.
type Focus struct{}

// OK acknowledges a handled request.
type OK struct{}

func (Ping) Kind() Kind                 { return KindPing }
func (Pong) Kind() Kind                 { return KindPong }
func (CommandLineArguments) Kind() Kind { return KindSendCommandLineArguments }
func (Focus) Kind() Kind                { return KindFocus }
func (OK) Kind() Kind                   { return KindOK }

func (Ping) message()                 {}
func (Pong) message()                 {}
func (CommandLineArguments) message() {}
func (Focus) message()                {}
func (OK) message()                   {}

// NewMessage builds a variant from a kind and a loosely typed payload.
// Payload-less kinds accept only nil; PONG takes a string and
// SEND_COMMAND_LINE_ARGUMENTS takes a []string (nil means no arguments).
func NewMessage(kind Kind, payload any) (Message, error) {
	switch kind {
	case KindPing, KindFocus, KindOK:
		if payload != nil {
			return nil, &EncodingError{Kind: kind, Reason: fmt.Sprintf("unexpected %T payload", payload)}
		}
		switch kind {
		case KindPing:
			return Ping{}, nil
		case KindFocus:
			return Focus{}, nil
		default:
			return OK{}, nil
		}
	case KindPong:
		id, ok := payload.(string)
		if !ok {
			return nil, &EncodingError{Kind: kind, Reason: fmt.Sprintf("payload must be string, got %T", payload)}
		}
		return Pong{Identifier: id}, nil
	case KindSendCommandLineArguments:
		if payload == nil {
			return CommandLineArguments{Args: []string{}}, nil
		}
		args, ok := payload.([]string)
		if !ok {
			return nil, &EncodingError{Kind: kind, Reason: fmt.Sprintf("payload must be []string, got %T", payload)}
		}
		if args == nil {
			args = []string{}
		}
		return CommandLineArguments{Args: slices.Clone(args)}, nil
	default:
		return nil, &EncodingError{Kind: kind, Reason: "unknown message kind"}
	}
}
