package ipc

import (
	"errors"
	"fmt"
)

var (
	ErrConnect  = errors.New("connect")
	ErrTimeout  = errors.New("timeout")
	ErrEncoding = errors.New("encode message")
	ErrDecoding = errors.New("decode message")
	ErrIO       = errors.New("connection i/o")
)

// ConnectReason distinguishes why a dial failed.
type ConnectReason string

const (
	ConnectRefused     ConnectReason = "refused"
	ConnectTimeout     ConnectReason = "timeout"
	ConnectUnreachable ConnectReason = "unreachable"
)

// ConnectError reports a failed dial. It is the routine "no running instance" outcome.
type ConnectError struct {
	Addr   string
	Reason ConnectReason
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %s: %v", e.Addr, e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

func (e *ConnectError) Is(target error) bool { return target == ErrConnect }

// TimeoutError reports a send or receive that did not finish within the deadline.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("%s timed out: %v", e.Op, e.Err) }

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// IOError reports a socket failure in the middle of an exchange.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// EncodingError reports a message whose payload does not fit its kind.
type EncodingError struct {
	Kind   Kind
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %s", e.Kind, e.Reason)
}

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// DecodingError reports bytes that are not a complete, well-formed message.
type DecodingError struct {
	Reason string
	Err    error
}

func (e *DecodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode message: %s: %v", e.Reason, e.Err)
	}
	return "decode message: " + e.Reason
}

func (e *DecodingError) Unwrap() error { return e.Err }

func (e *DecodingError) Is(target error) bool { return target == ErrDecoding }
