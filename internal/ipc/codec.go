package ipc

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize bounds one encoded message body.
const MaxFrameSize = 1 << 20

const maxVarintLen = 10

// Wire field numbers of a message body.
const (
	fieldKind       protowire.Number = 1
	fieldIdentifier protowire.Number = 2
	fieldArgument   protowire.Number = 3
)

// Encode serializes msg as one self-delimiting frame: a uvarint body length
// followed by a protobuf-wire body.
func Encode(msg Message) ([]byte, error) {
	body, err := appendBody(nil, msg)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, protowire.SizeVarint(uint64(len(body)))+len(body))
	frame = protowire.AppendVarint(frame, uint64(len(body)))
	return append(frame, body...), nil
}

// Decode parses exactly one frame produced by Encode.
func Decode(frame []byte) (Message, error) {
	size, n := protowire.ConsumeVarint(frame)
	if n < 0 {
		return nil, &DecodingError{Reason: "read frame length", Err: protowire.ParseError(n)}
	}
	if size > MaxFrameSize {
		return nil, &DecodingError{Reason: fmt.Sprintf("frame length %d exceeds %d", size, MaxFrameSize)}
	}
	body := frame[n:]
	switch {
	case uint64(len(body)) < size:
		return nil, &DecodingError{Reason: fmt.Sprintf("truncated frame: have %d of %d bytes", len(body), size)}
	case uint64(len(body)) > size:
		return nil, &DecodingError{Reason: fmt.Sprintf("%d trailing bytes after frame", uint64(len(body))-size)}
	}
	return decodeBody(body)
}

// WriteFrame encodes msg and writes it to w in one call.
func WriteFrame(w io.Writer, msg Message) error {
	frame, err := Encode(msg)
	if err != nil {
		return err
	}
	n, err := w.Write(frame)
	if err != nil {
		return err
	}
	if n < len(frame) {
		return io.ErrShortWrite
	}
	return nil
}

// ByteReader is the reader shape ReadFrame needs; *bufio.Reader satisfies it.
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// ReadFrame reads one frame from r. It returns io.EOF when the stream ends
// cleanly before a frame starts, a *DecodingError for malformed or truncated
// frames, and the reader's own error otherwise.
func ReadFrame(r ByteReader) (Message, error) {
	size, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if size > MaxFrameSize {
		return nil, &DecodingError{Reason: fmt.Sprintf("frame length %d exceeds %d", size, MaxFrameSize)}
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &DecodingError{Reason: "truncated frame body", Err: io.ErrUnexpectedEOF}
		}
		return nil, err
	}
	return decodeBody(body)
}

func readUvarint(r io.ByteReader) (uint64, error) {
	var buf [maxVarintLen]byte
	for i := range buf {
		c, err := r.ReadByte()
		if err != nil {
			if i > 0 && errors.Is(err, io.EOF) {
				return 0, &DecodingError{Reason: "truncated frame length", Err: io.ErrUnexpectedEOF}
			}
			return 0, err
		}
		buf[i] = c
		if c < 0x80 {
			v, n := protowire.ConsumeVarint(buf[:i+1])
			if n < 0 {
				return 0, &DecodingError{Reason: "read frame length", Err: protowire.ParseError(n)}
			}
			return v, nil
		}
	}
	return 0, &DecodingError{Reason: "frame length overflows 64 bits"}
}

func appendBody(b []byte, msg Message) ([]byte, error) {
	if msg == nil {
		return nil, &EncodingError{Reason: "nil message"}
	}

	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Kind()))

	switch m := msg.(type) {
	case Ping, Focus, OK:
	case Pong:
		b = protowire.AppendTag(b, fieldIdentifier, protowire.BytesType)
		b = protowire.AppendString(b, m.Identifier)
	case CommandLineArguments:
		for _, arg := range m.Args {
			b = protowire.AppendTag(b, fieldArgument, protowire.BytesType)
			b = protowire.AppendString(b, arg)
			if len(b) > MaxFrameSize {
				break
			}
		}
	default:
		return nil, &EncodingError{Kind: msg.Kind(), Reason: fmt.Sprintf("unsupported message type %T", msg)}
	}

	if len(b) > MaxFrameSize {
		return nil, &EncodingError{Kind: msg.Kind(), Reason: fmt.Sprintf("payload exceeds %d bytes", MaxFrameSize)}
	}
	return b, nil
}

func decodeBody(b []byte) (Message, error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return nil, &DecodingError{Reason: "read kind tag", Err: protowire.ParseError(n)}
	}
	if num != fieldKind || typ != protowire.VarintType {
		return nil, &DecodingError{Reason: fmt.Sprintf("expected kind tag, got field %d", num)}
	}
	b = b[n:]

	raw, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return nil, &DecodingError{Reason: "read kind", Err: protowire.ParseError(n)}
	}
	b = b[n:]
	if raw > 0xff || !Kind(raw).Valid() {
		return nil, &DecodingError{Reason: fmt.Sprintf("unknown kind tag %d", raw)}
	}
	kind := Kind(raw)

	var (
		identifier *string
		args       = []string{}
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, &DecodingError{Reason: "read field tag", Err: protowire.ParseError(n)}
		}
		b = b[n:]

		allowed := typ == protowire.BytesType &&
			((num == fieldIdentifier && kind == KindPong) ||
				(num == fieldArgument && kind == KindSendCommandLineArguments))
		if !allowed {
			return nil, &DecodingError{Reason: fmt.Sprintf("field %d not allowed in %s", num, kind)}
		}

		value, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, &DecodingError{Reason: fmt.Sprintf("read field %d", num), Err: protowire.ParseError(n)}
		}
		b = b[n:]

		if num == fieldIdentifier {
			if identifier != nil {
				return nil, &DecodingError{Reason: "duplicate PONG identifier"}
			}
			s := string(value)
			identifier = &s
			continue
		}
		args = append(args, string(value))
	}

	switch kind {
	case KindPing:
		return Ping{}, nil
	case KindPong:
		if identifier == nil {
			return nil, &DecodingError{Reason: "PONG without identifier"}
		}
		return Pong{Identifier: *identifier}, nil
	case KindSendCommandLineArguments:
		return CommandLineArguments{Args: args}, nil
	case KindFocus:
		return Focus{}, nil
	default:
		return OK{}, nil
	}
}
