package ipc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// Conn is one timeout-bounded message channel over a single socket. It is
// owned by whoever opened it and must not be shared across goroutines.
type Conn struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Dial opens a TCP connection to host:port. The timeout bounds the dial and
// every later Send and Receive.
func Dial(ctx context.Context, host string, port int, timeout time.Duration) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Reason: classifyDial(err), Err: err}
	}
	return NewConn(conn, timeout), nil
}

// NewConn wraps an established socket. A non-positive timeout disables deadlines.
func NewConn(conn net.Conn, timeout time.Duration) *Conn {
	return &Conn{conn: conn, reader: bufio.NewReader(conn), timeout: timeout}
}

// Send writes one framed message.
func (c *Conn) Send(msg Message) error {
	frame, err := Encode(msg)
	if err != nil {
		return err
	}

	op := "send " + msg.Kind().String()
	if err := c.conn.SetWriteDeadline(c.deadline()); err != nil {
		return &IOError{Op: op, Err: err}
	}
	n, err := c.conn.Write(frame)
	if err != nil {
		return classifyIO(op, err)
	}
	if n < len(frame) {
		return &IOError{Op: op, Err: io.ErrShortWrite}
	}
	return nil
}

// Receive blocks until one complete message arrives or the timeout expires.
func (c *Conn) Receive() (Message, error) {
	if err := c.conn.SetReadDeadline(c.deadline()); err != nil {
		return nil, &IOError{Op: "receive", Err: err}
	}

	msg, err := ReadFrame(c.reader)
	if err != nil {
		var decodeErr *DecodingError
		if errors.As(err, &decodeErr) {
			return nil, err
		}
		return nil, classifyIO("receive", err)
	}
	return msg, nil
}

// Close releases the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr reports the peer address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Conn) deadline() time.Time {
	if c.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(c.timeout)
}

func classifyDial(err error) ConnectReason {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnectRefused
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return ConnectTimeout
	default:
		return ConnectUnreachable
	}
}

func classifyIO(op string, err error) error {
	if isTimeout(err) {
		return &TimeoutError{Op: op, Err: err}
	}
	return &IOError{Op: op, Err: err}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
