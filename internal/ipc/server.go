package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/refkeep/internal/fsm"
)

var (
	errUnexpectedKind = errors.New("unexpected message kind")
	errRequestExpired = errors.New("request expired before dispatch")
)

// Handler is the running application as seen from the listener.
type Handler interface {
	ApplyIncomingArguments(ctx context.Context, args []string) error
	RequestFocus(ctx context.Context) error
}

// ServerConfig binds and bounds a listener. Port 0 picks an ephemeral port.
type ServerConfig struct {
	Host           string
	Port           int
	Timeout        time.Duration
	Identifier     string
	MaxConnections int
	AcceptRate     float64
	AcceptBurst    int
}

func (c ServerConfig) withDefaults() ServerConfig {
	if strings.TrimSpace(c.Host) == "" {
		c.Host = DefaultHost
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Identifier == "" {
		c.Identifier = Identifier
	}
	return c
}

// Stats is a point-in-time copy of the listener counters. Waited counts
// connections that were paced or queued for a free slot before being
// accepted; Expired counts requests whose deadline passed before dispatch.
type Stats struct {
	Accepted int64
	Waited   int64
	Expired  int64
	Replied  int64
	Dropped  int64
	InFlight int64
	Received map[Kind]int64
}

// Server owns the loopback listening socket of a primary instance.
type Server struct {
	cfg       ServerConfig
	handler   Handler
	logger    *slog.Logger
	listener  net.Listener
	admission *admission

	// dispatchSlot serializes hand-offs; waiting on it honors the request deadline.
	dispatchSlot chan struct{}
	wg           sync.WaitGroup
	done         chan struct{}

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closed  bool

	closeOnce sync.Once
	closeErr  error

	accepted atomic.Int64
	waited   atomic.Int64
	expired  atomic.Int64
	replied  atomic.Int64
	dropped  atomic.Int64
	received [KindOK + 1]atomic.Int64
}

// IsLoopbackHost reports whether host names the local machine only.
func IsLoopbackHost(host string) bool {
	host = strings.TrimSpace(host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Listen binds the configured loopback address.
func Listen(cfg ServerConfig, handler Handler, logger *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("listen: nil handler")
	}
	cfg = cfg.withDefaults()
	if !IsLoopbackHost(cfg.Host) {
		return nil, fmt.Errorf("listen: host %q is not a loopback address", cfg.Host)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("listen: port %d out of range", cfg.Port)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}

	return &Server{
		cfg:          cfg,
		handler:      handler,
		logger:       logger,
		listener:     listener,
		admission:    newAdmission(cfg.MaxConnections, cfg.AcceptRate, cfg.AcceptBurst),
		dispatchSlot: make(chan struct{}, 1),
		done:         make(chan struct{}),
		conns:        make(map[net.Conn]struct{}),
	}, nil
}

// Port reports the bound port, which differs from the configured one when it was 0.
func (s *Server) Port() int {
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.cfg.Port
}

// Addr reports the bound host:port.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve accepts connections until ctx is done or Close is called, handling
// each on its own goroutine. Failed accepts are retried with backoff. It
// returns after in-flight exchanges finish.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	s.logger.Info("remote listener started", "addr", s.Addr())
	defer s.logger.Info("remote listener stopped", "addr", s.Addr())

	var backoff time.Duration
	for {
		waited, err := s.admission.wait(ctx, s.done)
		if err != nil {
			s.wg.Wait()
			return nil
		}
		if waited {
			s.waited.Add(1)
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.admission.release()
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil || s.isClosed() {
				s.wg.Wait()
				return nil
			}

			backoff = nextAcceptBackoff(backoff)
			s.logger.Warn("accept remote connection failed; retrying", "error", err.Error(), "backoff", backoff.String())
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
			case <-s.done:
			}
			s.wg.Wait()
			return nil
		}
		backoff = 0

		if !s.track(conn) {
			s.admission.release()
			_ = conn.Close()
			continue
		}
		s.accepted.Add(1)

		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer s.admission.release()
			defer s.untrack(c)
			s.handle(ctx, c)
		}(conn)
	}
}

// Close stops accepting and closes every in-flight connection.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.listener.Close()

		s.connsMu.Lock()
		s.closed = true
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.connsMu.Unlock()
	})
	return s.closeErr
}

// Stats returns a snapshot of the listener counters.
func (s *Server) Stats() Stats {
	received := make(map[Kind]int64)
	for kind := KindPing; kind <= KindOK; kind++ {
		if n := s.received[kind].Load(); n > 0 {
			received[kind] = n
		}
	}
	return Stats{
		Accepted: s.accepted.Load(),
		Waited:   s.waited.Load(),
		Expired:  s.expired.Load(),
		Replied:  s.replied.Load(),
		Dropped:  s.dropped.Load(),
		InFlight: s.admission.inFlight(),
		Received: received,
	}
}

func (s *Server) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// nextAcceptBackoff doubles from 5ms up to one second.
func nextAcceptBackoff(prev time.Duration) time.Duration {
	const maxBackoff = time.Second
	if prev <= 0 {
		return 5 * time.Millisecond
	}
	return min(prev*2, maxBackoff)
}

func (s *Server) track(conn net.Conn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

// exchange follows one connection through its states.
type exchange struct {
	state  fsm.State
	logger *slog.Logger
}

func (e *exchange) advance(event fsm.Event) {
	next, err := fsm.Transition(e.state, event)
	if err != nil {
		e.logger.Error("remote exchange state", "error", err.Error())
		return
	}
	e.state = next
}

func (s *Server) handle(ctx context.Context, raw net.Conn) {
	conn := NewConn(raw, s.cfg.Timeout)
	defer conn.Close()

	ex := &exchange{
		state: fsm.StateAwaitingMessage,
		logger: s.logger.With(
			"exchange", uuid.NewString(),
			"remote", conn.RemoteAddr(),
		),
	}

	msg, err := conn.Receive()
	if err != nil {
		s.dropped.Add(1)
		ex.advance(fsm.EventFail)
		ex.logger.Debug("remote exchange dropped before a message arrived", "error", err.Error())
		return
	}
	s.received[msg.Kind()].Add(1)
	ex.advance(fsm.EventReceived)

	// The sender's reply timer is already running; the request shares it.
	dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	reply, err := s.dispatch(dispatchCtx, msg)
	if err != nil {
		s.dropped.Add(1)
		ex.advance(fsm.EventClose)
		level := slog.LevelWarn
		switch {
		case errors.Is(err, errUnexpectedKind):
			level = slog.LevelDebug
		case errors.Is(err, errRequestExpired):
			s.expired.Add(1)
		}
		ex.logger.Log(ctx, level, "remote request not acknowledged", "kind", msg.Kind().String(), "error", err.Error())
		return
	}

	if err := conn.Send(reply); err != nil {
		s.dropped.Add(1)
		ex.advance(fsm.EventFail)
		ex.logger.Debug("remote reply failed", "kind", msg.Kind().String(), "error", err.Error())
		return
	}
	s.replied.Add(1)
	ex.advance(fsm.EventReplied)
	ex.advance(fsm.EventClose)
	ex.logger.Debug("remote request handled", "kind", msg.Kind().String(), "reply", reply.Kind().String())
}

// dispatch maps a request to its reply. Hand-offs run one at a time, and a
// request whose deadline passes while it waits is never handed over.
func (s *Server) dispatch(ctx context.Context, msg Message) (Message, error) {
	switch m := msg.(type) {
	case Ping:
		return Pong{Identifier: s.cfg.Identifier}, nil
	case CommandLineArguments:
		release, err := s.acquireDispatch(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		if err := s.handler.ApplyIncomingArguments(ctx, slices.Clone(m.Args)); err != nil {
			return nil, fmt.Errorf("apply incoming arguments: %w", err)
		}
		return OK{}, nil
	case Focus:
		release, err := s.acquireDispatch(ctx)
		if err != nil {
			return nil, err
		}
		defer release()

		if err := s.handler.RequestFocus(ctx); err != nil {
			return nil, fmt.Errorf("request focus: %w", err)
		}
		return OK{}, nil
	default:
		return nil, fmt.Errorf("%w: %s from client", errUnexpectedKind, msg.Kind())
	}
}

func (s *Server) acquireDispatch(ctx context.Context) (func(), error) {
	select {
	case s.dispatchSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", errRequestExpired, ctx.Err())
	}
	if err := ctx.Err(); err != nil {
		<-s.dispatchSlot
		return nil, fmt.Errorf("%w: %w", errRequestExpired, err)
	}
	return func() { <-s.dispatchSlot }, nil
}
