package ipc

import (
	"context"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 6050
	// DefaultTimeout is generous because the primary may be opening a large
	// library before it can answer.
	DefaultTimeout = 120 * time.Second
)

// Endpoint locates a primary instance.
type Endpoint struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// Addr renders host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Client performs one request/response exchange per call against a primary
// instance. Every failure collapses into a false return plus a log entry.
type Client struct {
	endpoint Endpoint
	logger   *slog.Logger
}

// NewClient creates a client, filling in default host and timeout.
func NewClient(endpoint Endpoint, logger *slog.Logger) *Client {
	if strings.TrimSpace(endpoint.Host) == "" {
		endpoint.Host = DefaultHost
	}
	if endpoint.Timeout <= 0 {
		endpoint.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{endpoint: endpoint, logger: logger}
}

// Endpoint returns the resolved endpoint.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Ping reports whether a refkeep primary answers on the configured port.
func (c *Client) Ping(ctx context.Context) bool {
	reply, err := c.exchange(ctx, Ping{})
	if err != nil {
		c.logger.Debug("could not ping server", "addr", c.endpoint.Addr(), "error", err.Error())
		return false
	}

	if pong, ok := reply.(Pong); ok && pong.Identifier == Identifier {
		return true
	}
	c.logger.Error("cannot use port for remote operation; another application may be using it",
		"port", c.endpoint.Port,
		"reply", describe(reply),
	)
	return false
}

// SendCommandLineArguments hands args to the primary instance.
func (c *Client) SendCommandLineArguments(ctx context.Context, args []string) bool {
	reply, err := c.exchange(ctx, CommandLineArguments{Args: slices.Clone(args)})
	if err != nil {
		c.logger.Debug("could not send args to server",
			"args", strings.Join(args, ", "),
			"port", c.endpoint.Port,
			"error", err.Error(),
		)
		return false
	}
	return c.acknowledged("send args", reply)
}

// SendFocus asks the primary instance to come to the front.
func (c *Client) SendFocus(ctx context.Context) bool {
	reply, err := c.exchange(ctx, Focus{})
	if err != nil {
		c.logger.Debug("could not send focus command to server", "addr", c.endpoint.Addr(), "error", err.Error())
		return false
	}
	return c.acknowledged("send focus", reply)
}

func (c *Client) acknowledged(op string, reply Message) bool {
	if _, ok := reply.(OK); ok {
		return true
	}
	c.logger.Debug(op+": unexpected reply", "port", c.endpoint.Port, "reply", describe(reply))
	return false
}

// exchange runs one request/response round trip on a fresh connection.
func (c *Client) exchange(ctx context.Context, req Message) (Message, error) {
	conn, err := Dial(ctx, c.endpoint.Host, c.endpoint.Port, c.endpoint.Timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.Send(req); err != nil {
		return nil, err
	}
	return conn.Receive()
}

func describe(msg Message) string {
	if msg == nil {
		return "<nil>"
	}
	return msg.Kind().String()
}
