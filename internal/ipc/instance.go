package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"syscall"
)

var (
	ErrAlreadyRunning = errors.New("refkeep instance already running")
	ErrPortInUse      = errors.New("remote port in use by another application")
)

// Acquire makes this process the primary instance by binding the configured
// port. When the port is taken it pings the owner once: a refkeep peer yields
// ErrAlreadyRunning, anything else ErrPortInUse. There are no retries.
func Acquire(ctx context.Context, cfg ServerConfig, client *Client, handler Handler, logger *slog.Logger) (*Server, error) {
	server, err := Listen(cfg, handler, logger)
	if err == nil {
		return server, nil
	}
	if !isAddrInUse(err) {
		return nil, err
	}

	if client != nil && client.Ping(ctx) {
		return nil, ErrAlreadyRunning
	}
	return nil, fmt.Errorf(
		"%w: cannot use port %d for remote operation; another application may be using it",
		ErrPortInUse,
		cfg.Port,
	)
}

func isAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.EADDRINUSE) || strings.Contains(err.Error(), "address already in use")
}
