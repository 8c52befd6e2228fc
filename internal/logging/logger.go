// Package logging configures runtime JSONL logging output.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Runtime bundles the configured logger, its adjustable level and the open
// file handle lifecycle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	level  *slog.LevelVar
	closer io.Closer
}

// Close flushes and closes the logger output sink.
func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// SetLevel applies a config level name (debug, info, warn, error).
func (r Runtime) SetLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	if r.level != nil {
		r.level.Set(level)
	}
	return nil
}

// New builds a JSONL logger rooted at the resolved state path. The level
// starts at info until SetLevel is called.
func New() (Runtime, error) {
	path, err := resolveLogPath()
	if err != nil {
		return Runtime{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, err
	}

	runtime := NewWriter(f)
	runtime.Path = path
	runtime.closer = f
	return runtime, nil
}

// NewWriter builds a JSON logger over an arbitrary sink.
func NewWriter(w io.Writer) Runtime {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return Runtime{Logger: slog.New(h), level: level}
}

// ParseLevel maps a config level name onto a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// StateDir is the per-user state directory shared with the history store.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "refkeep"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "refkeep"), nil
}

// resolveLogPath selects XDG_STATE_HOME when available, otherwise ~/.local/state.
func resolveLogPath() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "log.jsonl"), nil
}
