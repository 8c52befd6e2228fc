// Package focus brings the primary instance's window to the front.
package focus

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rbright/refkeep/internal/config"
	"github.com/rbright/refkeep/internal/hypr"
)

// Focuser raises the application window.
type Focuser interface {
	Focus(ctx context.Context) error
}

// New selects a focuser for the configured backend.
func New(cfg config.FocusConfig, logger *slog.Logger) Focuser {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "command":
		return Command{Argv: cfg.Command.Argv}
	case "none":
		return None{}
	default:
		return &Hypr{Window: cfg.Window, Attempts: 5, Delay: 20 * time.Millisecond, logger: logger}
	}
}

// None ignores focus requests.
type None struct{}

func (None) Focus(context.Context) error { return nil }

// Command runs a user-supplied command to raise the window.
type Command struct {
	Argv []string
}

func (c Command) Focus(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return runCommand(runCtx, c.Argv)
}

// Hypr focuses a window through hyprctl and, for class selectors, confirms
// that the active window changed.
type Hypr struct {
	Window   string
	Attempts int
	Delay    time.Duration
	logger   *slog.Logger
}

func (h *Hypr) Focus(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, 1200*time.Millisecond)
	defer cancel()

	if err := hypr.FocusWindow(runCtx, h.Window); err != nil {
		return fmt.Errorf("focus window: %w", err)
	}

	pattern, ok := classPattern(h.Window)
	if !ok {
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("focus window: invalid class pattern %q: %w", pattern, err)
	}

	window, err := activeWindowWithRetry(runCtx, h.Attempts, h.Delay, func(w hypr.ActiveWindow) bool {
		return re.MatchString(w.Class) || re.MatchString(w.InitialClass)
	})
	if err != nil {
		return fmt.Errorf("confirm focus: %w", err)
	}
	if h.logger != nil {
		h.logger.Debug("window focused", "address", window.Address, "class", window.Class)
	}
	return nil
}

func classPattern(selector string) (string, bool) {
	selector = strings.TrimSpace(selector)
	if !strings.HasPrefix(selector, "class:") {
		return "", false
	}
	return strings.TrimPrefix(selector, "class:"), true
}

// activeWindowWithRetry polls the active window until match accepts it.
func activeWindowWithRetry(ctx context.Context, attempts int, delay time.Duration, match func(hypr.ActiveWindow) bool) (hypr.ActiveWindow, error) {
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		window, err := hypr.QueryActiveWindow(ctx)
		switch {
		case err != nil:
			lastErr = err
		case match(window):
			return window, nil
		default:
			lastErr = fmt.Errorf("active window is %q", window.Class)
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return hypr.ActiveWindow{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	return hypr.ActiveWindow{}, lastErr
}

// runCommand executes argv and reports its combined output on failure.
func runCommand(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("run %s: %w", argv[0], err)
		}
		return fmt.Errorf("run %s: %w (%s)", argv[0], err, trimmed)
	}
	return nil
}
