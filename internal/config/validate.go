package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rbright/refkeep/internal/ipc"
)

var (
	focusBackends     = []string{"hypr", "command", "none"}
	indicatorBackends = []string{"hypr", "desktop"}
	logLevels         = []string{"debug", "info", "warn", "error"}
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	host := strings.TrimSpace(cfg.Remote.Host)
	if host == "" {
		return nil, fmt.Errorf("remote.host must not be empty")
	}
	if !ipc.IsLoopbackHost(host) {
		return nil, fmt.Errorf("remote.host must be a loopback address, got %q", host)
	}
	if cfg.Remote.Port < 1 || cfg.Remote.Port > 65535 {
		return nil, fmt.Errorf("remote.port must be between 1 and 65535")
	}
	if cfg.Remote.TimeoutMS <= 0 {
		return nil, fmt.Errorf("remote.timeout_ms must be > 0")
	}
	if cfg.Remote.MaxConnections < 0 {
		return nil, fmt.Errorf("remote.max_connections must be >= 0 (0 means unlimited)")
	}
	if cfg.Remote.AcceptRate < 0 {
		return nil, fmt.Errorf("remote.accept_rate must be >= 0 (0 means unlimited)")
	}
	if cfg.Remote.AcceptBurst < 0 {
		return nil, fmt.Errorf("remote.accept_burst must be >= 0")
	}
	if cfg.Remote.TimeoutMS < 1000 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("remote.timeout_ms=%d is very short; a busy instance may miss hand-offs", cfg.Remote.TimeoutMS)})
	}

	focusBackend := strings.ToLower(strings.TrimSpace(cfg.Focus.Backend))
	if !slices.Contains(focusBackends, focusBackend) {
		return nil, fmt.Errorf("focus.backend must be one of: %s", strings.Join(focusBackends, ", "))
	}
	if focusBackend == "hypr" && strings.TrimSpace(cfg.Focus.Window) == "" {
		return nil, fmt.Errorf("focus.window must not be empty when focus.backend=hypr")
	}
	if focusBackend == "command" && len(cfg.Focus.Command.Argv) == 0 {
		return nil, fmt.Errorf("focus.command must not be empty when focus.backend=command")
	}

	indicatorBackend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if indicatorBackend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if !slices.Contains(indicatorBackends, indicatorBackend) {
		return nil, fmt.Errorf("indicator.backend must be one of: %s", strings.Join(indicatorBackends, ", "))
	}
	if indicatorBackend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.TimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.timeout_ms must be >= 0")
	}

	if cfg.History.RecentLimit <= 0 {
		return nil, fmt.Errorf("history.recent_limit must be > 0")
	}
	if path := strings.TrimSpace(cfg.History.Path); path != "" && !filepath.IsAbs(path) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("history.path %q is relative; it resolves against the working directory", path)})
	}

	if !slices.Contains(logLevels, strings.ToLower(strings.TrimSpace(cfg.Log.Level))) {
		return nil, fmt.Errorf("log.level must be one of: %s", strings.Join(logLevels, ", "))
	}

	return warnings, nil
}

