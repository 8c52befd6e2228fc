// Package doctor runs readiness diagnostics for config, the remote port,
// focus and indicator tools, and the history store.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rbright/refkeep/internal/config"
	"github.com/rbright/refkeep/internal/history"
	"github.com/rbright/refkeep/internal/hypr"
	"github.com/rbright/refkeep/internal/ipc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment, config and runtime checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded, client *ipc.Client) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	checks = append(checks, checkRemote(ctx, cfg.Remote, client))

	usesHypr := strings.EqualFold(cfg.Focus.Backend, "hypr") ||
		(cfg.Indicator.Enable && !strings.EqualFold(cfg.Indicator.Backend, "desktop"))
	if usesHypr {
		checks = append(checks, checkEnv(hypr.SessionEnv, func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "Hyprland session detected", hypr.SessionEnv+" is empty"))
		checks = append(checks, checkBinary("hyprctl", "focus and notifications use hyprctl"))
	}

	if strings.EqualFold(cfg.Focus.Backend, "command") {
		checks = append(checks, checkCommand(cfg.Focus.Command.Argv, "focus.command"))
	}
	if cfg.Indicator.Enable && strings.EqualFold(cfg.Indicator.Backend, "desktop") {
		checks = append(checks, checkBinary("busctl", "desktop notifications use busctl"))
	}
	if cfg.Indicator.SoundEnable && strings.TrimSpace(cfg.Indicator.SoundFile) != "" {
		checks = append(checks, checkBinary("pw-play", "sound_file playback uses pw-play"))
	}
	if cfg.History.Enable {
		checks = append(checks, checkHistory(ctx, cfg.History))
	}

	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("no file at %q; using defaults", loaded.Path)}
	}
	message := fmt.Sprintf("loaded %q (%s)", loaded.Path, loaded.Format)
	if n := len(loaded.Warnings); n > 0 {
		message += fmt.Sprintf(", %d warning(s)", n)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkRemote reports whether the remote port is free, owned by a running
// refkeep, or held by some other program.
func checkRemote(ctx context.Context, remote config.RemoteConfig, client *ipc.Client) Check {
	const name = "remote.port"
	if !remote.Enable {
		return Check{Name: name, Pass: true, Message: "remote operation disabled"}
	}

	server, err := ipc.Acquire(ctx, ipc.ServerConfig{
		Host:    remote.Host,
		Port:    remote.Port,
		Timeout: remote.Timeout(),
	}, client, probeHandler{}, nil)
	switch {
	case err == nil:
		_ = server.Close()
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("port %d is free", remote.Port)}
	case errors.Is(err, ipc.ErrAlreadyRunning):
		return Check{Name: name, Pass: true, Message: fmt.Sprintf("refkeep is running on port %d", remote.Port)}
	default:
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
}

// probeHandler backs the short-lived listener used to test the port.
type probeHandler struct{}

func (probeHandler) ApplyIncomingArguments(context.Context, []string) error {
	return errors.New("doctor probe")
}

func (probeHandler) RequestFocus(context.Context) error { return errors.New("doctor probe") }

func checkHistory(ctx context.Context, cfg config.HistoryConfig) Check {
	const name = "history"
	path, err := history.ResolvePath(cfg.Path)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	_ = store.Close()
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("writable at %s", path)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	if predicate(os.Getenv(name)) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}
