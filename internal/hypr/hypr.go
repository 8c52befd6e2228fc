// Package hypr wraps the few hyprctl calls refkeep needs.
package hypr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// SessionEnv is set by Hyprland for every client of a running compositor.
const SessionEnv = "HYPRLAND_INSTANCE_SIGNATURE"

// InSession reports whether the process runs inside a Hyprland session.
func InSession() bool {
	return strings.TrimSpace(os.Getenv(SessionEnv)) != ""
}

func runHyprctl(ctx context.Context, args ...string) error {
	_, err := runHyprctlOutput(ctx, args...)
	return err
}

func runHyprctlOutput(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "hyprctl", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return nil, fmt.Errorf("hyprctl %v failed: %w", args, err)
		}
		return nil, fmt.Errorf("hyprctl %v failed: %w (%s)", args, err, trimmed)
	}
	return out, nil
}
