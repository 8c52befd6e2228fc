package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir       = "refkeep"
	jsoncFile    = "config.jsonc"
	tomlFallback = "config.toml"
)

// ResolvePath applies CLI/XDG/home fallback rules for the config location.
// Without an explicit path, config.jsonc wins; config.toml is used only when it
// exists and config.jsonc does not.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	dir, err := configDir()
	if err != nil {
		return "", err
	}

	preferred := filepath.Join(dir, jsoncFile)
	if _, err := os.Stat(preferred); err == nil {
		return preferred, nil
	}
	fallback := filepath.Join(dir, tomlFallback)
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}
	return preferred, nil
}

func configDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", appDir), nil
}
