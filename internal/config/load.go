package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Format names the syntax a config file was read as.
type Format string

const (
	FormatNone  Format = "defaults"
	FormatJSONC Format = "jsonc"
	FormatTOML  Format = "toml"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Format   Format
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Format: FormatNone,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Format:   detectFormat(string(content)),
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

func detectFormat(content string) Format {
	trimmed := strings.TrimSpace(content)
	switch {
	case trimmed == "":
		return FormatNone
	case strings.HasPrefix(trimmed, "{"):
		return FormatJSONC
	default:
		return FormatTOML
	}
}
