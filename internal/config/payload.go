package config

import (
	"fmt"
	"strings"
)

// fileConfig is the on-disk shape shared by the JSONC and TOML formats. Every
// field is a pointer so that only keys present in the file override defaults.
type fileConfig struct {
	Remote    *fileRemote    `json:"remote" toml:"remote"`
	Focus     *fileFocus     `json:"focus" toml:"focus"`
	Indicator *fileIndicator `json:"indicator" toml:"indicator"`
	History   *fileHistory   `json:"history" toml:"history"`
	Log       *fileLog       `json:"log" toml:"log"`
}

type fileRemote struct {
	Enable           *bool    `json:"enable" toml:"enable"`
	Host             *string  `json:"host" toml:"host"`
	Port             *int     `json:"port" toml:"port"`
	TimeoutMS        *int     `json:"timeout_ms" toml:"timeout_ms"`
	MaxConnections   *int     `json:"max_connections" toml:"max_connections"`
	AcceptRate       *float64 `json:"accept_rate" toml:"accept_rate"`
	AcceptBurst      *int     `json:"accept_burst" toml:"accept_burst"`
	FocusOnArguments *bool    `json:"focus_on_arguments" toml:"focus_on_arguments"`
}

type fileFocus struct {
	Backend *string `json:"backend" toml:"backend"`
	Window  *string `json:"window" toml:"window"`
	Command *string `json:"command" toml:"command"`
}

type fileIndicator struct {
	Enable         *bool   `json:"enable" toml:"enable"`
	Backend        *string `json:"backend" toml:"backend"`
	DesktopAppName *string `json:"desktop_app_name" toml:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable" toml:"sound_enable"`
	SoundFile      *string `json:"sound_file" toml:"sound_file"`
	TimeoutMS      *int    `json:"timeout_ms" toml:"timeout_ms"`
}

type fileHistory struct {
	Enable      *bool   `json:"enable" toml:"enable"`
	Path        *string `json:"path" toml:"path"`
	RecentLimit *int    `json:"recent_limit" toml:"recent_limit"`
}

type fileLog struct {
	Level *string `json:"level" toml:"level"`
}

func (payload fileConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if r := payload.Remote; r != nil {
		if r.Enable != nil {
			cfg.Remote.Enable = *r.Enable
		}
		if r.Host != nil {
			cfg.Remote.Host = strings.TrimSpace(*r.Host)
		}
		if r.Port != nil {
			cfg.Remote.Port = *r.Port
		}
		if r.TimeoutMS != nil {
			cfg.Remote.TimeoutMS = *r.TimeoutMS
		}
		if r.MaxConnections != nil {
			cfg.Remote.MaxConnections = *r.MaxConnections
		}
		if r.AcceptRate != nil {
			cfg.Remote.AcceptRate = *r.AcceptRate
		}
		if r.AcceptBurst != nil {
			cfg.Remote.AcceptBurst = *r.AcceptBurst
		}
		if r.FocusOnArguments != nil {
			cfg.Remote.FocusOnArguments = *r.FocusOnArguments
		}
	}

	if f := payload.Focus; f != nil {
		if f.Backend != nil {
			cfg.Focus.Backend = strings.ToLower(strings.TrimSpace(*f.Backend))
		}
		if f.Window != nil {
			cfg.Focus.Window = strings.TrimSpace(*f.Window)
		}
		if f.Command != nil {
			raw := *f.Command
			argv, err := parseArgv(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid focus.command: %w", err)
			}
			cfg.Focus.Command = CommandConfig{Raw: raw, Argv: argv}
		}
	}

	if i := payload.Indicator; i != nil {
		if i.Enable != nil {
			cfg.Indicator.Enable = *i.Enable
		}
		if i.Backend != nil {
			cfg.Indicator.Backend = strings.ToLower(strings.TrimSpace(*i.Backend))
		}
		if i.DesktopAppName != nil {
			cfg.Indicator.DesktopAppName = strings.TrimSpace(*i.DesktopAppName)
		}
		if i.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *i.SoundEnable
		}
		if i.SoundFile != nil {
			cfg.Indicator.SoundFile = strings.TrimSpace(*i.SoundFile)
		}
		if i.TimeoutMS != nil {
			cfg.Indicator.TimeoutMS = *i.TimeoutMS
		}
	}

	if h := payload.History; h != nil {
		if h.Enable != nil {
			cfg.History.Enable = *h.Enable
		}
		if h.Path != nil {
			cfg.History.Path = strings.TrimSpace(*h.Path)
		}
		if h.RecentLimit != nil {
			cfg.History.RecentLimit = *h.RecentLimit
		}
	}

	if payload.Log != nil && payload.Log.Level != nil {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(*payload.Log.Level))
	}

	return warnings, nil
}
