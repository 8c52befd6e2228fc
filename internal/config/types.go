// Package config resolves, parses, validates, and defaults refkeep configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by refkeep.
type Config struct {
	Remote    RemoteConfig
	Focus     FocusConfig
	Indicator IndicatorConfig
	History   HistoryConfig
	Log       LogConfig
}

// RemoteConfig controls the single-instance listener and client.
type RemoteConfig struct {
	Enable           bool
	Host             string
	Port             int
	TimeoutMS        int
	// Zero MaxConnections or AcceptRate means unlimited; excess peers wait.
	MaxConnections   int
	AcceptRate       float64
	AcceptBurst      int
	FocusOnArguments bool
}

// Timeout is the per-exchange bound for connect, send and receive.
func (r RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// FocusConfig selects how the primary window is brought to the front.
type FocusConfig struct {
	Backend string
	Window  string
	Command CommandConfig
}

// IndicatorConfig controls hand-off notifications and the audio cue.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	SoundFile      string
	TimeoutMS      int
}

// HistoryConfig controls the launch history store.
type HistoryConfig struct {
	Enable      bool
	Path        string
	RecentLimit int
}

// LogConfig controls the runtime log level.
type LogConfig struct {
	Level string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
