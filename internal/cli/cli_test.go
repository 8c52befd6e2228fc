package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToOpen(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.False(t, parsed.ShowHelp)
	require.Equal(t, CommandOpen, parsed.Command)
	require.Empty(t, parsed.Args)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/refkeep.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/refkeep.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantErr   string
		wantCmd   Command
		wantHelp  bool
		wantPath  string
		wantPort  int
		wantArgs  []string
		wantLimit int
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "missing config path", args: []string{"--config"}, wantErr: "needs an argument"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unexpected arguments"},
		{name: "ping with port", args: []string{"--port", "7000", "ping"}, wantCmd: CommandPing, wantPort: 7000},
		{name: "port equals form", args: []string{"--port=7001", "focus"}, wantCmd: CommandFocus, wantPort: 7001},
		{name: "port out of range", args: []string{"--port", "70000"}, wantErr: "between 1 and 65535"},
		{name: "port not a number", args: []string{"--port", "abc"}, wantErr: "invalid argument"},
		{name: "recent default", args: []string{"recent"}, wantCmd: CommandRecent},
		{name: "recent with count", args: []string{"recent", "5"}, wantCmd: CommandRecent, wantLimit: 5},
		{name: "recent bad count", args: []string{"recent", "zero"}, wantErr: "positive integer"},
		{name: "recent extra", args: []string{"recent", "1", "2"}, wantErr: "unexpected arguments"},
		{
			name:     "implicit open positional",
			args:     []string{"a.bib", "--import", "x.ris"},
			wantCmd:  CommandOpen,
			wantArgs: []string{"a.bib", "--import", "x.ris"},
		},
		{
			name:     "implicit open leading flags",
			args:     []string{"--config", "/tmp/cfg", "-o", "a.bib", "-i", "x.ris", "b.bib"},
			wantCmd:  CommandOpen,
			wantPath: "/tmp/cfg",
			wantArgs: []string{"--open=a.bib", "--import=x.ris", "b.bib"},
		},
		{
			name:     "explicit open",
			args:     []string{"open", "--open", "a.bib", "recent"},
			wantCmd:  CommandOpen,
			wantArgs: []string{"--open", "a.bib", "recent"},
		},
		{name: "launch flags before command", args: []string{"--open", "a.bib", "focus"}, wantErr: "must follow"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
			require.Equal(t, tc.wantPort, parsed.Port)
			require.Equal(t, tc.wantLimit, parsed.Limit)
			if tc.wantArgs == nil {
				require.Empty(t, parsed.Args)
			} else {
				require.Equal(t, tc.wantArgs, parsed.Args)
			}
		})
	}
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("refkeep")
	require.Contains(t, text, "open")
	require.Contains(t, text, "focus")
	require.Contains(t, text, "ping")
	require.Contains(t, text, "doctor")
	require.Contains(t, text, "--config PATH")
	require.Contains(t, text, "--port N")
}
