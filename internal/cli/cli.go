package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/pflag"
)

type Command string

const (
	CommandOpen    Command = "open"
	CommandFocus   Command = "focus"
	CommandPing    Command = "ping"
	CommandRecent  Command = "recent"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandOpen:    {},
	CommandFocus:   {},
	CommandPing:    {},
	CommandRecent:  {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Parsed is the result of global argument parsing. Args holds the launch
// arguments for CommandOpen; Limit is the optional count for CommandRecent.
type Parsed struct {
	Command    Command
	ConfigPath string
	Port       int
	ShowHelp   bool
	Args       []string
	Limit      int
}

// Parse reads global flags, then an optional command. Anything that is not a
// command starts the launch arguments of an implicit open.
func Parse(args []string) (Parsed, error) {
	fs := pflag.NewFlagSet("refkeep", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)

	configPath := fs.String("config", "", "config file path")
	port := fs.Int("port", 0, "remote port")
	help := fs.BoolP("help", "h", false, "show help")
	version := fs.Bool("version", false, "show version")
	opens := fs.StringArrayP(flagOpen, "o", nil, "library to open")
	imports := fs.StringArrayP(flagImport, "i", nil, "file to import")

	if err := fs.Parse(args); err != nil {
		return Parsed{}, err
	}

	parsed := Parsed{Command: CommandOpen, ConfigPath: *configPath}
	if fs.Changed("port") {
		if *port < 1 || *port > 65535 {
			return Parsed{}, fmt.Errorf("--port must be between 1 and 65535, got %d", *port)
		}
		parsed.Port = *port
	}

	switch {
	case *help:
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
		return parsed, nil
	case *version:
		parsed.Command = CommandVersion
		return parsed, nil
	}

	rest := fs.Args()
	leading := Launch{Libraries: *opens, Imports: *imports}
	if len(rest) > 0 {
		if _, ok := validCommands[Command(rest[0])]; ok {
			if !leading.Empty() {
				return Parsed{}, fmt.Errorf("launch flags must follow the %q command", rest[0])
			}
			parsed.Command = Command(rest[0])
			rest = rest[1:]
		}
	}

	switch parsed.Command {
	case CommandOpen:
		parsed.Args = append(leading.Args(), rest...)
	case CommandRecent:
		if len(rest) > 1 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
		if len(rest) == 1 {
			n, err := strconv.Atoi(rest[0])
			if err != nil || n < 1 {
				return Parsed{}, fmt.Errorf("recent count must be a positive integer, got %q", rest[0])
			}
			parsed.Limit = n
		}
	default:
		if len(rest) > 0 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
		parsed.ShowHelp = parsed.Command == CommandHelp
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--port N] [command] [args...]

Commands:
  open      Open libraries (default). Hands them to a running instance if there is one
  focus     Bring the running instance to the front
  ping      Report whether an instance is running
  recent    List recently opened libraries (optional count)
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Open arguments:
  PATH                  Library to open (use "open PATH" if PATH looks like a command)
  -o, --open PATH       Library to open, repeatable
  -i, --import PATH     File to import into the active library, repeatable

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/refkeep/config.jsonc)
  --port N        Remote port (overrides remote.port)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
