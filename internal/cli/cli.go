// Package cli parses parley's command line.
package cli

import (
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandStatus  Command = "status"
	CommandStop    Command = "stop"
	CommandDevices Command = "devices"
	CommandVoices  Command = "voices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandStatus:  {},
	CommandStop:    {},
	CommandDevices: {},
	CommandVoices:  {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Parsed is the resolved command plus global flags.
type Parsed struct {
	Command    Command
	ConfigPath string
	EnvFile    string
	Debug      bool
	ShowHelp   bool
}

// Parse reads flags followed by exactly one command.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--debug":
			parsed.Debug = true
		case "--config", "--env-file":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, fmt.Errorf("%s requires a path", arg)
			}
			if arg == "--config" {
				parsed.ConfigPath = args[i]
			} else {
				parsed.EnvFile = args[i]
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}
			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

// HelpText renders top-level command usage.
func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--env-file PATH] [--debug] <command>

Commands:
  run       Start a voice conversation (Ctrl+C or "%[1]s stop" to end)
  status    Print the running conversation's state
  stop      End the running conversation
  devices   List available input devices
  voices    List available synthesis voices
  doctor    Run configuration, credential, and service checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH     Config file path (default: $PARLEY_CONFIG or $XDG_CONFIG_HOME/parley/config.jsonc)
  --env-file PATH   Credentials file loaded before reading the environment (default: ./.env)
  --debug           Verbose logs and console diagnostics
  -h, --help        Show help
  --version         Show version
`, binaryName)
}
