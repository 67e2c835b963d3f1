package dispatch

import (
	"fmt"
	"strings"
)

// Command identifies a rollop subcommand.
type Command int

const (
	CommandNone Command = iota
	CommandSetup
	CommandL1
	CommandL2Execution
	CommandDevnet
	CommandClean
)

var commandNames = map[Command]string{
	CommandNone:        "",
	CommandSetup:       "setup",
	CommandL1:          "l1",
	CommandL2Execution: "l2-execution",
	CommandDevnet:      "devnet",
	CommandClean:       "clean",
}

// Commands lists the runnable subcommands in help order.
func Commands() []Command {
	return []Command{CommandSetup, CommandL1, CommandL2Execution, CommandDevnet, CommandClean}
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// ParseCommand converts a command-line token into a Command. The empty string
// maps to CommandNone.
func ParseCommand(value string) (Command, error) {
	value = strings.TrimSpace(value)
	for cmd, name := range commandNames {
		if name == value {
			return cmd, nil
		}
	}
	return CommandNone, fmt.Errorf("unknown command %q", value)
}

// Invocation is the parsed command line. It is read-only after parsing.
type Invocation struct {
	Command        Command
	UseANSIEsc     bool
	ShowStackTrace bool
	ConfigPath     string
}
