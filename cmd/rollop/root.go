package main

import (
	"github.com/spf13/cobra"

	"rollop/internal/dispatch"
)

func newRootCommand(cc *commandContext) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rollop",
		Short:         "Helps you spin up an op-stack rollup",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch.Dispatch(cmd.Context(), dispatch.Invocation{Command: dispatch.CommandNone}, dispatch.Env{Usage: cmd.Help})
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&cc.noANSI, "no-ansi-esc", false, "Disable ANSI escape codes for terminal manipulation")
	flags.BoolVar(&cc.stackTrace, "stack-trace", false, "Display the error stack trace in case of failure")
	flags.StringVarP(&cc.configFlag, "config", "c", "", "Configuration file path")

	for _, command := range dispatch.Commands() {
		rootCmd.AddCommand(newDispatchCommand(cc, command))
	}
	rootCmd.AddCommand(newStatusCommand(cc))
	rootCmd.AddCommand(newConfigCommand(cc))

	return rootCmd
}

var commandHelp = map[dispatch.Command]string{
	dispatch.CommandSetup:       "Installs prerequisites and builds the optimism repository",
	dispatch.CommandL1:          "Spins up a local L1 node with the rollup contracts deployed on it",
	dispatch.CommandL2Execution: "Spins up a local op-geth node",
	dispatch.CommandDevnet:      "Spins up a local devnet, comprising an L1 node and all L2 components",
	dispatch.CommandClean:       "Cleans up build outputs",
}

func newDispatchCommand(cc *commandContext, command dispatch.Command) *cobra.Command {
	return &cobra.Command{
		Use:   command.String(),
		Short: commandHelp[command],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			inv := dispatch.Invocation{
				Command:        command,
				UseANSIEsc:     !cc.noANSI,
				ShowStackTrace: cc.stackTrace,
				ConfigPath:     cc.configFlag,
			}
			if code := cc.runDispatch(cmd, inv); code != dispatch.ExitOK {
				return exitCodeError{code: code}
			}
			return nil
		},
	}
}
