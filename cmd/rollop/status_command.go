package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"rollop/internal/registry"
)

func newStatusCommand(cc *commandContext) *cobra.Command {
	var (
		all   bool
		runID string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show devnet processes recorded by previous runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := cc.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := cc.colorEnabled(out)

			dbPath := registryPath(cfg.Paths.GenDir)
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				fmt.Fprintln(out, renderStatusLine("Processes", statusInfo, "none recorded", colorize))
				return nil
			}

			store, err := registry.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open process registry: %w", err)
			}
			defer store.Close()

			var entries []registry.Entry
			empty := "none running"
			switch {
			case runID != "":
				entries, err = store.ForRun(cmd.Context(), runID)
				empty = "none recorded for run " + runID
			case all:
				entries, err = store.List(cmd.Context())
			default:
				entries, err = store.Running(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("list processes: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, renderStatusLine("Processes", statusInfo, empty, colorize))
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "PID", "Started", "State", "Log"},
				statusRows(entries),
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include processes that already exited")
	cmd.Flags().StringVar(&runID, "run", "", "Show every process started by one run ID, exited or not")
	return cmd
}

func statusRows(entries []registry.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, []string{
			entry.Name,
			strconv.Itoa(entry.PID),
			entry.StartedAt.Local().Format(time.DateTime),
			entryState(entry),
			entry.LogPath,
		})
	}
	return rows
}

func entryState(entry registry.Entry) string {
	switch {
	case entry.Running():
		return "running"
	case entry.ExitError != "":
		return "exited: " + entry.ExitError
	default:
		return "exited"
	}
}
