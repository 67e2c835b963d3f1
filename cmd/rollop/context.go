package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"rollop/internal/config"
	"rollop/internal/dispatch"
	"rollop/internal/logging"
)

// wiring is what a dispatch run needs to build its collaborators.
type wiring struct {
	cfg    *config.Config
	logger *slog.Logger
	color  bool
	stdout io.Writer
}

// envFactory builds the collaborators for one run. The returned cleanup
// tears down anything the run started.
type envFactory func(rt wiring) (dispatch.Env, func() error, error)

type commandContext struct {
	stdout io.Writer
	stderr io.Writer

	noANSI     bool
	stackTrace bool
	configFlag string

	isTerminal func(io.Writer) bool
	newLogger  func(cfg *config.Config, color bool, console io.Writer) (*slog.Logger, error)
	newEnv     envFactory
}

func newCommandContext(stdout, stderr io.Writer) *commandContext {
	return &commandContext{
		stdout:     stdout,
		stderr:     stderr,
		isTerminal: isTerminal,
		newLogger:  logging.NewFromConfig,
		newEnv:     buildEnv,
	}
}

// colorEnabled is false whenever --no-ansi-esc is set or w is not a terminal.
func (c *commandContext) colorEnabled(w io.Writer) bool {
	if c.noANSI {
		return false
	}
	return c.isTerminal(w)
}

func (c *commandContext) loadConfig() (*config.Config, string, bool, error) {
	return config.Load(strings.TrimSpace(c.configFlag))
}

// runDispatch loads configuration, wires collaborators and dispatches inv.
// The outcome line is printed before anything the run started is torn down;
// the exit code is returned.
func (c *commandContext) runDispatch(cmd *cobra.Command, inv dispatch.Invocation) int {
	teardown, err := c.invoke(cmd, inv)
	code := dispatch.Report(cmd.OutOrStdout(), err, inv.ShowStackTrace)
	teardown()
	return code
}

func (c *commandContext) invoke(cmd *cobra.Command, inv dispatch.Invocation) (func(), error) {
	noop := func() {}
	cfg, _, _, err := c.loadConfig()
	if err != nil {
		return noop, err
	}
	color := inv.UseANSIEsc && c.colorEnabled(c.stderr)
	logger, err := c.newLogger(cfg, color, c.stderr)
	if err != nil {
		return noop, err
	}

	env, cleanup, err := c.newEnv(wiring{
		cfg:    cfg,
		logger: logger,
		color:  inv.UseANSIEsc && c.colorEnabled(cmd.OutOrStdout()),
		stdout: cmd.OutOrStdout(),
	})
	if err != nil {
		return noop, err
	}
	teardown := noop
	if cleanup != nil {
		teardown = func() {
			if cerr := cleanup(); cerr != nil {
				logger.Warn("teardown incomplete", logging.Error(cerr))
			}
		}
	}

	logger.Debug("dispatching", logging.String("command", inv.Command.String()))
	return teardown, dispatch.Dispatch(cmd.Context(), inv, env)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
