package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return execute(ctx, newCommandContext(stdout, stderr), args)
}

func execute(ctx context.Context, cc *commandContext, args []string) int {
	cmd := newRootCommand(cc)
	cmd.SetArgs(args)
	cmd.SetOut(cc.stdout)
	cmd.SetErr(cc.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		var exit exitCodeError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintln(cc.stderr, "Error:", err)
		fmt.Fprintf(cc.stderr, "Run '%s --help' for usage.\n", cmd.Name())
		return 1
	}
	return 0
}

// exitCodeError carries a non-zero exit code whose message was already printed.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
