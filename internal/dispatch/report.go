package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
)

const (
	ExitOK        = 0
	ExitFault     = 1
	ExitInterrupt = 130
)

const (
	msgDone        = "Done."
	msgInterrupted = "Interrupted by user."
	msgAborted     = "Aborted with error: "
)

// IsInterrupt reports whether err stems from a user interrupt.
func IsInterrupt(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Report writes the outcome line for err and returns the process exit code.
// With showStackTrace set, faults are written with their full %+v rendering
// instead of the one-line summary.
func Report(w io.Writer, err error, showStackTrace bool) int {
	switch {
	case err == nil:
		fmt.Fprintln(w, msgDone)
		return ExitOK
	case IsInterrupt(err):
		fmt.Fprintln(w, msgInterrupted)
		return ExitInterrupt
	case showStackTrace:
		fmt.Fprintf(w, "%+v\n", err)
		return ExitFault
	default:
		fmt.Fprintln(w, msgAborted+err.Error())
		return ExitFault
	}
}
