package processes

import (
	"errors"
	"fmt"
)

var (
	// ErrInterrupted is returned by WaitAll when its context is cancelled. It
	// always wraps the context error as well.
	ErrInterrupted = errors.New("interrupted")
	// ErrLocked reports another supervisor holding the workspace lock.
	ErrLocked = errors.New("another rollop instance is running in this workspace")
	// errCleanExit stands in for a nil wait error on an unexpected exit.
	errCleanExit = errors.New("exit status 0")
)

// ExitError reports a supervised child that stopped on its own.
type ExitError struct {
	Name string
	PID  int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("process %q exited: %v", e.Name, e.Err)
}

func (e *ExitError) Unwrap() error { return e.Err }
