// Package runner executes short-lived external commands (git, make, curl,
// geth init) and captures their output for logging and error reporting.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"rollop/internal/logging"
)

const tailLines = 20

// Command describes a single external invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the current process environment.
	Env    []string
	Stdin  io.Reader
	OnLine func(string)
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

// CommandError reports a command that exited unsuccessfully.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Tail     []string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed", Command{Name: e.Name, Args: e.Args}.String())
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// Exec runs commands with os/exec and logs each output line at debug level.
type Exec struct {
	Logger *slog.Logger
}

// New returns an Exec bound to logger.
func New(logger *slog.Logger) *Exec {
	return &Exec{Logger: logging.NewComponentLogger(logger, "runner")}
}

// Run executes cmd and waits for it to finish.
func (e *Exec) Run(ctx context.Context, c Command) error {
	logger := e.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Debug("running command", logging.String(logging.FieldCommand, c.String()), logging.String("dir", c.Dir))

	cmd := exec.CommandContext(ctx, c.Name, c.Args...) //nolint:gosec
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = c.Stdin
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &CommandError{Name: c.Name, Args: c.Args, ExitCode: -1, Err: err}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		tail    []string
		scanErr error
		once    sync.Once
	)

	forward := func(line string) {
		mu.Lock()
		tail = append(tail, line)
		if len(tail) > tailLines {
			tail = tail[len(tail)-tailLines:]
		}
		if c.OnLine != nil {
			c.OnLine(line)
		}
		mu.Unlock()
		logger.Debug(line, logging.String(logging.FieldCommand, c.Name))
	}

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
			// Keep the pipe empty so the child never blocks on a write.
			_, _ = io.Copy(io.Discard, r)
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)
	wg.Wait()

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &CommandError{Name: c.Name, Args: c.Args, ExitCode: code, Tail: tail, Err: err}
	}
	return nil
}

// Output runs cmd through exec and returns its combined output lines.
func Output(ctx context.Context, e Executor, cmd Command) ([]string, error) {
	var (
		mu    sync.Mutex
		lines []string
	)
	next := cmd.OnLine
	cmd.OnLine = func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		if next != nil {
			next(line)
		}
	}
	err := e.Run(ctx, cmd)
	return lines, err
}
