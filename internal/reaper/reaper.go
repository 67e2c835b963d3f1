// Package reaper terminates child processes left behind by an earlier rollop
// run that died without tearing its devnet down.
//
// A recorded pid is only signalled when the live process still looks like the
// one rollop started: same executable name and a creation time no later than
// the recorded start. Anything else is treated as pid reuse and left alone.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"rollop/internal/logging"
	"rollop/internal/registry"
)

// Action describes what Reap did with one entry.
type Action string

const (
	ActionKilled  Action = "killed"
	ActionGone    Action = "gone"
	ActionSkipped Action = "skipped"
)

// commLen is the kernel's process name limit; longer names are truncated.
const commLen = 15

// startSlack tolerates the gap between fork and the registry insert.
const startSlack = 5 * time.Second

// Outcome reports the result for one registry entry.
type Outcome struct {
	Entry  registry.Entry
	Action Action
	Detail string

	foreign bool
}

// Reaper signals stale processes.
type Reaper struct {
	logger *slog.Logger
	grace  time.Duration
	poll   time.Duration
}

// New returns a Reaper that waits grace between SIGTERM and SIGKILL.
func New(logger *slog.Logger, grace time.Duration) *Reaper {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	return &Reaper{
		logger: logging.NewComponentLogger(logger, "reaper"),
		grace:  grace,
		poll:   50 * time.Millisecond,
	}
}

// Reap inspects each entry and terminates the ones that are still running.
func (r *Reaper) Reap(ctx context.Context, entries []registry.Entry) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		outcome, err := r.reapOne(ctx, entry)
		if err != nil {
			errs = append(errs, fmt.Errorf("reap %s (pid %d): %w", entry.Name, entry.PID, err))
		}
		outcomes = append(outcomes, outcome)
		r.logger.Info("stale process handled",
			logging.String(logging.FieldProcess, entry.Name),
			logging.Int(logging.FieldPID, entry.PID),
			logging.String("action", string(outcome.Action)),
			logging.String("detail", outcome.Detail),
		)
	}
	return outcomes, errors.Join(errs...)
}

func (r *Reaper) reapOne(ctx context.Context, entry registry.Entry) (Outcome, error) {
	out := Outcome{Entry: entry}
	proc, err := process.NewProcessWithContext(ctx, int32(entry.PID))
	if err != nil {
		out.Action = ActionGone
		out.Detail = "process not found"
		return out, nil
	}
	if !r.alive(ctx, proc) {
		out.Action = ActionGone
		out.Detail = "process already exited"
		return out, nil
	}
	if ok, detail := matches(ctx, proc, entry); !ok {
		out.Action = ActionSkipped
		out.Detail = detail
		out.foreign = true
		return out, nil
	}

	if children, err := proc.ChildrenWithContext(ctx); err == nil {
		for _, child := range children {
			_ = r.terminate(ctx, child)
		}
	}
	if err := r.terminate(ctx, proc); err != nil {
		out.Action = ActionSkipped
		out.Detail = err.Error()
		return out, err
	}
	out.Action = ActionKilled
	out.Detail = "terminated"
	return out, nil
}

func (r *Reaper) terminate(ctx context.Context, proc *process.Process) error {
	if err := proc.TerminateWithContext(ctx); err != nil {
		if !r.alive(ctx, proc) {
			return nil
		}
		return fmt.Errorf("send SIGTERM: %w", err)
	}
	deadline := time.Now().Add(r.grace)
	for time.Now().Before(deadline) {
		if !r.alive(ctx, proc) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.poll):
		}
	}
	if err := proc.KillWithContext(ctx); err != nil && r.alive(ctx, proc) {
		return fmt.Errorf("send SIGKILL: %w", err)
	}
	return nil
}

func (r *Reaper) alive(ctx context.Context, proc *process.Process) bool {
	running, err := proc.IsRunningWithContext(ctx)
	if err != nil || !running {
		return false
	}
	status, err := proc.StatusWithContext(ctx)
	if err == nil && slices.Contains(status, process.Zombie) {
		return false
	}
	return true
}

func matches(ctx context.Context, proc *process.Process, entry registry.Entry) (bool, string) {
	want := filepath.Base(strings.TrimSpace(entry.Command))
	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return false, fmt.Sprintf("read process name: %v", err)
	}
	if !nameMatches(name, want) {
		if exe, err := proc.ExeWithContext(ctx); err != nil || filepath.Base(exe) != want {
			return false, fmt.Sprintf("pid now belongs to %q, expected %q", name, want)
		}
	}
	if created, err := proc.CreateTimeWithContext(ctx); err == nil && !entry.StartedAt.IsZero() {
		if time.UnixMilli(created).After(entry.StartedAt.Add(startSlack)) {
			return false, "pid was reused after the recorded start"
		}
	}
	return true, ""
}

func nameMatches(name, want string) bool {
	if name == want {
		return true
	}
	return len(name) == commLen && strings.HasPrefix(want, name)
}
