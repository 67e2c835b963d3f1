package reaper

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"rollop/internal/registry"
)

// Store is the registry view the janitor needs. *registry.Store satisfies it.
type Store interface {
	Running(ctx context.Context) ([]registry.Entry, error)
	MarkExited(ctx context.Context, id int64, exitErr error) error
	PruneExited(ctx context.Context) (int64, error)
}

// Locker guards the workspace against a concurrent devnet run.
// *processes.Manager satisfies it.
type Locker interface {
	Acquire() error
}

// Janitor reaps registry entries by process name and closes their rows.
type Janitor struct {
	Store  Store
	Reaper *Reaper
	// Lock, when set, must be acquired before anything is reaped.
	Lock Locker
}

// ReapStale terminates still-running registered processes whose name is in
// names (all of them when names is empty), marks their rows exited and
// prunes exited rows from the registry. It fails without touching anything
// when Lock cannot be acquired.
func (j Janitor) ReapStale(ctx context.Context, names ...string) ([]Outcome, error) {
	if j.Lock != nil {
		if err := j.Lock.Acquire(); err != nil {
			return nil, err
		}
	}
	if j.Store == nil || j.Reaper == nil {
		return nil, nil
	}
	running, err := j.Store.Running(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registered processes: %w", err)
	}
	var targets []registry.Entry
	for _, entry := range running {
		if len(names) == 0 || slices.Contains(names, entry.Name) {
			targets = append(targets, entry)
		}
	}

	var (
		outcomes []Outcome
		errs     []error
	)
	if len(targets) > 0 {
		var reapErr error
		outcomes, reapErr = j.Reaper.Reap(ctx, targets)
		if reapErr != nil {
			errs = append(errs, reapErr)
		}
	}
	for _, outcome := range outcomes {
		// A failed signal keeps the row so the next clean retries it.
		if outcome.Action == ActionSkipped && !outcome.foreign {
			continue
		}
		if err := j.Store.MarkExited(ctx, outcome.Entry.ID, fmt.Errorf("reaped: %s", outcome.Detail)); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := j.Store.PruneExited(ctx); err != nil {
		errs = append(errs, err)
	}
	return outcomes, errors.Join(errs...)
}
