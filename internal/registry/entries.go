package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entry is one spawned child process.
type Entry struct {
	ID        int64
	RunID     string
	Name      string
	PID       int
	Command   string
	LogPath   string
	StartedAt time.Time
	ExitedAt  *time.Time
	ExitError string
}

// Running reports whether the entry has no recorded exit.
func (e Entry) Running() bool {
	return e.ExitedAt == nil
}

const entryColumns = "id, run_id, name, pid, command, log_path, started_at, exited_at, exit_error"

// Record inserts entry and returns its assigned ID.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if strings.TrimSpace(entry.Name) == "" {
		return 0, errors.New("process name is required")
	}
	if entry.PID <= 0 {
		return 0, fmt.Errorf("invalid pid %d", entry.PID)
	}
	started := entry.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO processes (run_id, name, pid, command, log_path, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.Name, entry.PID, entry.Command, entry.LogPath, started.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("record process %s: %w", entry.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read process id: %w", err)
	}
	return id, nil
}

// MarkExited stamps the exit time and cause for id.
func (s *Store) MarkExited(ctx context.Context, id int64, exitErr error) error {
	msg := ""
	if exitErr != nil {
		msg = exitErr.Error()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE processes SET exited_at = ?, exit_error = ? WHERE id = ? AND exited_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), msg, id,
	)
	if err != nil {
		return fmt.Errorf("mark process %d exited: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("process %d not found or already exited", id)
	}
	return nil
}

// Running returns entries without an exit time, oldest first.
func (s *Store) Running(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, "SELECT "+entryColumns+" FROM processes WHERE exited_at IS NULL ORDER BY id")
}

// List returns every entry, oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	return s.query(ctx, "SELECT "+entryColumns+" FROM processes ORDER BY id")
}

// ForRun returns the entries started by one supervisor run.
func (s *Store) ForRun(ctx context.Context, runID string) ([]Entry, error) {
	return s.query(ctx, "SELECT "+entryColumns+" FROM processes WHERE run_id = ? ORDER BY id", runID)
}

// PruneExited removes every exited entry and returns how many were deleted.
// Running rows are kept.
func (s *Store) PruneExited(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM processes WHERE exited_at IS NOT NULL")
	if err != nil {
		return 0, fmt.Errorf("prune processes: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	var entries []Entry
	err := retryOnBusy(ctx, func() error {
		entries = nil
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query processes: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		entry    Entry
		started  string
		exitedAt sql.NullString
	)
	if err := rows.Scan(&entry.ID, &entry.RunID, &entry.Name, &entry.PID, &entry.Command,
		&entry.LogPath, &started, &exitedAt, &entry.ExitError); err != nil {
		return Entry{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Entry{}, fmt.Errorf("parse started_at: %w", err)
	}
	entry.StartedAt = t
	if exitedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, exitedAt.String)
		if err != nil {
			return Entry{}, fmt.Errorf("parse exited_at: %w", err)
		}
		entry.ExitedAt = &t
	}
	return entry, nil
}
