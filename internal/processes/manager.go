package processes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"rollop/internal/logging"
	"rollop/internal/registry"
)

const defaultShutdownTimeout = 10 * time.Second

// Ledger records spawned children. *registry.Store satisfies it.
type Ledger interface {
	Record(ctx context.Context, entry registry.Entry) (int64, error)
	MarkExited(ctx context.Context, id int64, exitErr error) error
}

// Spec describes a child to launch.
type Spec struct {
	Name    string
	Command string
	Args    []string
	Dir     string
	Env     []string
	LogPath string
}

// Process is a launched child.
type Process struct {
	Spec
	PID       int
	StartedAt time.Time

	cmd     *exec.Cmd
	logFile *os.File
	entryID int64
	done    chan struct{}
	err     error
}

// Done is closed once the child has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

// Err returns the wait error after Done is closed.
func (p *Process) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Options configures a Manager.
type Options struct {
	Logger          *slog.Logger
	ShutdownTimeout time.Duration
	Ledger          Ledger
	// LockPath, when set, is locked on the first Start.
	LockPath string
}

// Manager owns the set of supervised children.
type Manager struct {
	logger   *slog.Logger
	shutdown time.Duration
	ledger   Ledger
	runID    string
	lock     *flock.Flock

	mu     sync.Mutex
	procs  []*Process
	locked bool
}

// NewManager returns an empty supervisor with a fresh run ID.
func NewManager(opts Options) *Manager {
	runID := uuid.NewString()
	shutdown := opts.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = defaultShutdownTimeout
	}
	m := &Manager{
		logger:   logging.NewComponentLogger(opts.Logger, "processes").With(logging.String(logging.FieldRunID, runID)),
		shutdown: shutdown,
		ledger:   opts.Ledger,
		runID:    runID,
	}
	if opts.LockPath != "" {
		m.lock = flock.New(opts.LockPath)
	}
	return m
}

// RunID identifies this supervisor run in logs and the registry.
func (m *Manager) RunID() string { return m.runID }

// Processes returns the launched children in start order.
func (m *Manager) Processes() []*Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Process, len(m.procs))
	copy(out, m.procs)
	return out
}

// Acquire takes the workspace lock without starting a child. It returns
// ErrLocked when another run holds it. TerminateAll releases it.
func (m *Manager) Acquire() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquireLock()
}

func (m *Manager) acquireLock() error {
	if m.lock == nil || m.locked {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrLocked, m.lock.Path())
	}
	m.locked = true
	return nil
}

// Start launches spec as a new child in its own process group.
func (m *Manager) Start(ctx context.Context, spec Spec) (*Process, error) {
	if strings.TrimSpace(spec.Name) == "" || strings.TrimSpace(spec.Command) == "" {
		return nil, errors.New("process name and command are required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.acquireLock(); err != nil {
		return nil, err
	}
	for _, p := range m.procs {
		if p.Name == spec.Name {
			return nil, fmt.Errorf("process %q already started", spec.Name)
		}
	}

	cmd := exec.Command(spec.Command, spec.Args...) //nolint:gosec
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var logFile *os.File
	if spec.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(spec.LogPath), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(spec.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log %s: %w", spec.LogPath, err)
		}
		fmt.Fprintf(f, "=== rollop run %s: %s started %s ===\n", m.runID, spec.Name, time.Now().UTC().Format(time.RFC3339))
		cmd.Stdout = f
		cmd.Stderr = f
		logFile = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}

	p := &Process{
		Spec:      spec,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
		cmd:       cmd,
		logFile:   logFile,
		done:      make(chan struct{}),
	}
	m.procs = append(m.procs, p)

	if m.ledger != nil {
		id, err := m.ledger.Record(ctx, registry.Entry{
			RunID:     m.runID,
			Name:      spec.Name,
			PID:       p.PID,
			Command:   spec.Command,
			LogPath:   spec.LogPath,
			StartedAt: p.StartedAt,
		})
		if err != nil {
			logging.WarnWithContext(m.logger, "failed to record process", "registry_write",
				logging.String(logging.FieldProcess, spec.Name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "clean will not find this process if rollop crashes"),
			)
		} else {
			p.entryID = id
		}
	}

	go m.wait(p)

	m.logger.Info("process started",
		logging.String(logging.FieldEventType, "process_start"),
		logging.String(logging.FieldProcess, spec.Name),
		logging.Int(logging.FieldPID, p.PID),
		logging.String("log", spec.LogPath),
	)
	return p, nil
}

func (m *Manager) wait(p *Process) {
	err := p.cmd.Wait()
	if p.logFile != nil {
		_ = p.logFile.Close()
	}
	p.err = err

	// The row is closed before done so callers may close the ledger once
	// TerminateAll returns.
	if m.ledger != nil && p.entryID != 0 {
		if markErr := m.ledger.MarkExited(context.Background(), p.entryID, err); markErr != nil {
			m.logger.Debug("failed to mark process exited", logging.String(logging.FieldProcess, p.Name), logging.Error(markErr))
		}
	}
	m.logger.Info("process exited",
		logging.String(logging.FieldEventType, "process_exit"),
		logging.String(logging.FieldProcess, p.Name),
		logging.Int(logging.FieldPID, p.PID),
		logging.Any("status", err),
	)
	close(p.done)
}

// WaitAll blocks until ctx is cancelled or any child exits, then tears down
// the remaining children. It returns nil immediately when nothing was started.
func (m *Manager) WaitAll(ctx context.Context) error {
	procs := m.Processes()
	if len(procs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range procs {
		g.Go(func() error {
			select {
			case <-p.done:
				cause := p.err
				if cause == nil {
					cause = errCleanExit
				}
				return &ExitError{Name: p.Name, PID: p.PID, Err: cause}
			case <-gctx.Done():
				return nil
			}
		})
	}
	waitErr := g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		m.logger.Info("interrupt received, stopping processes")
		if err := m.TerminateAll(); err != nil {
			m.logger.Warn("teardown incomplete", logging.Error(err))
		}
		return fmt.Errorf("%w: %w", ErrInterrupted, ctxErr)
	}

	logging.WarnWithContext(m.logger, "process exited unexpectedly", "process_exit",
		logging.Error(waitErr),
		logging.String(logging.FieldErrorHint, "inspect the process log under the logs directory"),
		logging.String(logging.FieldImpact, "devnet stopped"),
	)
	if err := m.TerminateAll(); err != nil {
		return errors.Join(waitErr, err)
	}
	return waitErr
}

// TerminateAll stops every running child in reverse start order and releases
// the workspace lock. It is safe to call more than once.
func (m *Manager) TerminateAll() error {
	procs := m.Processes()
	var errs []error
	for i := len(procs) - 1; i >= 0; i-- {
		if err := m.terminate(procs[i]); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	if m.lock != nil && m.locked {
		if err := m.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release lock: %w", err))
		} else {
			m.locked = false
		}
	}
	m.mu.Unlock()
	return errors.Join(errs...)
}

func (m *Manager) terminate(p *Process) error {
	select {
	case <-p.done:
		return nil
	default:
	}

	m.logger.Info("stopping process", logging.String(logging.FieldProcess, p.Name), logging.Int(logging.FieldPID, p.PID))
	if err := unix.Kill(-p.PID, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal %s: %w", p.Name, err)
	}

	timer := time.NewTimer(m.shutdown)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-timer.C:
	}

	m.logger.Warn("process ignored SIGTERM, killing",
		logging.String(logging.FieldProcess, p.Name),
		logging.Duration("timeout", m.shutdown),
	)
	if err := unix.Kill(-p.PID, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill %s: %w", p.Name, err)
	}
	select {
	case <-p.done:
		return nil
	case <-time.After(m.shutdown):
		return fmt.Errorf("process %s (pid %d) did not exit after SIGKILL", p.Name, p.PID)
	}
}

// AwaitReady runs ready until it returns. If p exits first, ready's context
// is cancelled and an *ExitError is returned instead.
func AwaitReady(ctx context.Context, p *Process, ready func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- ready(ctx) }()

	select {
	case err := <-result:
		return err
	case <-p.Done():
		err := p.Err()
		if err == nil {
			err = errCleanExit
		}
		return &ExitError{Name: p.Name, PID: p.PID, Err: err}
	}
}
