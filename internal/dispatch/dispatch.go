package dispatch

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrUnknownCommand reports a Command with no registered handler.
var ErrUnknownCommand = errors.New("unknown command")

// Handler runs one command's sequence against env.
type Handler func(ctx context.Context, env Env) error

var handlers = map[Command]Handler{
	CommandNone:        runUsage,
	CommandSetup:       runSetup,
	CommandL1:          runL1,
	CommandL2Execution: runL2Execution,
	CommandDevnet:      runDevnet,
	CommandClean:       runClean,
}

// Dispatch runs the sequence registered for inv.Command. Faults carry a stack
// trace; cancellation errors are returned unwrapped. A panic inside a handler is
// recovered and returned as a fault.
func Dispatch(ctx context.Context, inv Invocation, env Env) (err error) {
	handler, ok := handlers[inv.Command]
	if !ok {
		return pkgerrors.WithStack(fmt.Errorf("%w: %s", ErrUnknownCommand, inv.Command))
	}

	defer func() {
		if r := recover(); r != nil {
			if perr, ok := r.(error); ok {
				err = pkgerrors.Wrap(perr, "panic")
				return
			}
			err = pkgerrors.Errorf("panic: %v", r)
		}
	}()

	if err := handler(ctx, env); err != nil {
		if IsInterrupt(err) {
			return err
		}
		return withStack(err)
	}
	return nil
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

func withStack(err error) error {
	if _, ok := err.(stackTracer); ok {
		return err
	}
	return pkgerrors.WithStack(err)
}

func runUsage(_ context.Context, env Env) error {
	if env.Usage == nil {
		return nil
	}
	return env.Usage()
}

func basicChecks(ctx context.Context, env Env) error {
	if err := env.Deps.BasicSetup(ctx); err != nil {
		return err
	}
	return env.Deps.CheckBasicPrerequisites(ctx)
}

func runSetup(ctx context.Context, env Env) error {
	if err := basicChecks(ctx, env); err != nil {
		return err
	}
	return env.Setup.Setup(ctx)
}

func runL1(ctx context.Context, env Env) error {
	if err := basicChecks(ctx, env); err != nil {
		return err
	}
	if err := env.Deps.CheckOrInstallFoundry(ctx); err != nil {
		return err
	}
	if err := env.Deps.CheckOrInstallGeth(ctx); err != nil {
		return err
	}
	p, err := env.Paths.OPPaths(env.monorepo())
	if err != nil {
		return err
	}
	if err := env.L1.DeployDevnetL1(ctx, p); err != nil {
		return err
	}
	return env.Processes.WaitAll(ctx)
}

func runL2Execution(ctx context.Context, env Env) error {
	if err := basicChecks(ctx, env); err != nil {
		return err
	}
	if err := env.Deps.CheckOrInstallOpGeth(ctx); err != nil {
		return err
	}
	p, err := env.Paths.OPPaths(env.monorepo())
	if err != nil {
		return err
	}
	if err := env.L2.DeployL2(ctx, p); err != nil {
		return err
	}
	return env.Processes.WaitAll(ctx)
}

func runDevnet(ctx context.Context, env Env) error {
	if err := basicChecks(ctx, env); err != nil {
		return err
	}
	if err := env.Deps.CheckOrInstallFoundry(ctx); err != nil {
		return err
	}
	if err := env.Deps.CheckOrInstallGeth(ctx); err != nil {
		return err
	}
	p, err := env.Paths.OPPaths(env.monorepo())
	if err != nil {
		return err
	}
	if err := env.L1.DeployDevnetL1(ctx, p); err != nil {
		return err
	}
	if err := env.Deps.CheckOrInstallOpGeth(ctx); err != nil {
		return err
	}
	if err := env.L2.DeployL2(ctx, p); err != nil {
		return err
	}
	return env.Processes.WaitAll(ctx)
}

func runClean(ctx context.Context, env Env) error {
	if err := basicChecks(ctx, env); err != nil {
		return err
	}
	p, err := env.Paths.OPPaths(env.monorepo())
	if err != nil {
		return err
	}
	if err := env.L1.Clean(ctx, p); err != nil {
		return err
	}
	return env.L2.Clean(ctx, p)
}
