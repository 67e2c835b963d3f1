// Package setup prepares the Optimism monorepo checkout: clone, pin to the
// configured ref and run the configured build steps.
package setup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rollop/internal/config"
	"rollop/internal/fileutil"
	"rollop/internal/logging"
	"rollop/internal/paths"
	"rollop/internal/runner"
)

// PathResolver resolves the layout of a named checkout.
type PathResolver interface {
	OPPaths(name string) (*paths.OPPaths, error)
}

// Routine runs the setup command.
type Routine struct {
	cfg    *config.Config
	exec   runner.Executor
	paths  PathResolver
	logger *slog.Logger
}

// New builds a Routine.
func New(cfg *config.Config, exec runner.Executor, resolver PathResolver, logger *slog.Logger) *Routine {
	return &Routine{
		cfg:    cfg,
		exec:   exec,
		paths:  resolver,
		logger: logging.NewComponentLogger(logger, "setup"),
	}
}

// Setup clones the monorepo when absent, checks out the configured ref and
// runs each build step in order. The first failing step aborts.
func (r *Routine) Setup(ctx context.Context) error {
	p, err := r.paths.OPPaths(r.cfg.Optimism.Name)
	if err != nil {
		return err
	}

	if fileutil.Exists(p.Home) {
		r.logger.Info("using existing checkout", logging.String("path", p.Home))
		if err := r.git(ctx, p.Home, "fetch", "--tags", "origin"); err != nil {
			return fmt.Errorf("fetch %s: %w", p.Name, err)
		}
	} else {
		r.logger.Info("cloning monorepo", logging.String("repo", r.cfg.Optimism.RepoURL), logging.String("path", p.Home))
		if err := r.git(ctx, r.cfg.Paths.Workspace, "clone", r.cfg.Optimism.RepoURL, p.Home); err != nil {
			return fmt.Errorf("clone %s: %w", p.Name, err)
		}
	}

	if ref := strings.TrimSpace(r.cfg.Optimism.Ref); ref != "" {
		r.logger.Info("checking out ref", logging.String("ref", ref))
		if err := r.git(ctx, p.Home, "checkout", "--quiet", ref); err != nil {
			return fmt.Errorf("checkout %s: %w", ref, err)
		}
	}

	for i, step := range r.cfg.Optimism.BuildSteps {
		step = strings.TrimSpace(step)
		if step == "" {
			continue
		}
		r.logger.Info("running build step",
			logging.String(logging.FieldCommand, step),
			logging.Int("step", i+1),
			logging.Int("steps", len(r.cfg.Optimism.BuildSteps)),
		)
		if err := r.exec.Run(ctx, runner.Command{Name: "sh", Args: []string{"-c", step}, Dir: p.Home}); err != nil {
			return fmt.Errorf("build step %q: %w", step, err)
		}
	}
	r.logger.Info("monorepo ready", logging.String("path", p.Home))
	return nil
}

func (r *Routine) git(ctx context.Context, dir string, args ...string) error {
	return r.exec.Run(ctx, runner.Command{Name: "git", Args: args, Dir: dir})
}
