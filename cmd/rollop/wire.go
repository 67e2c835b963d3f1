package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"rollop/internal/chain"
	"rollop/internal/deps"
	"rollop/internal/dispatch"
	"rollop/internal/l1"
	"rollop/internal/l2exec"
	"rollop/internal/paths"
	"rollop/internal/processes"
	"rollop/internal/reaper"
	"rollop/internal/registry"
	"rollop/internal/runner"
	"rollop/internal/setup"
)

const (
	registryFile = "processes.db"
	lockFile     = "rollop.lock"
)

func registryPath(genDir string) string {
	return filepath.Join(genDir, registryFile)
}

// buildEnv wires the production collaborators for one dispatch run.
func buildEnv(rt wiring) (dispatch.Env, func() error, error) {
	cfg := rt.cfg
	if err := cfg.EnsureDirectories(); err != nil {
		return dispatch.Env{}, nil, fmt.Errorf("ensure directories: %w", err)
	}

	store, err := registry.Open(registryPath(cfg.Paths.GenDir))
	if err != nil {
		return dispatch.Env{}, nil, fmt.Errorf("open process registry: %w", err)
	}

	exec := runner.New(rt.logger)
	procs := processes.NewManager(processes.Options{
		Logger:          rt.logger,
		ShutdownTimeout: cfg.ShutdownTimeout(),
		Ledger:          store,
		LockPath:        filepath.Join(cfg.Paths.GenDir, lockFile),
	})
	janitor := &reaper.Janitor{
		Store:  store,
		Reaper: reaper.New(rt.logger, cfg.ShutdownTimeout()),
		Lock:   procs,
	}
	waiter := &chain.Waiter{Logger: rt.logger}
	resolver := paths.Resolver{
		Workspace: cfg.Paths.Workspace,
		GenDir:    cfg.Paths.GenDir,
		LogDir:    cfg.Paths.LogDir,
	}

	env := dispatch.Env{
		Deps: deps.NewChecker(cfg, rt.logger,
			deps.WithExecutor(exec),
			deps.WithOutput(rt.stdout),
			deps.WithColor(rt.color),
		),
		Setup:     setup.New(cfg, exec, resolver, rt.logger),
		L1:        l1.New(cfg, exec, procs, waiter, janitor, rt.logger),
		L2:        l2exec.New(cfg, exec, procs, waiter, janitor, rt.logger),
		Paths:     resolver,
		Processes: procs,
		Monorepo:  cfg.Optimism.Name,
	}

	cleanup := func() error {
		return errors.Join(procs.TerminateAll(), store.Close())
	}
	return env, cleanup, nil
}
