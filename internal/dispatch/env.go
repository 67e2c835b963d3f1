package dispatch

import (
	"context"

	"rollop/internal/paths"
)

// DefaultMonorepo is the checkout name launchers resolve when Env.Monorepo is empty.
const DefaultMonorepo = "optimism"

// Deps checks for and installs external toolchains.
type Deps interface {
	BasicSetup(ctx context.Context) error
	CheckBasicPrerequisites(ctx context.Context) error
	CheckOrInstallFoundry(ctx context.Context) error
	CheckOrInstallGeth(ctx context.Context) error
	CheckOrInstallOpGeth(ctx context.Context) error
}

// SetupRoutine prepares the monorepo checkout.
type SetupRoutine interface {
	Setup(ctx context.Context) error
}

// L1Launcher deploys and tears down the local L1 node.
type L1Launcher interface {
	DeployDevnetL1(ctx context.Context, p *paths.OPPaths) error
	Clean(ctx context.Context, p *paths.OPPaths) error
}

// L2Launcher deploys and tears down the local L2 execution client.
type L2Launcher interface {
	DeployL2(ctx context.Context, p *paths.OPPaths) error
	Clean(ctx context.Context, p *paths.OPPaths) error
}

// PathResolver resolves the layout of a named monorepo checkout.
type PathResolver interface {
	OPPaths(name string) (*paths.OPPaths, error)
}

// Supervisor blocks until the launched children stop.
type Supervisor interface {
	WaitAll(ctx context.Context) error
}

// Env bundles the collaborators a command sequence calls into.
type Env struct {
	Deps      Deps
	Setup     SetupRoutine
	L1        L1Launcher
	L2        L2Launcher
	Paths     PathResolver
	Processes Supervisor
	// Usage prints help when no command is given.
	Usage    func() error
	Monorepo string
}

func (e Env) monorepo() string {
	if e.Monorepo == "" {
		return DefaultMonorepo
	}
	return e.Monorepo
}
