// Package l2exec deploys the L2 execution client: an op-geth node initialised
// from the L2 genesis that the L1 deployment generated, with the engine API
// secured by a JWT secret shared with the rollup node.
package l2exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"path/filepath"
	"strconv"
	"time"

	"rollop/internal/chain"
	"rollop/internal/config"
	"rollop/internal/fileutil"
	"rollop/internal/logging"
	"rollop/internal/paths"
	"rollop/internal/preflight"
	"rollop/internal/processes"
	"rollop/internal/reaper"
	"rollop/internal/runner"
)

// ProcessName identifies the L2 engine in logs and the registry.
const ProcessName = "l2_engine"

// Supervisor launches long-running children.
type Supervisor interface {
	Start(ctx context.Context, spec processes.Spec) (*processes.Process, error)
}

// ReadyWaiter blocks until an RPC endpoint serves the wanted chain.
type ReadyWaiter interface {
	WaitForChainID(ctx context.Context, url string, want *big.Int, timeout time.Duration) error
}

// StaleReaper stops registered processes left over from a previous run.
type StaleReaper interface {
	ReapStale(ctx context.Context, names ...string) ([]reaper.Outcome, error)
}

// Launcher deploys and cleans the L2 execution client.
type Launcher struct {
	cfg    *config.Config
	exec   runner.Executor
	procs  Supervisor
	waiter ReadyWaiter
	stale  StaleReaper
	logger *slog.Logger
	opGeth string
}

// New builds a Launcher that runs <bin>/op-geth.
func New(cfg *config.Config, exec runner.Executor, procs Supervisor, waiter ReadyWaiter, stale StaleReaper, logger *slog.Logger) *Launcher {
	return &Launcher{
		cfg:    cfg,
		exec:   exec,
		procs:  procs,
		waiter: waiter,
		stale:  stale,
		logger: logging.NewComponentLogger(logger, "l2"),
		opGeth: filepath.Join(cfg.Paths.BinDir, "op-geth"),
	}
}

// DeployL2 initialises and starts op-geth, then waits for its RPC.
func (l *Launcher) DeployL2(ctx context.Context, p *paths.OPPaths) error {
	if err := p.EnsureGenDir(); err != nil {
		return err
	}
	if err := preflight.Check(
		preflight.CheckPortFree("L2 RPC port", l.cfg.L2.RPCPort),
		preflight.CheckPortFree("L2 WS port", l.cfg.L2.WSPort),
		preflight.CheckPortFree("L2 auth RPC port", l.cfg.L2.AuthPort),
	); err != nil {
		return err
	}
	if err := preflight.Check(preflight.CheckFileExists("L2 genesis", p.L2GenesisPath)); err != nil {
		return fmt.Errorf("%w (run 'rollop l1' or 'rollop devnet' to generate it)", err)
	}
	chainID, err := chain.GenesisChainID(p.L2GenesisPath)
	if err != nil {
		return err
	}

	if _, err := chain.EnsureJWTSecret(p.JWTSecretPath); err != nil {
		return err
	}

	if !fileutil.Exists(filepath.Join(p.L2DataDir, "geth", "chaindata")) {
		l.logger.Info("initialising L2 datadir", logging.String("dir", p.L2DataDir))
		if err := l.exec.Run(ctx, runner.Command{
			Name: l.opGeth,
			Args: []string{"--datadir", p.L2DataDir, "init", p.L2GenesisPath},
		}); err != nil {
			return fmt.Errorf("op-geth init: %w", err)
		}
	}

	proc, err := l.procs.Start(ctx, processes.Spec{
		Name:    ProcessName,
		Command: l.opGeth,
		Args:    l.opGethArgs(p, chainID),
		Dir:     p.GenDir,
		LogPath: p.LogPath(ProcessName),
	})
	if err != nil {
		return fmt.Errorf("start L2 engine: %w", err)
	}
	l.logger.Info("L2 engine starting",
		logging.Int(logging.FieldPID, proc.PID),
		logging.String("rpc", l.cfg.L2RPCURL()),
		logging.Uint64("chain_id", chainID.Uint64()),
	)

	err = processes.AwaitReady(ctx, proc, func(ctx context.Context) error {
		return l.waiter.WaitForChainID(ctx, l.cfg.L2RPCURL(), chainID, l.cfg.L2ReadyTimeout())
	})
	if err != nil {
		return fmt.Errorf("L2 engine: %w (see %s)", err, p.LogPath(ProcessName))
	}
	return nil
}

func (l *Launcher) opGethArgs(p *paths.OPPaths, chainID *big.Int) []string {
	return []string{
		"--datadir", p.L2DataDir,
		"--http", "--http.addr", "127.0.0.1", "--http.port", strconv.Itoa(l.cfg.L2.RPCPort),
		"--http.corsdomain", "*", "--http.vhosts", "*",
		"--http.api", "web3,debug,eth,txpool,net,engine",
		"--ws", "--ws.addr", "127.0.0.1", "--ws.port", strconv.Itoa(l.cfg.L2.WSPort),
		"--ws.origins", "*", "--ws.api", "debug,eth,txpool,net,engine",
		"--syncmode", "full",
		"--nodiscover", "--maxpeers", "0",
		"--networkid", chainID.String(),
		"--gcmode", "archive",
		"--authrpc.addr", "127.0.0.1",
		"--authrpc.port", strconv.Itoa(l.cfg.L2.AuthPort),
		"--authrpc.vhosts", "*",
		"--authrpc.jwtsecret", p.JWTSecretPath,
		"--rollup.disabletxpoolgossip",
	}
}

// Clean stops a stale L2 engine and removes the L2 artifacts.
func (l *Launcher) Clean(ctx context.Context, p *paths.OPPaths) error {
	if l.stale != nil {
		if _, err := l.stale.ReapStale(ctx, ProcessName); errors.Is(err, processes.ErrLocked) {
			return fmt.Errorf("clean L2: %w", err)
		} else if err != nil {
			logging.WarnWithContext(l.logger, "stale L2 engine cleanup incomplete", "reap",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "stop the remaining op-geth process manually"),
			)
		}
	}
	removed, err := fileutil.RemovePaths(p.L2DataDir, p.L2GenesisPath, p.RollupConfigPath, p.JWTSecretPath)
	for _, path := range removed {
		l.logger.Info("removed", logging.String("path", path))
	}
	if err != nil {
		return fmt.Errorf("clean L2: %w", err)
	}
	return nil
}
