package l1

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

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

// ProcessName identifies the L1 node in logs and the registry.
const ProcessName = "l1_node"

// signerKey is the well-known devnet block signer (first hardhat account).
const signerKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

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

// Launcher deploys and cleans the L1 devnet.
type Launcher struct {
	cfg    *config.Config
	exec   runner.Executor
	procs  Supervisor
	waiter ReadyWaiter
	stale  StaleReaper
	logger *slog.Logger
	now    func() time.Time
	geth   string
}

// Option configures the launcher.
type Option func(*Launcher)

// WithClock overrides the time source used for the genesis timestamp.
func WithClock(now func() time.Time) Option {
	return func(l *Launcher) { l.now = now }
}

// WithGethBinary overrides the geth executable.
func WithGethBinary(path string) Option {
	return func(l *Launcher) { l.geth = path }
}

// New builds a Launcher.
func New(cfg *config.Config, exec runner.Executor, procs Supervisor, waiter ReadyWaiter, stale StaleReaper, logger *slog.Logger, opts ...Option) *Launcher {
	l := &Launcher{
		cfg:    cfg,
		exec:   exec,
		procs:  procs,
		waiter: waiter,
		stale:  stale,
		logger: logging.NewComponentLogger(logger, "l1"),
		now:    time.Now,
		geth:   "geth",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DeployDevnetL1 brings up the L1 node, generating whatever artifacts are missing.
func (l *Launcher) DeployDevnetL1(ctx context.Context, p *paths.OPPaths) error {
	if err := p.EnsureGenDir(); err != nil {
		return err
	}
	if err := preflight.Check(
		preflight.CheckDirectoryAccess("gen dir", p.GenDir),
		preflight.CheckPortFree("L1 RPC port", l.cfg.L1.RPCPort),
		preflight.CheckPortFree("L1 WS port", l.cfg.L1.WSPort),
	); err != nil {
		return err
	}

	if err := l.ensureDeployConfig(p); err != nil {
		return err
	}
	if err := l.ensureGenesis(ctx, p); err != nil {
		return err
	}
	signer, err := l.ensureDataDir(ctx, p)
	if err != nil {
		return err
	}

	proc, err := l.procs.Start(ctx, processes.Spec{
		Name:    ProcessName,
		Command: l.geth,
		Args:    l.gethArgs(p, signer),
		Dir:     p.GenDir,
		LogPath: p.LogPath(ProcessName),
	})
	if err != nil {
		return fmt.Errorf("start L1 node: %w", err)
	}
	l.logger.Info("L1 node starting",
		logging.Int(logging.FieldPID, proc.PID),
		logging.String("rpc", l.cfg.L1RPCURL()),
		logging.Uint64("chain_id", l.cfg.L1.ChainID),
	)

	chainID, err := chain.GenesisChainID(p.L1GenesisPath)
	if err != nil {
		return err
	}
	err = processes.AwaitReady(ctx, proc, func(ctx context.Context) error {
		return l.waiter.WaitForChainID(ctx, l.cfg.L1RPCURL(), chainID, l.cfg.L1ReadyTimeout())
	})
	if err != nil {
		return fmt.Errorf("L1 node: %w (see %s)", err, p.LogPath(ProcessName))
	}
	return nil
}

func (l *Launcher) ensureGenesis(ctx context.Context, p *paths.OPPaths) error {
	if fileutil.Exists(p.L1GenesisPath) && fileutil.Exists(p.L2GenesisPath) && fileutil.Exists(p.RollupConfigPath) {
		l.logger.Debug("reusing genesis files", logging.String("dir", p.GenDir))
		return nil
	}
	if err := preflight.Check(preflight.CheckDirectoryAccess("op-node dir", p.OpNodeDir)); err != nil {
		return fmt.Errorf("%w (run 'rollop setup' first)", err)
	}

	l.logger.Info("generating genesis files")
	args := []string{
		"run", "cmd/main.go", "genesis", "devnet",
		"--deploy-config", p.DeployConfigPath,
		"--outfile.l1", p.L1GenesisPath,
		"--outfile.l2", p.L2GenesisPath,
		"--outfile.rollup", p.RollupConfigPath,
	}
	if err := l.exec.Run(ctx, runner.Command{Name: "go", Args: args, Dir: p.OpNodeDir}); err != nil {
		return fmt.Errorf("generate genesis: %w", err)
	}
	return nil
}

func (l *Launcher) ensureDataDir(ctx context.Context, p *paths.OPPaths) (string, error) {
	key, err := crypto.HexToECDSA(signerKey)
	if err != nil {
		return "", fmt.Errorf("decode signer key: %w", err)
	}
	signer := crypto.PubkeyToAddress(key.PublicKey).Hex()

	if !fileutil.Exists(p.L1PasswordPath) {
		if err := fileutil.WriteFileAtomic(p.L1PasswordPath, []byte{}, 0o600); err != nil {
			return "", fmt.Errorf("write password file: %w", err)
		}
	}

	if fileutil.Exists(filepath.Join(p.L1DataDir, "geth", "chaindata")) {
		l.logger.Debug("reusing L1 datadir", logging.String("dir", p.L1DataDir))
		return signer, nil
	}

	l.logger.Info("initialising L1 datadir", logging.String("dir", p.L1DataDir))
	if err := l.importSigner(ctx, p, key); err != nil {
		return "", err
	}
	if err := l.exec.Run(ctx, runner.Command{
		Name: l.geth,
		Args: []string{"--datadir", p.L1DataDir, "init", p.L1GenesisPath},
	}); err != nil {
		return "", fmt.Errorf("geth init: %w", err)
	}
	return signer, nil
}

func (l *Launcher) importSigner(ctx context.Context, p *paths.OPPaths, key *ecdsa.PrivateKey) error {
	keyFile, err := os.CreateTemp(p.GenDir, ".signer-*.key")
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	defer os.Remove(keyFile.Name())
	if _, err := keyFile.WriteString(fmt.Sprintf("%x", crypto.FromECDSA(key))); err != nil {
		_ = keyFile.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	if err := keyFile.Close(); err != nil {
		return err
	}

	err = l.exec.Run(ctx, runner.Command{
		Name: l.geth,
		Args: []string{"account", "import", "--datadir", p.L1DataDir, "--password", p.L1PasswordPath, keyFile.Name()},
	})
	var cmdErr *runner.CommandError
	if errors.As(err, &cmdErr) && len(cmdErr.Tail) > 0 && containsAny(cmdErr.Tail, "already exists") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("import signer: %w", err)
	}
	return nil
}

func (l *Launcher) gethArgs(p *paths.OPPaths, signer string) []string {
	return []string{
		"--datadir", p.L1DataDir,
		"--http", "--http.addr", "127.0.0.1", "--http.port", strconv.Itoa(l.cfg.L1.RPCPort),
		"--http.corsdomain", "*", "--http.vhosts", "*",
		"--http.api", "web3,debug,eth,txpool,net,engine",
		"--ws", "--ws.addr", "127.0.0.1", "--ws.port", strconv.Itoa(l.cfg.L1.WSPort),
		"--ws.origins", "*", "--ws.api", "debug,eth,txpool,net,engine",
		"--syncmode", "full",
		"--nodiscover", "--maxpeers", "0",
		"--networkid", strconv.FormatUint(l.cfg.L1.ChainID, 10),
		"--unlock", signer,
		"--mine", "--miner.etherbase", signer,
		"--password", p.L1PasswordPath,
		"--allow-insecure-unlock",
		"--rpc.allow-unprotected-txs",
		"--authrpc.port", "0",
	}
}

// Clean stops a stale L1 node and removes the L1 artifacts.
func (l *Launcher) Clean(ctx context.Context, p *paths.OPPaths) error {
	if l.stale != nil {
		if _, err := l.stale.ReapStale(ctx, ProcessName); errors.Is(err, processes.ErrLocked) {
			return fmt.Errorf("clean L1: %w", err)
		} else if err != nil {
			logging.WarnWithContext(l.logger, "stale L1 node cleanup incomplete", "reap",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "stop the remaining geth process manually"),
			)
		}
	}
	removed, err := fileutil.RemovePaths(p.L1DataDir, p.L1GenesisPath, p.DeployConfigPath, p.AddressesJSONPath, p.L1PasswordPath)
	for _, path := range removed {
		l.logger.Info("removed", logging.String("path", path))
	}
	if err != nil {
		return fmt.Errorf("clean L1: %w", err)
	}
	return nil
}

func containsAny(lines []string, needle string) bool {
	for _, line := range lines {
		if strings.Contains(line, needle) {
			return true
		}
	}
	return false
}
