package deps

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"rollop/internal/config"
	"rollop/internal/fileutil"
	"rollop/internal/logging"
	"rollop/internal/runner"
)

// ErrMissingPrerequisite reports required tools that are not installed.
var ErrMissingPrerequisite = errors.New("missing prerequisite")

// Checker verifies and installs toolchains for the configured workspace.
type Checker struct {
	cfg    *config.Config
	exec   runner.Executor
	out    io.Writer
	logger *slog.Logger
	color  bool
	goos   string
	goarch string
	home   string
}

// Option configures the checker.
type Option func(*Checker)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec runner.Executor) Option {
	return func(c *Checker) { c.exec = exec }
}

// WithOutput sets where the prerequisite table is written.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.out = w }
}

// WithColor enables ANSI colour in rendered tables.
func WithColor(color bool) Option {
	return func(c *Checker) { c.color = color }
}

// WithPlatform overrides the os/arch used to pick the geth release archive.
func WithPlatform(goos, goarch string) Option {
	return func(c *Checker) {
		c.goos = goos
		c.goarch = goarch
	}
}

// WithHome overrides the home directory foundryup installs into.
func WithHome(home string) Option {
	return func(c *Checker) { c.home = home }
}

// NewChecker builds a Checker for cfg.
func NewChecker(cfg *config.Config, logger *slog.Logger, opts ...Option) *Checker {
	c := &Checker{
		cfg:    cfg,
		out:    os.Stdout,
		logger: logging.NewComponentLogger(logger, "deps"),
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exec == nil {
		c.exec = runner.New(logger)
	}
	if c.home == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.home = home
		}
	}
	return c
}

// BasicSetup creates the workspace directories and puts the workspace bin
// directory first on PATH so freshly installed tools win.
func (c *Checker) BasicSetup(_ context.Context) error {
	if err := c.cfg.EnsureDirectories(); err != nil {
		return err
	}
	prependPath(c.cfg.Paths.BinDir)
	c.logger.Debug("workspace ready",
		logging.String("workspace", c.cfg.Paths.Workspace),
		logging.String("bin_dir", c.cfg.Paths.BinDir))
	return nil
}

// CheckBasicPrerequisites renders the prerequisite table and fails when a
// required tool is missing.
func (c *Checker) CheckBasicPrerequisites(_ context.Context) error {
	statuses := CheckBinaries(BasicRequirements())
	missing := MissingRequired(statuses)
	if len(missing) == 0 {
		c.logger.Debug("basic prerequisites available")
		return nil
	}
	fmt.Fprintln(c.out, RenderStatusTable(statuses, c.color))
	return fmt.Errorf("%w: %s", ErrMissingPrerequisite, strings.Join(missing, ", "))
}

// CheckOrInstallFoundry installs foundry through foundryup unless forge, cast
// and anvil are already on PATH.
func (c *Checker) CheckOrInstallFoundry(ctx context.Context) error {
	if len(MissingRequired(CheckBinaries(FoundryRequirements()))) == 0 {
		c.logger.Debug("foundry available")
		return nil
	}

	c.logger.Info("installing foundry", logging.String("installer", c.cfg.Toolchain.FoundryInstallerURL))
	script := fmt.Sprintf("curl -fsSL %s | bash", shellQuote(c.cfg.Toolchain.FoundryInstallerURL))
	if err := c.exec.Run(ctx, runner.Command{Name: "sh", Args: []string{"-c", script}, Dir: c.cfg.Paths.Workspace}); err != nil {
		return fmt.Errorf("run foundry installer: %w", err)
	}

	foundryBin := filepath.Join(c.home, ".foundry", "bin")
	prependPath(foundryBin)
	if err := c.exec.Run(ctx, runner.Command{Name: filepath.Join(foundryBin, "foundryup"), Dir: c.cfg.Paths.Workspace}); err != nil {
		return fmt.Errorf("run foundryup: %w", err)
	}

	if missing := MissingRequired(CheckBinaries(FoundryRequirements())); len(missing) > 0 {
		return fmt.Errorf("%w: foundry install did not provide %s", ErrMissingPrerequisite, strings.Join(missing, ", "))
	}
	c.logger.Info("foundry installed")
	return nil
}

// CheckOrInstallGeth makes sure the pinned geth version is the one on PATH,
// downloading the release archive into the workspace bin directory otherwise.
func (c *Checker) CheckOrInstallGeth(ctx context.Context) error {
	want := c.cfg.Toolchain.GethVersion
	if got, err := c.gethVersion(ctx); err == nil && versionMatches(got, want) {
		c.logger.Debug("geth available", logging.String("version", got))
		return nil
	} else if err == nil {
		c.logger.Info("geth version mismatch", logging.String("found", got), logging.String("want", want))
	}

	archive := c.cfg.GethArchive(c.goos, c.goarch)
	url := strings.TrimRight(c.cfg.Toolchain.GethDownloadURL, "/") + "/" + archive + ".tar.gz"
	c.logger.Info("installing geth", logging.String("url", url))

	tmp, err := os.MkdirTemp("", "rollop-geth-*")
	if err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	tarball := filepath.Join(tmp, archive+".tar.gz")
	if err := c.exec.Run(ctx, runner.Command{Name: "curl", Args: []string{"-fsSL", "-o", tarball, url}}); err != nil {
		return fmt.Errorf("download geth: %w", err)
	}
	if err := c.exec.Run(ctx, runner.Command{Name: "tar", Args: []string{"-xzf", tarball, "-C", tmp}}); err != nil {
		return fmt.Errorf("extract geth: %w", err)
	}
	dst := filepath.Join(c.cfg.Paths.BinDir, "geth")
	if err := fileutil.CopyFileVerified(filepath.Join(tmp, archive, "geth"), dst, 0o755); err != nil {
		return fmt.Errorf("install geth: %w", err)
	}
	c.logger.Info("geth installed", logging.String("path", dst))
	return nil
}

// CheckOrInstallOpGeth builds op-geth from source into <bin>/op-geth unless it
// is already there.
func (c *Checker) CheckOrInstallOpGeth(ctx context.Context) error {
	dst := filepath.Join(c.cfg.Paths.BinDir, "op-geth")
	if fileutil.Exists(dst) {
		c.logger.Debug("op-geth available", logging.String("path", dst))
		return nil
	}

	src := filepath.Join(c.cfg.Paths.Workspace, "op-geth")
	if !fileutil.Exists(src) {
		c.logger.Info("cloning op-geth", logging.String("ref", c.cfg.Toolchain.OpGethRef))
		args := []string{"clone", "--depth", "1", "--branch", c.cfg.Toolchain.OpGethRef, c.cfg.Toolchain.OpGethRepo, src}
		if err := c.exec.Run(ctx, runner.Command{Name: "git", Args: args, Dir: c.cfg.Paths.Workspace}); err != nil {
			return fmt.Errorf("clone op-geth: %w", err)
		}
	}

	c.logger.Info("building op-geth")
	if err := c.exec.Run(ctx, runner.Command{Name: "make", Args: []string{"geth"}, Dir: src}); err != nil {
		return fmt.Errorf("build op-geth: %w", err)
	}
	if err := fileutil.CopyFileVerified(filepath.Join(src, "build", "bin", "geth"), dst, 0o755); err != nil {
		return fmt.Errorf("install op-geth: %w", err)
	}
	c.logger.Info("op-geth installed", logging.String("path", dst))
	return nil
}

func (c *Checker) gethVersion(ctx context.Context) (string, error) {
	lines, err := runner.Output(ctx, c.exec, runner.Command{Name: "geth", Args: []string{"version"}})
	if err != nil {
		return "", err
	}
	for _, line := range lines {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "Version:"); ok {
			return strings.TrimSpace(v), nil
		}
	}
	return "", errors.New("geth version output missing Version line")
}

// versionMatches accepts "1.12.0-stable" for a wanted "1.12.0".
func versionMatches(got, want string) bool {
	got = strings.TrimPrefix(strings.TrimSpace(got), "v")
	if got == want {
		return true
	}
	return strings.HasPrefix(got, want+"-")
}

func prependPath(dir string) {
	if dir == "" {
		return
	}
	current := os.Getenv("PATH")
	for _, entry := range filepath.SplitList(current) {
		if entry == dir {
			return
		}
	}
	if current == "" {
		_ = os.Setenv("PATH", dir)
		return
	}
	_ = os.Setenv("PATH", dir+string(os.PathListSeparator)+current)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
