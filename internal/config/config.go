package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains workspace directory configuration. Relative directories are
// resolved against Workspace.
type Paths struct {
	Workspace string `toml:"workspace"`
	GenDir    string `toml:"gen_dir"`
	BinDir    string `toml:"bin_dir"`
	LogDir    string `toml:"log_dir"`
}

// Optimism describes the monorepo checkout built by the setup command.
type Optimism struct {
	Name       string   `toml:"name"`
	RepoURL    string   `toml:"repo_url"`
	Ref        string   `toml:"ref"`
	BuildSteps []string `toml:"build_steps"`
}

// Toolchain pins the external binaries installed on demand.
type Toolchain struct {
	GethVersion         string `toml:"geth_version"`
	GethCommit          string `toml:"geth_commit"`
	GethDownloadURL     string `toml:"geth_download_url"`
	OpGethRepo          string `toml:"op_geth_repo"`
	OpGethRef           string `toml:"op_geth_ref"`
	FoundryInstallerURL string `toml:"foundry_installer_url"`
}

// L1 contains settings for the local L1 geth node.
type L1 struct {
	ChainID      uint64 `toml:"chain_id"`
	RPCPort      int    `toml:"rpc_port"`
	WSPort       int    `toml:"ws_port"`
	BlockTime    int    `toml:"block_time"`
	ReadyTimeout int    `toml:"ready_timeout"`
}

// L2 contains settings for the local op-geth execution client.
type L2 struct {
	ChainID      uint64 `toml:"chain_id"`
	RPCPort      int    `toml:"rpc_port"`
	WSPort       int    `toml:"ws_port"`
	AuthPort     int    `toml:"auth_port"`
	ReadyTimeout int    `toml:"ready_timeout"`
}

// Processes tunes the child process supervisor.
type Processes struct {
	ShutdownTimeout int `toml:"shutdown_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for rollop.
//
// Configuration sections by subsystem:
//   - Paths: workspace, generated artifacts, installed binaries, logs
//   - Optimism: monorepo location, ref and build steps
//   - Toolchain: geth / op-geth / foundry versions and sources
//   - L1, L2: chain IDs, ports and readiness timeouts
//   - Processes: supervisor shutdown behaviour
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Optimism  Optimism  `toml:"optimism"`
	Toolchain Toolchain `toml:"toolchain"`
	L1        L1        `toml:"l1"`
	L2        L2        `toml:"l2"`
	Processes Processes `toml:"processes"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/rollop/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("rollop.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the workspace directories every command relies on.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.Workspace, c.Paths.GenDir, c.Paths.BinDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// L1RPCURL returns the HTTP JSON-RPC endpoint of the local L1 node.
func (c *Config) L1RPCURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.L1.RPCPort)
}

// L2RPCURL returns the HTTP JSON-RPC endpoint of the local op-geth node.
func (c *Config) L2RPCURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.L2.RPCPort)
}

// L1ReadyTimeout returns how long to wait for the L1 RPC to answer.
func (c *Config) L1ReadyTimeout() time.Duration {
	return time.Duration(c.L1.ReadyTimeout) * time.Second
}

// L2ReadyTimeout returns how long to wait for the L2 RPC to answer.
func (c *Config) L2ReadyTimeout() time.Duration {
	return time.Duration(c.L2.ReadyTimeout) * time.Second
}

// ShutdownTimeout returns the grace period between SIGTERM and SIGKILL.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Processes.ShutdownTimeout) * time.Second
}

// GethArchive returns the release tarball base name for the pinned geth build.
func (c *Config) GethArchive(goos, goarch string) string {
	return fmt.Sprintf("geth-%s-%s-%s-%s", goos, goarch, c.Toolchain.GethVersion, c.Toolchain.GethCommit)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
