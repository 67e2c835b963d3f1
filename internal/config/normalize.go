package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOptimism()
	c.normalizeToolchain()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.Workspace) == "" {
		c.Paths.Workspace = defaultWorkspace
	}
	if c.Paths.Workspace, err = expandPath(strings.TrimSpace(c.Paths.Workspace)); err != nil {
		return fmt.Errorf("paths.workspace: %w", err)
	}
	if c.Paths.GenDir, err = c.workspacePath(c.Paths.GenDir, defaultGenDir); err != nil {
		return fmt.Errorf("paths.gen_dir: %w", err)
	}
	if c.Paths.BinDir, err = c.workspacePath(c.Paths.BinDir, defaultBinDir); err != nil {
		return fmt.Errorf("paths.bin_dir: %w", err)
	}
	if c.Paths.LogDir, err = c.workspacePath(c.Paths.LogDir, defaultLogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

// workspacePath anchors relative directories at the workspace root.
func (c *Config) workspacePath(value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if strings.HasPrefix(value, "~") || filepath.IsAbs(value) {
		return expandPath(value)
	}
	return expandPath(filepath.Join(c.Paths.Workspace, value))
}

func (c *Config) normalizeOptimism() {
	c.Optimism.Name = strings.TrimSpace(c.Optimism.Name)
	if c.Optimism.Name == "" {
		c.Optimism.Name = defaultOptimismName
	}
	c.Optimism.RepoURL = strings.TrimSpace(c.Optimism.RepoURL)
	if c.Optimism.RepoURL == "" {
		c.Optimism.RepoURL = defaultOptimismRepoURL
	}
	c.Optimism.Ref = strings.TrimSpace(c.Optimism.Ref)
	steps := c.Optimism.BuildSteps[:0]
	for _, step := range c.Optimism.BuildSteps {
		if trimmed := strings.TrimSpace(step); trimmed != "" {
			steps = append(steps, trimmed)
		}
	}
	c.Optimism.BuildSteps = steps
}

func (c *Config) normalizeToolchain() {
	c.Toolchain.GethVersion = strings.TrimPrefix(strings.TrimSpace(c.Toolchain.GethVersion), "v")
	c.Toolchain.GethCommit = strings.TrimSpace(c.Toolchain.GethCommit)
	c.Toolchain.GethDownloadURL = strings.TrimRight(strings.TrimSpace(c.Toolchain.GethDownloadURL), "/")
	if c.Toolchain.GethDownloadURL == "" {
		c.Toolchain.GethDownloadURL = defaultGethDownloadURL
	}
	c.Toolchain.OpGethRepo = strings.TrimSpace(c.Toolchain.OpGethRepo)
	if c.Toolchain.OpGethRepo == "" {
		c.Toolchain.OpGethRepo = defaultOpGethRepo
	}
	c.Toolchain.OpGethRef = strings.TrimSpace(c.Toolchain.OpGethRef)
	c.Toolchain.FoundryInstallerURL = strings.TrimSpace(c.Toolchain.FoundryInstallerURL)
	if c.Toolchain.FoundryInstallerURL == "" {
		c.Toolchain.FoundryInstallerURL = defaultFoundryInstallerURL
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
