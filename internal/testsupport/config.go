package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rollop/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a fresh temp workspace. Every
// directory lives under the workspace and every port is currently free.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.Workspace = base
	cfgVal.Paths.GenDir = filepath.Join(base, ".devnet")
	cfgVal.Paths.BinDir = filepath.Join(base, "bin")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.L1.RPCPort = FreePort(t)
	cfgVal.L1.WSPort = FreePort(t)
	cfgVal.L2.RPCPort = FreePort(t)
	cfgVal.L2.WSPort = FreePort(t)
	cfgVal.L2.AuthPort = FreePort(t)

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBuildSteps replaces the monorepo build steps.
func WithBuildSteps(steps ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Optimism.BuildSteps = steps
	}
}

// WithStubbedBinaries writes stub executables that exit 0 for the provided
// names and prepends their directory to PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		stubDir := filepath.Join(b.baseDir, "stubs")
		for _, name := range names {
			WriteScript(b.t, stubDir, name, "exit 0\n")
		}
		path := os.Getenv("PATH")
		if strings.TrimSpace(path) == "" {
			path = stubDir
		} else {
			path = stubDir + string(os.PathListSeparator) + path
		}
		if tt, ok := b.t.(*testing.T); ok {
			tt.Setenv("PATH", path)
			return
		}
		b.t.Fatalf("WithStubbedBinaries requires *testing.T")
	}
}
