package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"rollop/internal/config"
	"rollop/internal/dispatch"
	"rollop/internal/logging"
	"rollop/internal/paths"
)

type fakeEnv struct {
	calls    []string
	failAt   string
	err      error
	built    int
	cleaned  int
	color    bool
	monorepo string
	// chatty makes the factory log a warning and print a status line.
	chatty bool
	// stdoutAtCleanup is what stdout held when cleanup ran.
	stdoutAtCleanup string
}

func (f *fakeEnv) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failAt == name {
		return f.err
	}
	return nil
}

func (f *fakeEnv) BasicSetup(context.Context) error              { return f.step("basic_setup") }
func (f *fakeEnv) CheckBasicPrerequisites(context.Context) error { return f.step("basic_prerequisites") }
func (f *fakeEnv) CheckOrInstallFoundry(context.Context) error   { return f.step("foundry") }
func (f *fakeEnv) CheckOrInstallGeth(context.Context) error      { return f.step("geth") }
func (f *fakeEnv) CheckOrInstallOpGeth(context.Context) error    { return f.step("op_geth") }
func (f *fakeEnv) Setup(context.Context) error                   { return f.step("setup") }
func (f *fakeEnv) WaitAll(context.Context) error                 { return f.step("wait_all") }

func (f *fakeEnv) OPPaths(name string) (*paths.OPPaths, error) {
	if err := f.step("paths"); err != nil {
		return nil, err
	}
	f.monorepo = name
	return &paths.OPPaths{Name: name}, nil
}

type fakeL1 struct{ *fakeEnv }

func (f fakeL1) DeployDevnetL1(context.Context, *paths.OPPaths) error { return f.step("deploy_l1") }
func (f fakeL1) Clean(context.Context, *paths.OPPaths) error          { return f.step("clean_l1") }

type fakeL2 struct{ *fakeEnv }

func (f fakeL2) DeployL2(context.Context, *paths.OPPaths) error { return f.step("deploy_l2") }
func (f fakeL2) Clean(context.Context, *paths.OPPaths) error    { return f.step("clean_l2") }

func (f *fakeEnv) factory(rt wiring) (dispatch.Env, func() error, error) {
	f.built++
	f.color = rt.color
	env := dispatch.Env{
		Deps:      f,
		Setup:     f,
		L1:        fakeL1{f},
		L2:        fakeL2{f},
		Paths:     f,
		Processes: f,
		Monorepo:  rt.cfg.Optimism.Name,
	}
	if f.chatty {
		rt.logger.Warn("registry busy", logging.String("path", "processes.db"))
		fmt.Fprintln(rt.stdout, renderStatusLine("Registry", statusWarn, "busy", rt.color))
	}
	cleanup := func() error {
		f.cleaned++
		if buf, ok := rt.stdout.(*bytes.Buffer); ok {
			f.stdoutAtCleanup = buf.String()
		}
		return nil
	}
	return env, cleanup, nil
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// runCLI executes args against a command context whose collaborators are
// replaced by fake. terminal controls what the colour detection reports.
func runCLI(t *testing.T, fake *fakeEnv, terminal bool, args ...string) cliResult {
	t.Helper()
	return runCLIWith(t, context.Background(), fake, terminal, false, args...)
}

func runCLIContext(t *testing.T, ctx context.Context, fake *fakeEnv, terminal bool, args ...string) cliResult {
	t.Helper()
	return runCLIWith(t, ctx, fake, terminal, false, args...)
}

// runCLIWith is runCLIContext with the option of the production logger
// writing to the captured stderr.
func runCLIWith(t *testing.T, ctx context.Context, fake *fakeEnv, terminal, realLogger bool, args ...string) cliResult {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cc := newCommandContext(&stdout, &stderr)
	cc.isTerminal = func(io.Writer) bool { return terminal }
	if !realLogger {
		cc.newLogger = func(*config.Config, bool, io.Writer) (*slog.Logger, error) { return logging.NewNop(), nil }
	}
	if fake != nil {
		cc.newEnv = fake.factory
	}

	code := execute(ctx, cc, args)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

// isolateHome points HOME and the default config location at a temp dir.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "rollop.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !bytes.Contains([]byte(haystack), []byte(needle)) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

func requireNotContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if bytes.Contains([]byte(haystack), []byte(needle)) {
		t.Fatalf("did not expect %q in output:\n%s", needle, haystack)
	}
}
