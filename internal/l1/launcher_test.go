package l1

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"rollop/internal/config"
	"rollop/internal/paths"
	"rollop/internal/preflight"
	"rollop/internal/processes"
	"rollop/internal/reaper"
	"rollop/internal/runner"
	"rollop/internal/testsupport"
)

type fakeExecutor struct {
	calls   []runner.Command
	handler func(runner.Command) error
}

func (f *fakeExecutor) Run(_ context.Context, cmd runner.Command) error {
	f.calls = append(f.calls, cmd)
	if f.handler != nil {
		return f.handler(cmd)
	}
	return nil
}

type fakeSupervisor struct {
	specs []processes.Spec
	// crash, when set, is launched for real in place of the requested command.
	crash string
	real  *processes.Manager
}

func (f *fakeSupervisor) Start(ctx context.Context, spec processes.Spec) (*processes.Process, error) {
	f.specs = append(f.specs, spec)
	if f.crash != "" {
		spec.Command, spec.Args = f.crash, nil
		return f.real.Start(ctx, spec)
	}
	return &processes.Process{Spec: spec, PID: 4242}, nil
}

type fakeWaiter struct {
	url  string
	want *big.Int
	err  error
	// block makes the wait last until its context ends.
	block bool
}

func (f *fakeWaiter) WaitForChainID(ctx context.Context, url string, want *big.Int, _ time.Duration) error {
	f.url = url
	f.want = want
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

type fakeReaper struct {
	names []string
}

func (f *fakeReaper) ReapStale(_ context.Context, names ...string) ([]reaper.Outcome, error) {
	f.names = append(f.names, names...)
	return nil, nil
}

type fixture struct {
	cfg    *config.Config
	paths  *paths.OPPaths
	exec   *fakeExecutor
	procs  *fakeSupervisor
	waiter *fakeWaiter
	stale  *fakeReaper
	l      *Launcher
}

const template = `{
  "l1ChainID": 1,
  "l2ChainID": 2,
  "finalizationPeriodSeconds": 2,
  "l2GenesisBlockGasLimit": "0x1c9c380",
  "fundDevAccounts": true,
  "l2OutputOracleStartingTimestamp": -1,
  "hugeValue": 123456789012345678901234567890
}`

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	root := cfg.Paths.Workspace

	p, err := paths.New(root, ".devnet", "logs", "optimism")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(p.DeployConfigTemplate), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p.DeployConfigTemplate, []byte(template), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(p.OpNodeDir, 0o755); err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		cfg:    cfg,
		paths:  p,
		procs:  &fakeSupervisor{},
		waiter: &fakeWaiter{},
		stale:  &fakeReaper{},
	}
	f.exec = &fakeExecutor{handler: func(cmd runner.Command) error {
		if cmd.Name == "go" {
			genesis := `{"config":{"chainId":900},"alloc":{}}`
			for _, path := range []string{p.L1GenesisPath, p.L2GenesisPath, p.RollupConfigPath} {
				if err := os.WriteFile(path, []byte(genesis), 0o644); err != nil {
					return err
				}
			}
		}
		return nil
	}}
	clock := time.Unix(1700000000, 0)
	f.l = New(f.cfg, f.exec, f.procs, f.waiter, f.stale, nil, WithClock(func() time.Time { return clock }))
	return f
}

func commandLines(calls []runner.Command) []string {
	out := make([]string, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Name+" "+strings.Join(c.Args, " "))
	}
	return out
}

func TestDeployDevnetL1FromScratch(t *testing.T) {
	f := newFixture(t)
	if err := f.l.DeployDevnetL1(context.Background(), f.paths); err != nil {
		t.Fatalf("DeployDevnetL1: %v", err)
	}

	data, err := os.ReadFile(f.paths.DeployConfigPath)
	if err != nil {
		t.Fatalf("read deploy config: %v", err)
	}
	var rendered map[string]json.RawMessage
	if err := json.Unmarshal(data, &rendered); err != nil {
		t.Fatalf("decode deploy config: %v", err)
	}
	if string(rendered["l1GenesisBlockTimestamp"]) != `"0x6553f100"` {
		t.Fatalf("timestamp = %s", rendered["l1GenesisBlockTimestamp"])
	}
	if string(rendered["l1ChainID"]) != "900" || string(rendered["l2ChainID"]) != "901" {
		t.Fatalf("chain ids = %s / %s", rendered["l1ChainID"], rendered["l2ChainID"])
	}
	if string(rendered["hugeValue"]) != "123456789012345678901234567890" {
		t.Fatalf("large integer was not preserved: %s", rendered["hugeValue"])
	}

	lines := commandLines(f.exec.calls)
	if len(lines) != 3 {
		t.Fatalf("unexpected commands %q", lines)
	}
	if !strings.HasPrefix(lines[0], "go run cmd/main.go genesis devnet --deploy-config "+f.paths.DeployConfigPath) || f.exec.calls[0].Dir != f.paths.OpNodeDir {
		t.Fatalf("unexpected genesis command %q in %s", lines[0], f.exec.calls[0].Dir)
	}
	if !strings.HasPrefix(lines[1], "geth account import --datadir "+f.paths.L1DataDir) {
		t.Fatalf("unexpected import command %q", lines[1])
	}
	if lines[2] != "geth --datadir "+f.paths.L1DataDir+" init "+f.paths.L1GenesisPath {
		t.Fatalf("unexpected init command %q", lines[2])
	}

	if len(f.procs.specs) != 1 {
		t.Fatalf("expected one process, got %d", len(f.procs.specs))
	}
	spec := f.procs.specs[0]
	if spec.Name != ProcessName || spec.LogPath != f.paths.LogPath(ProcessName) {
		t.Fatalf("unexpected spec %#v", spec)
	}
	idx := slices.Index(spec.Args, "--unlock")
	if idx < 0 || !strings.EqualFold(spec.Args[idx+1], "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266") {
		t.Fatalf("unexpected signer args %v", spec.Args)
	}
	if i := slices.Index(spec.Args, "--networkid"); i < 0 || spec.Args[i+1] != "900" {
		t.Fatalf("unexpected networkid args %v", spec.Args)
	}

	if f.waiter.url != f.cfg.L1RPCURL() || f.waiter.want.Int64() != 900 {
		t.Fatalf("unexpected readiness wait %s %v", f.waiter.url, f.waiter.want)
	}
}

func TestDeployDevnetL1ReusesArtifacts(t *testing.T) {
	f := newFixture(t)
	if err := f.l.DeployDevnetL1(context.Background(), f.paths); err != nil {
		t.Fatalf("first deploy: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(f.paths.L1DataDir, "geth", "chaindata"), 0o755); err != nil {
		t.Fatal(err)
	}
	f.exec.calls = nil

	if err := f.l.DeployDevnetL1(context.Background(), f.paths); err != nil {
		t.Fatalf("second deploy: %v", err)
	}
	if len(f.exec.calls) != 0 {
		t.Fatalf("expected no regeneration, got %q", commandLines(f.exec.calls))
	}
	if len(f.procs.specs) != 2 {
		t.Fatalf("expected node started twice, got %d", len(f.procs.specs))
	}
}

func TestDeployDevnetL1PortInUse(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	f.cfg.L1.RPCPort = ln.Addr().(*net.TCPAddr).Port

	err = f.l.DeployDevnetL1(context.Background(), f.paths)
	if !errors.Is(err, preflight.ErrFailed) || !strings.Contains(err.Error(), "L1 RPC port") {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	if len(f.exec.calls) != 0 || len(f.procs.specs) != 0 {
		t.Fatal("nothing should run after a failed preflight")
	}
}

func TestDeployDevnetL1WithoutCheckout(t *testing.T) {
	f := newFixture(t)
	if err := os.RemoveAll(f.paths.Home); err != nil {
		t.Fatal(err)
	}
	err := f.l.DeployDevnetL1(context.Background(), f.paths)
	if err == nil || !strings.Contains(err.Error(), "rollop setup") {
		t.Fatalf("expected setup hint, got %v", err)
	}
}

func TestDeployDevnetL1NotReady(t *testing.T) {
	f := newFixture(t)
	f.waiter.err = errors.New("node not ready")
	err := f.l.DeployDevnetL1(context.Background(), f.paths)
	if err == nil || !strings.Contains(err.Error(), "l1_node.log") {
		t.Fatalf("expected readiness error pointing at the log, got %v", err)
	}
}

func TestCleanRemovesL1Artifacts(t *testing.T) {
	f := newFixture(t)
	if err := f.l.DeployDevnetL1(context.Background(), f.paths); err != nil {
		t.Fatalf("DeployDevnetL1: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(f.paths.L1DataDir, "geth"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := f.l.Clean(context.Background(), f.paths); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	for _, path := range []string{f.paths.L1DataDir, f.paths.L1GenesisPath, f.paths.DeployConfigPath, f.paths.L1PasswordPath} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", path)
		}
	}
	if _, err := os.Stat(f.paths.L2GenesisPath); err != nil {
		t.Fatal("L2 genesis must survive L1 clean")
	}
	if len(f.stale.names) != 1 || f.stale.names[0] != ProcessName {
		t.Fatalf("unexpected reaped names %v", f.stale.names)
	}

	if err := f.l.Clean(context.Background(), f.paths); err != nil {
		t.Fatalf("second Clean: %v", err)
	}
}

func TestRenderDeployConfigRejectsNonObject(t *testing.T) {
	if _, err := renderDeployConfig([]byte(`[1,2]`), nil); err == nil {
		t.Fatal("expected error for array template")
	}
	if _, err := renderDeployConfig([]byte(`null`), nil); err == nil {
		t.Fatal("expected error for null template")
	}
}

func TestDeployDevnetL1NodeExitsBeforeReady(t *testing.T) {
	f := newFixture(t)
	f.procs.crash = testsupport.WriteScript(t, t.TempDir(), "geth", "echo 'Fatal: invalid genesis' >&2\nexit 1\n")
	f.procs.real = processes.NewManager(processes.Options{ShutdownTimeout: time.Second})
	t.Cleanup(func() { _ = f.procs.real.TerminateAll() })
	f.waiter.block = true

	result := make(chan error, 1)
	go func() { result <- f.l.DeployDevnetL1(context.Background(), f.paths) }()

	select {
	case err := <-result:
		var exitErr *processes.ExitError
		if !errors.As(err, &exitErr) || exitErr.Name != ProcessName {
			t.Fatalf("expected exit error for %s, got %v", ProcessName, err)
		}
		if !strings.Contains(err.Error(), f.paths.LogPath(ProcessName)) {
			t.Fatalf("expected log path in %q", err.Error())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("deploy kept waiting after the L1 node exited")
	}
}
