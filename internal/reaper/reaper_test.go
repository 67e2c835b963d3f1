package reaper

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"rollop/internal/registry"
)

func startSleep(t *testing.T) *exec.Cmd {
	t.Helper()
	path, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}
	cmd := exec.Command(path, "30")
	if err := cmd.Start(); err != nil {
		t.Fatalf("start sleep: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	return cmd
}

func waitExit(t *testing.T, cmd *exec.Cmd) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process was not terminated")
	}
}

func TestReapKillsMatchingProcess(t *testing.T) {
	cmd := startSleep(t)
	r := New(nil, 200*time.Millisecond)

	outcomes, err := r.Reap(context.Background(), []registry.Entry{{
		Name:      "l1_node",
		PID:       cmd.Process.Pid,
		Command:   cmd.Path,
		StartedAt: time.Now(),
	}})
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Action != ActionKilled {
		t.Fatalf("unexpected outcomes %#v", outcomes)
	}
	waitExit(t, cmd)
}

func TestReapSkipsForeignProcess(t *testing.T) {
	cmd := startSleep(t)
	r := New(nil, 200*time.Millisecond)

	outcomes, err := r.Reap(context.Background(), []registry.Entry{{
		Name:    "l1_node",
		PID:     cmd.Process.Pid,
		Command: "/opt/bin/geth",
	}})
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if outcomes[0].Action != ActionSkipped {
		t.Fatalf("expected skip for mismatched name, got %#v", outcomes[0])
	}
	if cmd.ProcessState != nil {
		t.Fatal("foreign process must not be touched")
	}
}

func TestReapSkipsReusedPID(t *testing.T) {
	cmd := startSleep(t)
	r := New(nil, 200*time.Millisecond)

	outcomes, err := r.Reap(context.Background(), []registry.Entry{{
		Name:      "l1_node",
		PID:       cmd.Process.Pid,
		Command:   cmd.Path,
		StartedAt: time.Now().Add(-time.Hour),
	}})
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if outcomes[0].Action != ActionSkipped {
		t.Fatalf("expected skip for reused pid, got %#v", outcomes[0])
	}
}

func TestReapReportsGoneProcess(t *testing.T) {
	path, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	cmd := exec.Command(path)
	if err := cmd.Run(); err != nil {
		t.Fatalf("run true: %v", err)
	}

	outcomes, err := New(nil, time.Second).Reap(context.Background(), []registry.Entry{{
		Name:    "l2_engine",
		PID:     cmd.Process.Pid,
		Command: path,
	}})
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if outcomes[0].Action != ActionGone {
		t.Fatalf("expected gone, got %#v", outcomes[0])
	}
}

func TestNameMatches(t *testing.T) {
	if !nameMatches("geth", "geth") {
		t.Fatal("exact names should match")
	}
	if !nameMatches("averyveryveryl", "averyveryveryl") {
		t.Fatal("short names should match exactly")
	}
	if !nameMatches("op-geth-with-lo", "op-geth-with-long-name") {
		t.Fatal("truncated comm names should match by prefix")
	}
	if nameMatches("geth", "op-geth") {
		t.Fatal("different names must not match")
	}
}

type memStore struct {
	entries []registry.Entry
	exited  map[int64]error
	pruned  int
}

func (m *memStore) Running(context.Context) ([]registry.Entry, error) {
	var out []registry.Entry
	for _, e := range m.entries {
		if _, done := m.exited[e.ID]; !done {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) MarkExited(_ context.Context, id int64, err error) error {
	if m.exited == nil {
		m.exited = map[int64]error{}
	}
	m.exited[id] = err
	return nil
}

func (m *memStore) PruneExited(context.Context) (int64, error) {
	var kept []registry.Entry
	for _, e := range m.entries {
		if _, done := m.exited[e.ID]; !done {
			kept = append(kept, e)
		}
	}
	n := int64(len(m.entries) - len(kept))
	m.entries = kept
	m.pruned++
	return n, nil
}

type fakeLock struct{ err error }

func (f fakeLock) Acquire() error { return f.err }

func TestJanitorReapsByName(t *testing.T) {
	l1 := startSleep(t)
	l2 := startSleep(t)
	store := &memStore{entries: []registry.Entry{
		{ID: 1, Name: "l1_node", PID: l1.Process.Pid, Command: l1.Path, StartedAt: time.Now()},
		{ID: 2, Name: "l2_engine", PID: l2.Process.Pid, Command: l2.Path, StartedAt: time.Now()},
	}}

	j := Janitor{Store: store, Reaper: New(nil, 200*time.Millisecond)}
	outcomes, err := j.ReapStale(context.Background(), "l1_node")
	if err != nil {
		t.Fatalf("ReapStale: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Entry.ID != 1 || outcomes[0].Action != ActionKilled {
		t.Fatalf("unexpected outcomes %#v", outcomes)
	}
	waitExit(t, l1)
	if _, ok := store.exited[1]; !ok {
		t.Fatal("expected l1 row marked exited")
	}
	if _, ok := store.exited[2]; ok {
		t.Fatal("l2 row must be untouched")
	}
	if l2.ProcessState != nil {
		t.Fatal("l2 process must keep running")
	}
	if len(store.entries) != 1 || store.entries[0].ID != 2 {
		t.Fatalf("expected only the running l2 row to remain, got %#v", store.entries)
	}
}

func TestJanitorRefusesWhileLocked(t *testing.T) {
	l1 := startSleep(t)
	store := &memStore{entries: []registry.Entry{
		{ID: 1, Name: "l1_node", PID: l1.Process.Pid, Command: l1.Path, StartedAt: time.Now()},
	}}
	locked := errors.New("another rollop instance is running in this workspace")

	j := Janitor{Store: store, Reaper: New(nil, 200*time.Millisecond), Lock: fakeLock{err: locked}}
	outcomes, err := j.ReapStale(context.Background())
	if !errors.Is(err, locked) || outcomes != nil {
		t.Fatalf("expected lock error, got %v, %v", outcomes, err)
	}
	if len(store.exited) != 0 || store.pruned != 0 {
		t.Fatal("registry must be untouched while locked")
	}
	if l1.ProcessState != nil {
		t.Fatal("locked janitor must not signal anything")
	}
}

func TestJanitorPrunesWithoutTargets(t *testing.T) {
	exitedAt := time.Now()
	store := &memStore{
		entries: []registry.Entry{{ID: 7, Name: "l1_node", PID: 1, ExitedAt: &exitedAt}},
		exited:  map[int64]error{7: nil},
	}
	j := Janitor{Store: store, Reaper: New(nil, time.Second), Lock: fakeLock{}}
	if _, err := j.ReapStale(context.Background(), "l1_node"); err != nil {
		t.Fatalf("ReapStale: %v", err)
	}
	if len(store.entries) != 0 || store.pruned != 1 {
		t.Fatalf("expected exited row pruned, got %#v", store.entries)
	}
}

func TestJanitorWithoutStore(t *testing.T) {
	outcomes, err := Janitor{}.ReapStale(context.Background())
	if err != nil || outcomes != nil {
		t.Fatalf("expected no-op, got %v, %v", outcomes, err)
	}
}
