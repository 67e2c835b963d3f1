package chain

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeGenesis(t *testing.T, chainID int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genesis-l1.json")
	body := `{"config":{"chainId":` + big.NewInt(int64(chainID)).String() + `},"alloc":{},"difficulty":"0x1","gasLimit":"0x1c9c380"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func rpcServer(t *testing.T, chainIDs ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "eth_chainId" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		n := int(calls.Add(1)) - 1
		if n >= len(chainIDs) {
			n = len(chainIDs) - 1
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": chainIDs[n]})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGenesisChainID(t *testing.T) {
	id, err := GenesisChainID(writeGenesis(t, 900))
	if err != nil {
		t.Fatalf("GenesisChainID: %v", err)
	}
	if id.Int64() != 900 {
		t.Fatalf("chain id = %s", id)
	}
}

func TestGenesisChainIDMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, []byte(`{"alloc":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := GenesisChainID(path); err == nil {
		t.Fatal("expected error for genesis without config")
	}
	if _, err := GenesisChainID(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWaitForChainIDPollsUntilMatch(t *testing.T) {
	srv, calls := rpcServer(t, "0x1", "0x1", "0x384")
	w := Waiter{Interval: 10 * time.Millisecond}
	if err := w.WaitForChainID(context.Background(), srv.URL, big.NewInt(900), 5*time.Second); err != nil {
		t.Fatalf("WaitForChainID: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", calls.Load())
	}
}

func TestWaitForChainIDTimesOut(t *testing.T) {
	srv, _ := rpcServer(t, "0x1")
	w := Waiter{Interval: 10 * time.Millisecond}
	err := w.WaitForChainID(context.Background(), srv.URL, big.NewInt(900), 100*time.Millisecond)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestWaitForChainIDCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Waiter{Interval: 10 * time.Millisecond}.WaitForChainID(ctx, "http://127.0.0.1:1", big.NewInt(1), time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEnsureJWTSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen", "jwt-secret.txt")
	first, err := EnsureJWTSecret(path)
	if err != nil {
		t.Fatalf("EnsureJWTSecret: %v", err)
	}
	if len(first) != 66 || first[:2] != "0x" {
		t.Fatalf("unexpected secret %q", first)
	}
	second, err := EnsureJWTSecret(path)
	if err != nil {
		t.Fatalf("second EnsureJWTSecret: %v", err)
	}
	if first != second {
		t.Fatal("expected existing secret to be reused")
	}

	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	third, err := EnsureJWTSecret(path)
	if err != nil || third == "garbage" || len(third) != 66 {
		t.Fatalf("expected invalid secret to be replaced, got %q, %v", third, err)
	}
}
