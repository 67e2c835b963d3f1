// Package chain reads genesis artifacts and probes node RPC endpoints so the
// launchers can tell when a freshly started node is serving the expected chain.
package chain

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/ethclient"

	"rollop/internal/fileutil"
	"rollop/internal/logging"
)

// ErrNotReady reports a node that did not answer with the expected chain ID in time.
var ErrNotReady = errors.New("node not ready")

const defaultPollInterval = 500 * time.Millisecond

// ReadGenesis decodes a genesis file.
func ReadGenesis(path string) (*core.Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	genesis := new(core.Genesis)
	if err := json.Unmarshal(data, genesis); err != nil {
		return nil, fmt.Errorf("decode genesis %s: %w", path, err)
	}
	return genesis, nil
}

// GenesisChainID returns the chain ID declared in a genesis file.
func GenesisChainID(path string) (*big.Int, error) {
	genesis, err := ReadGenesis(path)
	if err != nil {
		return nil, err
	}
	if genesis.Config == nil || genesis.Config.ChainID == nil {
		return nil, fmt.Errorf("genesis %s has no chainId", path)
	}
	return genesis.Config.ChainID, nil
}

// Waiter polls an RPC endpoint until it reports the wanted chain ID.
type Waiter struct {
	Logger   *slog.Logger
	Interval time.Duration
}

// WaitForChainID blocks until url answers eth_chainId with want, the timeout
// expires, or ctx is cancelled.
func (w Waiter) WaitForChainID(ctx context.Context, url string, want *big.Int, timeout time.Duration) error {
	logger := logging.NewComponentLogger(w.Logger, "chain")
	interval := w.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for attempt := 1; ; attempt++ {
		got, err := chainID(waitCtx, url)
		switch {
		case err != nil:
			lastErr = err
		case want != nil && got.Cmp(want) != 0:
			lastErr = fmt.Errorf("chain id %s, expected %s", got, want)
		default:
			logger.Info("node ready", logging.String("url", url), logging.String("chain_id", got.String()), logging.Int("attempts", attempt))
			return nil
		}
		logger.Debug("node not ready yet", logging.String("url", url), logging.Error(lastErr))

		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-waitCtx.Done():
			return fmt.Errorf("%w: %s after %s: %v", ErrNotReady, url, timeout, lastErr)
		case <-time.After(interval):
		}
	}
}

func chainID(ctx context.Context, url string) (*big.Int, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return client.ChainID(ctx)
}

// EnsureJWTSecret writes a random 32-byte hex secret to path unless one exists.
// It returns the secret in use.
func EnsureJWTSecret(path string) (string, error) {
	if data, err := os.ReadFile(path); err == nil {
		secret := strings.TrimSpace(string(data))
		if _, decodeErr := hexutil.Decode(secret); decodeErr == nil && len(secret) == 66 {
			return secret, nil
		}
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	secret := hexutil.Encode(buf)
	if err := fileutil.WriteFileAtomic(path, []byte(secret), 0o600); err != nil {
		return "", fmt.Errorf("write jwt secret: %w", err)
	}
	return secret, nil
}
