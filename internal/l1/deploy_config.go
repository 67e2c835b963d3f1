package l1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"rollop/internal/fileutil"
	"rollop/internal/logging"
	"rollop/internal/paths"
)

// ensureDeployConfig renders the devnet deploy config from the monorepo
// template unless a previous run already produced one.
func (l *Launcher) ensureDeployConfig(p *paths.OPPaths) error {
	if fileutil.Exists(p.DeployConfigPath) {
		l.logger.Debug("reusing deploy config", logging.String("path", p.DeployConfigPath))
		return nil
	}
	data, err := os.ReadFile(p.DeployConfigTemplate)
	if err != nil {
		return fmt.Errorf("read deploy config template (run 'rollop setup' first): %w", err)
	}
	rendered, err := renderDeployConfig(data, map[string]any{
		"l1GenesisBlockTimestamp": hexutil.EncodeUint64(uint64(l.now().Unix())),
		"l1ChainID":               l.cfg.L1.ChainID,
		"l2ChainID":               l.cfg.L2.ChainID,
		"l1BlockTime":             l.cfg.L1.BlockTime,
	})
	if err != nil {
		return fmt.Errorf("render deploy config: %w", err)
	}
	if err := fileutil.WriteFileAtomic(p.DeployConfigPath, rendered, 0o644); err != nil {
		return fmt.Errorf("write deploy config: %w", err)
	}
	l.logger.Info("wrote deploy config", logging.String("path", p.DeployConfigPath))
	return nil
}

// renderDeployConfig overrides top-level keys of a JSON object, leaving every
// other value (including large integers) untouched.
func renderDeployConfig(template []byte, overrides map[string]any) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(template))
	dec.UseNumber()
	var cfg map[string]any
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("deploy config template is not a JSON object")
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	out, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
