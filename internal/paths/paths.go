// Package paths resolves the on-disk layout of an Optimism monorepo checkout and
// the generated devnet artifacts that the launchers read and write.
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OPPaths holds absolute locations for one monorepo checkout.
type OPPaths struct {
	Name                 string
	Home                 string
	GenDir               string
	OpNodeDir            string
	ContractsBedrockDir  string
	DeployConfigTemplate string
	DeployConfigPath     string
	L1GenesisPath        string
	L2GenesisPath        string
	RollupConfigPath     string
	AddressesJSONPath    string
	L1DataDir            string
	L2DataDir            string
	JWTSecretPath        string
	L1PasswordPath       string
	LogsDir              string
}

// New resolves the layout for the checkout called name inside workspace.
// Relative genDir and logDir values are anchored at workspace.
func New(workspace, genDir, logDir, name string) (*OPPaths, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("monorepo name is required")
	}
	if strings.ContainsRune(name, filepath.Separator) {
		return nil, fmt.Errorf("monorepo name %q must not contain a path separator", name)
	}
	root, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %q: %w", workspace, err)
	}

	home := filepath.Join(root, name)
	gen := anchor(root, genDir, ".devnet")
	bedrock := filepath.Join(home, "packages", "contracts-bedrock")

	return &OPPaths{
		Name:                 name,
		Home:                 home,
		GenDir:               gen,
		OpNodeDir:            filepath.Join(home, "op-node"),
		ContractsBedrockDir:  bedrock,
		DeployConfigTemplate: filepath.Join(bedrock, "deploy-config", "devnetL1.json"),
		DeployConfigPath:     filepath.Join(gen, "devnetL1.json"),
		L1GenesisPath:        filepath.Join(gen, "genesis-l1.json"),
		L2GenesisPath:        filepath.Join(gen, "genesis-l2.json"),
		RollupConfigPath:     filepath.Join(gen, "rollup.json"),
		AddressesJSONPath:    filepath.Join(gen, "addresses.json"),
		L1DataDir:            filepath.Join(gen, "l1-data"),
		L2DataDir:            filepath.Join(gen, "l2-data"),
		JWTSecretPath:        filepath.Join(gen, "jwt-secret.txt"),
		L1PasswordPath:       filepath.Join(gen, "l1-password.txt"),
		LogsDir:              anchor(root, logDir, "logs"),
	}, nil
}

func anchor(root, value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

// EnsureGenDir creates the generated artifact directory.
func (p *OPPaths) EnsureGenDir() error {
	if err := os.MkdirAll(p.GenDir, 0o755); err != nil {
		return fmt.Errorf("create gen dir %q: %w", p.GenDir, err)
	}
	return nil
}

// LogPath returns the log file location for a supervised process.
func (p *OPPaths) LogPath(process string) string {
	return filepath.Join(p.LogsDir, process+".log")
}

// Resolver hands out OPPaths for a fixed workspace.
type Resolver struct {
	Workspace string
	GenDir    string
	LogDir    string
}

// OPPaths resolves the layout for the named checkout.
func (r Resolver) OPPaths(name string) (*OPPaths, error) {
	return New(r.Workspace, r.GenDir, r.LogDir, name)
}
