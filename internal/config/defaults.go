package config

const (
	defaultWorkspace           = "."
	defaultGenDir              = ".devnet"
	defaultBinDir              = "bin"
	defaultLogDir              = "logs"
	defaultOptimismName        = "optimism"
	defaultOptimismRepoURL     = "https://github.com/ethereum-optimism/optimism.git"
	defaultOptimismRef         = "v1.1.4"
	defaultGethVersion         = "1.12.0"
	defaultGethCommit          = "e501b3b0"
	defaultGethDownloadURL     = "https://gethstore.blob.core.windows.net/builds"
	defaultOpGethRepo          = "https://github.com/ethereum-optimism/op-geth.git"
	defaultOpGethRef           = "v1.101200.1"
	defaultFoundryInstallerURL = "https://foundry.paradigm.xyz"
	defaultL1ChainID           = 900
	defaultL1RPCPort           = 8545
	defaultL1WSPort            = 8546
	defaultL1BlockTime         = 2
	defaultL2ChainID           = 901
	defaultL2RPCPort           = 9545
	defaultL2WSPort            = 9546
	defaultL2AuthPort          = 8551
	defaultReadyTimeout        = 30
	defaultShutdownTimeout     = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var defaultBuildSteps = []string{
	"make op-node",
	"make op-batcher",
	"make op-proposer",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	steps := make([]string, len(defaultBuildSteps))
	copy(steps, defaultBuildSteps)
	return Config{
		Paths: Paths{
			Workspace: defaultWorkspace,
			GenDir:    defaultGenDir,
			BinDir:    defaultBinDir,
			LogDir:    defaultLogDir,
		},
		Optimism: Optimism{
			Name:       defaultOptimismName,
			RepoURL:    defaultOptimismRepoURL,
			Ref:        defaultOptimismRef,
			BuildSteps: steps,
		},
		Toolchain: Toolchain{
			GethVersion:         defaultGethVersion,
			GethCommit:          defaultGethCommit,
			GethDownloadURL:     defaultGethDownloadURL,
			OpGethRepo:          defaultOpGethRepo,
			OpGethRef:           defaultOpGethRef,
			FoundryInstallerURL: defaultFoundryInstallerURL,
		},
		L1: L1{
			ChainID:      defaultL1ChainID,
			RPCPort:      defaultL1RPCPort,
			WSPort:       defaultL1WSPort,
			BlockTime:    defaultL1BlockTime,
			ReadyTimeout: defaultReadyTimeout,
		},
		L2: L2{
			ChainID:      defaultL2ChainID,
			RPCPort:      defaultL2RPCPort,
			WSPort:       defaultL2WSPort,
			AuthPort:     defaultL2AuthPort,
			ReadyTimeout: defaultReadyTimeout,
		},
		Processes: Processes{
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
