// Package flags defines the command line flags of the blob indexer.
package flags

import "github.com/urfave/cli/v2"

var (
	// BeaconNodeEndpoint defines the beacon node REST API endpoint.
	BeaconNodeEndpoint = &cli.StringFlag{
		Name:    "beacon-node-endpoint",
		Usage:   "HTTP endpoint of the beacon node REST API.",
		EnvVars: []string{"BEACON_NODE_ENDPOINT"},
		Value:   "http://localhost:3500",
	}
	// ExecutionNodeEndpoint defines the execution node JSON-RPC endpoint.
	ExecutionNodeEndpoint = &cli.StringFlag{
		Name:    "execution-node-endpoint",
		Usage:   "HTTP endpoint of the execution node JSON-RPC API.",
		EnvVars: []string{"EXECUTION_NODE_ENDPOINT"},
		Value:   "http://localhost:8545",
	}
	// BlobscanEndpoint defines the blobscan API endpoint.
	BlobscanEndpoint = &cli.StringFlag{
		Name:    "blobscan-endpoint",
		Usage:   "HTTP endpoint of the blobscan API.",
		EnvVars: []string{"BLOBSCAN_API_ENDPOINT"},
		Value:   "http://localhost:3001",
	}
	// BlobscanSecret defines the secret signing blobscan API tokens.
	BlobscanSecret = &cli.StringFlag{
		Name:    "blobscan-secret",
		Usage:   "Secret key used to sign blobscan API tokens. Empty disables authentication.",
		EnvVars: []string{"SECRET_KEY"},
	}
	// Network selects the per-network parameter table.
	Network = &cli.StringFlag{
		Name:    "network",
		Usage:   "Name of the network to index (mainnet, goerli, sepolia, holesky, gnosis, devnet).",
		EnvVars: []string{"NETWORK_NAME"},
		Value:   "mainnet",
	}
	// DencunForkSlot overrides the network's historical back-fill floor.
	DencunForkSlot = &cli.Uint64Flag{
		Name:    "dencun-fork-slot",
		Usage:   "Slot at which the historical back-fill stops. Defaults to the network's Dencun fork slot.",
		EnvVars: []string{"DENCUN_FORK_SLOT"},
	}
	// SlotsPerSave defines the synchronizer chunk size.
	SlotsPerSave = &cli.Uint64Flag{
		Name:    "slots-per-save",
		Usage:   "Amount of slots processed between checkpoint saves.",
		EnvVars: []string{"SLOTS_PER_SAVE"},
		Value:   1000,
	}
	// NumThreads defines the synchronizer worker pool size.
	NumThreads = &cli.Uint64Flag{
		Name:    "num-threads",
		Usage:   "Amount of worker goroutines per slots chunk. Defaults to the available parallelism.",
		EnvVars: []string{"NUM_THREADS"},
	}
	// DisableSyncCheckpointSave turns checkpoint persistence off.
	DisableSyncCheckpointSave = &cli.BoolFlag{
		Name:    "disable-sync-checkpoint-save",
		Usage:   "Do not persist sync checkpoints to blobscan.",
		EnvVars: []string{"DISABLE_SYNC_CHECKPOINT_SAVE"},
	}
	// DisableSyncHistorical suppresses the historical back-fill task.
	DisableSyncHistorical = &cli.BoolFlag{
		Name:    "disable-sync-historical",
		Usage:   "Do not back-fill historical slots.",
		EnvVars: []string{"DISABLE_SYNC_HISTORICAL"},
	}
	// StartBlockId overrides both initial cursors.
	StartBlockId = &cli.StringFlag{
		Name:    "start-block-id",
		Usage:   "Block id to start indexing from: 'head', 'finalized', a slot number or a block root.",
		EnvVars: []string{"START_BLOCK_ID"},
	}
	// EndBlockId bounds the run to a historical sweep.
	EndBlockId = &cli.StringFlag{
		Name:    "end-block-id",
		Usage:   "Block id to stop indexing at. When set, only the historical sweep runs.",
		EnvVars: []string{"END_BLOCK_ID"},
	}
	// Verbosity defines the logrus configuration.
	Verbosity = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (trace, debug, info=default, warn, error, fatal, panic)",
		Value: "info",
	}
	// LogFormat specifies the log output encoding.
	LogFormat = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Specify log formatting. Supports: text, json, fluentd.",
		Value: "text",
	}
	// LogFileName specifies the log file name, relative or absolute.
	LogFileName = &cli.StringFlag{
		Name:  "log-file",
		Usage: "Specify log file name, relative or absolute path",
	}
	// MonitoringPort defines the metrics server port.
	MonitoringPort = &cli.Uint64Flag{
		Name:  "monitoring-port",
		Usage: "Port used by prometheus for metrics",
		Value: 8080,
	}
	// DisableMonitoring turns the metrics server off.
	DisableMonitoring = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable the prometheus metrics service.",
	}
	// ConfigFile loads flag values from a yaml file.
	ConfigFile = &cli.StringFlag{
		Name:  "config-file",
		Usage: "The filepath to a yaml file with flag values",
	}
)
