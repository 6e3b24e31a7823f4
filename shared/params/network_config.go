// Package params defines the per-network parameters consumed by the
// indexer.
package params

import "github.com/pkg/errors"

// NetworkConfig holds the chain parameters of a supported network.
type NetworkConfig struct {
	Name string
	// DencunForkSlot is the first slot at which blob-carrying transactions
	// exist. Historical back-fill stops there.
	DencunForkSlot uint64
}

var networkConfigs = map[string]*NetworkConfig{
	"mainnet": {Name: "mainnet", DencunForkSlot: 8626176},
	"goerli":  {Name: "goerli", DencunForkSlot: 7413760},
	"sepolia": {Name: "sepolia", DencunForkSlot: 4243456},
	"holesky": {Name: "holesky", DencunForkSlot: 950272},
	"gnosis":  {Name: "gnosis", DencunForkSlot: 16101888},
	"devnet":  {Name: "devnet", DencunForkSlot: 0},
}

// NetworkConfigByName returns the configuration of a named network.
func NetworkConfigByName(name string) (*NetworkConfig, error) {
	cfg, ok := networkConfigs[name]
	if !ok {
		return nil, errors.Errorf("unknown network %q", name)
	}
	return cfg, nil
}
