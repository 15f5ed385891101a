package relayer

import (
	"github.com/0xPolygonHermez/zkevm-node/config/types"
)

// Config is the configuration of the packet relayer
type Config struct {
	// Address signs the relayed transactions on both chains and is credited the relay fees
	Address string `mapstructure:"Address"`
	// PollInterval is the time between two scans of the chains
	PollInterval types.Duration `mapstructure:"PollInterval"`
	// CacheSize bounds the set of deliveries remembered as done
	CacheSize int `mapstructure:"CacheSize"`
	// RetryTimeout is how long a failing delivery is retried before giving up
	RetryTimeout types.Duration `mapstructure:"RetryTimeout"`
}
