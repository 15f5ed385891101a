package devnet

import (
	"time"

	"github.com/0xPolygonHermez/zkevm-node/config/types"
	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/relayer"
)

// Config wires two chains and the relayer between them
type Config struct {
	// Admin instantiates and configures the xcall contracts of both chains
	Admin string `mapstructure:"Admin"`
	// BlockInterval is how often Start seals a block on each chain
	BlockInterval types.Duration `mapstructure:"BlockInterval"`
	ChainA        ChainConfig    `mapstructure:"ChainA"`
	ChainB        ChainConfig    `mapstructure:"ChainB"`
	Relayer       relayer.Config `mapstructure:"Relayer"`
}

// ChainConfig is one chain with its xcall deployment
type ChainConfig struct {
	host.Config `mapstructure:",squash"`

	// Denom is the coin fees are paid in
	Denom string `mapstructure:"Denom"`
	// Connections are the addresses of the xcall connections deployed on the
	// chain, the first is the default connection. The counterparty deploys
	// the same number.
	Connections []string `mapstructure:"Connections"`
	// SendPacketFee and AckFee are charged for packets toward the counterparty
	SendPacketFee string `mapstructure:"SendPacketFee"`
	AckFee        string `mapstructure:"AckFee"`
	// ProtocolFee is kept by the fee handler of the dispatcher
	ProtocolFee string `mapstructure:"ProtocolFee"`
	// TimeoutHeight is the number of counterparty blocks after which packets time out, zero disables it
	TimeoutHeight uint64 `mapstructure:"TimeoutHeight"`
}

// DefaultConfig is a devnet between an icon style and an archway style
// chain with one connection each. Validator keys are generated at start.
func DefaultConfig() Config {
	return Config{
		Admin:         "admin",
		BlockInterval: types.Duration{Duration: time.Second},
		ChainA: ChainConfig{
			Config:        host.Config{ChainID: "icon-local", NetworkID: "0x3.icon", MaxCallDepth: 16},
			Denom:         "icx",
			SendPacketFee: "10",
			AckFee:        "5",
			ProtocolFee:   "3",
			TimeoutHeight: 100,
		},
		ChainB: ChainConfig{
			Config:        host.Config{ChainID: "archway-local", NetworkID: "archway", MaxCallDepth: 16},
			Denom:         "aarch",
			SendPacketFee: "20",
			AckFee:        "7",
			ProtocolFee:   "2",
			TimeoutHeight: 100,
		},
		Relayer: relayer.Config{
			Address:      "relayer",
			PollInterval: types.Duration{Duration: 500 * time.Millisecond},
			CacheSize:    1024,
			RetryTimeout: types.Duration{Duration: 5 * time.Second},
		},
	}
}
