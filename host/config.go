package host

// Config is the configuration of a Chain
type Config struct {
	// ChainID is reported to contracts in the block info
	ChainID string `mapstructure:"ChainID"`

	// NetworkID is stamped on block headers
	NetworkID string `mapstructure:"NetworkID"`

	// ValidatorKeys are the hex encoded secp256k1 private keys that sign block headers
	ValidatorKeys []string `mapstructure:"ValidatorKeys"`

	// ValidatorPowers is the voting power of each key, one when omitted
	ValidatorPowers []uint64 `mapstructure:"ValidatorPowers"`

	// CommitmentSource is the only contract allowed to add leaves to the block message tree
	CommitmentSource string `mapstructure:"CommitmentSource"`

	// MaxCallDepth limits the nesting of sub-messages
	MaxCallDepth int `mapstructure:"MaxCallDepth"`
}
