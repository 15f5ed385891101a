package lightclient

import (
	"fmt"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ClientState tracks one remote chain
type ClientState struct {
	Kind               ClientKind
	NetworkID          string
	TrustNumerator     uint64
	TrustDenominator   uint64
	LatestHeight       uint64
	NextValidatorsHash common.Hash
	// FrozenHeight is the height at which misbehaviour was detected, zero when active
	FrozenHeight uint64
	// TrustingPeriod in nanoseconds, zero disables expiry
	TrustingPeriod uint64
	// MaxClockDrift in nanoseconds, zero disables the future header check
	MaxClockDrift uint64
}

// NewClientState returns an active client state with a 2/3 trust level
func NewClientState(kind ClientKind, networkID string, height uint64, validators []host.Validator) ClientState {
	return ClientState{
		Kind:               kind,
		NetworkID:          networkID,
		TrustNumerator:     2, //nolint:gomnd
		TrustDenominator:   3, //nolint:gomnd
		LatestHeight:       height,
		NextValidatorsHash: host.ValidatorsHash(validators),
	}
}

// Frozen reports whether misbehaviour was detected
func (cs *ClientState) Frozen() bool {
	return cs.FrozenHeight != 0
}

// Encode returns the rlp encoding of cs
func (cs *ClientState) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(cs)
}

// Commitment is keccak256 of the rlp encoding
func (cs *ClientState) Commitment() (common.Hash, error) {
	raw, err := cs.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(raw), nil
}

// DecodeClientState parses an rlp encoded client state
func DecodeClientState(raw []byte) (*ClientState, error) {
	var cs ClientState
	if err := rlp.DecodeBytes(raw, &cs); err != nil {
		return nil, fmt.Errorf("decoding client state: %w", err)
	}
	return &cs, nil
}

// ConsensusState is the commitment of a remote chain at one height
type ConsensusState struct {
	MessageRoot common.Hash
	// Timestamp of the remote block in nanoseconds
	Timestamp          uint64
	NextValidatorsHash common.Hash
}

// ConsensusStateOf extracts the consensus state committed by a header
func ConsensusStateOf(h host.Header) ConsensusState {
	return ConsensusState{
		MessageRoot:        h.MessageRoot,
		Timestamp:          h.Timestamp,
		NextValidatorsHash: h.NextValidatorsHash,
	}
}

// Encode returns the rlp encoding of cs
func (cs *ConsensusState) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(cs)
}

// Commitment is keccak256 of the rlp encoding
func (cs *ConsensusState) Commitment() (common.Hash, error) {
	raw, err := cs.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(raw), nil
}

// DecodeConsensusState parses an rlp encoded consensus state
func DecodeConsensusState(raw []byte) (*ConsensusState, error) {
	var cs ConsensusState
	if err := rlp.DecodeBytes(raw, &cs); err != nil {
		return nil, fmt.Errorf("decoding consensus state: %w", err)
	}
	return &cs, nil
}
