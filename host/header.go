package host

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Validator is a block signer and its voting power
type Validator struct {
	Address common.Address
	Power   uint64
}

// Header commits to the messages of one block
type Header struct {
	MainHeight   uint64
	Round        uint64
	NetworkID    string
	MessageCount uint64
	MessageRoot  common.Hash
	// Timestamp is the block time in nanoseconds since unix epoch
	Timestamp          uint64
	NextValidatorsHash common.Hash
}

// SignedHeader is a header with the signatures of the current validator set.
// Signatures[i] belongs to Validators[i] and may be empty.
type SignedHeader struct {
	Header     Header
	Validators []Validator
	Signatures [][]byte
}

// ValidatorsHash commits to a validator set
func ValidatorsHash(vals []Validator) common.Hash {
	raw, err := rlp.EncodeToBytes(vals)
	if err != nil {
		// a slice of fixed size structs always encodes
		panic(err)
	}
	return crypto.Keccak256Hash(raw)
}

// Digest is the hash signed by validators
func (h Header) Digest() common.Hash {
	raw, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(raw)
}

// Encode returns the rlp encoding of the signed header
func (sh *SignedHeader) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(sh)
}

// DecodeSignedHeader parses an rlp encoded signed header
func DecodeSignedHeader(raw []byte) (*SignedHeader, error) {
	var sh SignedHeader
	if err := rlp.DecodeBytes(raw, &sh); err != nil {
		return nil, fmt.Errorf("decoding signed header: %w", err)
	}
	return &sh, nil
}

// SignHeader signs h with every key. keys[i] must belong to vals[i].
func SignHeader(h Header, vals []Validator, keys []*ecdsa.PrivateKey) (*SignedHeader, error) {
	digest := h.Digest()
	sigs := make([][]byte, len(keys))
	for i, k := range keys {
		sig, err := crypto.Sign(digest[:], k)
		if err != nil {
			return nil, err
		}
		sigs[i] = sig
	}
	return &SignedHeader{Header: h, Validators: vals, Signatures: sigs}, nil
}
