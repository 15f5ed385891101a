package host

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLen is the length of an r||s||v secp256k1 signature
const SignatureLen = 65

// API groups the crypto primitives a contract may use
type API interface {
	// Secp256k1RecoverPubkey returns the 65 byte uncompressed public key
	// that produced signature over digest
	Secp256k1RecoverPubkey(digest, signature []byte) ([]byte, error)
	Keccak256(data ...[]byte) []byte
}

type ethAPI struct{}

// NewAPI returns the API backed by go-ethereum crypto
func NewAPI() API {
	return ethAPI{}
}

func (ethAPI) Secp256k1RecoverPubkey(digest, signature []byte) ([]byte, error) {
	if len(signature) < SignatureLen {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	sig := make([]byte, SignatureLen)
	copy(sig, signature[:SignatureLen])
	// v may come as 27/28
	if sig[SignatureLen-1] >= 27 { //nolint:gomnd
		sig[SignatureLen-1] -= 27
	}
	pub, err := crypto.Ecrecover(digest, sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return pub, nil
}

func (ethAPI) Keccak256(data ...[]byte) []byte {
	return crypto.Keccak256(data...)
}

// RecoverAddress returns the address that signed digest. It reports false for
// signatures shorter than 65 bytes or that do not recover.
func RecoverAddress(api API, digest, signature []byte) (common.Address, bool) {
	if len(signature) < SignatureLen {
		return common.Address{}, false
	}
	pub, err := api.Secp256k1RecoverPubkey(digest, signature)
	if err != nil || len(pub) != SignatureLen {
		return common.Address{}, false
	}
	// drop the 0x04 prefix
	return common.BytesToAddress(api.Keccak256(pub[1:])[12:]), true
}
