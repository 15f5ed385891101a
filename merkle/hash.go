package merkle

import (
	"github.com/iden3/go-iden3-crypto/keccak256"
	"golang.org/x/crypto/sha3"
)

// KeyLen is the length of a node hash
const KeyLen = 32

// HashZero is an empty hash
var HashZero = [KeyLen]byte{}

func hash(data ...[]byte) [KeyLen]byte {
	var res [KeyLen]byte
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d) //nolint:errcheck,gosec
	}
	copy(res[:], hash.Sum(nil))
	return res
}

// HashLeaf returns the leaf hash of a committed value
func HashLeaf(value []byte) [KeyLen]byte {
	var res [KeyLen]byte
	copy(res[:], keccak256.Hash(value))
	return res
}
