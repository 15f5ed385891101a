package merkle

import (
	"bytes"
)

// Directions of a proof node
const (
	// SiblingLeft means the sibling is hashed before the accumulator
	SiblingLeft uint8 = 0
	// SiblingRight means the sibling is hashed after the accumulator
	SiblingRight uint8 = 1
)

// Node is one step of a membership proof
type Node struct {
	Dir   uint8  `json:"dir"`
	Value []byte `json:"value"`
}

// CalculateRoot folds path over the leaf hash of value
func CalculateRoot(value []byte, path []Node) [KeyLen]byte {
	acc := HashLeaf(value)
	for _, n := range path {
		if n.Dir == SiblingLeft {
			acc = hash(n.Value, acc[:])
		} else {
			acc = hash(acc[:], n.Value)
		}
	}
	return acc
}

// Verify reports whether path proves value under root
func Verify(root [KeyLen]byte, value []byte, path []Node) bool {
	calculated := CalculateRoot(value, path)
	return bytes.Equal(calculated[:], root[:])
}
