package merkle

import (
	"errors"
	"fmt"
)

// ErrLeafNotFound is returned when a proof is requested for an unknown leaf
var ErrLeafNotFound = errors.New("leaf not found")

// Tree is a binary keccak tree over a fixed list of values. A level with an
// odd number of nodes promotes its last node unchanged.
type Tree struct {
	values [][]byte
	// levels[0] holds the leaf hashes, the last level holds the root
	levels [][][KeyLen]byte
}

// NewTree builds a tree over values, in order
func NewTree(values [][]byte) *Tree {
	t := &Tree{values: values}
	if len(values) == 0 {
		return t
	}
	level := make([][KeyLen]byte, len(values))
	for i, v := range values {
		level[i] = HashLeaf(v)
	}
	t.levels = append(t.levels, level)
	for len(level) > 1 {
		next := make([][KeyLen]byte, 0, (len(level)+1)/2) //nolint:gomnd
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hash(level[i][:], level[i+1][:]))
		}
		t.levels = append(t.levels, next)
		level = next
	}
	return t
}

// Len returns the number of leaves
func (t *Tree) Len() int {
	return len(t.values)
}

// Root returns the root hash, HashZero for an empty tree
func (t *Tree) Root() [KeyLen]byte {
	if len(t.levels) == 0 {
		return HashZero
	}
	return t.levels[len(t.levels)-1][0]
}

// Proof returns the membership proof of the leaf at index
func (t *Tree) Proof(index int) ([]Node, error) {
	if index < 0 || index >= len(t.values) {
		return nil, fmt.Errorf("index %d out of range [0,%d): %w", index, len(t.values), ErrLeafNotFound)
	}
	var path []Node
	for h := 0; h < len(t.levels)-1; h++ {
		level := t.levels[h]
		if index%2 == 1 {
			sibling := level[index-1]
			path = append(path, Node{Dir: SiblingLeft, Value: sibling[:]})
		} else if index+1 < len(level) {
			sibling := level[index+1]
			path = append(path, Node{Dir: SiblingRight, Value: sibling[:]})
		}
		index /= 2
	}
	return path, nil
}

// ProofOf returns the proof of the first leaf equal to value
func (t *Tree) ProofOf(value []byte) ([]Node, error) {
	for i, v := range t.values {
		if string(v) == string(value) {
			return t.Proof(i)
		}
	}
	return nil, ErrLeafNotFound
}
