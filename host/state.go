package host

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// JoinKey builds a composite map key. Parts are length prefixed so distinct
// part lists never produce the same key.
func JoinKey(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// Uint64Key formats n as a map key
func Uint64Key(n uint64) string {
	return strconv.FormatUint(n, 10)
}

func decode[T any](raw []byte) (T, error) {
	var v T
	err := rlp.DecodeBytes(raw, &v)
	return v, err
}

// Item is a single rlp encoded value stored under a fixed key
type Item[T any] struct {
	key []byte
}

func NewItem[T any](key string) Item[T] {
	return Item[T]{key: []byte(key)}
}

// May loads the value, reporting whether it exists
func (i Item[T]) May(s Store) (T, bool, error) {
	raw := s.Get(i.key)
	if raw == nil {
		var zero T
		return zero, false, nil
	}
	v, err := decode[T](raw)
	if err != nil {
		return v, false, fmt.Errorf("decoding %s: %w", i.key, err)
	}
	return v, true, nil
}

// Load loads the value, failing with ErrNotFound when missing
func (i Item[T]) Load(s Store) (T, error) {
	v, ok, err := i.May(s)
	if err != nil {
		return v, err
	}
	if !ok {
		return v, fmt.Errorf("%s: %w", i.key, ErrNotFound)
	}
	return v, nil
}

func (i Item[T]) Save(s Store, v T) error {
	raw, err := rlp.EncodeToBytes(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", i.key, err)
	}
	s.Set(i.key, raw)
	return nil
}

func (i Item[T]) Remove(s Store) {
	s.Delete(i.key)
}

func (i Item[T]) Exists(s Store) bool {
	return s.Get(i.key) != nil
}

// Map is a namespace of rlp encoded values
type Map[T any] struct {
	namespace string
}

func NewMap[T any](namespace string) Map[T] {
	return Map[T]{namespace: namespace}
}

func (m Map[T]) rawKey(key string) []byte {
	return []byte(m.namespace + "\x00" + key)
}

func (m Map[T]) item(key string) Item[T] {
	return Item[T]{key: m.rawKey(key)}
}

func (m Map[T]) May(s Store, key string) (T, bool, error) {
	return m.item(key).May(s)
}

func (m Map[T]) Load(s Store, key string) (T, error) {
	return m.item(key).Load(s)
}

func (m Map[T]) Save(s Store, key string, v T) error {
	return m.item(key).Save(s, v)
}

func (m Map[T]) Remove(s Store, key string) {
	m.item(key).Remove(s)
}

func (m Map[T]) Has(s Store, key string) bool {
	return m.item(key).Exists(s)
}

// Sequence is a persisted counter
type Sequence struct {
	item Item[uint64]
}

func NewSequence(key string) Sequence {
	return Sequence{item: NewItem[uint64](key)}
}

// Current returns the last allocated value, zero when none
func (q Sequence) Current(s Store) (uint64, error) {
	v, _, err := q.item.May(s)
	return v, err
}

// Next allocates and returns the next value, starting at one
func (q Sequence) Next(s Store) (uint64, error) {
	v, err := q.Current(s)
	if err != nil {
		return 0, err
	}
	v++
	return v, q.item.Save(s, v)
}

// AmountMap is a namespace of token amounts
type AmountMap struct {
	m Map[*big.Int]
}

func NewAmountMap(namespace string) AmountMap {
	return AmountMap{m: NewMap[*big.Int](namespace)}
}

// Get returns the stored amount, zero when missing
func (a AmountMap) Get(s Store, key string) (*uint256.Int, error) {
	v, ok, err := a.m.May(s, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return ToAmount(v)
}

// Set stores amount, removing the entry when it is zero
func (a AmountMap) Set(s Store, key string, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		a.m.Remove(s, key)
		return nil
	}
	return a.m.Save(s, key, amount.ToBig())
}

// Add increases the stored amount
func (a AmountMap) Add(s Store, key string, amount *uint256.Int) error {
	current, err := a.Get(s, key)
	if err != nil {
		return err
	}
	sum := new(uint256.Int).Add(current, amount)
	if sum.BitLen() > MaxAmountBits {
		return fmt.Errorf("%w: overflow", ErrInvalidAmount)
	}
	return a.Set(s, key, sum)
}

// Take returns the stored amount and zeroes it
func (a AmountMap) Take(s Store, key string) (*uint256.Int, error) {
	current, err := a.Get(s, key)
	if err != nil {
		return nil, err
	}
	a.m.Remove(s, key)
	return current, nil
}
