package connection

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// Sn is an optional signed sequence number. Present and positive is a
// request expecting a response, negative answers request -n, zero is one
// way. Absent marks a fee claim between connections.
type Sn struct {
	value int64
	valid bool
}

// SomeSn returns a present sequence number
func SomeSn(n int64) Sn {
	return Sn{value: n, valid: true}
}

// Get returns the value and whether it is present
func (n Sn) Get() (int64, bool) {
	return n.value, n.valid
}

func (n Sn) String() string {
	if !n.valid {
		return "none"
	}
	return fmt.Sprint(n.value)
}

// EncodeRLP writes an absent value as the empty list and a present one as
// the minimal two's complement big endian string
func (n Sn) EncodeRLP(w io.Writer) error {
	if !n.valid {
		_, err := w.Write(rlp.EmptyList)
		return err
	}
	return rlp.Encode(w, signedBytes(n.value))
}

// DecodeRLP implements rlp.Decoder
func (n *Sn) DecodeRLP(s *rlp.Stream) error {
	kind, size, err := s.Kind()
	if err != nil {
		return err
	}
	if kind == rlp.List {
		if size != 0 {
			return fmt.Errorf("sn: non empty list")
		}
		if _, err := s.List(); err != nil {
			return err
		}
		*n = Sn{}
		return s.ListEnd()
	}
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	v, err := signedValue(b)
	if err != nil {
		return err
	}
	*n = SomeSn(v)
	return nil
}

func signedBytes(v int64) []byte {
	if v == 0 {
		return []byte{}
	}
	b := binary.BigEndian.AppendUint64(nil, uint64(v))
	for len(b) > 1 && redundant(b[0], b[1]) {
		b = b[1:]
	}
	return b
}

// redundant reports whether the leading byte only repeats the sign of the next
func redundant(lead, next byte) bool {
	return (lead == 0x00 && next&0x80 == 0) || (lead == 0xff && next&0x80 != 0)
}

func signedValue(b []byte) (int64, error) {
	if len(b) > 8 { //nolint:gomnd
		return 0, fmt.Errorf("sn: %d bytes do not fit 64 bits", len(b))
	}
	if (len(b) == 1 && b[0] == 0) || (len(b) > 1 && redundant(b[0], b[1])) {
		return 0, fmt.Errorf("sn: non minimal encoding %x", b)
	}
	if len(b) == 0 {
		return 0, nil
	}
	var v int64
	if b[0]&0x80 != 0 {
		v = -1
	}
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v, nil
}

// Message is the body of a packet between two connections
type Message struct {
	Sn   Sn
	Fee  *big.Int
	Data []byte
}

// Encode returns the rlp encoding of m
func (m Message) Encode() ([]byte, error) {
	if m.Fee == nil {
		m.Fee = new(big.Int)
	}
	return rlp.EncodeToBytes(m)
}

// DecodeMessage decodes a packet body. Trailing bytes are rejected.
func DecodeMessage(raw []byte) (Message, error) {
	var m Message
	if err := rlp.DecodeBytes(raw, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return m, nil
}
