package ibccore

import (
	"encoding/binary"
	"fmt"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// State is the handshake state of a channel end
type State uint8

const (
	StateUninitialized State = iota
	StateInit
	StateTryOpen
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateTryOpen:
		return "TRYOPEN"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	}
	return "UNINITIALIZED"
}

// Channel orderings
var (
	OrderUnordered = string(wasmvmtypes.Unordered)
	OrderOrdered   = string(wasmvmtypes.Ordered)
)

// ChannelEnd is one side of a channel as stored and committed by its chain
type ChannelEnd struct {
	State               State  `json:"state"`
	Order               string `json:"order"`
	Version             string `json:"version"`
	ConnectionID        string `json:"connection_id"`
	CounterpartyPort    string `json:"counterparty_port_id"`
	CounterpartyChannel string `json:"counterparty_channel_id"`
}

// ConnectionEnd binds a local light client to the counterparty's connection
type ConnectionEnd struct {
	ClientID                 string `json:"client_id"`
	CounterpartyConnectionID string `json:"counterparty_connection_id"`
	CounterpartyClientID     string `json:"counterparty_client_id"`
}

// Packet is a datagram between two channel ends
type Packet struct {
	Sequence      uint64 `json:"sequence"`
	SourcePort    string `json:"source_port"`
	SourceChannel string `json:"source_channel"`
	DestPort      string `json:"destination_port"`
	DestChannel   string `json:"destination_channel"`
	Data          []byte `json:"data"`
	// TimeoutHeight is a height of the destination chain, zero disables it
	TimeoutHeight uint64 `json:"timeout_height"`
	// TimeoutTimestamp is in nanoseconds, zero disables it
	TimeoutTimestamp uint64 `json:"timeout_timestamp"`
}

// Endpoint names a port and channel
type Endpoint struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
}

// Channel is a channel as presented to the contract bound to its port
type Channel struct {
	Endpoint             Endpoint `json:"endpoint"`
	CounterpartyEndpoint Endpoint `json:"counterparty_endpoint"`
	Order                string   `json:"order"`
	Version              string   `json:"version"`
	ConnectionID         string   `json:"connection_id"`
}

func channelOf(port, channel string, end ChannelEnd) Channel {
	return Channel{
		Endpoint:             Endpoint{PortID: port, ChannelID: channel},
		CounterpartyEndpoint: Endpoint{PortID: end.CounterpartyPort, ChannelID: end.CounterpartyChannel},
		Order:                end.Order,
		Version:              end.Version,
		ConnectionID:         end.ConnectionID,
	}
}

// CommitmentLeaf is the value committed to the block message tree
type CommitmentLeaf struct {
	Path  []byte
	Value []byte
}

func ChannelPath(port, channel string) string {
	return fmt.Sprintf("channelEnds/ports/%s/channels/%s", port, channel)
}

func PacketCommitmentPath(port, channel string, sequence uint64) string {
	return fmt.Sprintf("commitments/ports/%s/channels/%s/sequences/%d", port, channel, sequence)
}

func AcknowledgementPath(port, channel string, sequence uint64) string {
	return fmt.Sprintf("acks/ports/%s/channels/%s/sequences/%d", port, channel, sequence)
}

func TimeoutReceiptPath(port, channel string, sequence uint64) string {
	return fmt.Sprintf("timeoutReceipts/ports/%s/channels/%s/sequences/%d", port, channel, sequence)
}

func leaf(path string, value []byte) ([]byte, error) {
	return rlp.EncodeToBytes(CommitmentLeaf{Path: []byte(path), Value: value})
}

// ChannelLeaf is the leaf committing a channel end
func ChannelLeaf(port, channel string, end ChannelEnd) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(end)
	if err != nil {
		return nil, err
	}
	return leaf(ChannelPath(port, channel), raw)
}

// PacketCommitment is keccak256 of the timeouts and the hash of the data
func PacketCommitment(p Packet) []byte {
	raw, err := rlp.EncodeToBytes([]interface{}{p.TimeoutHeight, p.TimeoutTimestamp, crypto.Keccak256(p.Data)})
	if err != nil {
		// unsigned integers and byte strings always encode
		panic(err)
	}
	return crypto.Keccak256(raw)
}

// PacketLeaf is the leaf committing a sent packet on its source chain
func PacketLeaf(p Packet) ([]byte, error) {
	return leaf(PacketCommitmentPath(p.SourcePort, p.SourceChannel, p.Sequence), PacketCommitment(p))
}

// AckLeaf is the leaf committing an acknowledgement on the destination chain
func AckLeaf(p Packet, ack []byte) ([]byte, error) {
	return leaf(AcknowledgementPath(p.DestPort, p.DestChannel, p.Sequence), crypto.Keccak256(ack))
}

// TimeoutReceiptLeaf is the leaf committing on the destination chain that a
// packet expired without being received
func TimeoutReceiptLeaf(p Packet) ([]byte, error) {
	return leaf(TimeoutReceiptPath(p.DestPort, p.DestChannel, p.Sequence), PacketCommitment(p))
}

// EncodeSequence is the response data of SendPacket
func EncodeSequence(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

// DecodeSequence parses the response data of SendPacket
func DecodeSequence(data []byte) (uint64, error) {
	if len(data) != 8 { //nolint:gomnd
		return 0, fmt.Errorf("sequence must be 8 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}
