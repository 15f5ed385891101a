package ibccore

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/lightclient"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Packet event types
const (
	EventSendPacket           = "send_packet"
	EventRecvPacket           = "recv_packet"
	EventWriteAcknowledgement = "write_acknowledgement"
	EventAcknowledgePacket    = "acknowledge_packet"
	EventTimeoutPacket        = "timeout_packet"
	EventTimeoutReceipt       = "timeout_receipt"

	AttributePacket         = "packet"
	AttributePacketSequence = "packet_sequence"
	AttributePacketSrcPort  = "packet_src_port"
	AttributePacketSrcChan  = "packet_src_channel"
	AttributePacketDstPort  = "packet_dst_port"
	AttributePacketDstChan  = "packet_dst_channel"
	AttributePacketAck      = "packet_ack_hex"
	AttributePacketRelayer  = "relayer"
)

func packetEvent(typ string, p Packet, kv ...string) (wasmvmtypes.Event, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return wasmvmtypes.Event{}, err
	}
	attrs := []string{
		AttributePacket, string(raw),
		AttributePacketSequence, strconv.FormatUint(p.Sequence, 10),
		AttributePacketSrcPort, p.SourcePort,
		AttributePacketSrcChan, p.SourceChannel,
		AttributePacketDstPort, p.DestPort,
		AttributePacketDstChan, p.DestChannel,
	}
	return host.NewEvent(typ, append(attrs, kv...)...), nil
}

// PacketOf decodes the packet attribute of a packet event
func PacketOf(ev wasmvmtypes.Event) (Packet, error) {
	var p Packet
	raw, ok := host.Attribute(ev, AttributePacket)
	if !ok {
		return p, fmt.Errorf("%s event without packet", ev.Type)
	}
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}

// AcknowledgementOf decodes the acknowledgement of a write_acknowledgement event
func AcknowledgementOf(ev wasmvmtypes.Event) ([]byte, error) {
	raw, ok := host.Attribute(ev, AttributePacketAck)
	if !ok {
		return nil, fmt.Errorf("%s event without acknowledgement", ev.Type)
	}
	return hex.DecodeString(raw)
}

func nextSequence(s host.Store, port, channel string) (uint64, error) {
	next, ok, err := nextSequenceSend.May(s, channelKey(port, channel))
	if err != nil || !ok {
		return 1, err
	}
	return next, nil
}

func openChannel(s host.Store, port, channel string) (ChannelEnd, error) {
	end, err := loadChannel(s, port, channel)
	if err != nil {
		return end, err
	}
	switch end.State {
	case StateOpen:
		return end, nil
	case StateClosed:
		return end, fmt.Errorf("%w: %s/%s", ErrChannelClosed, port, channel)
	}
	return end, fmt.Errorf("%w: %s/%s is %s", ErrInvalidChannelState, port, channel, end.State)
}

func sendPacket(deps host.Deps, info wasmvmtypes.MessageInfo, m *SendPacketMsg) (*wasmvmtypes.Response, error) {
	port := info.Sender
	end, err := openChannel(deps.Storage, port, m.ChannelID)
	if err != nil {
		return nil, err
	}
	if m.TimeoutHeight == 0 && m.TimeoutTimestamp == 0 {
		return nil, ErrInvalidTimeout
	}
	seq, err := nextSequence(deps.Storage, port, m.ChannelID)
	if err != nil {
		return nil, err
	}
	if err := nextSequenceSend.Save(deps.Storage, channelKey(port, m.ChannelID), seq+1); err != nil {
		return nil, err
	}
	p := Packet{
		Sequence:         seq,
		SourcePort:       port,
		SourceChannel:    m.ChannelID,
		DestPort:         end.CounterpartyPort,
		DestChannel:      end.CounterpartyChannel,
		Data:             m.Data,
		TimeoutHeight:    m.TimeoutHeight,
		TimeoutTimestamp: m.TimeoutTimestamp,
	}
	if err := commitments.Save(deps.Storage, packetKey(port, m.ChannelID, seq), PacketCommitment(p)); err != nil {
		return nil, err
	}
	leaf, err := PacketLeaf(p)
	if err != nil {
		return nil, err
	}
	ev, err := packetEvent(EventSendPacket, p)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Data = EncodeSequence(seq)
	resp.Events = append(resp.Events, ev, commitmentEvent(leaf))
	return resp, nil
}

func expiredAt(p Packet, env wasmvmtypes.Env) bool {
	if p.TimeoutHeight != 0 && env.Block.Height >= p.TimeoutHeight {
		return true
	}
	return p.TimeoutTimestamp != 0 && uint64(env.Block.Time) >= p.TimeoutTimestamp
}

// unreceived fails once the destination either received the packet or
// recorded its timeout
func unreceived(s host.Store, key string, p Packet) error {
	if packetReceipts.Has(s, key) {
		return fmt.Errorf("%w: %s/%s sequence %d", ErrPacketAlreadyReceived, p.DestPort, p.DestChannel, p.Sequence)
	}
	if timeoutReceipts.Has(s, key) {
		return fmt.Errorf("%w: %s/%s sequence %d", ErrPacketTimeoutRecorded, p.DestPort, p.DestChannel, p.Sequence)
	}
	return nil
}

func recvPacket(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, m *RecvPacketMsg) (*wasmvmtypes.Response, error) {
	p := m.Packet
	end, err := openChannel(deps.Storage, p.DestPort, p.DestChannel)
	if err != nil {
		return nil, err
	}
	if end.CounterpartyPort != p.SourcePort || end.CounterpartyChannel != p.SourceChannel {
		return nil, fmt.Errorf("%w: source %s/%s is not the counterparty of %s/%s", ErrInvalidPacket, p.SourcePort, p.SourceChannel, p.DestPort, p.DestChannel)
	}
	key := packetKey(p.DestPort, p.DestChannel, p.Sequence)
	if err := unreceived(deps.Storage, key, p); err != nil {
		return nil, err
	}
	if expiredAt(p, env) {
		return nil, fmt.Errorf("%w: height %d time %d, timeout height %d time %d", ErrPacketTimedOut, env.Block.Height, env.Block.Time, p.TimeoutHeight, p.TimeoutTimestamp)
	}
	leaf, err := PacketLeaf(p)
	if err != nil {
		return nil, err
	}
	if err := verify(deps, end.ConnectionID, m.Proof, PacketCommitmentPath(p.SourcePort, p.SourceChannel, p.Sequence), leaf); err != nil {
		return nil, err
	}
	if err := packetReceipts.Save(deps.Storage, key, p); err != nil {
		return nil, err
	}
	ev, err := packetEvent(EventRecvPacket, p, AttributePacketRelayer, info.Sender)
	if err != nil {
		return nil, err
	}
	sub, err := callback(p.DestPort, CallbackMsg{IbcPacketReceive: &PacketReceiveCallback{Packet: p, Relayer: info.Sender}})
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Events = append(resp.Events, ev)
	resp.Messages = append(resp.Messages, sub)
	return resp, nil
}

func writeAcknowledgement(deps host.Deps, info wasmvmtypes.MessageInfo, m *WriteAcknowledgementMsg) (*wasmvmtypes.Response, error) {
	port := info.Sender
	key := packetKey(port, m.ChannelID, m.Sequence)
	p, ok, err := packetReceipts.May(deps.Storage, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s sequence %d", ErrPacketReceiptNotFound, port, m.ChannelID, m.Sequence)
	}
	if acknowledgements.Has(deps.Storage, key) {
		return nil, fmt.Errorf("%w: %s/%s sequence %d", ErrAcknowledgementExists, port, m.ChannelID, m.Sequence)
	}
	ack := m.Acknowledgement
	if ack == nil {
		ack = []byte{}
	}
	if err := acknowledgements.Save(deps.Storage, key, crypto.Keccak256(ack)); err != nil {
		return nil, err
	}
	leaf, err := AckLeaf(p, ack)
	if err != nil {
		return nil, err
	}
	ev, err := packetEvent(EventWriteAcknowledgement, p, AttributePacketAck, hex.EncodeToString(ack))
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Events = append(resp.Events, ev, commitmentEvent(leaf))
	return resp, nil
}

func loadCommitment(s host.Store, p Packet) error {
	commitment, ok, err := commitments.May(s, packetKey(p.SourcePort, p.SourceChannel, p.Sequence))
	if err != nil {
		return err
	}
	if !ok || !bytes.Equal(commitment, PacketCommitment(p)) {
		return fmt.Errorf("%w: %s/%s sequence %d", ErrPacketCommitmentNotFound, p.SourcePort, p.SourceChannel, p.Sequence)
	}
	return nil
}

func acknowledgePacket(deps host.Deps, info wasmvmtypes.MessageInfo, m *AcknowledgePacketMsg) (*wasmvmtypes.Response, error) {
	p := m.Packet
	end, err := loadChannel(deps.Storage, p.SourcePort, p.SourceChannel)
	if err != nil {
		return nil, err
	}
	if end.CounterpartyPort != p.DestPort || end.CounterpartyChannel != p.DestChannel {
		return nil, fmt.Errorf("%w: destination %s/%s is not the counterparty of %s/%s", ErrInvalidPacket, p.DestPort, p.DestChannel, p.SourcePort, p.SourceChannel)
	}
	if err := loadCommitment(deps.Storage, p); err != nil {
		return nil, err
	}
	leaf, err := AckLeaf(p, m.Acknowledgement)
	if err != nil {
		return nil, err
	}
	if err := verify(deps, end.ConnectionID, m.Proof, AcknowledgementPath(p.DestPort, p.DestChannel, p.Sequence), leaf); err != nil {
		return nil, err
	}
	commitments.Remove(deps.Storage, packetKey(p.SourcePort, p.SourceChannel, p.Sequence))
	ev, err := packetEvent(EventAcknowledgePacket, p, AttributePacketRelayer, info.Sender)
	if err != nil {
		return nil, err
	}
	sub, err := callback(p.SourcePort, CallbackMsg{IbcPacketAck: &PacketAckCallback{Acknowledgement: m.Acknowledgement, Packet: p, Relayer: info.Sender}})
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Events = append(resp.Events, ev)
	resp.Messages = append(resp.Messages, sub)
	return resp, nil
}

// recordTimeout runs on the destination. It stores that an expired packet
// was never received and commits that fact, so the packet can no longer be
// received here and the source can prove the timeout.
func recordTimeout(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, m *RecordTimeoutMsg) (*wasmvmtypes.Response, error) {
	p := m.Packet
	end, err := loadChannel(deps.Storage, p.DestPort, p.DestChannel)
	if err != nil {
		return nil, err
	}
	if end.CounterpartyPort != p.SourcePort || end.CounterpartyChannel != p.SourceChannel {
		return nil, fmt.Errorf("%w: source %s/%s is not the counterparty of %s/%s", ErrInvalidPacket, p.SourcePort, p.SourceChannel, p.DestPort, p.DestChannel)
	}
	key := packetKey(p.DestPort, p.DestChannel, p.Sequence)
	if err := unreceived(deps.Storage, key, p); err != nil {
		return nil, err
	}
	if !expiredAt(p, env) {
		return nil, fmt.Errorf("%w: height %d time %d, timeout height %d time %d", ErrPacketNotTimedOut, env.Block.Height, env.Block.Time, p.TimeoutHeight, p.TimeoutTimestamp)
	}
	sent, err := PacketLeaf(p)
	if err != nil {
		return nil, err
	}
	if err := verify(deps, end.ConnectionID, m.Proof, PacketCommitmentPath(p.SourcePort, p.SourceChannel, p.Sequence), sent); err != nil {
		return nil, err
	}
	if err := timeoutReceipts.Save(deps.Storage, key, p); err != nil {
		return nil, err
	}
	leaf, err := TimeoutReceiptLeaf(p)
	if err != nil {
		return nil, err
	}
	ev, err := packetEvent(EventTimeoutReceipt, p, AttributePacketRelayer, info.Sender)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Events = append(resp.Events, ev, commitmentEvent(leaf))
	return resp, nil
}

// timeoutPacket accepts a packet as timed out once the light client proves
// the timeout receipt of the destination at a height past the deadline
func timeoutPacket(deps host.Deps, info wasmvmtypes.MessageInfo, m *TimeoutPacketMsg) (*wasmvmtypes.Response, error) {
	p := m.Packet
	end, err := loadChannel(deps.Storage, p.SourcePort, p.SourceChannel)
	if err != nil {
		return nil, err
	}
	if end.CounterpartyPort != p.DestPort || end.CounterpartyChannel != p.DestChannel {
		return nil, fmt.Errorf("%w: destination %s/%s is not the counterparty of %s/%s", ErrInvalidPacket, p.DestPort, p.DestChannel, p.SourcePort, p.SourceChannel)
	}
	if err := loadCommitment(deps.Storage, p); err != nil {
		return nil, err
	}
	conn, err := loadConnection(deps.Storage, end.ConnectionID)
	if err != nil {
		return nil, err
	}
	lc, err := lightClientOf(deps.Storage, conn.ClientID)
	if err != nil {
		return nil, err
	}
	var cons lightclient.ConsensusStateResponse
	q := lightclient.QueryMsg{ConsensusState: &lightclient.HeightQuery{ClientID: conn.ClientID, Height: m.Proof.Height}}
	if err := host.QueryJSON(deps.Querier, lc, q, &cons); err != nil {
		return nil, err
	}
	heightPassed := p.TimeoutHeight != 0 && m.Proof.Height >= p.TimeoutHeight
	timePassed := p.TimeoutTimestamp != 0 && cons.Timestamp >= p.TimeoutTimestamp
	if !heightPassed && !timePassed {
		return nil, fmt.Errorf("%w: proof height %d time %d, timeout height %d time %d", ErrPacketNotTimedOut, m.Proof.Height, cons.Timestamp, p.TimeoutHeight, p.TimeoutTimestamp)
	}
	leaf, err := TimeoutReceiptLeaf(p)
	if err != nil {
		return nil, err
	}
	if err := verify(deps, end.ConnectionID, m.Proof, TimeoutReceiptPath(p.DestPort, p.DestChannel, p.Sequence), leaf); err != nil {
		return nil, err
	}
	commitments.Remove(deps.Storage, packetKey(p.SourcePort, p.SourceChannel, p.Sequence))
	ev, err := packetEvent(EventTimeoutPacket, p, AttributePacketRelayer, info.Sender)
	if err != nil {
		return nil, err
	}
	sub, err := callback(p.SourcePort, CallbackMsg{IbcPacketTimeout: &PacketTimeoutCallback{Packet: p, Relayer: info.Sender}})
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Events = append(resp.Events, ev)
	resp.Messages = append(resp.Messages, sub)
	return resp, nil
}
