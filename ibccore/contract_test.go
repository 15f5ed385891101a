package ibccore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/0xPolygonHermez/zkevm-xcall/db"
	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/lightclient"
	"github.com/0xPolygonHermez/zkevm-xcall/utils"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ibcHostAddr = "ibc-host"
	lightClient = "light-client"
	appA        = "app-a"
	appB        = "app-b"
	clientID    = "client-0"
	connID      = "connection-0"
)

type appMsg struct {
	CallbackMsg
	Send *SendPacketMsg           `json:"send,omitempty"`
	Ack  *WriteAcknowledgementMsg `json:"ack,omitempty"`
}

// app records the callbacks of its port
type app struct{}

func (app) Instantiate(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	return host.NewResponse(), nil
}

func (app) Execute(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m appMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	forward := func(v ExecuteMsg) error {
		exec, err := host.ExecuteContract(ibcHostAddr, v, nil)
		resp.Messages = append(resp.Messages, host.SubMsgNever(exec))
		return err
	}
	record := func(kind string) {
		deps.Storage.Set([]byte("cb/"+kind), msg)
	}
	switch {
	case m.Send != nil:
		return resp, forward(ExecuteMsg{SendPacket: m.Send})
	case m.Ack != nil:
		return resp, forward(ExecuteMsg{WriteAcknowledgement: m.Ack})
	case m.IbcChannelOpen != nil:
		if m.IbcChannelOpen.Channel.Version != "v1" {
			return nil, errors.New("unsupported version")
		}
		record("open")
	case m.IbcChannelConnect != nil:
		record("connect")
	case m.IbcChannelClose != nil:
		record("close")
	case m.IbcPacketReceive != nil:
		record("receive")
	case m.IbcPacketAck != nil:
		record("ack")
	case m.IbcPacketTimeout != nil:
		record("timeout")
	}
	if info.Sender != ibcHostAddr {
		return nil, errors.New("callback from " + info.Sender)
	}
	return resp, nil
}

func (app) Query(deps host.Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var kind string
	if err := json.Unmarshal(msg, &kind); err != nil {
		return nil, err
	}
	return json.Marshal(deps.Storage.Get([]byte("cb/" + kind)))
}

func (app) Reply(deps host.Deps, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	return nil, host.ErrUnknownMessage
}

// loopback is a chain whose light client tracks the chain itself, with a
// channel between two ports of the same chain
type loopback struct {
	t     *testing.T
	ctx   context.Context
	chain *host.Chain
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func newLoopback(t *testing.T) *loopback {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg := host.Config{
		ChainID:          "loop-1",
		NetworkID:        "0x1.loop",
		ValidatorKeys:    []string{hex.EncodeToString(crypto.FromECDSA(key))},
		CommitmentSource: ibcHostAddr,
	}
	tp := utils.FixedClock{At: time.Unix(1_700_000_000, 0)}
	chain, err := host.NewChain(cfg, db.NewMemoryStorage(), tp)
	require.NoError(t, err)
	l := &loopback{t: t, ctx: context.Background(), chain: chain}

	l.instantiate(ibcHostAddr, New(), InstantiateMsg{})
	l.instantiate(lightClient, lightclient.New(), lightclient.InstantiateMsg{IbcHost: ibcHostAddr})
	l.instantiate(appA, app{}, struct{}{})
	l.instantiate(appB, app{}, struct{}{})

	cs := lightclient.NewClientState(lightclient.KindIcon, cfg.NetworkID, 0, chain.Validators())
	csRaw, err := cs.Encode()
	require.NoError(t, err)
	cons := lightclient.ConsensusState{NextValidatorsHash: cs.NextValidatorsHash}
	consRaw, err := cons.Encode()
	require.NoError(t, err)
	l.mustExec("relayer", ExecuteMsg{CreateClient: &CreateClientMsg{ClientID: clientID, LightClient: lightClient, ClientState: csRaw, ConsensusState: consRaw}})
	l.mustExec("admin", ExecuteMsg{RegisterConnection: &RegisterConnectionMsg{ConnectionID: connID, Connection: ConnectionEnd{
		ClientID:                 clientID,
		CounterpartyConnectionID: connID,
		CounterpartyClientID:     clientID,
	}}})
	return l
}

func (l *loopback) instantiate(addr string, c host.Contract, msg interface{}) {
	_, err := l.chain.Instantiate(l.ctx, "admin", addr, c, mustJSON(l.t, msg))
	require.NoError(l.t, err)
}

func (l *loopback) exec(sender string, m interface{}) (*host.TxResult, error) {
	target := ibcHostAddr
	if sender == appA || sender == appB {
		target, sender = sender, "user"
	}
	return l.chain.Execute(l.ctx, sender, target, mustJSON(l.t, m))
}

func (l *loopback) mustExec(sender string, m interface{}) *host.TxResult {
	res, err := l.exec(sender, m)
	require.NoError(l.t, err)
	return res
}

// seal commits the open block and makes its header known to the light client
func (l *loopback) seal() uint64 {
	b, err := l.chain.Commit()
	require.NoError(l.t, err)
	raw, err := b.Header.Encode()
	require.NoError(l.t, err)
	l.mustExec("relayer", ExecuteMsg{UpdateClient: &UpdateClientMsg{ClientID: clientID, SignedHeader: raw}})
	return b.Height
}

func (l *loopback) proof(height uint64, leaf []byte) Proof {
	path, err := l.chain.Proof(height, leaf)
	require.NoError(l.t, err)
	return Proof{Height: height, Path: path}
}

func (l *loopback) channelProof(height uint64, port, channel string) Proof {
	var end ChannelEnd
	raw, err := l.chain.Query(l.ctx, ibcHostAddr, mustJSON(l.t, QueryMsg{Channel: &ChannelQuery{PortID: port, ChannelID: channel}}))
	require.NoError(l.t, err)
	require.NoError(l.t, json.Unmarshal(raw, &end))
	leaf, err := ChannelLeaf(port, channel, end)
	require.NoError(l.t, err)
	return l.proof(height, leaf)
}

func (l *loopback) recorded(addr, kind string) bool {
	raw, err := l.chain.Query(l.ctx, addr, mustJSON(l.t, kind))
	require.NoError(l.t, err)
	var v []byte
	require.NoError(l.t, json.Unmarshal(raw, &v))
	return v != nil
}

func (l *loopback) channel(port, channel string) ChannelEnd {
	var end ChannelEnd
	raw, err := l.chain.Query(l.ctx, ibcHostAddr, mustJSON(l.t, QueryMsg{Channel: &ChannelQuery{PortID: port, ChannelID: channel}}))
	require.NoError(l.t, err)
	require.NoError(l.t, json.Unmarshal(raw, &end))
	return end
}

// handshake opens channel-0 on app-a with channel-1 on app-b
func (l *loopback) handshake() {
	l.mustExec("relayer", ExecuteMsg{ChannelOpenInit: &ChannelOpenInitMsg{PortID: appA, ConnectionID: connID, CounterpartyPortID: appB, Version: "v1", Order: OrderUnordered}})
	h := l.seal()
	l.mustExec("relayer", ExecuteMsg{ChannelOpenTry: &ChannelOpenTryMsg{
		PortID: appB, ConnectionID: connID, CounterpartyPortID: appA, CounterpartyChannelID: "channel-0",
		CounterpartyVersion: "v1", Order: OrderUnordered, Proof: l.channelProof(h, appA, "channel-0"),
	}})
	h = l.seal()
	l.mustExec("relayer", ExecuteMsg{ChannelOpenAck: &ChannelOpenAckMsg{
		PortID: appA, ChannelID: "channel-0", CounterpartyChannelID: "channel-1", CounterpartyVersion: "v1",
		Proof: l.channelProof(h, appB, "channel-1"),
	}})
	h = l.seal()
	l.mustExec("relayer", ExecuteMsg{ChannelOpenConfirm: &ChannelOpenConfirmMsg{
		PortID: appB, ChannelID: "channel-1", Proof: l.channelProof(h, appA, "channel-0"),
	}})
}

func sentPacket(t *testing.T, res *host.TxResult) Packet {
	evs := host.FindEvents(res.Events, EventSendPacket)
	require.Len(t, evs, 1)
	p, err := PacketOf(evs[0])
	require.NoError(t, err)
	return p
}

func TestChannelHandshake(t *testing.T) {
	l := newLoopback(t)
	l.handshake()

	a := l.channel(appA, "channel-0")
	assert.Equal(t, StateOpen, a.State)
	assert.Equal(t, "channel-1", a.CounterpartyChannel)
	b := l.channel(appB, "channel-1")
	assert.Equal(t, StateOpen, b.State)
	assert.Equal(t, appA, b.CounterpartyPort)
	assert.True(t, l.recorded(appA, "connect"))
	assert.True(t, l.recorded(appB, "connect"))

	// the port contract may refuse a channel
	_, err := l.exec("relayer", ExecuteMsg{ChannelOpenInit: &ChannelOpenInitMsg{PortID: appA, ConnectionID: connID, CounterpartyPortID: appB, Version: "v2", Order: OrderUnordered}})
	require.Error(t, err)

	// a proof for a different state does not verify
	h := l.seal()
	_, err = l.exec("relayer", ExecuteMsg{ChannelOpenTry: &ChannelOpenTryMsg{
		PortID: appB, ConnectionID: connID, CounterpartyPortID: appA, CounterpartyChannelID: "channel-0",
		CounterpartyVersion: "v1", Order: OrderUnordered, Proof: Proof{Height: h},
	}})
	require.ErrorIs(t, err, lightclient.ErrInvalidMerkleProof)
}

func TestPacketLifecycle(t *testing.T) {
	l := newLoopback(t)
	l.handshake()

	res := l.mustExec(appA, appMsg{Send: &SendPacketMsg{ChannelID: "channel-0", Data: []byte("ping"), TimeoutHeight: 1000}})
	p := sentPacket(t, res)
	assert.Equal(t, uint64(1), p.Sequence)
	assert.Equal(t, appB, p.DestPort)
	assert.Equal(t, "channel-1", p.DestChannel)

	h := l.seal()
	leaf, err := PacketLeaf(p)
	require.NoError(t, err)
	l.mustExec("relayer", ExecuteMsg{RecvPacket: &RecvPacketMsg{Packet: p, Proof: l.proof(h, leaf)}})
	assert.True(t, l.recorded(appB, "receive"))

	_, err = l.exec("relayer", ExecuteMsg{RecvPacket: &RecvPacketMsg{Packet: p, Proof: l.proof(h, leaf)}})
	require.ErrorIs(t, err, ErrPacketAlreadyReceived)

	tampered := p
	tampered.Data = []byte("pong")
	tampered.Sequence = 7
	_, err = l.exec("relayer", ExecuteMsg{RecvPacket: &RecvPacketMsg{Packet: tampered, Proof: l.proof(h, leaf)}})
	require.ErrorIs(t, err, lightclient.ErrInvalidMerkleProof)

	res = l.mustExec(appB, appMsg{Ack: &WriteAcknowledgementMsg{ChannelID: "channel-1", Sequence: 1, Acknowledgement: []byte("ok")}})
	evs := host.FindEvents(res.Events, EventWriteAcknowledgement)
	require.Len(t, evs, 1)
	ack, err := AcknowledgementOf(evs[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), ack)
	_, err = l.exec(appB, appMsg{Ack: &WriteAcknowledgementMsg{ChannelID: "channel-1", Sequence: 1, Acknowledgement: []byte("ok")}})
	require.ErrorIs(t, err, ErrAcknowledgementExists)

	h = l.seal()
	ackLeaf, err := AckLeaf(p, ack)
	require.NoError(t, err)
	l.mustExec("relayer", ExecuteMsg{AcknowledgePacket: &AcknowledgePacketMsg{Packet: p, Acknowledgement: ack, Proof: l.proof(h, ackLeaf)}})
	assert.True(t, l.recorded(appA, "ack"))

	_, err = l.exec("relayer", ExecuteMsg{AcknowledgePacket: &AcknowledgePacketMsg{Packet: p, Acknowledgement: ack, Proof: l.proof(h, ackLeaf)}})
	require.ErrorIs(t, err, ErrPacketCommitmentNotFound)

	var next uint64
	raw, err := l.chain.Query(l.ctx, ibcHostAddr, mustJSON(t, QueryMsg{NextSequenceSend: &ChannelQuery{PortID: appA, ChannelID: "channel-0"}}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &next))
	assert.Equal(t, uint64(2), next)
}

func TestPacketTimeout(t *testing.T) {
	l := newLoopback(t)
	l.handshake()

	deadline := l.chain.Height() + 2
	p := sentPacket(t, l.mustExec(appA, appMsg{Send: &SendPacketMsg{ChannelID: "channel-0", Data: []byte("late"), TimeoutHeight: deadline}}))
	sent := l.seal()
	leaf, err := PacketLeaf(p)
	require.NoError(t, err)

	// the destination records a timeout only past the deadline
	_, err = l.exec("relayer", ExecuteMsg{RecordTimeout: &RecordTimeoutMsg{Packet: p, Proof: l.proof(sent, leaf)}})
	require.ErrorIs(t, err, ErrPacketNotTimedOut)

	l.seal()
	require.Equal(t, deadline, l.chain.Height())
	_, err = l.exec("relayer", ExecuteMsg{RecvPacket: &RecvPacketMsg{Packet: p, Proof: l.proof(sent, leaf)}})
	require.ErrorIs(t, err, ErrPacketTimedOut)

	// a timeout receipt needs the packet commitment of the source
	tampered := p
	tampered.Data = []byte("other")
	_, err = l.exec("mallory", ExecuteMsg{RecordTimeout: &RecordTimeoutMsg{Packet: tampered, Proof: l.proof(sent, leaf)}})
	require.ErrorIs(t, err, lightclient.ErrInvalidMerkleProof)

	res := l.mustExec("relayer", ExecuteMsg{RecordTimeout: &RecordTimeoutMsg{Packet: p, Proof: l.proof(sent, leaf)}})
	require.Len(t, host.FindEvents(res.Events, EventTimeoutReceipt), 1)
	_, err = l.exec("relayer", ExecuteMsg{RecordTimeout: &RecordTimeoutMsg{Packet: p, Proof: l.proof(sent, leaf)}})
	require.ErrorIs(t, err, ErrPacketTimeoutRecorded)

	var recorded bool
	raw, err := l.chain.Query(l.ctx, ibcHostAddr, mustJSON(t, QueryMsg{TimeoutReceipt: &PacketQuery{PortID: appB, ChannelID: "channel-1", Sequence: p.Sequence}}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &recorded))
	assert.True(t, recorded)

	h := l.seal()
	require.GreaterOrEqual(t, h, deadline)
	// the packet leaf of the source is no timeout receipt
	_, err = l.exec("relayer", ExecuteMsg{TimeoutPacket: &TimeoutPacketMsg{Packet: p, Proof: l.proof(sent, leaf)}})
	require.Error(t, err)
	assert.False(t, l.recorded(appA, "timeout"))

	receipt, err := TimeoutReceiptLeaf(p)
	require.NoError(t, err)
	l.mustExec("relayer", ExecuteMsg{TimeoutPacket: &TimeoutPacketMsg{Packet: p, Proof: l.proof(h, receipt)}})
	assert.True(t, l.recorded(appA, "timeout"))
	assert.False(t, l.recorded(appB, "receive"))

	_, err = l.exec("relayer", ExecuteMsg{TimeoutPacket: &TimeoutPacketMsg{Packet: p, Proof: l.proof(h, receipt)}})
	require.ErrorIs(t, err, ErrPacketCommitmentNotFound)
}

func TestReceivedPacketCannotTimeOut(t *testing.T) {
	l := newLoopback(t)
	l.handshake()

	deadline := l.chain.Height() + 2
	p := sentPacket(t, l.mustExec(appA, appMsg{Send: &SendPacketMsg{ChannelID: "channel-0", Data: []byte("ping"), TimeoutHeight: deadline}}))
	sent := l.seal()
	leaf, err := PacketLeaf(p)
	require.NoError(t, err)
	l.mustExec("relayer", ExecuteMsg{RecvPacket: &RecvPacketMsg{Packet: p, Proof: l.proof(sent, leaf)}})
	l.mustExec(appB, appMsg{Ack: &WriteAcknowledgementMsg{ChannelID: "channel-1", Sequence: p.Sequence, Acknowledgement: []byte("ok")}})
	for i := 0; i < 5; i++ {
		l.seal()
	}
	h := l.seal()
	require.Greater(t, h, deadline)

	// anyone can try, past the deadline the destination still refuses
	_, err = l.exec("mallory", ExecuteMsg{RecordTimeout: &RecordTimeoutMsg{Packet: p, Proof: l.proof(sent, leaf)}})
	require.ErrorIs(t, err, ErrPacketAlreadyReceived)

	// no proof of a receipt that was never written
	receipt, err := TimeoutReceiptLeaf(p)
	require.NoError(t, err)
	_, err = l.exec("mallory", ExecuteMsg{TimeoutPacket: &TimeoutPacketMsg{Packet: p, Proof: Proof{Height: h}}})
	require.ErrorIs(t, err, lightclient.ErrInvalidMerkleProof)
	_, err = l.chain.Proof(h, receipt)
	require.Error(t, err)
	assert.False(t, l.recorded(appA, "timeout"))

	// the real acknowledgement still settles the packet
	ackLeaf, err := AckLeaf(p, []byte("ok"))
	require.NoError(t, err)
	ackHeight := sent + 1
	l.mustExec("relayer", ExecuteMsg{AcknowledgePacket: &AcknowledgePacketMsg{Packet: p, Acknowledgement: []byte("ok"), Proof: l.proof(ackHeight, ackLeaf)}})
	assert.True(t, l.recorded(appA, "ack"))
}

func TestSendRequiresOpenChannel(t *testing.T) {
	l := newLoopback(t)
	_, err := l.exec(appA, appMsg{Send: &SendPacketMsg{ChannelID: "channel-0", Data: []byte("x"), TimeoutHeight: 10}})
	require.ErrorIs(t, err, ErrChannelNotFound)

	l.handshake()
	_, err = l.exec(appA, appMsg{Send: &SendPacketMsg{ChannelID: "channel-0", Data: []byte("x")}})
	require.ErrorIs(t, err, ErrInvalidTimeout)

	_, err = l.exec("mallory", ExecuteMsg{ChannelCloseInit: &ChannelCloseInitMsg{PortID: appA, ChannelID: "channel-0"}})
	require.ErrorIs(t, err, ErrUnauthorized)
	l.mustExec("admin", ExecuteMsg{ChannelCloseInit: &ChannelCloseInitMsg{PortID: appA, ChannelID: "channel-0"}})
	assert.True(t, l.recorded(appA, "close"))
	h := l.seal()
	l.mustExec("relayer", ExecuteMsg{ChannelCloseConfirm: &ChannelCloseConfirmMsg{PortID: appB, ChannelID: "channel-1", Proof: l.channelProof(h, appA, "channel-0")}})
	assert.Equal(t, StateClosed, l.channel(appB, "channel-1").State)

	_, err = l.exec(appA, appMsg{Send: &SendPacketMsg{ChannelID: "channel-0", Data: []byte("x"), TimeoutHeight: 10}})
	require.ErrorIs(t, err, ErrChannelClosed)
}
