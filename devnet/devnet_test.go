package devnet

import (
	"context"
	"encoding/hex"
	"strconv"
	"testing"
	"time"

	"github.com/0xPolygonHermez/zkevm-xcall/connection"
	"github.com/0xPolygonHermez/zkevm-xcall/dapp"
	"github.com/0xPolygonHermez/zkevm-xcall/db"
	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/ibccore"
	"github.com/0xPolygonHermez/zkevm-xcall/utils"
	"github.com/0xPolygonHermez/zkevm-xcall/xcall"
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "alice"
	bob   = "bob"
)

type harness struct {
	t   *testing.T
	ctx context.Context
	d   *Devnet
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	cfg := DefaultConfig()
	cfg.BlockInterval.Duration = 5 * time.Millisecond
	cfg.Relayer.PollInterval.Duration = 5 * time.Millisecond
	cfg.Relayer.RetryTimeout.Duration = 10 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}
	ctx := context.Background()
	tp := utils.FixedClock{At: time.Unix(1_700_000_000, 0)}
	d, err := New(ctx, cfg, db.NewMemoryStorage(), tp)
	require.NoError(t, err)
	require.NoError(t, d.A.Fund(ctx, alice, "1000"))
	require.NoError(t, d.B.Fund(ctx, bob, "1000"))
	return &harness{t: t, ctx: ctx, d: d}
}

func (h *harness) flush() int {
	n, err := h.d.Flush(h.ctx)
	require.NoError(h.t, err)
	return n
}

func (h *harness) fee(from, to *Network, rollback bool) string {
	var fee string
	q := xcall.QueryMsg{XCallQuery: xcalltypes.XCallQuery{GetFee: &xcalltypes.GetFeeQuery{NID: to.NID(), Rollback: rollback}}}
	require.NoError(h.t, from.Query(h.ctx, XCallAddress, q, &fee))
	return fee
}

// call sends data from the dApp on from to the dApp on to and returns the sn
func (h *harness) call(from, to *Network, sender string, data, rollback []byte) uint64 {
	msg := dapp.ExecuteMsg{SendCallMessage: &xcalltypes.SendCallMessageMsg{To: to.Address(DAppAddress), Data: data, Rollback: rollback}}
	res, err := from.Execute(h.ctx, sender, DAppAddress, msg, h.fee(from, to, len(rollback) > 0))
	require.NoError(h.t, err)
	evs := host.FindEvents(res.Events, xcall.EventCallMessageSent)
	require.Len(h.t, evs, 1)
	return uintAttr(h.t, evs[0], xcall.AttributeSn)
}

func uintAttr(t *testing.T, ev wasmvmtypes.Event, key string) uint64 {
	v, ok := host.Attribute(ev, key)
	require.True(t, ok, "%s without %s", ev.Type, key)
	n, err := strconv.ParseUint(v, 10, 64)
	require.NoError(t, err)
	return n
}

func attr(t *testing.T, ev wasmvmtypes.Event, key string) string {
	v, ok := host.Attribute(ev, key)
	require.True(t, ok, "%s without %s", ev.Type, key)
	return v
}

// lastCallMessage returns the request id and data of the last CallMessage on n
func (h *harness) lastCallMessage(n *Network) (uint64, []byte) {
	evs := n.Events(xcall.EventCallMessage)
	require.NotEmpty(h.t, evs)
	ev := evs[len(evs)-1]
	data, err := hex.DecodeString(attr(h.t, ev, xcall.AttributeData))
	require.NoError(h.t, err)
	return uintAttr(h.t, ev, xcall.AttributeRequestID), data
}

func (h *harness) executeCall(n *Network, reqID uint64, data []byte) *host.TxResult {
	res, err := n.Execute(h.ctx, bob, XCallAddress, xcall.ExecuteMsg{ExecuteCall: &xcall.ExecuteCallMsg{RequestID: reqID, Data: data}}, "")
	require.NoError(h.t, err)
	return res
}

func (h *harness) dappCalls(n *Network, q dapp.QueryMsg) []dapp.Call {
	var calls []dapp.Call
	require.NoError(h.t, n.Query(h.ctx, DAppAddress, q, &calls))
	return calls
}

func (h *harness) balance(n *Network, addr string) uint64 {
	b, err := n.Balance(h.ctx, addr)
	require.NoError(h.t, err)
	return b.Uint64()
}

func (h *harness) unclaimed(n *Network, conn, nid, relayer string) connection.UnclaimedFeesResponse {
	var res connection.UnclaimedFeesResponse
	q := connection.QueryMsg{GetUnclaimedFees: &connection.UnclaimedFeesQuery{NID: nid, Relayer: relayer}}
	require.NoError(h.t, n.Query(h.ctx, conn, q, &res))
	return res
}

func (h *harness) callRequestExists(n *Network, sn uint64) bool {
	var cr xcall.CallRequestResponse
	return n.Query(h.ctx, XCallAddress, xcall.QueryMsg{GetCallRequest: &xcall.SequenceQuery{SequenceNo: sn}}, &cr) == nil
}

func TestDevnetLinksEveryConnection(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.ChainA.Connections = []string{"conn-1", "conn-2"}
		cfg.ChainB.Connections = []string{"conn-1", "conn-2"}
	})
	assert.Equal(t, map[string]string{"conn-1": "channel-0", "conn-2": "channel-1"}, h.d.A.Channels)
	assert.Equal(t, map[string]string{"conn-1": "channel-0", "conn-2": "channel-1"}, h.d.B.Channels)

	var cc connection.ChannelConfigResponse
	require.NoError(t, h.d.A.Query(h.ctx, "conn-2", connection.QueryMsg{GetChannelConfig: &connection.ChannelQuery{ChannelID: "channel-1"}}, &cc))
	assert.Equal(t, "conn-2", cc.CounterpartyPort)
	assert.Equal(t, h.d.B.NID(), cc.CounterpartyNID)
	assert.False(t, cc.Closed)

	var def string
	require.NoError(t, h.d.B.Query(h.ctx, XCallAddress, xcall.QueryMsg{GetDefaultConnection: &xcall.NIDQuery{NID: h.d.A.NID()}}, &def))
	assert.Equal(t, "conn-1", def)
}

func TestDevnetRejectsUnevenConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChainA.Connections = []string{"conn-1", "conn-2"}
	_, err := New(context.Background(), cfg, db.NewMemoryStorage(), utils.FixedClock{At: time.Unix(1_700_000_000, 0)})
	require.Error(t, err)
}

func TestOneWayCall(t *testing.T) {
	h := newHarness(t, nil)
	a, b := h.d.A, h.d.B
	assert.Equal(t, "13", h.fee(a, b, false))

	sn := h.call(a, b, alice, []byte("hello"), nil)
	assert.Equal(t, uint64(1), sn)
	// delivery and its empty acknowledgement
	assert.Equal(t, 2, h.flush())

	reqID, data := h.lastCallMessage(b)
	assert.Equal(t, uint64(1), reqID)
	assert.Equal(t, []byte("hello"), data)

	res := h.executeCall(b, reqID, data)
	evs := host.FindEvents(res.Events, xcall.EventCallExecuted)
	require.Len(t, evs, 1)
	assert.Equal(t, "1", attr(t, evs[0], xcall.AttributeCode))

	received := h.dappCalls(b, dapp.QueryMsg{GetReceived: &xcalltypes.Empty{}})
	require.Len(t, received, 1)
	assert.Equal(t, a.Address(DAppAddress), received[0].From)
	assert.Equal(t, []byte("hello"), received[0].Data)
	assert.Equal(t, []string{DefaultConnectionAddress}, received[0].Protocols)

	// executed requests are gone
	var pr xcall.ProxyRequestResponse
	err := b.Query(h.ctx, XCallAddress, xcall.QueryMsg{GetProxyRequest: &xcall.RequestQuery{RequestID: reqID}}, &pr)
	require.Error(t, err)

	// the caller paid exactly the quoted fee, split between the fee handler and the connection
	assert.Equal(t, uint64(987), h.balance(a, alice))
	assert.Equal(t, uint64(3), h.balance(a, h.d.cfg.Admin))
	assert.Equal(t, uint64(10), h.balance(a, DefaultConnectionAddress))
	assert.Equal(t, connection.UnclaimedFeesResponse{PacketFees: "10", AckFees: "0"}, h.unclaimed(b, DefaultConnectionAddress, a.NID(), h.d.cfg.Relayer.Address))
	assert.Equal(t, 0, h.flush())
}

func TestCallWithResponse(t *testing.T) {
	h := newHarness(t, nil)
	a, b := h.d.A, h.d.B
	assert.Equal(t, "18", h.fee(a, b, true))

	sn := h.call(a, b, alice, []byte("hi"), []byte("undo"))
	assert.True(t, h.callRequestExists(a, sn))
	// the packet stays unacknowledged until the call is executed
	assert.Equal(t, 1, h.flush())
	require.Len(t, h.d.Relayer.Pending(0), 1)

	reqID, data := h.lastCallMessage(b)
	h.executeCall(b, reqID, data)
	assert.Equal(t, 1, h.flush())
	assert.Empty(t, h.d.Relayer.Pending(0))

	evs := a.Events(xcall.EventResponseMessage)
	require.Len(t, evs, 1)
	assert.Equal(t, sn, uintAttr(t, evs[0], xcall.AttributeSn))
	assert.Equal(t, "1", attr(t, evs[0], xcall.AttributeCode))
	assert.False(t, h.callRequestExists(a, sn))
	assert.Empty(t, a.Events(xcall.EventRollbackMessage))

	// the escrowed ack fee went to the relayer that delivered the acknowledgement
	relayerAddr := h.d.cfg.Relayer.Address
	assert.Equal(t, connection.UnclaimedFeesResponse{PacketFees: "0", AckFees: "5"}, h.unclaimed(a, DefaultConnectionAddress, b.NID(), relayerAddr))
	_, err := a.Execute(h.ctx, relayerAddr, DefaultConnectionAddress, connection.ExecuteMsg{ClaimFees: &connection.ClaimFeesMsg{NID: b.NID()}}, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h.balance(a, relayerAddr))
}

func TestFailedCallRollsBack(t *testing.T) {
	h := newHarness(t, nil)
	a, b := h.d.A, h.d.B

	sn := h.call(a, b, alice, dapp.RejectPayload, []byte("undo"))
	h.flush()
	reqID, data := h.lastCallMessage(b)
	res := h.executeCall(b, reqID, data)
	evs := host.FindEvents(res.Events, xcall.EventCallExecuted)
	require.Len(t, evs, 1)
	assert.Equal(t, "0", attr(t, evs[0], xcall.AttributeCode))
	assert.Contains(t, attr(t, evs[0], xcall.AttributeMsg), dapp.ErrRejected.Error())
	assert.Empty(t, h.dappCalls(b, dapp.QueryMsg{GetReceived: &xcalltypes.Empty{}}))
	h.flush()

	evs = a.Events(xcall.EventRollbackMessage)
	require.Len(t, evs, 1)
	assert.Equal(t, sn, uintAttr(t, evs[0], xcall.AttributeSn))
	var cr xcall.CallRequestResponse
	require.NoError(t, a.Query(h.ctx, XCallAddress, xcall.QueryMsg{GetCallRequest: &xcall.SequenceQuery{SequenceNo: sn}}, &cr))
	assert.True(t, cr.Enabled)

	res, err := a.Execute(h.ctx, bob, XCallAddress, xcall.ExecuteMsg{ExecuteRollback: &xcall.ExecuteRollbackMsg{SequenceNo: sn}}, "")
	require.NoError(t, err)
	evs = host.FindEvents(res.Events, xcall.EventRollbackExecuted)
	require.Len(t, evs, 1)
	assert.Equal(t, "1", attr(t, evs[0], xcall.AttributeCode))

	rollbacks := h.dappCalls(a, dapp.QueryMsg{GetRollbacks: &xcalltypes.Empty{}})
	require.Len(t, rollbacks, 1)
	assert.Equal(t, a.Address(XCallAddress), rollbacks[0].From)
	assert.Equal(t, []byte("undo"), rollbacks[0].Data)
	assert.Equal(t, []string{DefaultConnectionAddress}, rollbacks[0].Protocols)

	// a rollback runs once
	_, err = a.Execute(h.ctx, bob, XCallAddress, xcall.ExecuteMsg{ExecuteRollback: &xcall.ExecuteRollbackMsg{SequenceNo: sn}}, "")
	require.ErrorIs(t, err, xcall.ErrInvalidSequenceId)
}

func TestCallOverTwoConnections(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.ChainA.Connections = []string{"conn-1", "conn-2"}
		cfg.ChainB.Connections = []string{"conn-1", "conn-2"}
	})
	a, b := h.d.A, h.d.B
	var fee string
	q := xcall.QueryMsg{XCallQuery: xcalltypes.XCallQuery{GetFee: &xcalltypes.GetFeeQuery{NID: b.NID(), Rollback: true, Sources: []string{"conn-1", "conn-2"}}}}
	require.NoError(t, a.Query(h.ctx, XCallAddress, q, &fee))
	assert.Equal(t, "33", fee)

	msg := dapp.ExecuteMsg{SendCallMessage: &xcalltypes.SendCallMessageMsg{To: b.Address(DAppAddress), Data: []byte("both"), Rollback: []byte("undo")}}
	res, err := a.Execute(h.ctx, alice, DAppAddress, msg, fee)
	require.NoError(t, err)
	sn := uintAttr(t, host.FindEvents(res.Events, xcall.EventCallMessageSent)[0], xcall.AttributeSn)
	assert.Equal(t, 2, h.flush())

	// one call although two packets arrived
	require.Len(t, b.Events(xcall.EventCallMessage), 1)
	reqID, data := h.lastCallMessage(b)
	h.executeCall(b, reqID, data)
	received := h.dappCalls(b, dapp.QueryMsg{GetReceived: &xcalltypes.Empty{}})
	require.Len(t, received, 1)
	assert.Equal(t, []string{"conn-1", "conn-2"}, received[0].Protocols)

	// the response travels back over both connections and completes once
	assert.Equal(t, 2, h.flush())
	evs := a.Events(xcall.EventResponseMessage)
	require.Len(t, evs, 1)
	assert.Equal(t, sn, uintAttr(t, evs[0], xcall.AttributeSn))
	assert.False(t, h.callRequestExists(a, sn))
}

func TestTimeoutRollsBack(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.ChainA.TimeoutHeight = 2
	})
	a, b := h.d.A, h.d.B

	sn := h.call(a, b, alice, []byte("late"), []byte("undo"))
	for i := 0; i < 3; i++ {
		_, err := b.Chain.Commit()
		require.NoError(t, err)
	}
	// the receive is refused, b records the timeout and a proves it
	assert.Equal(t, 2, h.flush())
	assert.Empty(t, b.Events(xcall.EventCallMessage))
	require.Len(t, a.Events(xcall.EventRollbackMessage), 1)

	_, err := a.Execute(h.ctx, bob, XCallAddress, xcall.ExecuteMsg{ExecuteRollback: &xcall.ExecuteRollbackMsg{SequenceNo: sn}}, "")
	require.NoError(t, err)
	rollbacks := h.dappCalls(a, dapp.QueryMsg{GetRollbacks: &xcalltypes.Empty{}})
	require.Len(t, rollbacks, 1)
	assert.Equal(t, []byte("undo"), rollbacks[0].Data)

	// the relayer that proved the timeout earns the ack fee
	assert.Equal(t, "5", h.unclaimed(a, DefaultConnectionAddress, b.NID(), h.d.cfg.Relayer.Address).AckFees)
}

func TestReceivedCallCannotTimeOut(t *testing.T) {
	h := newHarness(t, func(cfg *Config) {
		cfg.ChainA.TimeoutHeight = 6
	})
	a, b := h.d.A, h.d.B

	sn := h.call(a, b, alice, []byte("ping"), []byte("undo"))
	h.flush()
	reqID, data := h.lastCallMessage(b)
	h.executeCall(b, reqID, data)
	for i := 0; i < 10; i++ {
		_, err := b.Chain.Commit()
		require.NoError(t, err)
	}

	sends := a.Events(ibccore.EventSendPacket)
	require.Len(t, sends, 1)
	p, err := ibccore.PacketOf(sends[0])
	require.NoError(t, err)
	latest, err := b.Chain.Block(b.Chain.LatestHeight())
	require.NoError(t, err)
	require.GreaterOrEqual(t, latest.Height, p.TimeoutHeight)
	header, err := latest.Header.Encode()
	require.NoError(t, err)

	// any account may update the client, none may time out a received packet
	_, err = a.Execute(h.ctx, "mallory", IbcHostAddress, ibccore.ExecuteMsg{UpdateClient: &ibccore.UpdateClientMsg{ClientID: ClientID, SignedHeader: header}}, "")
	require.NoError(t, err)
	_, err = a.Execute(h.ctx, "mallory", IbcHostAddress, ibccore.ExecuteMsg{TimeoutPacket: &ibccore.TimeoutPacketMsg{Packet: p, Proof: ibccore.Proof{Height: latest.Height}}}, "")
	require.Error(t, err)
	_, err = b.Execute(h.ctx, "mallory", IbcHostAddress, ibccore.ExecuteMsg{RecordTimeout: &ibccore.RecordTimeoutMsg{Packet: p}}, "")
	require.ErrorIs(t, err, ibccore.ErrPacketAlreadyReceived)

	require.NoError(t, h.d.Commit())
	assert.Empty(t, a.Events(ibccore.EventTimeoutPacket))
	assert.Empty(t, a.Events(xcall.EventRollbackMessage))
	assert.True(t, h.callRequestExists(a, sn))
	_, err = a.Execute(h.ctx, "mallory", XCallAddress, xcall.ExecuteMsg{ExecuteRollback: &xcall.ExecuteRollbackMsg{SequenceNo: sn}}, "")
	require.ErrorIs(t, err, xcall.ErrRollbackNotEnabled)
	assert.Empty(t, h.dappCalls(a, dapp.QueryMsg{GetRollbacks: &xcalltypes.Empty{}}))
	assert.Equal(t, "0", h.unclaimed(a, DefaultConnectionAddress, b.NID(), "mallory").AckFees)
}

func TestClaimPacketFees(t *testing.T) {
	h := newHarness(t, nil)
	a, b := h.d.A, h.d.B
	relayerAddr := h.d.cfg.Relayer.Address

	h.call(a, b, alice, []byte("one"), nil)
	h.call(a, b, alice, []byte("two"), nil)
	h.flush()
	assert.Equal(t, "20", h.unclaimed(b, DefaultConnectionAddress, a.NID(), relayerAddr).PacketFees)

	// packet fees earned on b are paid out of the fees collected on a
	claim := connection.ExecuteMsg{ClaimFees: &connection.ClaimFeesMsg{NID: a.NID(), To: "payee"}}
	res, err := b.Execute(h.ctx, relayerAddr, DefaultConnectionAddress, claim, "")
	require.NoError(t, err)
	evs := host.FindEvents(res.Events, connection.EventClaimFees)
	require.Len(t, evs, 1)
	assert.Equal(t, "20", attr(t, evs[0], "packet_fees"))
	assert.Equal(t, "0", h.unclaimed(b, DefaultConnectionAddress, a.NID(), relayerAddr).PacketFees)

	var claimed string
	require.NoError(t, b.Query(h.ctx, DefaultConnectionAddress, connection.QueryMsg{GetClaimedFees: &connection.NIDQuery{NID: a.NID()}}, &claimed))
	assert.Equal(t, "20", claimed)

	assert.Equal(t, 2, h.flush())
	assert.Equal(t, uint64(20), h.balance(a, "payee"))
	assert.Equal(t, uint64(0), h.balance(a, DefaultConnectionAddress))
	require.Len(t, a.Events(connection.EventPayClaim), 1)

	// nothing left to claim
	_, err = b.Execute(h.ctx, relayerAddr, DefaultConnectionAddress, claim, "")
	require.ErrorIs(t, err, connection.ErrNoFeesToClaim)
}

func TestSequenceNumbersIncrease(t *testing.T) {
	h := newHarness(t, nil)
	a, b := h.d.A, h.d.B
	var last uint64
	for i := 0; i < 5; i++ {
		var rollback []byte
		if i%2 == 1 {
			rollback = []byte("undo")
		}
		sn := h.call(a, b, alice, []byte{byte(i + 1)}, rollback)
		assert.Equal(t, last+1, sn)
		last = sn
	}
	// each direction numbers its calls on its own
	assert.Equal(t, uint64(1), h.call(b, a, bob, []byte("back"), nil))
}

func TestCallsBothWays(t *testing.T) {
	h := newHarness(t, nil)
	a, b := h.d.A, h.d.B
	assert.Equal(t, "22", h.fee(b, a, false))

	h.call(a, b, alice, []byte("to b"), nil)
	h.call(b, a, bob, []byte("to a"), nil)
	h.flush()

	reqID, data := h.lastCallMessage(a)
	assert.Equal(t, []byte("to a"), data)
	h.executeCall(a, reqID, data)
	reqID, data = h.lastCallMessage(b)
	assert.Equal(t, []byte("to b"), data)
	h.executeCall(b, reqID, data)

	assert.Len(t, h.dappCalls(a, dapp.QueryMsg{GetReceived: &xcalltypes.Empty{}}), 1)
	assert.Len(t, h.dappCalls(b, dapp.QueryMsg{GetReceived: &xcalltypes.Empty{}}), 1)
	assert.Equal(t, uint64(978), h.balance(b, bob))
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, nil)
	h.call(h.d.A, h.d.B, alice, []byte("async"), nil)
	h.d.Start()
	defer h.d.Stop()
	require.Eventually(t, func() bool {
		return len(h.d.B.Events(xcall.EventCallMessage)) == 1
	}, 5*time.Second, 10*time.Millisecond)
}
