package xcall_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/0xPolygonHermez/zkevm-xcall/db"
	"github.com/0xPolygonHermez/zkevm-xcall/devnet"
	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/utils"
	"github.com/0xPolygonHermez/zkevm-xcall/xcall"
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alice = "alice"

func newDevnet(t *testing.T, connections ...string) *devnet.Devnet {
	cfg := devnet.DefaultConfig()
	cfg.ChainA.Connections = connections
	cfg.ChainB.Connections = connections
	d, err := devnet.New(context.Background(), cfg, db.NewMemoryStorage(), utils.FixedClock{At: time.Unix(1_700_000_000, 0)})
	require.NoError(t, err)
	require.NoError(t, d.A.Fund(context.Background(), alice, "1000"))
	return d
}

func send(n *devnet.Network, sender string, m *xcalltypes.SendCallMessageMsg, funds string) (*host.TxResult, error) {
	return n.Execute(context.Background(), sender, devnet.XCallAddress, xcall.ExecuteMsg{XCallMsg: xcalltypes.XCallMsg{SendCallMessage: m}}, funds)
}

func TestSendCallMessageFees(t *testing.T) {
	d := newDevnet(t)
	ctx := context.Background()
	to := d.B.Address(devnet.DAppAddress)

	_, err := send(d.A, alice, &xcalltypes.SendCallMessageMsg{To: to, Data: []byte("x")}, "12")
	require.ErrorIs(t, err, xcall.ErrInsufficientFunds)
	b, err := d.A.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), b.Uint64())

	// the failed call did not use up a sequence number
	res, err := send(d.A, alice, &xcalltypes.SendCallMessageMsg{To: to, Data: []byte("x")}, "20")
	require.NoError(t, err)
	evs := host.FindEvents(res.Events, xcall.EventCallMessageSent)
	require.Len(t, evs, 1)
	sn, _ := host.Attribute(evs[0], xcall.AttributeSn)
	assert.Equal(t, "1", sn)

	// the fee handler keeps the protocol fee and the excess
	b, err = d.A.Balance(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), b.Uint64())
}

func TestSendCallMessageLimits(t *testing.T) {
	d := newDevnet(t)
	to := d.B.Address(devnet.DAppAddress)

	_, err := send(d.A, alice, &xcalltypes.SendCallMessageMsg{To: to, Data: make([]byte, xcall.MaxDataSize+1)}, "13")
	require.ErrorIs(t, err, xcall.ErrMaxDataSizeExceeded)
	_, err = send(d.A, alice, &xcalltypes.SendCallMessageMsg{To: to, Data: make([]byte, xcall.MaxDataSize)}, "13")
	require.NoError(t, err)

	// accounts cannot receive a rollback
	_, err = send(d.A, alice, &xcalltypes.SendCallMessageMsg{To: to, Data: []byte("x"), Rollback: []byte("undo")}, "18")
	require.ErrorIs(t, err, xcall.ErrRollbackNotPossible)

	_, err = send(d.A, alice, &xcalltypes.SendCallMessageMsg{To: "nowhere/dapp", Data: []byte("x")}, "13")
	require.ErrorIs(t, err, xcall.ErrNoDefaultConnection)
	_, err = send(d.A, alice, &xcalltypes.SendCallMessageMsg{To: "dapp", Data: []byte("x")}, "13")
	require.Error(t, err)
}

func TestAdminMessages(t *testing.T) {
	d := newDevnet(t)
	ctx := context.Background()
	setFee := xcall.ExecuteMsg{SetProtocolFee: &xcall.SetProtocolFeeMsg{Value: "7"}}

	_, err := d.A.Execute(ctx, alice, devnet.XCallAddress, setFee, "")
	require.ErrorIs(t, err, xcall.ErrOnlyAdmin)
	_, err = d.A.Execute(ctx, "admin", devnet.XCallAddress, setFee, "")
	require.NoError(t, err)

	var fee string
	require.NoError(t, d.A.Query(ctx, devnet.XCallAddress, xcall.QueryMsg{GetProtocolFee: &xcalltypes.Empty{}}, &fee))
	assert.Equal(t, "7", fee)
	q := xcall.QueryMsg{XCallQuery: xcalltypes.XCallQuery{GetFee: &xcalltypes.GetFeeQuery{NID: d.B.NID()}}}
	require.NoError(t, d.A.Query(ctx, devnet.XCallAddress, q, &fee))
	assert.Equal(t, "17", fee)

	var addr string
	require.NoError(t, d.A.Query(ctx, devnet.XCallAddress, xcall.QueryMsg{XCallQuery: xcalltypes.XCallQuery{GetNetworkAddress: &xcalltypes.Empty{}}}, &addr))
	assert.Equal(t, "0x3.icon/xcall", addr)

	_, err = d.A.Execute(ctx, "admin", devnet.XCallAddress, xcall.ExecuteMsg{SetAdmin: &xcall.AddressMsg{}}, "")
	require.ErrorIs(t, err, xcall.ErrAdminAddressCannotBeNull)
	_, err = d.A.Execute(ctx, "admin", devnet.XCallAddress, xcall.ExecuteMsg{SetAdmin: &xcall.AddressMsg{Address: alice}}, "")
	require.NoError(t, err)
	_, err = d.A.Execute(ctx, "admin", devnet.XCallAddress, setFee, "")
	require.ErrorIs(t, err, xcall.ErrOnlyAdmin)
}

// deliver hands raw to the dispatcher on n as if connection received it from nid
func deliver(n *devnet.Network, connection, nid string, raw []byte) (*host.TxResult, error) {
	m := xcall.ExecuteMsg{XCallMsg: xcalltypes.XCallMsg{HandleMessage: &xcalltypes.HandleMessageMsg{FromNID: nid, Msg: raw}}}
	return n.Execute(context.Background(), connection, devnet.XCallAddress, m, "")
}

func TestRequestAggregation(t *testing.T) {
	d := newDevnet(t, "conn-1", "conn-2")
	ctx := context.Background()
	a, b := d.A, d.B
	req := xcall.CSMessageRequest{
		From:      a.Address(devnet.DAppAddress),
		To:        devnet.DAppAddress,
		Sn:        1,
		Data:      []byte("both"),
		Protocols: []string{"conn-1", "conn-2"},
	}
	raw, err := xcall.EncodeRequest(req)
	require.NoError(t, err)

	res, err := deliver(b, "conn-1", a.NID(), raw)
	require.NoError(t, err)
	assert.Empty(t, host.FindEvents(res.Events, xcall.EventCallMessage))
	_, err = deliver(b, "conn-1", a.NID(), raw)
	require.ErrorIs(t, err, xcall.ErrDuplicateMessage)
	_, err = deliver(b, "intruder", a.NID(), raw)
	require.ErrorIs(t, err, xcall.ErrUnauthorized)
	_, err = deliver(b, "conn-2", "elsewhere", raw)
	require.ErrorIs(t, err, xcall.ErrInvalidMessage)

	res, err = deliver(b, "conn-2", a.NID(), raw)
	require.NoError(t, err)
	evs := host.FindEvents(res.Events, xcall.EventCallMessage)
	require.Len(t, evs, 1)
	_, err = deliver(b, "conn-2", a.NID(), raw)
	require.ErrorIs(t, err, xcall.ErrDuplicateMessage)

	var pr xcall.ProxyRequestResponse
	require.NoError(t, b.Query(ctx, devnet.XCallAddress, xcall.QueryMsg{GetProxyRequest: &xcall.RequestQuery{RequestID: 1}}, &pr))
	assert.Equal(t, req.From, pr.From)
	assert.Equal(t, []string{"conn-1", "conn-2"}, pr.Protocols)

	execute := func(data []byte) (*host.TxResult, error) {
		return b.Execute(ctx, alice, devnet.XCallAddress, xcall.ExecuteMsg{ExecuteCall: &xcall.ExecuteCallMsg{RequestID: 1, Data: data}}, "")
	}
	_, err = execute([]byte("other"))
	require.ErrorIs(t, err, xcall.ErrDataMismatch)
	res, err = execute(req.Data)
	require.NoError(t, err)
	evs = host.FindEvents(res.Events, xcall.EventCallExecuted)
	require.Len(t, evs, 1)
	code, _ := host.Attribute(evs[0], xcall.AttributeCode)
	assert.Equal(t, "1", code)
	_, err = execute(req.Data)
	require.ErrorIs(t, err, xcall.ErrInvalidRequestId)
}

func TestResponseEdgeCases(t *testing.T) {
	d := newDevnet(t)
	ctx := context.Background()
	a, b := d.A, d.B

	// responses to calls that asked for none are dropped
	raw, err := xcall.EncodeResponse(xcall.CSMessageResponse{Sn: 99, Code: xcall.ResponseSuccess})
	require.NoError(t, err)
	_, err = deliver(a, devnet.DefaultConnectionAddress, b.NID(), raw)
	require.NoError(t, err)

	handleError := xcall.ExecuteMsg{XCallMsg: xcalltypes.XCallMsg{HandleError: &xcalltypes.HandleErrorMsg{Sn: 0}}}
	_, err = a.Execute(ctx, devnet.DefaultConnectionAddress, devnet.XCallAddress, handleError, "")
	require.ErrorIs(t, err, xcall.ErrInvalidSequenceId)

	_, err = a.Execute(ctx, alice, devnet.XCallAddress, xcall.ExecuteMsg{ExecuteRollback: &xcall.ExecuteRollbackMsg{SequenceNo: 1}}, "")
	require.ErrorIs(t, err, xcall.ErrInvalidSequenceId)

	_, err = deliver(a, devnet.DefaultConnectionAddress, b.NID(), bytes.Repeat([]byte{0xff}, 4))
	require.ErrorIs(t, err, xcall.ErrInvalidMessage)
}

func TestRollbackLimits(t *testing.T) {
	d := newDevnet(t)
	ctx := context.Background()
	require.NoError(t, d.A.Fund(ctx, devnet.DAppAddress, "1000"))
	to := d.B.Address(devnet.DAppAddress)

	_, err := send(d.A, devnet.DAppAddress, &xcalltypes.SendCallMessageMsg{To: to, Data: []byte("x"), Rollback: make([]byte, xcall.MaxRollbackSize+1)}, "100")
	require.ErrorIs(t, err, xcall.ErrMaxRollbackSizeExceeded)

	res, err := send(d.A, devnet.DAppAddress, &xcalltypes.SendCallMessageMsg{To: to, Data: []byte("x"), Rollback: make([]byte, xcall.MaxRollbackSize)}, "100")
	require.NoError(t, err)
	evs := host.FindEvents(res.Events, xcall.EventCallMessageSent)
	require.Len(t, evs, 1)
	sn, _ := host.Attribute(evs[0], xcall.AttributeSn)
	assert.Equal(t, "1", sn)

	// the call has not failed, there is nothing to roll back
	_, err = d.A.Execute(ctx, alice, devnet.XCallAddress, xcall.ExecuteMsg{ExecuteRollback: &xcall.ExecuteRollbackMsg{SequenceNo: 1}}, "")
	require.ErrorIs(t, err, xcall.ErrRollbackNotEnabled)
}

func TestResponseAggregation(t *testing.T) {
	d := newDevnet(t, "conn-1", "conn-2")
	ctx := context.Background()
	a, b := d.A, d.B
	require.NoError(t, a.Fund(ctx, devnet.DAppAddress, "1000"))

	both := []string{"conn-1", "conn-2"}
	_, err := send(a, devnet.DAppAddress, &xcalltypes.SendCallMessageMsg{
		To:           b.Address(devnet.DAppAddress),
		Data:         []byte("x"),
		Rollback:     []byte("undo"),
		Sources:      both,
		Destinations: both,
	}, "100")
	require.NoError(t, err)
	raw, err := xcall.EncodeResponse(xcall.CSMessageResponse{Sn: 1, Code: xcall.ResponseFailure})
	require.NoError(t, err)
	callRequest := func() (xcall.CallRequestResponse, error) {
		var cr xcall.CallRequestResponse
		err := a.Query(ctx, devnet.XCallAddress, xcall.QueryMsg{GetCallRequest: &xcall.SequenceQuery{SequenceNo: 1}}, &cr)
		return cr, err
	}

	// one of two sources answered, the request waits for the other
	res, err := deliver(a, "conn-1", b.NID(), raw)
	require.NoError(t, err)
	assert.Empty(t, host.FindEvents(res.Events, xcall.EventResponseMessage))
	assert.Empty(t, host.FindEvents(res.Events, xcall.EventRollbackMessage))
	cr, err := callRequest()
	require.NoError(t, err)
	assert.False(t, cr.Enabled)
	assert.Equal(t, both, cr.Sources)

	_, err = deliver(a, "conn-1", b.NID(), raw)
	require.ErrorIs(t, err, xcall.ErrDuplicateMessage)
	_, err = a.Execute(ctx, alice, devnet.XCallAddress, xcall.ExecuteMsg{ExecuteRollback: &xcall.ExecuteRollbackMsg{SequenceNo: 1}}, "")
	require.ErrorIs(t, err, xcall.ErrRollbackNotEnabled)

	res, err = deliver(a, "conn-2", b.NID(), raw)
	require.NoError(t, err)
	require.Len(t, host.FindEvents(res.Events, xcall.EventResponseMessage), 1)
	require.Len(t, host.FindEvents(res.Events, xcall.EventRollbackMessage), 1)
	cr, err = callRequest()
	require.NoError(t, err)
	assert.True(t, cr.Enabled)
}
