package relayer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/config/types"
	"github.com/0xPolygonHermez/zkevm-xcall/db"
	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/ibccore"
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
	echoAddr    = "echo"
	relayerAddr = "relayer"
)

type echoMsg struct {
	ibccore.CallbackMsg
	Send *ibccore.SendPacketMsg `json:"send,omitempty"`
}

// echo acknowledges every packet with its data prefixed by "ack:" and records
// the outcome of the packets it sends
type echo struct{}

func (echo) Instantiate(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	return host.NewResponse(), nil
}

func (echo) Execute(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m echoMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	forward := func(v ibccore.ExecuteMsg) (*wasmvmtypes.Response, error) {
		exec, err := host.ExecuteContract(ibcHostAddr, v, nil)
		if err != nil {
			return nil, err
		}
		resp.Messages = append(resp.Messages, host.SubMsgNever(exec))
		return resp, nil
	}
	switch {
	case m.Send != nil:
		return forward(ibccore.ExecuteMsg{SendPacket: m.Send})
	case m.IbcPacketReceive != nil:
		p := m.IbcPacketReceive.Packet
		return forward(ibccore.ExecuteMsg{WriteAcknowledgement: &ibccore.WriteAcknowledgementMsg{
			ChannelID:       p.DestChannel,
			Sequence:        p.Sequence,
			Acknowledgement: append([]byte("ack:"), p.Data...),
		}})
	case m.IbcPacketAck != nil:
		deps.Storage.Set([]byte("ack"), m.IbcPacketAck.Acknowledgement)
	case m.IbcPacketTimeout != nil:
		deps.Storage.Set([]byte("timeout"), m.IbcPacketTimeout.Packet.Data)
	}
	return resp, nil
}

func (echo) Query(deps host.Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var key string
	if err := json.Unmarshal(msg, &key); err != nil {
		return nil, err
	}
	return json.Marshal(deps.Storage.Get([]byte(key)))
}

func (echo) Reply(deps host.Deps, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	return nil, host.ErrUnknownMessage
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func newEndpoint(t *testing.T, chainID, nid string) *Endpoint {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg := host.Config{
		ChainID:          chainID,
		NetworkID:        nid,
		ValidatorKeys:    []string{hex.EncodeToString(crypto.FromECDSA(key))},
		CommitmentSource: ibcHostAddr,
	}
	tp := utils.FixedClock{At: time.Unix(1_700_000_000, 0)}
	chain, err := host.NewChain(cfg, db.NewMemoryStorage(), tp)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = chain.Instantiate(ctx, relayerAddr, ibcHostAddr, ibccore.New(), mustJSON(t, ibccore.InstantiateMsg{}))
	require.NoError(t, err)
	_, err = chain.Instantiate(ctx, relayerAddr, lightClient, lightclient.New(), mustJSON(t, lightclient.InstantiateMsg{IbcHost: ibcHostAddr}))
	require.NoError(t, err)
	_, err = chain.Instantiate(ctx, relayerAddr, echoAddr, echo{}, mustJSON(t, struct{}{}))
	require.NoError(t, err)
	return &Endpoint{Chain: chain, IbcHost: ibcHostAddr, LightClient: lightClient, ClientID: "client-0", ConnectionID: "connection-0"}
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	a, b  *Endpoint
	r     *Relayer
	chanA string
	chanB string
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{t: t, ctx: context.Background()}
	f.a = newEndpoint(t, "chain-a", "0x1.icon")
	f.b = newEndpoint(t, "chain-b", "archway-1")
	cfg := Config{
		Address:      relayerAddr,
		PollInterval: types.Duration{Duration: 10 * time.Millisecond},
		CacheSize:    128,
		RetryTimeout: types.Duration{Duration: 10 * time.Millisecond},
	}
	r, err := New(cfg, f.a, f.b)
	require.NoError(t, err)
	f.r = r
	require.NoError(t, r.CreateClients(f.ctx))
	require.NoError(t, r.RegisterConnections(f.ctx))
	f.chanA, f.chanB, err = r.Link(f.ctx, echoAddr, echoAddr, "echo-1")
	require.NoError(t, err)
	return f
}

func (f *fixture) send(end *Endpoint, channel string, data []byte, timeoutHeight uint64) {
	msg := echoMsg{Send: &ibccore.SendPacketMsg{ChannelID: channel, Data: data, TimeoutHeight: timeoutHeight}}
	_, err := end.Chain.Execute(f.ctx, "user", echoAddr, mustJSON(f.t, msg))
	require.NoError(f.t, err)
}

func (f *fixture) commit(ends ...*Endpoint) {
	for _, end := range ends {
		_, err := end.Chain.Commit()
		require.NoError(f.t, err)
	}
}

func (f *fixture) step() int {
	n, err := f.r.Step(f.ctx)
	require.NoError(f.t, err)
	return n
}

func (f *fixture) recorded(end *Endpoint, key string) []byte {
	raw, err := end.Chain.Query(f.ctx, echoAddr, mustJSON(f.t, key))
	require.NoError(f.t, err)
	var v []byte
	require.NoError(f.t, json.Unmarshal(raw, &v))
	return v
}

func TestLink(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "channel-0", f.chanA)
	assert.Equal(t, "channel-0", f.chanB)
	for _, end := range []*Endpoint{f.a, f.b} {
		var ch ibccore.ChannelEnd
		require.NoError(t, query(f.ctx, end, ibccore.QueryMsg{Channel: &ibccore.ChannelQuery{PortID: echoAddr, ChannelID: "channel-0"}}, &ch))
		assert.Equal(t, ibccore.StateOpen, ch.State)
		assert.Equal(t, "echo-1", ch.Version)
	}
}

func TestPacketRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.send(f.a, f.chanA, []byte("ping"), 1000)
	require.Len(t, f.r.Pending(0), 0)

	f.commit(f.a)
	assert.Equal(t, 1, f.step())
	require.Len(t, f.r.Pending(0), 1)
	// nothing new sealed, nothing delivered twice
	assert.Equal(t, 0, f.step())

	f.commit(f.b)
	assert.Equal(t, 1, f.step())
	assert.Equal(t, []byte("ack:ping"), f.recorded(f.a, "ack"))

	f.commit(f.a)
	assert.Equal(t, 0, f.step())
	assert.Empty(t, f.r.Pending(0))
}

func TestPacketsBothWays(t *testing.T) {
	f := newFixture(t)
	f.send(f.a, f.chanA, []byte("a1"), 1000)
	f.send(f.a, f.chanA, []byte("a2"), 1000)
	f.send(f.b, f.chanB, []byte("b1"), 1000)
	f.commit(f.a, f.b)
	assert.Equal(t, 3, f.step())

	f.commit(f.a, f.b)
	assert.Equal(t, 3, f.step())
	assert.Equal(t, []byte("ack:a2"), f.recorded(f.a, "ack"))
	assert.Equal(t, []byte("ack:b1"), f.recorded(f.b, "ack"))

	f.commit(f.a, f.b)
	f.step()
	assert.Empty(t, f.r.Pending(0))
	assert.Empty(t, f.r.Pending(1))
}

func TestPacketTimeout(t *testing.T) {
	f := newFixture(t)
	deadline := f.b.Chain.Height() + 1
	f.send(f.a, f.chanA, []byte("late"), deadline)
	f.commit(f.a, f.b, f.b)
	require.GreaterOrEqual(t, f.b.Chain.LatestHeight(), deadline)

	// the receive fails on chain b, which records the timeout instead
	assert.Equal(t, 1, f.step())
	require.Len(t, f.r.Pending(0), 1)
	assert.Nil(t, f.recorded(f.a, "timeout"))

	var recorded bool
	q := ibccore.QueryMsg{TimeoutReceipt: &ibccore.PacketQuery{PortID: echoAddr, ChannelID: f.chanB, Sequence: 1}}
	require.NoError(t, query(f.ctx, f.b, q, &recorded))
	assert.True(t, recorded)
	var received bool
	q = ibccore.QueryMsg{PacketReceipt: &ibccore.PacketQuery{PortID: echoAddr, ChannelID: f.chanB, Sequence: 1}}
	require.NoError(t, query(f.ctx, f.b, q, &received))
	assert.False(t, received)

	// the sealed receipt proves the timeout on chain a
	f.commit(f.a, f.b)
	assert.Equal(t, 1, f.step())
	assert.Empty(t, f.r.Pending(0))
	assert.Equal(t, []byte("late"), f.recorded(f.a, "timeout"))
	assert.Nil(t, f.recorded(f.a, "ack"))

	f.commit(f.a, f.b)
	assert.Equal(t, 0, f.step())
}

func TestReceivedPacketIsNotTimedOut(t *testing.T) {
	f := newFixture(t)
	deadline := f.b.Chain.Height() + 2
	f.send(f.a, f.chanA, []byte("ping"), deadline)
	f.commit(f.a)
	assert.Equal(t, 1, f.step())

	// chain b passes the deadline after receiving the packet
	f.commit(f.b, f.b, f.b)
	require.GreaterOrEqual(t, f.b.Chain.LatestHeight(), deadline)
	assert.Equal(t, 1, f.step())
	assert.Equal(t, []byte("ack:ping"), f.recorded(f.a, "ack"))
	assert.Nil(t, f.recorded(f.a, "timeout"))
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	f.send(f.a, f.chanA, []byte("ping"), 1000)
	f.commit(f.a)

	done := make(chan struct{})
	go func() {
		f.r.Start()
		close(done)
	}()
	require.Eventually(t, func() bool { return len(f.r.Pending(0)) == 1 }, time.Second, 5*time.Millisecond)
	f.r.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relayer did not stop")
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := retry(ctx, 10*time.Second, "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("storage unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	contractErr := &host.ContractError{Contract: ibcHostAddr, Err: ibccore.ErrPacketTimedOut}
	err = retry(ctx, time.Second, "rejected", func() error {
		calls++
		return contractErr
	})
	require.ErrorIs(t, err, ibccore.ErrPacketTimedOut)
	assert.Equal(t, 1, calls)
}

func TestExpired(t *testing.T) {
	b := &host.Block{Height: 10, Time: 500}
	assert.True(t, expired(ibccore.Packet{TimeoutHeight: 10}, b))
	assert.False(t, expired(ibccore.Packet{TimeoutHeight: 11}, b))
	assert.True(t, expired(ibccore.Packet{TimeoutTimestamp: 500}, b))
	assert.False(t, expired(ibccore.Packet{TimeoutTimestamp: 501}, b))
	assert.False(t, expired(ibccore.Packet{}, b))
}
