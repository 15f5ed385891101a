// Package dapp is a reference xcall dApp. It originates calls through its
// dispatcher, checks that delivered calls came over the connections it
// trusts for their network, and keeps a record of calls and rollbacks.
package dapp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/netaddr"
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

var (
	// ErrOnlyXCall is returned when HandleCallMessage does not come from the dispatcher
	ErrOnlyXCall = errors.New("only xcall")
	// ErrOnlyAdmin is returned for configuration from other senders
	ErrOnlyAdmin = errors.New("only admin")
	// ErrProtocolsMismatch is returned when a call arrived over unexpected connections
	ErrProtocolsMismatch = errors.New("protocols mismatch")
	// ErrRejected is returned for the payload the dApp refuses
	ErrRejected = errors.New("rejected by dapp")
)

// RejectPayload is the call data this dApp always fails on
var RejectPayload = []byte{0x00}

// InstantiateMsg names the dispatcher. The sender becomes admin.
type InstantiateMsg struct {
	XCall string `json:"xcall"`
}

// ExecuteMsg is the union of the dApp messages
type ExecuteMsg struct {
	xcalltypes.DAppMsg
	SendCallMessage *xcalltypes.SendCallMessageMsg `json:"send_call_message,omitempty"`
	SetConnections  *SetConnectionsMsg             `json:"set_connections,omitempty"`
}

// SetConnectionsMsg sets the connections used toward NID: Sources here and
// Destinations on NID
type SetConnectionsMsg struct {
	NID          string   `json:"nid"`
	Sources      []string `json:"sources"`
	Destinations []string `json:"destinations"`
}

// QueryMsg is the union of the dApp queries
type QueryMsg struct {
	GetReceived  *xcalltypes.Empty `json:"get_received,omitempty"`
	GetRollbacks *xcalltypes.Empty `json:"get_rollbacks,omitempty"`
}

// Call is a delivered call or rollback
type Call struct {
	From      string   `json:"from"`
	Data      []byte   `json:"data"`
	Protocols []string `json:"protocols"`
}

type connectionSet struct {
	Sources      []string
	Destinations []string
}

var (
	adminItem   = host.NewItem[string]("admin")
	xcallItem   = host.NewItem[string]("xcall")
	connections = host.NewMap[connectionSet]("connections")
	received    = host.NewMap[Call]("received")
	receivedSeq = host.NewSequence("received_seq")
	rollbacks   = host.NewMap[Call]("rollbacks")
	rollbackSeq = host.NewSequence("rollback_seq")
)

// Contract is the dApp host.Contract
type Contract struct{}

// New returns the dApp contract
func New() *Contract {
	return &Contract{}
}

func (c *Contract) Instantiate(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m InstantiateMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	if err := adminItem.Save(deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	return host.NewResponse(), xcallItem.Save(deps.Storage, m.XCall)
}

func (c *Contract) Execute(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m ExecuteMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	switch {
	case m.HandleCallMessage != nil:
		return handleCallMessage(deps, info, m.HandleCallMessage)
	case m.SendCallMessage != nil:
		return sendCallMessage(deps, info, m.SendCallMessage)
	case m.SetConnections != nil:
		return setConnections(deps, info, m.SetConnections)
	}
	return nil, host.ErrUnknownMessage
}

func (c *Contract) Query(deps host.Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var m QueryMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	switch {
	case m.GetReceived != nil:
		return list(deps.Storage, received, receivedSeq)
	case m.GetRollbacks != nil:
		return list(deps.Storage, rollbacks, rollbackSeq)
	}
	return nil, host.ErrUnknownMessage
}

func (c *Contract) Reply(deps host.Deps, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	return nil, host.ErrUnknownMessage
}

func list(s host.Store, m host.Map[Call], seq host.Sequence) ([]byte, error) {
	n, err := seq.Current(s)
	if err != nil {
		return nil, err
	}
	calls := make([]Call, 0, n)
	for i := uint64(1); i <= n; i++ {
		call, err := m.Load(s, host.Uint64Key(i))
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return json.Marshal(calls)
}

func record(s host.Store, m host.Map[Call], seq host.Sequence, call Call) error {
	n, err := seq.Next(s)
	if err != nil {
		return err
	}
	return m.Save(s, host.Uint64Key(n), call)
}

func setConnections(deps host.Deps, info wasmvmtypes.MessageInfo, m *SetConnectionsMsg) (*wasmvmtypes.Response, error) {
	a, err := adminItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender != a {
		return nil, fmt.Errorf("%w: %s", ErrOnlyAdmin, info.Sender)
	}
	return host.NewResponse(), connections.Save(deps.Storage, m.NID, connectionSet{Sources: m.Sources, Destinations: m.Destinations})
}

func sendCallMessage(deps host.Deps, info wasmvmtypes.MessageInfo, m *xcalltypes.SendCallMessageMsg) (*wasmvmtypes.Response, error) {
	xc, err := xcallItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	to, err := netaddr.Parse(m.To)
	if err != nil {
		return nil, err
	}
	call := *m
	set, ok, err := connections.May(deps.Storage, to.NetID())
	if err != nil {
		return nil, err
	}
	if ok && len(call.Sources) == 0 {
		call.Sources = set.Sources
		call.Destinations = set.Destinations
	}
	exec, err := host.ExecuteContract(xc, xcalltypes.XCallMsg{SendCallMessage: &call}, info.Funds)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Messages = append(resp.Messages, host.SubMsgNever(exec))
	return resp, nil
}

func handleCallMessage(deps host.Deps, info wasmvmtypes.MessageInfo, m *xcalltypes.HandleCallMessageMsg) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	xc, err := xcallItem.Load(s)
	if err != nil {
		return nil, err
	}
	if info.Sender != xc {
		return nil, fmt.Errorf("%w: %s", ErrOnlyXCall, info.Sender)
	}
	from, err := netaddr.Parse(m.From)
	if err != nil {
		return nil, err
	}
	var self string
	if err := host.QueryJSON(deps.Querier, xc, xcalltypes.XCallQuery{GetNetworkAddress: &xcalltypes.Empty{}}, &self); err != nil {
		return nil, err
	}
	call := Call{From: m.From, Data: m.Data, Protocols: m.Protocols}
	if m.From == self {
		return host.NewResponse(), record(s, rollbacks, rollbackSeq, call)
	}
	set, ok, err := connections.May(s, from.NetID())
	if err != nil {
		return nil, err
	}
	if ok && !slices.Equal(set.Sources, m.Protocols) {
		return nil, fmt.Errorf("%w: %v, expected %v", ErrProtocolsMismatch, m.Protocols, set.Sources)
	}
	if bytes.Equal(m.Data, RejectPayload) {
		return nil, ErrRejected
	}
	return host.NewResponse(), record(s, received, receivedSeq, call)
}
