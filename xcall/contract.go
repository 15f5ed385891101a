// Package xcall implements the cross chain call dispatcher: it allocates
// sequence numbers, hands requests to one or more connections, aggregates
// what the connections deliver, executes calls on the destination dApp and
// drives responses and rollbacks back at the origin.
package xcall

import (
	"encoding/json"
	"fmt"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/netaddr"
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

const (
	// MaxDataSize bounds the payload of a call
	MaxDataSize = 2048
	// MaxRollbackSize bounds the rollback payload of a call
	MaxRollbackSize = 1024

	// ExecuteCallReplyID tags the dApp call of ExecuteCall
	ExecuteCallReplyID = 1
	// ExecuteRollbackReplyID tags the dApp call of ExecuteRollback
	ExecuteRollbackReplyID = 2
)

// Contract is the dispatcher host.Contract
type Contract struct{}

// New returns the dispatcher contract
func New() *Contract {
	return &Contract{}
}

func (c *Contract) Instantiate(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m InstantiateMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	if _, err := netaddr.New(m.NetworkID, env.Contract.Address); err != nil {
		return nil, err
	}
	if m.Denom == "" {
		return nil, fmt.Errorf("%w: empty denom", host.ErrInvalidAmount)
	}
	s := deps.Storage
	if err := configItem.Save(s, config{NetworkID: m.NetworkID, Denom: m.Denom}); err != nil {
		return nil, err
	}
	for _, it := range []host.Item[string]{owner, admin, feeHandler} {
		if err := it.Save(s, info.Sender); err != nil {
			return nil, err
		}
	}
	return host.NewResponse(), nil
}

func (c *Contract) Execute(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m ExecuteMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	switch {
	case m.SendCallMessage != nil:
		return sendCallMessage(deps, info, m.SendCallMessage)
	case m.HandleMessage != nil:
		return handleMessage(deps, info, m.HandleMessage)
	case m.HandleError != nil:
		return handleError(deps, info, m.HandleError)
	case m.ExecuteCall != nil:
		return executeCall(deps, m.ExecuteCall)
	case m.ExecuteRollback != nil:
		return executeRollback(deps, env, m.ExecuteRollback)
	case m.SetAdmin != nil:
		return setAdmin(deps, info, m.SetAdmin)
	case m.SetProtocolFee != nil:
		return setProtocolFee(deps, info, m.SetProtocolFee)
	case m.SetProtocolFeeHandler != nil:
		return setProtocolFeeHandler(deps, info, m.SetProtocolFeeHandler)
	case m.SetDefaultConnection != nil:
		return setDefaultConnection(deps, info, m.SetDefaultConnection)
	}
	return nil, host.ErrUnknownMessage
}

func (c *Contract) Reply(deps host.Deps, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	switch reply.ID {
	case ExecuteCallReplyID:
		return executeCallReply(deps, reply.Result)
	case ExecuteRollbackReplyID:
		return executeRollbackReply(deps, reply.Result)
	}
	return nil, fmt.Errorf("%w: %d", ErrInvalidReplyID, reply.ID)
}

func (c *Contract) Query(deps host.Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var m QueryMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	s := deps.Storage
	switch {
	case m.GetNetworkAddress != nil:
		cfg, err := configItem.Load(s)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cfg.NetworkID + "/" + env.Contract.Address)
	case m.GetFee != nil:
		total, err := totalFee(deps, m.GetFee.NID, m.GetFee.Rollback, m.GetFee.Sources)
		if err != nil {
			return nil, err
		}
		return json.Marshal(host.FormatAmount(total))
	case m.GetAdmin != nil:
		return loadJSON(s, admin)
	case m.GetProtocolFee != nil:
		fee, err := protocolFee.Get(s, protocolFeeKey)
		if err != nil {
			return nil, err
		}
		return json.Marshal(host.FormatAmount(fee))
	case m.GetProtocolFeeHandler != nil:
		return loadJSON(s, feeHandler)
	case m.GetDefaultConnection != nil:
		conn, err := defaultConnection(s, m.GetDefaultConnection.NID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(conn)
	case m.GetCallRequest != nil:
		cr, err := loadCallRequest(s, m.GetCallRequest.SequenceNo)
		if err != nil {
			return nil, err
		}
		return json.Marshal(CallRequestResponse(cr))
	case m.GetProxyRequest != nil:
		pr, err := loadProxyRequest(s, m.GetProxyRequest.RequestID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(ProxyRequestResponse(pr))
	}
	return nil, host.ErrUnknownMessage
}

func loadJSON(s host.Store, it host.Item[string]) ([]byte, error) {
	v, err := it.Load(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func onlyAdmin(s host.Store, sender string) error {
	a, err := admin.Load(s)
	if err != nil {
		return err
	}
	if sender != a {
		return fmt.Errorf("%w: %s", ErrOnlyAdmin, sender)
	}
	return nil
}

func setAdmin(deps host.Deps, info wasmvmtypes.MessageInfo, m *AddressMsg) (*wasmvmtypes.Response, error) {
	if err := onlyAdmin(deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	if m.Address == "" {
		return nil, ErrAdminAddressCannotBeNull
	}
	return host.NewResponse(), admin.Save(deps.Storage, m.Address)
}

func setProtocolFee(deps host.Deps, info wasmvmtypes.MessageInfo, m *SetProtocolFeeMsg) (*wasmvmtypes.Response, error) {
	if err := onlyAdmin(deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	fee, err := host.ParseAmount(m.Value)
	if err != nil {
		return nil, err
	}
	return host.NewResponse(), protocolFee.Set(deps.Storage, protocolFeeKey, fee)
}

func setProtocolFeeHandler(deps host.Deps, info wasmvmtypes.MessageInfo, m *AddressMsg) (*wasmvmtypes.Response, error) {
	if err := onlyAdmin(deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	if m.Address == "" {
		return nil, fmt.Errorf("%w: empty fee handler", ErrInvalidMessage)
	}
	return host.NewResponse(), feeHandler.Save(deps.Storage, m.Address)
}

func setDefaultConnection(deps host.Deps, info wasmvmtypes.MessageInfo, m *SetDefaultConnectionMsg) (*wasmvmtypes.Response, error) {
	if err := onlyAdmin(deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	if m.NID == "" || m.Address == "" {
		return nil, fmt.Errorf("%w: nid %q address %q", ErrInvalidMessage, m.NID, m.Address)
	}
	return host.NewResponse(), defaultConnections.Save(deps.Storage, m.NID, m.Address)
}

func defaultConnection(s host.Store, nid string) (string, error) {
	conn, ok, err := defaultConnections.May(s, nid)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoDefaultConnection, nid)
	}
	return conn, nil
}

// protocolsOrDefault returns protocols, or the default connection of nid
// when none were named
func protocolsOrDefault(s host.Store, nid string, protocols []string) ([]string, error) {
	if len(protocols) != 0 {
		return protocols, nil
	}
	conn, err := defaultConnection(s, nid)
	if err != nil {
		return nil, err
	}
	return []string{conn}, nil
}

func loadCallRequest(s host.Store, sn uint64) (CallRequest, error) {
	cr, ok, err := requests.May(s, host.Uint64Key(sn))
	if err != nil {
		return cr, err
	}
	if !ok {
		return cr, fmt.Errorf("%w: %d", ErrInvalidSequenceId, sn)
	}
	return cr, nil
}

func loadProxyRequest(s host.Store, reqID uint64) (ProxyRequest, error) {
	pr, ok, err := proxyRequests.May(s, host.Uint64Key(reqID))
	if err != nil {
		return pr, err
	}
	if !ok {
		return pr, fmt.Errorf("%w: %d", ErrInvalidRequestId, reqID)
	}
	return pr, nil
}

func executeMsg(contract string, msg interface{}, funds wasmvmtypes.Array[wasmvmtypes.Coin]) (wasmvmtypes.SubMsg, error) {
	exec, err := host.ExecuteContract(contract, msg, funds)
	if err != nil {
		return wasmvmtypes.SubMsg{}, err
	}
	return host.SubMsgNever(exec), nil
}

func sendMessage(connection, nid string, sn int64, payload []byte, fee wasmvmtypes.Array[wasmvmtypes.Coin]) (wasmvmtypes.SubMsg, error) {
	return executeMsg(connection, xcalltypes.ConnectionMsg{SendMessage: &xcalltypes.SendMessageMsg{
		To:  nid,
		Sn:  sn,
		Msg: payload,
	}}, fee)
}
