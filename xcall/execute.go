package xcall

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/netaddr"
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func callDApp(id uint64, dapp, from string, data []byte, protocols []string) (wasmvmtypes.SubMsg, error) {
	exec, err := host.ExecuteContract(dapp, xcalltypes.DAppMsg{HandleCallMessage: &xcalltypes.HandleCallMessageMsg{
		From:      from,
		Data:      data,
		Protocols: protocols,
	}}, nil)
	if err != nil {
		return wasmvmtypes.SubMsg{}, err
	}
	return wasmvmtypes.SubMsg{ID: id, Msg: exec, ReplyOn: wasmvmtypes.ReplyAlways}, nil
}

func resultCode(result wasmvmtypes.SubMsgResult) (ResponseCode, string) {
	if result.Err != "" {
		return ResponseFailure, result.Err
	}
	return ResponseSuccess, ""
}

func executeCall(deps host.Deps, m *ExecuteCallMsg) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	pr, err := loadProxyRequest(s, m.RequestID)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(crypto.Keccak256(m.Data), pr.DataHash) {
		return nil, fmt.Errorf("%w: request %d", ErrDataMismatch, m.RequestID)
	}
	if err := executeRequestID.Save(s, m.RequestID); err != nil {
		return nil, err
	}
	sub, err := callDApp(ExecuteCallReplyID, pr.To, pr.From, m.Data, pr.Protocols)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Messages = append(resp.Messages, sub)
	return resp, nil
}

func executeCallReply(deps host.Deps, result wasmvmtypes.SubMsgResult) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	reqID, err := executeRequestID.Load(s)
	if err != nil {
		return nil, err
	}
	executeRequestID.Remove(s)
	pr, err := loadProxyRequest(s, reqID)
	if err != nil {
		return nil, err
	}
	code, msg := resultCode(result)
	resp := host.NewResponse()
	resp.Events = append(resp.Events, host.NewEvent(EventCallExecuted,
		AttributeRequestID, strconv.FormatUint(reqID, 10),
		AttributeCode, strconv.Itoa(int(code)),
		AttributeMsg, msg,
	))

	if !pr.NeedResponse {
		// a failed one way call stays executable
		if code == ResponseSuccess {
			proxyRequests.Remove(s, host.Uint64Key(reqID))
		}
		return resp, nil
	}
	// the response acknowledges the incoming packet, so a retry could not answer it
	proxyRequests.Remove(s, host.Uint64Key(reqID))
	from, err := netaddr.Parse(pr.From)
	if err != nil {
		return nil, err
	}
	raw, err := EncodeResponse(CSMessageResponse{Sn: pr.SequenceNo, Code: code})
	if err != nil {
		return nil, err
	}
	protocols, err := protocolsOrDefault(s, from.NetID(), pr.Protocols)
	if err != nil {
		return nil, err
	}
	for _, p := range protocols {
		sub, err := sendMessage(p, from.NetID(), -int64(pr.SequenceNo), raw, nil)
		if err != nil {
			return nil, err
		}
		resp.Messages = append(resp.Messages, sub)
	}
	return resp, nil
}

func executeRollback(deps host.Deps, env wasmvmtypes.Env, m *ExecuteRollbackMsg) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	cr, err := loadCallRequest(s, m.SequenceNo)
	if err != nil {
		return nil, err
	}
	if !cr.Enabled {
		return nil, fmt.Errorf("%w: sn %d", ErrRollbackNotEnabled, m.SequenceNo)
	}
	cfg, err := configItem.Load(s)
	if err != nil {
		return nil, err
	}
	requests.Remove(s, host.Uint64Key(m.SequenceNo))
	if err := executeRollbackID.Save(s, m.SequenceNo); err != nil {
		return nil, err
	}
	self, err := netaddr.New(cfg.NetworkID, env.Contract.Address)
	if err != nil {
		return nil, err
	}
	sub, err := callDApp(ExecuteRollbackReplyID, cr.From, self.String(), cr.Rollback, cr.Sources)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Messages = append(resp.Messages, sub)
	return resp, nil
}

func executeRollbackReply(deps host.Deps, result wasmvmtypes.SubMsgResult) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	sn, err := executeRollbackID.Load(s)
	if err != nil {
		return nil, err
	}
	executeRollbackID.Remove(s)
	code, msg := resultCode(result)
	resp := host.NewResponse()
	resp.Events = append(resp.Events, host.NewEvent(EventRollbackExecuted,
		AttributeSn, strconv.FormatUint(sn, 10),
		AttributeCode, strconv.Itoa(int(code)),
		AttributeMsg, msg,
	))
	return resp, nil
}
