package xcall

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/netaddr"
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/holiman/uint256"
)

// Dispatcher event types
const (
	EventCallMessageSent  = "CallMessageSent"
	EventCallMessage      = "CallMessage"
	EventCallExecuted     = "CallExecuted"
	EventResponseMessage  = "ResponseMessage"
	EventRollbackMessage  = "RollbackMessage"
	EventRollbackExecuted = "RollbackExecuted"

	AttributeFrom      = "from"
	AttributeTo        = "to"
	AttributeSn        = "sn"
	AttributeRequestID = "reqId"
	AttributeData      = "data"
	AttributeCode      = "code"
	AttributeMsg       = "msg"
)

// connectionFee asks connection what it charges toward nid
func connectionFee(deps host.Deps, connection, nid string, response bool) (*uint256.Int, error) {
	var fee string
	q := xcalltypes.ConnectionQuery{GetFee: &xcalltypes.ConnectionFeeQuery{NID: nid, Response: response}}
	if err := host.QueryJSON(deps.Querier, connection, q, &fee); err != nil {
		return nil, err
	}
	return host.ParseAmount(fee)
}

// totalFee is the protocol fee plus the fee of every source
func totalFee(deps host.Deps, nid string, rollback bool, sources []string) (*uint256.Int, error) {
	sources, err := protocolsOrDefault(deps.Storage, nid, sources)
	if err != nil {
		return nil, err
	}
	total, err := protocolFee.Get(deps.Storage, protocolFeeKey)
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		fee, err := connectionFee(deps, src, nid, rollback)
		if err != nil {
			return nil, err
		}
		total.Add(total, fee)
	}
	return total, nil
}

func sendCallMessage(deps host.Deps, info wasmvmtypes.MessageInfo, m *xcalltypes.SendCallMessageMsg) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	cfg, err := configItem.Load(s)
	if err != nil {
		return nil, err
	}
	to, err := netaddr.Parse(m.To)
	if err != nil {
		return nil, err
	}
	needResponse := len(m.Rollback) > 0
	if needResponse && !deps.Querier.IsContract(info.Sender) {
		return nil, fmt.Errorf("%w: %s is not a contract", ErrRollbackNotPossible, info.Sender)
	}
	if len(m.Data) > MaxDataSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMaxDataSizeExceeded, len(m.Data), MaxDataSize)
	}
	if len(m.Rollback) > MaxRollbackSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMaxRollbackSizeExceeded, len(m.Rollback), MaxRollbackSize)
	}
	sources, err := protocolsOrDefault(s, to.NetID(), m.Sources)
	if err != nil {
		return nil, err
	}
	sn, err := sequenceNo.Next(s)
	if err != nil {
		return nil, err
	}
	from, err := netaddr.New(cfg.NetworkID, info.Sender)
	if err != nil {
		return nil, err
	}
	payload, err := EncodeRequest(CSMessageRequest{
		From:         from.String(),
		To:           to.Account(),
		Sn:           sn,
		NeedResponse: needResponse,
		Data:         m.Data,
		Protocols:    m.Destinations,
	})
	if err != nil {
		return nil, err
	}

	var connSn int64
	if needResponse {
		connSn = int64(sn)
	}
	resp := host.NewResponse()
	paid := new(uint256.Int)
	for _, src := range sources {
		fee, err := connectionFee(deps, src, to.NetID(), needResponse)
		if err != nil {
			return nil, err
		}
		paid.Add(paid, fee)
		sub, err := sendMessage(src, to.NetID(), connSn, payload, host.Coins(fee, cfg.Denom))
		if err != nil {
			return nil, err
		}
		resp.Messages = append(resp.Messages, sub)
	}

	funds, err := host.FundsOf(info.Funds, cfg.Denom)
	if err != nil {
		return nil, err
	}
	pFee, err := protocolFee.Get(s, protocolFeeKey)
	if err != nil {
		return nil, err
	}
	required := new(uint256.Int).Add(paid, pFee)
	if funds.Lt(required) {
		return nil, fmt.Errorf("%w: %s%s attached, %s%s required", ErrInsufficientFunds,
			host.FormatAmount(funds), cfg.Denom, host.FormatAmount(required), cfg.Denom)
	}
	// the protocol fee and any excess go to the fee handler
	if rest := new(uint256.Int).Sub(funds, paid); !rest.IsZero() {
		handler, err := feeHandler.Load(s)
		if err != nil {
			return nil, err
		}
		resp.Messages = append(resp.Messages, host.SubMsgNever(host.BankSend(handler, host.Coins(rest, cfg.Denom))))
	}

	if needResponse {
		cr := CallRequest{From: info.Sender, To: m.To, Sources: sources, Rollback: m.Rollback}
		if err := requests.Save(s, host.Uint64Key(sn), cr); err != nil {
			return nil, err
		}
	}
	resp.Events = append(resp.Events, host.NewEvent(EventCallMessageSent,
		AttributeFrom, info.Sender,
		AttributeTo, m.To,
		AttributeSn, strconv.FormatUint(sn, 10),
	))
	resp.Data, err = json.Marshal(sn)
	return resp, err
}
