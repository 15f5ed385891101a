package xcall

import (
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
)

// InstantiateMsg configures the network this dispatcher lives on and the
// denom fees are paid in. The sender becomes owner, admin and fee handler.
type InstantiateMsg struct {
	NetworkID string `json:"network_id"`
	Denom     string `json:"denom"`
}

// ExecuteMsg is the union of the dispatcher messages
type ExecuteMsg struct {
	xcalltypes.XCallMsg
	ExecuteCall           *ExecuteCallMsg          `json:"execute_call,omitempty"`
	ExecuteRollback       *ExecuteRollbackMsg      `json:"execute_rollback,omitempty"`
	SetAdmin              *AddressMsg              `json:"set_admin,omitempty"`
	SetProtocolFee        *SetProtocolFeeMsg       `json:"set_protocol_fee,omitempty"`
	SetProtocolFeeHandler *AddressMsg              `json:"set_protocol_fee_handler,omitempty"`
	SetDefaultConnection  *SetDefaultConnectionMsg `json:"set_default_connection,omitempty"`
}

type ExecuteCallMsg struct {
	RequestID uint64 `json:"request_id"`
	Data      []byte `json:"data"`
}

type ExecuteRollbackMsg struct {
	SequenceNo uint64 `json:"sequence_no"`
}

type AddressMsg struct {
	Address string `json:"address"`
}

// SetProtocolFeeMsg sets the fee kept by the fee handler, a decimal amount
type SetProtocolFeeMsg struct {
	Value string `json:"value"`
}

type SetDefaultConnectionMsg struct {
	NID     string `json:"nid"`
	Address string `json:"address"`
}

// QueryMsg is the union of the dispatcher queries
type QueryMsg struct {
	xcalltypes.XCallQuery
	GetAdmin              *xcalltypes.Empty `json:"get_admin,omitempty"`
	GetProtocolFee        *xcalltypes.Empty `json:"get_protocol_fee,omitempty"`
	GetProtocolFeeHandler *xcalltypes.Empty `json:"get_protocol_fee_handler,omitempty"`
	GetDefaultConnection  *NIDQuery         `json:"get_default_connection,omitempty"`
	GetCallRequest        *SequenceQuery    `json:"get_call_request,omitempty"`
	GetProxyRequest       *RequestQuery     `json:"get_proxy_request,omitempty"`
}

type NIDQuery struct {
	NID string `json:"nid"`
}

type SequenceQuery struct {
	SequenceNo uint64 `json:"sequence_no"`
}

type RequestQuery struct {
	RequestID uint64 `json:"request_id"`
}

// CallRequestResponse describes a call waiting for its response or rollback
type CallRequestResponse struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Sources  []string `json:"sources"`
	Rollback []byte   `json:"rollback"`
	Enabled  bool     `json:"enabled"`
}

// ProxyRequestResponse describes a received call waiting for execution
type ProxyRequestResponse struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	SequenceNo   uint64   `json:"sequence_no"`
	NeedResponse bool     `json:"need_response"`
	Protocols    []string `json:"protocols"`
	DataHash     []byte   `json:"data_hash"`
}
