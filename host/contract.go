package host

import (
	"encoding/json"
	"fmt"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/holiman/uint256"
)

// Querier gives read access to the rest of the chain
type Querier interface {
	IsContract(addr string) bool
	QueryContract(addr string, msg []byte) ([]byte, error)
	Balance(addr, denom string) (*uint256.Int, error)
}

// Deps is what a contract entry point gets from the host
type Deps struct {
	Storage Store
	API     API
	Querier Querier
}

// Contract is a program addressed on a Chain. Messages are json. Other
// contracts are reached only through the sub-messages of a Response.
type Contract interface {
	Instantiate(deps Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error)
	Execute(deps Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error)
	Query(deps Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error)
	Reply(deps Deps, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error)
}

// QueryJSON sends req to addr and decodes the answer into out
func QueryJSON(q Querier, addr string, req interface{}, out interface{}) error {
	msg, err := json.Marshal(req)
	if err != nil {
		return err
	}
	res, err := q.QueryContract(addr, msg)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("decoding query response of %s: %w", addr, err)
	}
	return nil
}

// NewResponse returns an empty response
func NewResponse() *wasmvmtypes.Response {
	return &wasmvmtypes.Response{}
}

// ExecuteContract builds a message that calls contract with the json encoding of msg
func ExecuteContract(contract string, msg interface{}, funds wasmvmtypes.Array[wasmvmtypes.Coin]) (wasmvmtypes.CosmosMsg, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return wasmvmtypes.CosmosMsg{}, err
	}
	if funds == nil {
		funds = wasmvmtypes.Array[wasmvmtypes.Coin]{}
	}
	return wasmvmtypes.CosmosMsg{Wasm: &wasmvmtypes.WasmMsg{Execute: &wasmvmtypes.ExecuteMsg{
		ContractAddr: contract,
		Msg:          raw,
		Funds:        funds,
	}}}, nil
}

// BankSend builds a transfer message
func BankSend(to string, amount wasmvmtypes.Array[wasmvmtypes.Coin]) wasmvmtypes.CosmosMsg {
	return wasmvmtypes.CosmosMsg{Bank: &wasmvmtypes.BankMsg{Send: &wasmvmtypes.SendMsg{
		ToAddress: to,
		Amount:    amount,
	}}}
}

// SubMsgNever wraps msg in a sub-message that never replies
func SubMsgNever(msg wasmvmtypes.CosmosMsg) wasmvmtypes.SubMsg {
	return wasmvmtypes.SubMsg{Msg: msg, ReplyOn: wasmvmtypes.ReplyNever}
}
