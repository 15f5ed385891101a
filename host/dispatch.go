package host

import (
	"fmt"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

func (t *tx) transfer(s *cacheStore, from, to string, funds []wasmvmtypes.Coin) error {
	if len(funds) == 0 {
		return nil
	}
	return t.chain.bank.send(s, from, to, funds)
}

// execute calls a contract, moving funds first
func (t *tx) execute(s *cacheStore, depth int, sender, addr string, msg []byte, funds wasmvmtypes.Array[wasmvmtypes.Coin]) ([]wasmvmtypes.Event, []byte, error) {
	contract, ok := t.chain.contracts[addr]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", addr, ErrContractNotFound)
	}
	if err := t.transfer(s, sender, addr, funds); err != nil {
		return nil, nil, err
	}
	if funds == nil {
		funds = wasmvmtypes.Array[wasmvmtypes.Coin]{}
	}
	info := wasmvmtypes.MessageInfo{Sender: sender, Funds: funds}
	resp, err := contract.Execute(t.deps(s, addr), t.env(addr), info, msg)
	if err != nil {
		return nil, nil, &ContractError{Contract: addr, Err: err}
	}
	return t.handleResponse(s, depth, addr, resp)
}

// handleResponse records the events of resp and runs its sub-messages in order
func (t *tx) handleResponse(s *cacheStore, depth int, addr string, resp *wasmvmtypes.Response) ([]wasmvmtypes.Event, []byte, error) {
	if resp == nil {
		return nil, nil, nil
	}
	events := contractEvents(addr, resp)
	data := resp.Data
	for _, sub := range resp.Messages {
		subEvents, replyData, err := t.dispatchSubMsg(s, depth+1, addr, sub)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, subEvents...)
		if replyData != nil {
			data = replyData
		}
	}
	return events, data, nil
}

// dispatchSubMsg runs sub in its own branch. A failure reverts only that
// branch when the caller asked for a reply on error.
func (t *tx) dispatchSubMsg(s *cacheStore, depth int, addr string, sub wasmvmtypes.SubMsg) ([]wasmvmtypes.Event, []byte, error) {
	if depth > t.chain.cfg.MaxCallDepth {
		return nil, nil, ErrCallDepthExceeded
	}
	branch := s.branch()
	events, data, err := t.dispatch(branch, depth, addr, sub.Msg)
	if err == nil {
		branch.writeTo(s)
	}

	var result wasmvmtypes.SubMsgResult
	switch {
	case err != nil && (sub.ReplyOn == wasmvmtypes.ReplyError || sub.ReplyOn == wasmvmtypes.ReplyAlways):
		t.logger.Debugf("sub-message %d of %s failed, replying: %v", sub.ID, addr, err)
		result = wasmvmtypes.SubMsgResult{Err: err.Error()}
		events = nil
	case err != nil:
		return nil, nil, err
	case sub.ReplyOn == wasmvmtypes.ReplySuccess || sub.ReplyOn == wasmvmtypes.ReplyAlways:
		result = wasmvmtypes.SubMsgResult{Ok: &wasmvmtypes.SubMsgResponse{
			Events: events,
			Data:   data,
		}}
	default:
		return events, nil, nil
	}

	contract := t.chain.contracts[addr]
	resp, err := contract.Reply(t.deps(s, addr), t.env(addr), wasmvmtypes.Reply{ID: sub.ID, Result: result})
	if err != nil {
		return nil, nil, &ContractError{Contract: addr, Err: err}
	}
	replyEvents, replyData, err := t.handleResponse(s, depth, addr, resp)
	if err != nil {
		return nil, nil, err
	}
	return append(events, replyEvents...), replyData, nil
}

func (t *tx) dispatch(s *cacheStore, depth int, sender string, msg wasmvmtypes.CosmosMsg) ([]wasmvmtypes.Event, []byte, error) {
	switch {
	case msg.Bank != nil && msg.Bank.Send != nil:
		send := msg.Bank.Send
		if err := t.transfer(s, sender, send.ToAddress, send.Amount); err != nil {
			return nil, nil, err
		}
		var amount string
		for i, c := range send.Amount {
			if i > 0 {
				amount += ","
			}
			amount += c.Amount + c.Denom
		}
		return []wasmvmtypes.Event{NewEvent(EventTypeTransfer, "sender", sender, "recipient", send.ToAddress, "amount", amount)}, nil, nil
	case msg.Wasm != nil && msg.Wasm.Execute != nil:
		exec := msg.Wasm.Execute
		return t.execute(s, depth, sender, exec.ContractAddr, exec.Msg, exec.Funds)
	}
	return nil, nil, ErrUnsupportedMessage
}
