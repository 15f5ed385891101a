package xcall

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/netaddr"
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func handleMessage(deps host.Deps, info wasmvmtypes.MessageInfo, m *xcalltypes.HandleMessageMsg) (*wasmvmtypes.Response, error) {
	msg, err := DecodeCSMessage(m.Msg)
	if err != nil {
		return nil, err
	}
	switch msg.Type {
	case CSMessageTypeRequest:
		req, err := msg.Request()
		if err != nil {
			return nil, err
		}
		return handleRequest(deps, info.Sender, m.FromNID, req, m.Msg)
	default:
		res, err := msg.Response()
		if err != nil {
			return nil, err
		}
		return handleResponse(deps, info.Sender, m.FromNID, res, m.Msg)
	}
}

// handleError treats the loss of request sn as a failure response from the
// reporting connection
func handleError(deps host.Deps, info wasmvmtypes.MessageInfo, m *xcalltypes.HandleErrorMsg) (*wasmvmtypes.Response, error) {
	if m.Sn <= 0 {
		return nil, fmt.Errorf("%w: sn %d", ErrInvalidSequenceId, m.Sn)
	}
	res := CSMessageResponse{Sn: uint64(m.Sn), Code: ResponseFailure}
	raw, err := EncodeResponse(res)
	if err != nil {
		return nil, err
	}
	return handleResponse(deps, info.Sender, "", res, raw)
}

// aggregate records that connection delivered the message identified by key
// and reports whether every expected connection has now delivered it
func aggregate(s host.Store, pending host.Map[bool], key []byte, connection string, expected []string) (bool, error) {
	if len(expected) == 1 {
		return true, nil
	}
	if pending.Has(s, pendingKey(key, connection)) {
		return false, fmt.Errorf("%w: from %s", ErrDuplicateMessage, connection)
	}
	if err := pending.Save(s, pendingKey(key, connection), true); err != nil {
		return false, err
	}
	for _, p := range expected {
		if !pending.Has(s, pendingKey(key, p)) {
			return false, nil
		}
	}
	for _, p := range expected {
		pending.Remove(s, pendingKey(key, p))
	}
	return true, nil
}

func handleRequest(deps host.Deps, caller, fromNID string, req CSMessageRequest, raw []byte) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	from, err := netaddr.Parse(req.From)
	if err != nil {
		return nil, err
	}
	if from.NetID() != fromNID {
		return nil, fmt.Errorf("%w: request from %s delivered as %s", ErrInvalidMessage, req.From, fromNID)
	}
	expected, err := protocolsOrDefault(s, fromNID, req.Protocols)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(expected, caller) {
		return nil, fmt.Errorf("%w: %s is not a protocol of %s sn %d", ErrUnauthorized, caller, req.From, req.Sn)
	}
	key := requestKey(req.From, req.Sn, raw)
	if receivedRequests.Has(s, string(key)) {
		return nil, fmt.Errorf("%w: %s sn %d", ErrDuplicateMessage, req.From, req.Sn)
	}
	resp := host.NewResponse()
	done, err := aggregate(s, pendingRequests, key, caller, expected)
	if err != nil || !done {
		return resp, err
	}
	if err := receivedRequests.Save(s, string(key), true); err != nil {
		return nil, err
	}

	reqID, err := requestNo.Next(s)
	if err != nil {
		return nil, err
	}
	pr := ProxyRequest{
		From:         req.From,
		To:           req.To,
		SequenceNo:   req.Sn,
		NeedResponse: req.NeedResponse,
		Protocols:    req.Protocols,
		DataHash:     crypto.Keccak256(req.Data),
	}
	if pr.Protocols == nil {
		pr.Protocols = []string{}
	}
	if err := proxyRequests.Save(s, host.Uint64Key(reqID), pr); err != nil {
		return nil, err
	}
	resp.Events = append(resp.Events, host.NewEvent(EventCallMessage,
		AttributeFrom, req.From,
		AttributeTo, req.To,
		AttributeSn, strconv.FormatUint(req.Sn, 10),
		AttributeRequestID, strconv.FormatUint(reqID, 10),
		AttributeData, hex.EncodeToString(req.Data),
	))
	return resp, nil
}

func handleResponse(deps host.Deps, caller, fromNID string, res CSMessageResponse, raw []byte) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	resp := host.NewResponse()
	snKey := host.Uint64Key(res.Sn)
	cr, ok, err := requests.May(s, snKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		if successfulResponses.Has(s, snKey) {
			return nil, fmt.Errorf("%w: response to sn %d", ErrDuplicateMessage, res.Sn)
		}
		// rolled back, or never asked for a response
		return resp, nil
	}
	if fromNID != "" {
		to, err := netaddr.Parse(cr.To)
		if err != nil {
			return nil, err
		}
		if to.NetID() != fromNID {
			return nil, fmt.Errorf("%w: response to sn %d delivered as %s", ErrInvalidMessage, res.Sn, fromNID)
		}
	}
	if !slices.Contains(cr.Sources, caller) {
		return nil, fmt.Errorf("%w: %s is not a source of sn %d", ErrUnauthorized, caller, res.Sn)
	}
	if cr.Enabled {
		return nil, fmt.Errorf("%w: sn %d already failed", ErrDuplicateMessage, res.Sn)
	}
	done, err := aggregate(s, pendingResponses, responseKey(res.Sn, raw), caller, cr.Sources)
	if err != nil || !done {
		return resp, err
	}

	resp.Events = append(resp.Events, host.NewEvent(EventResponseMessage,
		AttributeSn, strconv.FormatUint(res.Sn, 10),
		AttributeCode, strconv.Itoa(int(res.Code)),
	))
	if res.Code == ResponseSuccess {
		requests.Remove(s, snKey)
		return resp, successfulResponses.Save(s, snKey, true)
	}
	cr.Enabled = true
	if err := requests.Save(s, snKey, cr); err != nil {
		return nil, err
	}
	resp.Events = append(resp.Events, host.NewEvent(EventRollbackMessage,
		AttributeSn, strconv.FormatUint(res.Sn, 10),
	))
	return resp, nil
}
