package host

import (
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

const (
	// AttributeContractAddress names the emitting contract on every recorded event
	AttributeContractAddress = "_contract_address"
	// EventTypeWasm carries the plain attributes of a response
	EventTypeWasm = "wasm"
	// EventTypeTransfer is emitted for bank transfers
	EventTypeTransfer = "transfer"
	// EventTypeCommitment adds a leaf to the block message tree
	EventTypeCommitment = "commitment"
	// AttributeLeaf is the hex encoded leaf of a commitment event
	AttributeLeaf = "leaf"
)

// NewEvent builds an event from key value pairs
func NewEvent(typ string, kv ...string) wasmvmtypes.Event {
	attrs := make(wasmvmtypes.Array[wasmvmtypes.EventAttribute], 0, len(kv)/2) //nolint:gomnd
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, wasmvmtypes.EventAttribute{Key: kv[i], Value: kv[i+1]})
	}
	return wasmvmtypes.Event{Type: typ, Attributes: attrs}
}

// Attribute returns the value of key in ev
func Attribute(ev wasmvmtypes.Event, key string) (string, bool) {
	for _, a := range ev.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// FindEvents returns the events of the given type
func FindEvents(events []wasmvmtypes.Event, typ string) []wasmvmtypes.Event {
	var res []wasmvmtypes.Event
	for _, ev := range events {
		if ev.Type == typ {
			res = append(res, ev)
		}
	}
	return res
}

func contractEvents(addr string, resp *wasmvmtypes.Response) []wasmvmtypes.Event {
	var events []wasmvmtypes.Event
	if len(resp.Attributes) > 0 {
		attrs := wasmvmtypes.Array[wasmvmtypes.EventAttribute]{{Key: AttributeContractAddress, Value: addr}}
		attrs = append(attrs, resp.Attributes...)
		events = append(events, wasmvmtypes.Event{Type: EventTypeWasm, Attributes: attrs})
	}
	for _, ev := range resp.Events {
		attrs := wasmvmtypes.Array[wasmvmtypes.EventAttribute]{{Key: AttributeContractAddress, Value: addr}}
		attrs = append(attrs, ev.Attributes...)
		events = append(events, wasmvmtypes.Event{Type: ev.Type, Attributes: attrs})
	}
	return events
}
