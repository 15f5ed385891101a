// Package types holds the messages exchanged between the xcall dispatcher,
// its connections and the dApps it calls. Each contract package keeps the
// full union of the messages it accepts; this package only carries the
// parts other contracts send to it.
package types

// SendCallMessageMsg originates a cross chain call. Rollback, when set,
// requests a response and is delivered back to the caller on failure.
type SendCallMessageMsg struct {
	To           string   `json:"to"`
	Data         []byte   `json:"data"`
	Rollback     []byte   `json:"rollback,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	Destinations []string `json:"destinations,omitempty"`
}

// HandleMessageMsg delivers an encoded CSMessage received from FromNID
type HandleMessageMsg struct {
	FromNID string `json:"from_nid"`
	Msg     []byte `json:"msg"`
}

// HandleErrorMsg reports that request Sn will never be answered
type HandleErrorMsg struct {
	Sn int64 `json:"sn"`
}

// XCallMsg is what connections and dApps send to the dispatcher
type XCallMsg struct {
	SendCallMessage *SendCallMessageMsg `json:"send_call_message,omitempty"`
	HandleMessage   *HandleMessageMsg   `json:"handle_message,omitempty"`
	HandleError     *HandleErrorMsg     `json:"handle_error,omitempty"`
}

// Empty is the body of queries without parameters
type Empty struct{}

// GetFeeQuery asks the total fee of a call to NID over Sources, or over the
// default connection when Sources is empty
type GetFeeQuery struct {
	NID      string   `json:"nid"`
	Rollback bool     `json:"rollback"`
	Sources  []string `json:"sources,omitempty"`
}

// XCallQuery is what dApps ask the dispatcher
type XCallQuery struct {
	GetNetworkAddress *Empty       `json:"get_network_address,omitempty"`
	GetFee            *GetFeeQuery `json:"get_fee,omitempty"`
}

// SendMessageMsg hands an encoded CSMessage to a connection. Sn > 0 expects
// a response, Sn < 0 answers request -Sn, zero is one way.
type SendMessageMsg struct {
	To  string `json:"to"`
	Sn  int64  `json:"sn"`
	Msg []byte `json:"msg"`
}

// ConnectionMsg is what the dispatcher sends to a connection
type ConnectionMsg struct {
	SendMessage *SendMessageMsg `json:"send_message,omitempty"`
}

// ConnectionFeeQuery asks the fee a connection charges toward NID
type ConnectionFeeQuery struct {
	NID      string `json:"nid"`
	Response bool   `json:"response"`
}

// ConnectionQuery is what the dispatcher asks a connection. Fees are
// answered as decimal strings.
type ConnectionQuery struct {
	GetFee *ConnectionFeeQuery `json:"get_fee,omitempty"`
}

// HandleCallMessageMsg delivers a call to a dApp. From equal to the network
// address of the dispatcher signals a rollback.
type HandleCallMessageMsg struct {
	From      string   `json:"from"`
	Data      []byte   `json:"data"`
	Protocols []string `json:"protocols"`
}

// DAppMsg is what the dispatcher sends to a dApp
type DAppMsg struct {
	HandleCallMessage *HandleCallMessageMsg `json:"handle_call_message,omitempty"`
}
