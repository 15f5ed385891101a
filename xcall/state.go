package xcall

import (
	"github.com/0xPolygonHermez/zkevm-xcall/host"
)

type config struct {
	NetworkID string
	Denom     string
}

// CallRequest is kept at the origin while a call with rollback waits for its response
type CallRequest struct {
	From     string
	To       string
	Sources  []string
	Rollback []byte
	Enabled  bool
}

// ProxyRequest is kept at the destination until the call is executed
type ProxyRequest struct {
	From         string
	To           string
	SequenceNo   uint64
	NeedResponse bool
	Protocols    []string
	DataHash     []byte
}

var (
	owner               = host.NewItem[string]("owner")
	admin               = host.NewItem[string]("admin")
	configItem          = host.NewItem[config]("config")
	sequenceNo          = host.NewSequence("sn")
	requestNo           = host.NewSequence("requestno")
	requests            = host.NewMap[CallRequest]("requests")
	proxyRequests       = host.NewMap[ProxyRequest]("message_request")
	protocolFee         = host.NewAmountMap("protocol_fee")
	feeHandler          = host.NewItem[string]("feehandler")
	defaultConnections  = host.NewMap[string]("default_connections")
	pendingRequests     = host.NewMap[bool]("pending_requests")
	pendingResponses    = host.NewMap[bool]("pending_responses")
	receivedRequests    = host.NewMap[bool]("received_requests")
	successfulResponses = host.NewMap[bool]("successful_responses")
	executeRequestID    = host.NewItem[uint64]("execute_request_id")
	executeRollbackID   = host.NewItem[uint64]("execute_rollback_id")
)

// protocolFeeKey is the single entry of the protocol_fee namespace
const protocolFeeKey = ""

func pendingKey(key []byte, connection string) string {
	return host.JoinKey(string(key), connection)
}
