package xcall

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// CSMessageType tags the payload of a CSMessage
type CSMessageType uint8

const (
	// CSMessageTypeRequest tags a CSMessageRequest
	CSMessageTypeRequest CSMessageType = 1
	// CSMessageTypeResponse tags a CSMessageResponse
	CSMessageTypeResponse CSMessageType = 2
)

// ResponseCode is the outcome of an executed call
type ResponseCode uint8

const (
	// ResponseFailure means the destination dApp failed
	ResponseFailure ResponseCode = 0
	// ResponseSuccess means the destination dApp accepted the call
	ResponseSuccess ResponseCode = 1
)

func (c ResponseCode) String() string {
	if c == ResponseSuccess {
		return "SUCCESS"
	}
	return "FAILURE"
}

// CSMessage is the envelope carried by connections
type CSMessage struct {
	Type    CSMessageType
	Payload []byte
}

// CSMessageRequest is a call toward To, an account on the destination chain
type CSMessageRequest struct {
	From         string
	To           string
	Sn           uint64
	NeedResponse bool
	Data         []byte
	Protocols    []string
}

// CSMessageResponse answers request Sn
type CSMessageResponse struct {
	Sn   uint64
	Code ResponseCode
}

func encodeEnvelope(typ CSMessageType, payload interface{}) ([]byte, error) {
	raw, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(CSMessage{Type: typ, Payload: raw})
}

// EncodeRequest returns the CSMessage carrying r
func EncodeRequest(r CSMessageRequest) ([]byte, error) {
	return encodeEnvelope(CSMessageTypeRequest, r)
}

// EncodeResponse returns the CSMessage carrying r
func EncodeResponse(r CSMessageResponse) ([]byte, error) {
	return encodeEnvelope(CSMessageTypeResponse, r)
}

// DecodeCSMessage decodes the envelope. Trailing bytes are rejected.
func DecodeCSMessage(raw []byte) (CSMessage, error) {
	var m CSMessage
	if err := rlp.DecodeBytes(raw, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.Type != CSMessageTypeRequest && m.Type != CSMessageTypeResponse {
		return m, fmt.Errorf("%w: type %d", ErrInvalidMessage, m.Type)
	}
	return m, nil
}

// Request decodes the payload of a request envelope
func (m CSMessage) Request() (CSMessageRequest, error) {
	var r CSMessageRequest
	if m.Type != CSMessageTypeRequest {
		return r, fmt.Errorf("%w: type %d is not a request", ErrInvalidMessage, m.Type)
	}
	if err := rlp.DecodeBytes(m.Payload, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return r, nil
}

// Response decodes the payload of a response envelope
func (m CSMessage) Response() (CSMessageResponse, error) {
	var r CSMessageResponse
	if m.Type != CSMessageTypeResponse {
		return r, fmt.Errorf("%w: type %d is not a response", ErrInvalidMessage, m.Type)
	}
	if err := rlp.DecodeBytes(m.Payload, &r); err != nil {
		return r, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if r.Code != ResponseSuccess && r.Code != ResponseFailure {
		return r, fmt.Errorf("%w: response code %d", ErrInvalidMessage, r.Code)
	}
	return r, nil
}

// requestKey identifies a request for aggregation across connections
func requestKey(from string, sn uint64, msg []byte) []byte {
	snRaw, _ := rlp.EncodeToBytes(sn)
	return crypto.Keccak256([]byte(from), snRaw, crypto.Keccak256(msg))
}

// responseKey identifies a response for aggregation across connections
func responseKey(sn uint64, msg []byte) []byte {
	snRaw, _ := rlp.EncodeToBytes(sn)
	return crypto.Keccak256(snRaw, crypto.Keccak256(msg))
}
