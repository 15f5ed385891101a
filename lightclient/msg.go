package lightclient

import (
	"github.com/0xPolygonHermez/zkevm-xcall/merkle"
)

// InstantiateMsg configures the ibc host allowed to drive the client
type InstantiateMsg struct {
	IbcHost string `json:"ibc_host"`
}

// ExecuteMsg is the union of the execute messages
type ExecuteMsg struct {
	CreateClient *CreateClientMsg `json:"create_client,omitempty"`
	UpdateClient *UpdateClientMsg `json:"update_client,omitempty"`
}

// CreateClientMsg carries rlp encoded client and consensus states
type CreateClientMsg struct {
	ClientID       string `json:"client_id"`
	ClientState    []byte `json:"client_state"`
	ConsensusState []byte `json:"consensus_state"`
}

// UpdateClientMsg carries an rlp encoded host.SignedHeader
type UpdateClientMsg struct {
	ClientID     string `json:"client_id"`
	SignedHeader []byte `json:"signed_header"`
}

// QueryMsg is the union of the queries
type QueryMsg struct {
	ClientState      *ClientQuery         `json:"client_state,omitempty"`
	ConsensusState   *HeightQuery         `json:"consensus_state,omitempty"`
	LatestHeight     *ClientQuery         `json:"latest_height,omitempty"`
	ProcessedTime    *HeightQuery         `json:"processed_time,omitempty"`
	ProcessedHeight  *HeightQuery         `json:"processed_height,omitempty"`
	VerifyMembership *VerifyMembershipMsg `json:"verify_membership,omitempty"`
}

type ClientQuery struct {
	ClientID string `json:"client_id"`
}

type HeightQuery struct {
	ClientID string `json:"client_id"`
	Height   uint64 `json:"height"`
}

// VerifyMembershipMsg asks whether value is committed at height. Key names
// the committed path. Root, when set, must equal the stored message root.
type VerifyMembershipMsg struct {
	ClientID string        `json:"client_id"`
	Height   uint64        `json:"height"`
	Proof    []merkle.Node `json:"proof"`
	Root     []byte        `json:"root,omitempty"`
	Key      []byte        `json:"key"`
	Value    []byte        `json:"value"`
}

// ClientStateResponse answers the client_state query
type ClientStateResponse struct {
	ClientState []byte `json:"client_state"`
	ClientType  string `json:"client_type"`
	Frozen      bool   `json:"frozen"`
}

// ConsensusStateResponse answers the consensus_state query
type ConsensusStateResponse struct {
	ConsensusState []byte `json:"consensus_state"`
	MessageRoot    []byte `json:"message_root"`
	Timestamp      uint64 `json:"timestamp"`
}

// VerifyMembershipResponse answers the verify_membership query. Failures are
// returned as query errors.
type VerifyMembershipResponse struct {
	Verified bool `json:"verified"`
}
