package ibccore

import (
	"github.com/0xPolygonHermez/zkevm-xcall/merkle"
)

// InstantiateMsg is empty, the sender becomes admin
type InstantiateMsg struct{}

// ExecuteMsg is the union of the ibc host messages
type ExecuteMsg struct {
	CreateClient         *CreateClientMsg         `json:"create_client,omitempty"`
	UpdateClient         *UpdateClientMsg         `json:"update_client,omitempty"`
	RegisterConnection   *RegisterConnectionMsg   `json:"register_connection,omitempty"`
	ChannelOpenInit      *ChannelOpenInitMsg      `json:"channel_open_init,omitempty"`
	ChannelOpenTry       *ChannelOpenTryMsg       `json:"channel_open_try,omitempty"`
	ChannelOpenAck       *ChannelOpenAckMsg       `json:"channel_open_ack,omitempty"`
	ChannelOpenConfirm   *ChannelOpenConfirmMsg   `json:"channel_open_confirm,omitempty"`
	ChannelCloseInit     *ChannelCloseInitMsg     `json:"channel_close_init,omitempty"`
	ChannelCloseConfirm  *ChannelCloseConfirmMsg  `json:"channel_close_confirm,omitempty"`
	SendPacket           *SendPacketMsg           `json:"send_packet,omitempty"`
	RecvPacket           *RecvPacketMsg           `json:"receive_packet,omitempty"`
	WriteAcknowledgement *WriteAcknowledgementMsg `json:"write_acknowledgement,omitempty"`
	AcknowledgePacket    *AcknowledgePacketMsg    `json:"acknowledgement_packet,omitempty"`
	RecordTimeout        *RecordTimeoutMsg        `json:"record_timeout,omitempty"`
	TimeoutPacket        *TimeoutPacketMsg        `json:"timeout_packet,omitempty"`
}

// CreateClientMsg registers light client contract under client id
type CreateClientMsg struct {
	ClientID       string `json:"client_id"`
	LightClient    string `json:"light_client"`
	ClientState    []byte `json:"client_state"`
	ConsensusState []byte `json:"consensus_state"`
}

type UpdateClientMsg struct {
	ClientID     string `json:"client_id"`
	SignedHeader []byte `json:"signed_header"`
}

// RegisterConnectionMsg records an established connection. Admin only.
type RegisterConnectionMsg struct {
	ConnectionID string        `json:"connection_id"`
	Connection   ConnectionEnd `json:"connection"`
}

// Proof is a membership proof against the light client consensus state at Height
type Proof struct {
	Height uint64        `json:"proof_height"`
	Path   []merkle.Node `json:"proof"`
}

type ChannelOpenInitMsg struct {
	PortID             string `json:"port_id"`
	ConnectionID       string `json:"connection_id"`
	CounterpartyPortID string `json:"counterparty_port_id"`
	Version            string `json:"version"`
	Order              string `json:"order"`
}

type ChannelOpenTryMsg struct {
	PortID                string `json:"port_id"`
	ConnectionID          string `json:"connection_id"`
	CounterpartyPortID    string `json:"counterparty_port_id"`
	CounterpartyChannelID string `json:"counterparty_channel_id"`
	CounterpartyVersion   string `json:"counterparty_version"`
	Order                 string `json:"order"`
	Proof                 Proof  `json:"proof"`
}

type ChannelOpenAckMsg struct {
	PortID                string `json:"port_id"`
	ChannelID             string `json:"channel_id"`
	CounterpartyChannelID string `json:"counterparty_channel_id"`
	CounterpartyVersion   string `json:"counterparty_version"`
	Proof                 Proof  `json:"proof"`
}

type ChannelOpenConfirmMsg struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
	Proof     Proof  `json:"proof"`
}

type ChannelCloseInitMsg struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
}

type ChannelCloseConfirmMsg struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
	Proof     Proof  `json:"proof"`
}

// SendPacketMsg is sent by the contract bound to the source port. The
// response data is the 8 byte big endian sequence.
type SendPacketMsg struct {
	ChannelID        string `json:"channel_id"`
	Data             []byte `json:"data"`
	TimeoutHeight    uint64 `json:"timeout_height"`
	TimeoutTimestamp uint64 `json:"timeout_timestamp"`
}

type RecvPacketMsg struct {
	Packet Packet `json:"packet"`
	Proof  Proof  `json:"proof"`
}

// WriteAcknowledgementMsg is sent by the contract bound to the destination port
type WriteAcknowledgementMsg struct {
	ChannelID       string `json:"channel_id"`
	Sequence        uint64 `json:"sequence"`
	Acknowledgement []byte `json:"acknowledgement"`
}

type AcknowledgePacketMsg struct {
	Packet          Packet `json:"packet"`
	Acknowledgement []byte `json:"acknowledgement"`
	Proof           Proof  `json:"proof"`
}

// RecordTimeoutMsg is submitted on the destination of an expired packet. The
// proof is the packet commitment on the source chain.
type RecordTimeoutMsg struct {
	Packet Packet `json:"packet"`
	Proof  Proof  `json:"proof"`
}

// TimeoutPacketMsg proves the timeout receipt the destination recorded for
// an expired packet
type TimeoutPacketMsg struct {
	Packet Packet `json:"packet"`
	Proof  Proof  `json:"proof"`
}

// CallbackMsg is the union of the messages sent to the contract bound to a port
type CallbackMsg struct {
	IbcChannelOpen    *ChannelOpenCallback    `json:"ibc_channel_open,omitempty"`
	IbcChannelConnect *ChannelConnectCallback `json:"ibc_channel_connect,omitempty"`
	IbcChannelClose   *ChannelCloseCallback   `json:"ibc_channel_close,omitempty"`
	IbcPacketReceive  *PacketReceiveCallback  `json:"ibc_packet_receive,omitempty"`
	IbcPacketAck      *PacketAckCallback      `json:"ibc_packet_ack,omitempty"`
	IbcPacketTimeout  *PacketTimeoutCallback  `json:"ibc_packet_timeout,omitempty"`
}

// ChannelOpenCallback is sent on init (empty counterparty version) and try
type ChannelOpenCallback struct {
	Channel             Channel `json:"channel"`
	CounterpartyVersion string  `json:"counterparty_version,omitempty"`
}

// ChannelConnectCallback is sent on ack and confirm
type ChannelConnectCallback struct {
	Channel             Channel `json:"channel"`
	CounterpartyVersion string  `json:"counterparty_version,omitempty"`
}

// ChannelCloseCallback is sent on close init and confirm
type ChannelCloseCallback struct {
	Channel Channel `json:"channel"`
}

type PacketReceiveCallback struct {
	Packet  Packet `json:"packet"`
	Relayer string `json:"relayer"`
}

type PacketAckCallback struct {
	Acknowledgement []byte `json:"acknowledgement"`
	Packet          Packet `json:"original_packet"`
	Relayer         string `json:"relayer"`
}

type PacketTimeoutCallback struct {
	Packet  Packet `json:"packet"`
	Relayer string `json:"relayer"`
}

// QueryMsg is the union of the ibc host queries
type QueryMsg struct {
	Client           *ClientQuery     `json:"client,omitempty"`
	LatestHeight     *ClientQuery     `json:"latest_height,omitempty"`
	Connection       *ConnectionQuery `json:"connection,omitempty"`
	Channel          *ChannelQuery    `json:"channel,omitempty"`
	NextSequenceSend *ChannelQuery    `json:"next_sequence_send,omitempty"`
	PacketCommitment *PacketQuery     `json:"packet_commitment,omitempty"`
	PacketReceipt    *PacketQuery     `json:"packet_receipt,omitempty"`
	TimeoutReceipt   *PacketQuery     `json:"timeout_receipt,omitempty"`
	PacketAck        *PacketQuery     `json:"packet_acknowledgement,omitempty"`
}

type ClientQuery struct {
	ClientID string `json:"client_id"`
}

type ConnectionQuery struct {
	ConnectionID string `json:"connection_id"`
}

type ChannelQuery struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
}

type PacketQuery struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
	Sequence  uint64 `json:"sequence"`
}

// ClientResponse answers the client query
type ClientResponse struct {
	LightClient string `json:"light_client"`
}
