package connection

import (
	"github.com/0xPolygonHermez/zkevm-xcall/ibccore"
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
)

// InstantiateMsg binds the connection to its ibc host and xcall host. The
// sender becomes owner and admin, the port is the contract address.
type InstantiateMsg struct {
	IbcHost   string `json:"ibc_host"`
	XCallHost string `json:"xcall_host"`
	Denom     string `json:"denom"`
}

// ExecuteMsg is the union of the connection messages, including the
// callbacks of the ibc host
type ExecuteMsg struct {
	xcalltypes.ConnectionMsg
	ibccore.CallbackMsg
	SetAdmin            *AddressMsg             `json:"set_admin,omitempty"`
	SetXCallHost        *AddressMsg             `json:"set_xcall_host,omitempty"`
	SetIbcHost          *AddressMsg             `json:"set_ibc_host,omitempty"`
	ConfigureConnection *ConfigureConnectionMsg `json:"configure_connection,omitempty"`
	SetFees             *SetFeesMsg             `json:"set_fees,omitempty"`
	ClaimFees           *ClaimFeesMsg           `json:"claim_fees,omitempty"`
}

type AddressMsg struct {
	Address string `json:"address"`
}

// ConfigureConnectionMsg binds counterparty network CounterpartyNID to the
// ibc connection ConnectionID. Packets time out TimeoutHeight blocks of the
// counterparty after they are sent.
type ConfigureConnectionMsg struct {
	ConnectionID    string `json:"connection_id"`
	DstPort         string `json:"dst_port"`
	CounterpartyNID string `json:"counterparty_nid"`
	ClientID        string `json:"client_id"`
	TimeoutHeight   uint64 `json:"timeout_height"`
}

// SetFeesMsg sets the fees of packets toward NID, decimal amounts
type SetFeesMsg struct {
	NID           string `json:"nid"`
	SendPacketFee string `json:"send_packet_fee"`
	AckFee        string `json:"ack_fee"`
}

// ClaimFeesMsg claims the packet fees earned relaying from NID, to be paid
// to To on that network. Acknowledgement fees earned here are paid to the
// sender.
type ClaimFeesMsg struct {
	NID string `json:"nid"`
	To  string `json:"to"`
}

// QueryMsg is the union of the connection queries
type QueryMsg struct {
	xcalltypes.ConnectionQuery
	GetUnclaimedFees *UnclaimedFeesQuery `json:"get_unclaimed_fees,omitempty"`
	GetNetworkFees   *NIDQuery           `json:"get_network_fees,omitempty"`
	GetChannelConfig *ChannelQuery       `json:"get_channel_config,omitempty"`
	GetClaimedFees   *NIDQuery           `json:"get_claimed_fees,omitempty"`
	GetAdmin         *xcalltypes.Empty   `json:"get_admin,omitempty"`
}

type UnclaimedFeesQuery struct {
	NID     string `json:"nid"`
	Relayer string `json:"relayer"`
}

type NIDQuery struct {
	NID string `json:"nid"`
}

type ChannelQuery struct {
	ChannelID string `json:"channel_id"`
}

// UnclaimedFeesResponse holds decimal amounts
type UnclaimedFeesResponse struct {
	PacketFees string `json:"packet_fees"`
	AckFees    string `json:"ack_fees"`
}

// NetworkFeesResponse holds decimal amounts
type NetworkFeesResponse struct {
	SendPacketFee string `json:"send_packet_fee"`
	AckFee        string `json:"ack_fee"`
}

// ChannelConfigResponse describes a channel of the connection
type ChannelConfigResponse struct {
	ChannelID           string `json:"channel_id"`
	ConnectionID        string `json:"connection_id"`
	CounterpartyPort    string `json:"counterparty_port_id"`
	CounterpartyChannel string `json:"counterparty_channel_id"`
	CounterpartyNID     string `json:"counterparty_nid"`
	ClientID            string `json:"client_id"`
	TimeoutHeight       uint64 `json:"timeout_height"`
	Closed              bool   `json:"closed"`
}
