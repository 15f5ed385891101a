package connection

import (
	"math/big"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/ibccore"
)

type config struct {
	PortID string
	Denom  string
}

// ConnectionConfig is what the admin configured for an ibc connection
type ConnectionConfig struct {
	DstPort         string
	CounterpartyNID string
	ClientID        string
	TimeoutHeight   uint64
}

// ChannelConfig is an opened channel toward a counterparty network
type ChannelConfig struct {
	ChannelID           string
	ConnectionID        string
	CounterpartyPort    string
	CounterpartyChannel string
	CounterpartyNID     string
	ClientID            string
	TimeoutHeight       uint64
	Closed              bool
}

// NetworkFees are charged on packets toward a network
type NetworkFees struct {
	SendPacketFee *big.Int
	AckFee        *big.Int
}

// pendingClaim is a fee claim in flight toward the counterparty
type pendingClaim struct {
	NID      string
	Claimant string
	Amount   *big.Int
}

var (
	owner       = host.NewItem[string]("owner")
	admin       = host.NewItem[string]("admin")
	ibcHost     = host.NewItem[string]("ibc_host")
	xcallHost   = host.NewItem[string]("xcall_host")
	configItem  = host.NewItem[config]("config")
	networkFees = host.NewMap[NetworkFees]("network_fees")
	connections = host.NewMap[ConnectionConfig]("connections")
	channels    = host.NewMap[ChannelConfig]("channels")
	// nidChannels maps a counterparty network to the channel toward it
	nidChannels     = host.NewMap[string]("nid_channels")
	incomingPackets = host.NewMap[ibccore.Packet]("incoming_packets")
	// unclaimedFees are packet fees owed by the counterparty, keyed by nid and relayer
	unclaimedFees = host.NewAmountMap("unclaimed_fees")
	// unclaimedAckFees are acknowledgement fees held here, keyed by nid and relayer
	unclaimedAckFees = host.NewAmountMap("unclaimed_ack_fees")
	ackEscrow        = host.NewAmountMap("ack_escrow")
	claimedFees      = host.NewAmountMap("claimed_fees")
	sendingClaim     = host.NewItem[pendingClaim]("sending_claim")
	pendingClaims    = host.NewMap[pendingClaim]("pending_claims")
)

func relayerKey(nid, relayer string) string {
	return host.JoinKey(nid, relayer)
}

func snKey(nid string, sn uint64) string {
	return host.JoinKey(nid, host.Uint64Key(sn))
}

func sequenceKey(channel string, sequence uint64) string {
	return host.JoinKey(channel, host.Uint64Key(sequence))
}
