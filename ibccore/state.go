package ibccore

import (
	"github.com/0xPolygonHermez/zkevm-xcall/host"
)

type config struct {
	Admin string
}

var (
	configItem       = host.NewItem[config]("config")
	clientRegistry   = host.NewMap[string]("client_registry")
	connections      = host.NewMap[ConnectionEnd]("connections")
	channels         = host.NewMap[ChannelEnd]("channels")
	nextChannelSeq   = host.NewSequence("next_channel_sequence")
	nextSequenceSend = host.NewMap[uint64]("next_sequence_send")
	commitments      = host.NewMap[[]byte]("commitments")
	packetReceipts   = host.NewMap[Packet]("packet_receipts")
	timeoutReceipts  = host.NewMap[Packet]("timeout_receipts")
	acknowledgements = host.NewMap[[]byte]("acknowledgements")
)

func channelKey(port, channel string) string {
	return host.JoinKey(port, channel)
}

func packetKey(port, channel string, sequence uint64) string {
	return host.JoinKey(port, channel, host.Uint64Key(sequence))
}
