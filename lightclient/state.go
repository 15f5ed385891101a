package lightclient

import (
	"github.com/0xPolygonHermez/zkevm-xcall/host"
)

type config struct {
	Owner   string
	IbcHost string
}

var (
	configItem       = host.NewItem[config]("CONFIG")
	clientStates     = host.NewMap[ClientState]("CLIENT_STATES")
	consensusStates  = host.NewMap[ConsensusState]("CONSENSUS_STATES")
	processedTimes   = host.NewMap[uint64]("PROCESSED_TIMES")
	processedHeights = host.NewMap[uint64]("PROCESSED_HEIGHTS")
)

func heightKey(clientID string, height uint64) string {
	return host.JoinKey(clientID, host.Uint64Key(height))
}
