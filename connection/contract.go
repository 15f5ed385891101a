// Package connection implements the IBC connection of the xcall
// dispatcher. It frames CSMessages into packets on one channel per
// counterparty network, charges and escrows relay fees, and turns the
// acknowledgements and timeouts of the ibc host into dispatcher messages.
package connection

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/holiman/uint256"
)

const (
	// IBCVersion is the channel version spoken by xcall connections
	IBCVersion = "xcall-1"

	// claimReplyID tags the SendPacket of a fee claim
	claimReplyID = 1
)

// Contract is the connection host.Contract
type Contract struct{}

// New returns the connection contract
func New() *Contract {
	return &Contract{}
}

func (c *Contract) Instantiate(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m InstantiateMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	if m.IbcHost == "" || m.XCallHost == "" {
		return nil, ErrAdminAddressCannotBeNull
	}
	s := deps.Storage
	if err := configItem.Save(s, config{PortID: env.Contract.Address, Denom: m.Denom}); err != nil {
		return nil, err
	}
	for _, kv := range []struct {
		item  host.Item[string]
		value string
	}{{owner, info.Sender}, {admin, info.Sender}, {ibcHost, m.IbcHost}, {xcallHost, m.XCallHost}} {
		if err := kv.item.Save(s, kv.value); err != nil {
			return nil, err
		}
	}
	return host.NewResponse(), nil
}

func (c *Contract) Execute(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m ExecuteMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	switch {
	case m.SendMessage != nil:
		return sendMessage(deps, env, info, m.SendMessage)
	case m.ClaimFees != nil:
		return claimFees(deps, env, info, m.ClaimFees)
	case m.IbcChannelOpen != nil:
		return channelOpen(deps, info, m.IbcChannelOpen)
	case m.IbcChannelConnect != nil:
		return channelConnect(deps, info, m.IbcChannelConnect)
	case m.IbcChannelClose != nil:
		return channelClose(deps, info, m.IbcChannelClose)
	case m.IbcPacketReceive != nil:
		return packetReceive(deps, info, m.IbcPacketReceive)
	case m.IbcPacketAck != nil:
		return packetAck(deps, info, m.IbcPacketAck)
	case m.IbcPacketTimeout != nil:
		return packetTimeout(deps, info, m.IbcPacketTimeout)
	case m.SetAdmin != nil:
		return setAddress(deps, info, admin, m.SetAdmin)
	case m.SetXCallHost != nil:
		return setAddress(deps, info, xcallHost, m.SetXCallHost)
	case m.SetIbcHost != nil:
		return setAddress(deps, info, ibcHost, m.SetIbcHost)
	case m.ConfigureConnection != nil:
		return configureConnection(deps, info, m.ConfigureConnection)
	case m.SetFees != nil:
		return setFees(deps, info, m.SetFees)
	}
	return nil, host.ErrUnknownMessage
}

func (c *Contract) Reply(deps host.Deps, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	if reply.ID != claimReplyID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidReplyID, reply.ID)
	}
	return claimSent(deps, reply.Result)
}

func (c *Contract) Query(deps host.Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var m QueryMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	s := deps.Storage
	switch {
	case m.GetFee != nil:
		fee, err := requiredFee(s, m.GetFee.NID, m.GetFee.Response)
		if err != nil {
			return nil, err
		}
		return json.Marshal(host.FormatAmount(fee))
	case m.GetUnclaimedFees != nil:
		key := relayerKey(m.GetUnclaimedFees.NID, m.GetUnclaimedFees.Relayer)
		packetFees, err := unclaimedFees.Get(s, key)
		if err != nil {
			return nil, err
		}
		ackFees, err := unclaimedAckFees.Get(s, key)
		if err != nil {
			return nil, err
		}
		return json.Marshal(UnclaimedFeesResponse{PacketFees: host.FormatAmount(packetFees), AckFees: host.FormatAmount(ackFees)})
	case m.GetNetworkFees != nil:
		fees, err := loadFees(s, m.GetNetworkFees.NID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(NetworkFeesResponse{SendPacketFee: fees.SendPacketFee.String(), AckFee: fees.AckFee.String()})
	case m.GetChannelConfig != nil:
		cc, err := loadChannel(s, m.GetChannelConfig.ChannelID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(ChannelConfigResponse(cc))
	case m.GetClaimedFees != nil:
		claimed, err := claimedFees.Get(s, m.GetClaimedFees.NID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(host.FormatAmount(claimed))
	case m.GetAdmin != nil:
		a, err := admin.Load(s)
		if err != nil {
			return nil, err
		}
		return json.Marshal(a)
	}
	return nil, host.ErrUnknownMessage
}

func onlyAdmin(s host.Store, sender string) error {
	a, err := admin.Load(s)
	if err != nil {
		return err
	}
	if sender != a {
		return fmt.Errorf("%w: %s", ErrOnlyAdmin, sender)
	}
	return nil
}

func onlyIbcHost(s host.Store, sender string) error {
	h, err := ibcHost.Load(s)
	if err != nil {
		return err
	}
	if sender != h {
		return fmt.Errorf("%w: %s is not the ibc host", ErrUnauthorized, sender)
	}
	return nil
}

func setAddress(deps host.Deps, info wasmvmtypes.MessageInfo, it host.Item[string], m *AddressMsg) (*wasmvmtypes.Response, error) {
	if err := onlyAdmin(deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	if m.Address == "" {
		return nil, ErrAdminAddressCannotBeNull
	}
	return host.NewResponse(), it.Save(deps.Storage, m.Address)
}

func configureConnection(deps host.Deps, info wasmvmtypes.MessageInfo, m *ConfigureConnectionMsg) (*wasmvmtypes.Response, error) {
	if err := onlyAdmin(deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	if m.ConnectionID == "" || m.CounterpartyNID == "" || m.ClientID == "" {
		return nil, fmt.Errorf("%w: connection %q nid %q client %q", ErrConnectionNotConfigured, m.ConnectionID, m.CounterpartyNID, m.ClientID)
	}
	cc := ConnectionConfig{
		DstPort:         m.DstPort,
		CounterpartyNID: m.CounterpartyNID,
		ClientID:        m.ClientID,
		TimeoutHeight:   m.TimeoutHeight,
	}
	return host.NewResponse(), connections.Save(deps.Storage, m.ConnectionID, cc)
}

func setFees(deps host.Deps, info wasmvmtypes.MessageInfo, m *SetFeesMsg) (*wasmvmtypes.Response, error) {
	if err := onlyAdmin(deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	send, err := host.ParseAmount(m.SendPacketFee)
	if err != nil {
		return nil, err
	}
	ack, err := host.ParseAmount(m.AckFee)
	if err != nil {
		return nil, err
	}
	fees := NetworkFees{SendPacketFee: send.ToBig(), AckFee: ack.ToBig()}
	return host.NewResponse(), networkFees.Save(deps.Storage, m.NID, fees)
}

func loadFees(s host.Store, nid string) (NetworkFees, error) {
	fees, ok, err := networkFees.May(s, nid)
	if err != nil {
		return fees, err
	}
	if !ok {
		return NetworkFees{SendPacketFee: new(big.Int), AckFee: new(big.Int)}, nil
	}
	return fees, nil
}

// requiredFee is the send packet fee toward nid, plus the ack fee when a
// response is expected
func requiredFee(s host.Store, nid string, response bool) (*uint256.Int, error) {
	fees, err := loadFees(s, nid)
	if err != nil {
		return nil, err
	}
	total, err := host.ToAmount(fees.SendPacketFee)
	if err != nil {
		return nil, err
	}
	if response {
		ack, err := host.ToAmount(fees.AckFee)
		if err != nil {
			return nil, err
		}
		total.Add(total, ack)
	}
	return total, nil
}

func loadChannel(s host.Store, channel string) (ChannelConfig, error) {
	cc, ok, err := channels.May(s, channel)
	if err != nil {
		return cc, err
	}
	if !ok {
		return cc, fmt.Errorf("%w: %s", ErrChannelNotFound, channel)
	}
	return cc, nil
}

// channelTo returns the open channel toward nid
func channelTo(s host.Store, nid string) (ChannelConfig, error) {
	channel, ok, err := nidChannels.May(s, nid)
	if err != nil {
		return ChannelConfig{}, err
	}
	if !ok {
		return ChannelConfig{}, fmt.Errorf("%w: no channel toward %s", ErrChannelNotFound, nid)
	}
	cc, err := loadChannel(s, channel)
	if err != nil {
		return cc, err
	}
	if cc.Closed {
		return cc, fmt.Errorf("%w: %s toward %s", ErrChannelClosed, channel, nid)
	}
	return cc, nil
}
