package connection

import (
	"errors"
	"fmt"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/ibccore"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

func checkChannel(s host.Store, ch ibccore.Channel) (ConnectionConfig, error) {
	if ch.Order != ibccore.OrderUnordered {
		return ConnectionConfig{}, fmt.Errorf("%w: %s/%s is %s", ErrUnOrderedChannel, ch.Endpoint.PortID, ch.Endpoint.ChannelID, ch.Order)
	}
	if ch.Version != IBCVersion {
		return ConnectionConfig{}, &InvalidVersionError{Actual: ch.Version, Expected: IBCVersion}
	}
	cc, err := connections.Load(s, ch.ConnectionID)
	if errors.Is(err, host.ErrNotFound) {
		return cc, fmt.Errorf("%w: %s", ErrConnectionNotConfigured, ch.ConnectionID)
	}
	if err != nil {
		return cc, err
	}
	if cc.DstPort != "" && cc.DstPort != ch.CounterpartyEndpoint.PortID {
		return cc, fmt.Errorf("%w: counterparty port %s, configured %s", ErrConnectionNotConfigured, ch.CounterpartyEndpoint.PortID, cc.DstPort)
	}
	return cc, onlyChannel(s, cc.CounterpartyNID, ch.Endpoint.ChannelID)
}

// onlyChannel fails while a channel other than channel is open toward nid
func onlyChannel(s host.Store, nid, channel string) error {
	current, ok, err := nidChannels.May(s, nid)
	if err != nil || !ok || current == channel {
		return err
	}
	open, err := loadChannel(s, current)
	if errors.Is(err, ErrChannelNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !open.Closed {
		return fmt.Errorf("%w: %s is open toward %s", ErrChannelExists, current, nid)
	}
	return nil
}

func channelOpen(deps host.Deps, info wasmvmtypes.MessageInfo, m *ibccore.ChannelOpenCallback) (*wasmvmtypes.Response, error) {
	if err := onlyIbcHost(deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	if m.CounterpartyVersion != "" && m.CounterpartyVersion != IBCVersion {
		return nil, &InvalidVersionError{Actual: m.CounterpartyVersion, Expected: IBCVersion}
	}
	if _, err := checkChannel(deps.Storage, m.Channel); err != nil {
		return nil, err
	}
	return host.NewResponse(), nil
}

func channelConnect(deps host.Deps, info wasmvmtypes.MessageInfo, m *ibccore.ChannelConnectCallback) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	if err := onlyIbcHost(s, info.Sender); err != nil {
		return nil, err
	}
	conn, err := checkChannel(s, m.Channel)
	if err != nil {
		return nil, err
	}
	ch := m.Channel
	cc := ChannelConfig{
		ChannelID:           ch.Endpoint.ChannelID,
		ConnectionID:        ch.ConnectionID,
		CounterpartyPort:    ch.CounterpartyEndpoint.PortID,
		CounterpartyChannel: ch.CounterpartyEndpoint.ChannelID,
		CounterpartyNID:     conn.CounterpartyNID,
		ClientID:            conn.ClientID,
		TimeoutHeight:       conn.TimeoutHeight,
	}
	if err := channels.Save(s, cc.ChannelID, cc); err != nil {
		return nil, err
	}
	if err := nidChannels.Save(s, cc.CounterpartyNID, cc.ChannelID); err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Events = append(resp.Events, host.NewEvent("connection_channel_connect",
		"channel_id", cc.ChannelID,
		"counterparty_nid", cc.CounterpartyNID,
	))
	return resp, nil
}

func channelClose(deps host.Deps, info wasmvmtypes.MessageInfo, m *ibccore.ChannelCloseCallback) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	if err := onlyIbcHost(s, info.Sender); err != nil {
		return nil, err
	}
	cc, err := loadChannel(s, m.Channel.Endpoint.ChannelID)
	if errors.Is(err, ErrChannelNotFound) {
		// closed before it opened
		return host.NewResponse(), nil
	}
	if err != nil {
		return nil, err
	}
	cc.Closed = true
	return host.NewResponse(), channels.Save(s, cc.ChannelID, cc)
}
