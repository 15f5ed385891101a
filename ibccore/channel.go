package ibccore

import (
	"fmt"
	"strconv"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

// Channel event types
const (
	EventChannelOpenInit     = "channel_open_init"
	EventChannelOpenTry      = "channel_open_try"
	EventChannelOpenAck      = "channel_open_ack"
	EventChannelOpenConfirm  = "channel_open_confirm"
	EventChannelCloseInit    = "channel_close_init"
	EventChannelCloseConfirm = "channel_close_confirm"

	AttributePortID                = "port_id"
	AttributeChannelID             = "channel_id"
	AttributeCounterpartyPortID    = "counterparty_port_id"
	AttributeCounterpartyChannelID = "counterparty_channel_id"
	AttributeConnectionID          = "connection_id"
	AttributeVersion               = "version"
	AttributeOrder                 = "order"
)

const channelPrefix = "channel-"

func channelEvent(typ, port, channel string, end ChannelEnd) wasmvmtypes.Event {
	return host.NewEvent(typ,
		AttributePortID, port,
		AttributeChannelID, channel,
		AttributeCounterpartyPortID, end.CounterpartyPort,
		AttributeCounterpartyChannelID, end.CounterpartyChannel,
		AttributeConnectionID, end.ConnectionID,
		AttributeVersion, end.Version,
		AttributeOrder, end.Order,
	)
}

// saveChannel stores end and returns the response committing it
func saveChannel(deps host.Deps, port, channel string, end ChannelEnd, event string, cb CallbackMsg) (*wasmvmtypes.Response, error) {
	if err := channels.Save(deps.Storage, channelKey(port, channel), end); err != nil {
		return nil, err
	}
	leaf, err := ChannelLeaf(port, channel, end)
	if err != nil {
		return nil, err
	}
	sub, err := callback(port, cb)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Events = append(resp.Events, channelEvent(event, port, channel, end), commitmentEvent(leaf))
	resp.Messages = append(resp.Messages, sub)
	return resp, nil
}

func newChannelID(s host.Store) (string, error) {
	n, err := nextChannelSeq.Next(s)
	if err != nil {
		return "", err
	}
	return channelPrefix + strconv.FormatUint(n-1, 10), nil
}

func checkPort(deps host.Deps, port string) error {
	if !deps.Querier.IsContract(port) {
		return fmt.Errorf("port %s: %w", port, host.ErrContractNotFound)
	}
	return nil
}

func channelOpenInit(deps host.Deps, m *ChannelOpenInitMsg) (*wasmvmtypes.Response, error) {
	if err := checkPort(deps, m.PortID); err != nil {
		return nil, err
	}
	if _, err := loadConnection(deps.Storage, m.ConnectionID); err != nil {
		return nil, err
	}
	channel, err := newChannelID(deps.Storage)
	if err != nil {
		return nil, err
	}
	end := ChannelEnd{
		State:            StateInit,
		Order:            m.Order,
		Version:          m.Version,
		ConnectionID:     m.ConnectionID,
		CounterpartyPort: m.CounterpartyPortID,
	}
	cb := CallbackMsg{IbcChannelOpen: &ChannelOpenCallback{Channel: channelOf(m.PortID, channel, end)}}
	return saveChannel(deps, m.PortID, channel, end, EventChannelOpenInit, cb)
}

func channelOpenTry(deps host.Deps, m *ChannelOpenTryMsg) (*wasmvmtypes.Response, error) {
	if err := checkPort(deps, m.PortID); err != nil {
		return nil, err
	}
	conn, err := loadConnection(deps.Storage, m.ConnectionID)
	if err != nil {
		return nil, err
	}
	expected := ChannelEnd{
		State:            StateInit,
		Order:            m.Order,
		Version:          m.CounterpartyVersion,
		ConnectionID:     conn.CounterpartyConnectionID,
		CounterpartyPort: m.PortID,
	}
	if err := verifyChannel(deps, m.ConnectionID, m.Proof, m.CounterpartyPortID, m.CounterpartyChannelID, expected); err != nil {
		return nil, err
	}
	channel, err := newChannelID(deps.Storage)
	if err != nil {
		return nil, err
	}
	end := ChannelEnd{
		State:               StateTryOpen,
		Order:               m.Order,
		Version:             m.CounterpartyVersion,
		ConnectionID:        m.ConnectionID,
		CounterpartyPort:    m.CounterpartyPortID,
		CounterpartyChannel: m.CounterpartyChannelID,
	}
	cb := CallbackMsg{IbcChannelOpen: &ChannelOpenCallback{Channel: channelOf(m.PortID, channel, end), CounterpartyVersion: m.CounterpartyVersion}}
	return saveChannel(deps, m.PortID, channel, end, EventChannelOpenTry, cb)
}

func channelOpenAck(deps host.Deps, m *ChannelOpenAckMsg) (*wasmvmtypes.Response, error) {
	end, err := loadChannel(deps.Storage, m.PortID, m.ChannelID)
	if err != nil {
		return nil, err
	}
	if end.State != StateInit {
		return nil, fmt.Errorf("%w: %s/%s is %s, expected INIT", ErrInvalidChannelState, m.PortID, m.ChannelID, end.State)
	}
	conn, err := loadConnection(deps.Storage, end.ConnectionID)
	if err != nil {
		return nil, err
	}
	expected := ChannelEnd{
		State:               StateTryOpen,
		Order:               end.Order,
		Version:             m.CounterpartyVersion,
		ConnectionID:        conn.CounterpartyConnectionID,
		CounterpartyPort:    m.PortID,
		CounterpartyChannel: m.ChannelID,
	}
	if err := verifyChannel(deps, end.ConnectionID, m.Proof, end.CounterpartyPort, m.CounterpartyChannelID, expected); err != nil {
		return nil, err
	}
	end.State = StateOpen
	end.Version = m.CounterpartyVersion
	end.CounterpartyChannel = m.CounterpartyChannelID
	cb := CallbackMsg{IbcChannelConnect: &ChannelConnectCallback{Channel: channelOf(m.PortID, m.ChannelID, end), CounterpartyVersion: m.CounterpartyVersion}}
	return saveChannel(deps, m.PortID, m.ChannelID, end, EventChannelOpenAck, cb)
}

func channelOpenConfirm(deps host.Deps, m *ChannelOpenConfirmMsg) (*wasmvmtypes.Response, error) {
	end, err := loadChannel(deps.Storage, m.PortID, m.ChannelID)
	if err != nil {
		return nil, err
	}
	if end.State != StateTryOpen {
		return nil, fmt.Errorf("%w: %s/%s is %s, expected TRYOPEN", ErrInvalidChannelState, m.PortID, m.ChannelID, end.State)
	}
	conn, err := loadConnection(deps.Storage, end.ConnectionID)
	if err != nil {
		return nil, err
	}
	expected := ChannelEnd{
		State:               StateOpen,
		Order:               end.Order,
		Version:             end.Version,
		ConnectionID:        conn.CounterpartyConnectionID,
		CounterpartyPort:    m.PortID,
		CounterpartyChannel: m.ChannelID,
	}
	if err := verifyChannel(deps, end.ConnectionID, m.Proof, end.CounterpartyPort, end.CounterpartyChannel, expected); err != nil {
		return nil, err
	}
	end.State = StateOpen
	cb := CallbackMsg{IbcChannelConnect: &ChannelConnectCallback{Channel: channelOf(m.PortID, m.ChannelID, end)}}
	return saveChannel(deps, m.PortID, m.ChannelID, end, EventChannelOpenConfirm, cb)
}

// channelCloseInit may be sent by the contract bound to the port or the admin
func channelCloseInit(deps host.Deps, info wasmvmtypes.MessageInfo, m *ChannelCloseInitMsg) (*wasmvmtypes.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender != m.PortID && info.Sender != cfg.Admin {
		return nil, fmt.Errorf("%w: %s may not close %s/%s", ErrUnauthorized, info.Sender, m.PortID, m.ChannelID)
	}
	end, err := loadChannel(deps.Storage, m.PortID, m.ChannelID)
	if err != nil {
		return nil, err
	}
	if end.State == StateClosed {
		return nil, fmt.Errorf("%w: %s/%s", ErrChannelClosed, m.PortID, m.ChannelID)
	}
	end.State = StateClosed
	cb := CallbackMsg{IbcChannelClose: &ChannelCloseCallback{Channel: channelOf(m.PortID, m.ChannelID, end)}}
	return saveChannel(deps, m.PortID, m.ChannelID, end, EventChannelCloseInit, cb)
}

func channelCloseConfirm(deps host.Deps, m *ChannelCloseConfirmMsg) (*wasmvmtypes.Response, error) {
	end, err := loadChannel(deps.Storage, m.PortID, m.ChannelID)
	if err != nil {
		return nil, err
	}
	if end.State == StateClosed {
		return nil, fmt.Errorf("%w: %s/%s", ErrChannelClosed, m.PortID, m.ChannelID)
	}
	conn, err := loadConnection(deps.Storage, end.ConnectionID)
	if err != nil {
		return nil, err
	}
	expected := ChannelEnd{
		State:               StateClosed,
		Order:               end.Order,
		Version:             end.Version,
		ConnectionID:        conn.CounterpartyConnectionID,
		CounterpartyPort:    m.PortID,
		CounterpartyChannel: m.ChannelID,
	}
	if err := verifyChannel(deps, end.ConnectionID, m.Proof, end.CounterpartyPort, end.CounterpartyChannel, expected); err != nil {
		return nil, err
	}
	end.State = StateClosed
	cb := CallbackMsg{IbcChannelClose: &ChannelCloseCallback{Channel: channelOf(m.PortID, m.ChannelID, end)}}
	return saveChannel(deps, m.PortID, m.ChannelID, end, EventChannelCloseConfirm, cb)
}

func verifyChannel(deps host.Deps, connectionID string, proof Proof, port, channel string, expected ChannelEnd) error {
	leaf, err := ChannelLeaf(port, channel, expected)
	if err != nil {
		return err
	}
	if err := verify(deps, connectionID, proof, ChannelPath(port, channel), leaf); err != nil {
		return fmt.Errorf("counterparty channel %s/%s not %s: %w", port, channel, expected.State, err)
	}
	return nil
}
