// Package ibccore implements the host chain IBC module as a contract: the
// client registry, the channel handshake and packet commitments, receipts and
// acknowledgements. Every committed path is also emitted as a leaf of the
// block message tree so the counterparty light client can verify it.
package ibccore

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/lightclient"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

// Contract is the ibc host host.Contract
type Contract struct{}

// New returns the ibc host contract
func New() *Contract {
	return &Contract{}
}

func (c *Contract) Instantiate(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	if err := configItem.Save(deps.Storage, config{Admin: info.Sender}); err != nil {
		return nil, err
	}
	return host.NewResponse(), nil
}

func (c *Contract) Execute(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m ExecuteMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	switch {
	case m.CreateClient != nil:
		return createClient(deps, m.CreateClient)
	case m.UpdateClient != nil:
		return updateClient(deps, m.UpdateClient)
	case m.RegisterConnection != nil:
		return registerConnection(deps, info, m.RegisterConnection)
	case m.ChannelOpenInit != nil:
		return channelOpenInit(deps, m.ChannelOpenInit)
	case m.ChannelOpenTry != nil:
		return channelOpenTry(deps, m.ChannelOpenTry)
	case m.ChannelOpenAck != nil:
		return channelOpenAck(deps, m.ChannelOpenAck)
	case m.ChannelOpenConfirm != nil:
		return channelOpenConfirm(deps, m.ChannelOpenConfirm)
	case m.ChannelCloseInit != nil:
		return channelCloseInit(deps, info, m.ChannelCloseInit)
	case m.ChannelCloseConfirm != nil:
		return channelCloseConfirm(deps, m.ChannelCloseConfirm)
	case m.SendPacket != nil:
		return sendPacket(deps, info, m.SendPacket)
	case m.RecvPacket != nil:
		return recvPacket(deps, env, info, m.RecvPacket)
	case m.WriteAcknowledgement != nil:
		return writeAcknowledgement(deps, info, m.WriteAcknowledgement)
	case m.AcknowledgePacket != nil:
		return acknowledgePacket(deps, info, m.AcknowledgePacket)
	case m.RecordTimeout != nil:
		return recordTimeout(deps, env, info, m.RecordTimeout)
	case m.TimeoutPacket != nil:
		return timeoutPacket(deps, info, m.TimeoutPacket)
	}
	return nil, host.ErrUnknownMessage
}

func (c *Contract) Query(deps host.Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var m QueryMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	switch {
	case m.Client != nil:
		lc, err := lightClientOf(deps.Storage, m.Client.ClientID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(ClientResponse{LightClient: lc})
	case m.LatestHeight != nil:
		lc, err := lightClientOf(deps.Storage, m.LatestHeight.ClientID)
		if err != nil {
			return nil, err
		}
		var height uint64
		q := lightclient.QueryMsg{LatestHeight: &lightclient.ClientQuery{ClientID: m.LatestHeight.ClientID}}
		if err := host.QueryJSON(deps.Querier, lc, q, &height); err != nil {
			return nil, err
		}
		return json.Marshal(height)
	case m.Connection != nil:
		conn, err := loadConnection(deps.Storage, m.Connection.ConnectionID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(conn)
	case m.Channel != nil:
		end, err := loadChannel(deps.Storage, m.Channel.PortID, m.Channel.ChannelID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(end)
	case m.NextSequenceSend != nil:
		next, err := nextSequence(deps.Storage, m.NextSequenceSend.PortID, m.NextSequenceSend.ChannelID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(next)
	case m.PacketCommitment != nil:
		q := m.PacketCommitment
		commitment, _, err := commitments.May(deps.Storage, packetKey(q.PortID, q.ChannelID, q.Sequence))
		if err != nil {
			return nil, err
		}
		return json.Marshal(commitment)
	case m.PacketReceipt != nil:
		q := m.PacketReceipt
		return json.Marshal(packetReceipts.Has(deps.Storage, packetKey(q.PortID, q.ChannelID, q.Sequence)))
	case m.TimeoutReceipt != nil:
		q := m.TimeoutReceipt
		return json.Marshal(timeoutReceipts.Has(deps.Storage, packetKey(q.PortID, q.ChannelID, q.Sequence)))
	case m.PacketAck != nil:
		q := m.PacketAck
		ack, _, err := acknowledgements.May(deps.Storage, packetKey(q.PortID, q.ChannelID, q.Sequence))
		if err != nil {
			return nil, err
		}
		return json.Marshal(ack)
	}
	return nil, host.ErrUnknownMessage
}

func (c *Contract) Reply(deps host.Deps, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	return nil, host.ErrUnknownMessage
}

func createClient(deps host.Deps, m *CreateClientMsg) (*wasmvmtypes.Response, error) {
	if clientRegistry.Has(deps.Storage, m.ClientID) {
		return nil, fmt.Errorf("%w: %s", ErrClientExists, m.ClientID)
	}
	if !deps.Querier.IsContract(m.LightClient) {
		return nil, fmt.Errorf("light client %s: %w", m.LightClient, host.ErrContractNotFound)
	}
	if err := clientRegistry.Save(deps.Storage, m.ClientID, m.LightClient); err != nil {
		return nil, err
	}
	forward, err := host.ExecuteContract(m.LightClient, lightclient.ExecuteMsg{CreateClient: &lightclient.CreateClientMsg{
		ClientID:       m.ClientID,
		ClientState:    m.ClientState,
		ConsensusState: m.ConsensusState,
	}}, nil)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Messages = append(resp.Messages, host.SubMsgNever(forward))
	return resp, nil
}

func updateClient(deps host.Deps, m *UpdateClientMsg) (*wasmvmtypes.Response, error) {
	lc, err := lightClientOf(deps.Storage, m.ClientID)
	if err != nil {
		return nil, err
	}
	forward, err := host.ExecuteContract(lc, lightclient.ExecuteMsg{UpdateClient: &lightclient.UpdateClientMsg{
		ClientID:     m.ClientID,
		SignedHeader: m.SignedHeader,
	}}, nil)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Messages = append(resp.Messages, host.SubMsgNever(forward))
	return resp, nil
}

func registerConnection(deps host.Deps, info wasmvmtypes.MessageInfo, m *RegisterConnectionMsg) (*wasmvmtypes.Response, error) {
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender != cfg.Admin {
		return nil, fmt.Errorf("%w: %s is not the admin", ErrUnauthorized, info.Sender)
	}
	if _, err := lightClientOf(deps.Storage, m.Connection.ClientID); err != nil {
		return nil, err
	}
	if err := connections.Save(deps.Storage, m.ConnectionID, m.Connection); err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Events = append(resp.Events, host.NewEvent("register_connection",
		"connection_id", m.ConnectionID,
		"client_id", m.Connection.ClientID,
		"counterparty_connection_id", m.Connection.CounterpartyConnectionID,
	))
	return resp, nil
}

func lightClientOf(s host.Store, clientID string) (string, error) {
	lc, err := clientRegistry.Load(s, clientID)
	if errors.Is(err, host.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	return lc, err
}

func loadConnection(s host.Store, connectionID string) (ConnectionEnd, error) {
	conn, err := connections.Load(s, connectionID)
	if errors.Is(err, host.ErrNotFound) {
		return conn, fmt.Errorf("%w: %s", ErrConnectionNotFound, connectionID)
	}
	return conn, err
}

func loadChannel(s host.Store, port, channel string) (ChannelEnd, error) {
	end, err := channels.Load(s, channelKey(port, channel))
	if errors.Is(err, host.ErrNotFound) {
		return end, fmt.Errorf("%w: %s/%s", ErrChannelNotFound, port, channel)
	}
	return end, err
}

// verify checks that the counterparty committed leaf, using the light client
// of connectionID
func verify(deps host.Deps, connectionID string, proof Proof, path string, leaf []byte) error {
	conn, err := loadConnection(deps.Storage, connectionID)
	if err != nil {
		return err
	}
	lc, err := lightClientOf(deps.Storage, conn.ClientID)
	if err != nil {
		return err
	}
	q := lightclient.QueryMsg{VerifyMembership: &lightclient.VerifyMembershipMsg{
		ClientID: conn.ClientID,
		Height:   proof.Height,
		Proof:    proof.Path,
		Key:      []byte(path),
		Value:    leaf,
	}}
	var res lightclient.VerifyMembershipResponse
	if err := host.QueryJSON(deps.Querier, lc, q, &res); err != nil {
		return err
	}
	if !res.Verified {
		return lightclient.ErrInvalidMerkleProof
	}
	return nil
}

func commitmentEvent(leaf []byte) wasmvmtypes.Event {
	return host.NewEvent(host.EventTypeCommitment, host.AttributeLeaf, hex.EncodeToString(leaf))
}

func callback(port string, msg CallbackMsg) (wasmvmtypes.SubMsg, error) {
	exec, err := host.ExecuteContract(port, msg, nil)
	if err != nil {
		return wasmvmtypes.SubMsg{}, err
	}
	return host.SubMsgNever(exec), nil
}
