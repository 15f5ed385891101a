package connection

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/ibccore"
	xcalltypes "github.com/0xPolygonHermez/zkevm-xcall/xcall/types"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

// timeoutCushion is added to the block time for the packet timeout timestamp
const timeoutCushion = 300 * time.Second

// Connection event types
const (
	EventClaimFees = "ClaimFees"
	EventPayClaim  = "PayClaim"
)

func execute(contract string, msg interface{}) (wasmvmtypes.SubMsg, error) {
	exec, err := host.ExecuteContract(contract, msg, nil)
	if err != nil {
		return wasmvmtypes.SubMsg{}, err
	}
	return host.SubMsgNever(exec), nil
}

// packetMsg builds the SendPacket of body on cc. The timeout height counts
// from the latest counterparty height known to the light client.
func packetMsg(deps host.Deps, env wasmvmtypes.Env, cc ChannelConfig, body []byte) (wasmvmtypes.CosmosMsg, error) {
	ih, err := ibcHost.Load(deps.Storage)
	if err != nil {
		return wasmvmtypes.CosmosMsg{}, err
	}
	var timeoutHeight uint64
	if cc.TimeoutHeight != 0 {
		var latest uint64
		q := ibccore.QueryMsg{LatestHeight: &ibccore.ClientQuery{ClientID: cc.ClientID}}
		if err := host.QueryJSON(deps.Querier, ih, q, &latest); err != nil {
			return wasmvmtypes.CosmosMsg{}, err
		}
		timeoutHeight = latest + cc.TimeoutHeight
	}
	return host.ExecuteContract(ih, ibccore.ExecuteMsg{SendPacket: &ibccore.SendPacketMsg{
		ChannelID:        cc.ChannelID,
		Data:             body,
		TimeoutHeight:    timeoutHeight,
		TimeoutTimestamp: uint64(env.Block.Time) + uint64(timeoutCushion),
	}}, nil)
}

// writeAck acknowledges the received packet p
func writeAck(s host.Store, p ibccore.Packet, ack []byte) (wasmvmtypes.SubMsg, error) {
	ih, err := ibcHost.Load(s)
	if err != nil {
		return wasmvmtypes.SubMsg{}, err
	}
	return execute(ih, ibccore.ExecuteMsg{WriteAcknowledgement: &ibccore.WriteAcknowledgementMsg{
		ChannelID:       p.DestChannel,
		Sequence:        p.Sequence,
		Acknowledgement: ack,
	}})
}

func forward(s host.Store, msg xcalltypes.XCallMsg) (wasmvmtypes.SubMsg, error) {
	xh, err := xcallHost.Load(s)
	if err != nil {
		return wasmvmtypes.SubMsg{}, err
	}
	return execute(xh, msg)
}

func sendMessage(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, m *xcalltypes.SendMessageMsg) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	xh, err := xcallHost.Load(s)
	if err != nil {
		return nil, err
	}
	if info.Sender != xh {
		return nil, fmt.Errorf("%w: %s", ErrOnlyXcallHandler, info.Sender)
	}
	if m.Sn < 0 {
		return sendResponse(s, m)
	}
	cfg, err := configItem.Load(s)
	if err != nil {
		return nil, err
	}
	cc, err := channelTo(s, m.To)
	if err != nil {
		return nil, err
	}
	required, err := requiredFee(s, m.To, m.Sn > 0)
	if err != nil {
		return nil, err
	}
	funds, err := host.FundsOf(info.Funds, cfg.Denom)
	if err != nil {
		return nil, err
	}
	if funds.Lt(required) {
		return nil, fmt.Errorf("%w: %s%s attached, %s%s required", ErrInsufficientFunds,
			host.FormatAmount(funds), cfg.Denom, host.FormatAmount(required), cfg.Denom)
	}
	fees, err := loadFees(s, m.To)
	if err != nil {
		return nil, err
	}
	if m.Sn > 0 {
		ackFee, err := host.ToAmount(fees.AckFee)
		if err != nil {
			return nil, err
		}
		if err := ackEscrow.Add(s, snKey(m.To, uint64(m.Sn)), ackFee); err != nil {
			return nil, err
		}
	}
	body, err := Message{Sn: SomeSn(m.Sn), Fee: fees.SendPacketFee, Data: m.Msg}.Encode()
	if err != nil {
		return nil, err
	}
	msg, err := packetMsg(deps, env, cc, body)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Messages = append(resp.Messages, host.SubMsgNever(msg))
	return resp, nil
}

// sendResponse answers request -m.Sn with the acknowledgement of its packet
func sendResponse(s host.Store, m *xcalltypes.SendMessageMsg) (*wasmvmtypes.Response, error) {
	key := snKey(m.To, uint64(-m.Sn))
	p, ok, err := incomingPackets.May(s, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s sn %d", ErrIncomingPacketNotFound, m.To, -m.Sn)
	}
	incomingPackets.Remove(s, key)
	ack, err := Message{Sn: SomeSn(m.Sn), Data: m.Msg}.Encode()
	if err != nil {
		return nil, err
	}
	sub, err := writeAck(s, p, ack)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Messages = append(resp.Messages, sub)
	return resp, nil
}

func packetReceive(deps host.Deps, info wasmvmtypes.MessageInfo, m *ibccore.PacketReceiveCallback) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	if err := onlyIbcHost(s, info.Sender); err != nil {
		return nil, err
	}
	p := m.Packet
	cc, err := loadChannel(s, p.DestChannel)
	if err != nil {
		return nil, err
	}
	msg, err := DecodeMessage(p.Data)
	if err != nil {
		return nil, err
	}
	fee, err := host.ToAmount(msg.Fee)
	if err != nil {
		return nil, err
	}
	sn, ok := msg.Sn.Get()
	if !ok {
		return payClaim(s, p, msg.Fee, string(msg.Data))
	}
	if sn < 0 {
		return nil, fmt.Errorf("%w: packet with response sn %d", ErrInvalidMessage, sn)
	}
	if err := unclaimedFees.Add(s, relayerKey(cc.CounterpartyNID, m.Relayer), fee); err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	sub, err := forward(s, xcalltypes.XCallMsg{HandleMessage: &xcalltypes.HandleMessageMsg{FromNID: cc.CounterpartyNID, Msg: msg.Data}})
	if err != nil {
		return nil, err
	}
	resp.Messages = append(resp.Messages, sub)
	if sn > 0 {
		// acknowledged once the dispatcher responds
		return resp, incomingPackets.Save(s, snKey(cc.CounterpartyNID, uint64(sn)), p)
	}
	ack, err := writeAck(s, p, []byte{})
	if err != nil {
		return nil, err
	}
	resp.Messages = append(resp.Messages, ack)
	return resp, nil
}

// payClaim pays a fee claim of the counterparty from the fees collected here
func payClaim(s host.Store, p ibccore.Packet, amount *big.Int, to string) (*wasmvmtypes.Response, error) {
	if to == "" {
		return nil, fmt.Errorf("%w: claim without recipient", ErrInvalidMessage)
	}
	cfg, err := configItem.Load(s)
	if err != nil {
		return nil, err
	}
	fee, err := host.ToAmount(amount)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	if !fee.IsZero() {
		resp.Messages = append(resp.Messages, host.SubMsgNever(host.BankSend(to, host.Coins(fee, cfg.Denom))))
	}
	ack, err := writeAck(s, p, []byte{})
	if err != nil {
		return nil, err
	}
	resp.Messages = append(resp.Messages, ack)
	resp.Events = append(resp.Events, host.NewEvent(EventPayClaim,
		"to", to,
		"amount", host.FormatAmount(fee),
		"sequence", strconv.FormatUint(p.Sequence, 10),
	))
	return resp, nil
}

// releaseAckFee moves the escrowed ack fee of request sn to relayer
func releaseAckFee(s host.Store, nid string, sn uint64, relayer string) error {
	escrow, err := ackEscrow.Take(s, snKey(nid, sn))
	if err != nil {
		return err
	}
	return unclaimedAckFees.Add(s, relayerKey(nid, relayer), escrow)
}

func packetAck(deps host.Deps, info wasmvmtypes.MessageInfo, m *ibccore.PacketAckCallback) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	if err := onlyIbcHost(s, info.Sender); err != nil {
		return nil, err
	}
	p := m.Packet
	cc, err := loadChannel(s, p.SourceChannel)
	if err != nil {
		return nil, err
	}
	orig, err := DecodeMessage(p.Data)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	sn, ok := orig.Sn.Get()
	if !ok {
		pendingClaims.Remove(s, sequenceKey(p.SourceChannel, p.Sequence))
		return resp, nil
	}
	if sn > 0 {
		if err := releaseAckFee(s, cc.CounterpartyNID, uint64(sn), m.Relayer); err != nil {
			return nil, err
		}
	}
	if len(m.Acknowledgement) == 0 {
		return resp, nil
	}
	ack, err := DecodeMessage(m.Acknowledgement)
	if err != nil {
		return nil, err
	}
	sub, err := forward(s, xcalltypes.XCallMsg{HandleMessage: &xcalltypes.HandleMessageMsg{FromNID: cc.CounterpartyNID, Msg: ack.Data}})
	if err != nil {
		return nil, err
	}
	resp.Messages = append(resp.Messages, sub)
	return resp, nil
}

func packetTimeout(deps host.Deps, info wasmvmtypes.MessageInfo, m *ibccore.PacketTimeoutCallback) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	if err := onlyIbcHost(s, info.Sender); err != nil {
		return nil, err
	}
	p := m.Packet
	cc, err := loadChannel(s, p.SourceChannel)
	if err != nil {
		return nil, err
	}
	orig, err := DecodeMessage(p.Data)
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	sn, ok := orig.Sn.Get()
	if !ok {
		return resp, restoreClaim(s, sequenceKey(p.SourceChannel, p.Sequence))
	}
	if sn <= 0 {
		return resp, nil
	}
	if err := releaseAckFee(s, cc.CounterpartyNID, uint64(sn), m.Relayer); err != nil {
		return nil, err
	}
	sub, err := forward(s, xcalltypes.XCallMsg{HandleError: &xcalltypes.HandleErrorMsg{Sn: sn}})
	if err != nil {
		return nil, err
	}
	resp.Messages = append(resp.Messages, sub)
	return resp, nil
}
