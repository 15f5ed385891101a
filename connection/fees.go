package connection

import (
	"fmt"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/ibccore"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/holiman/uint256"
)

// claimFees zeroes the fees the sender earned relaying from m.NID. Packet
// fees were paid on the counterparty, so they are claimed with a packet
// the counterparty connection pays out. Ack fees are held here.
func claimFees(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, m *ClaimFeesMsg) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	cfg, err := configItem.Load(s)
	if err != nil {
		return nil, err
	}
	key := relayerKey(m.NID, info.Sender)
	packetFees, err := unclaimedFees.Take(s, key)
	if err != nil {
		return nil, err
	}
	ackFees, err := unclaimedAckFees.Take(s, key)
	if err != nil {
		return nil, err
	}
	if packetFees.IsZero() && ackFees.IsZero() {
		return nil, fmt.Errorf("%w: %s from %s", ErrNoFeesToClaim, info.Sender, m.NID)
	}

	resp := host.NewResponse()
	if !packetFees.IsZero() {
		if m.To == "" {
			return nil, fmt.Errorf("%w: claim without recipient", ErrInvalidMessage)
		}
		cc, err := channelTo(s, m.NID)
		if err != nil {
			return nil, err
		}
		if err := claimedFees.Add(s, m.NID, packetFees); err != nil {
			return nil, err
		}
		claim := pendingClaim{NID: m.NID, Claimant: info.Sender, Amount: packetFees.ToBig()}
		if err := sendingClaim.Save(s, claim); err != nil {
			return nil, err
		}
		body, err := Message{Fee: packetFees.ToBig(), Data: []byte(m.To)}.Encode()
		if err != nil {
			return nil, err
		}
		msg, err := packetMsg(deps, env, cc, body)
		if err != nil {
			return nil, err
		}
		resp.Messages = append(resp.Messages, wasmvmtypes.SubMsg{ID: claimReplyID, Msg: msg, ReplyOn: wasmvmtypes.ReplySuccess})
	}
	if !ackFees.IsZero() {
		resp.Messages = append(resp.Messages, host.SubMsgNever(host.BankSend(info.Sender, host.Coins(ackFees, cfg.Denom))))
	}
	resp.Events = append(resp.Events, host.NewEvent(EventClaimFees,
		"nid", m.NID,
		"relayer", info.Sender,
		"to", m.To,
		"packet_fees", host.FormatAmount(packetFees),
		"ack_fees", host.FormatAmount(ackFees),
	))
	return resp, nil
}

// claimSent records the in flight claim under the sequence of its packet
func claimSent(deps host.Deps, result wasmvmtypes.SubMsgResult) (*wasmvmtypes.Response, error) {
	s := deps.Storage
	if result.Ok == nil {
		return nil, fmt.Errorf("%w: claim reply without result", ErrInvalidReplyID)
	}
	seq, err := ibccore.DecodeSequence(result.Ok.Data)
	if err != nil {
		return nil, err
	}
	claim, err := sendingClaim.Load(s)
	if err != nil {
		return nil, err
	}
	sendingClaim.Remove(s)
	cc, err := channelTo(s, claim.NID)
	if err != nil {
		return nil, err
	}
	return host.NewResponse(), pendingClaims.Save(s, sequenceKey(cc.ChannelID, seq), claim)
}

// restoreClaim credits a timed out claim back to its claimant
func restoreClaim(s host.Store, key string) error {
	claim, ok, err := pendingClaims.May(s, key)
	if err != nil || !ok {
		return err
	}
	pendingClaims.Remove(s, key)
	amount, err := host.ToAmount(claim.Amount)
	if err != nil {
		return err
	}
	claimed, err := claimedFees.Get(s, claim.NID)
	if err != nil {
		return err
	}
	if claimed.Lt(amount) {
		return fmt.Errorf("%w: claimed %s below restored %s", host.ErrInvalidAmount, host.FormatAmount(claimed), host.FormatAmount(amount))
	}
	if err := claimedFees.Set(s, claim.NID, new(uint256.Int).Sub(claimed, amount)); err != nil {
		return err
	}
	return unclaimedFees.Add(s, relayerKey(claim.NID, claim.Claimant), amount)
}
