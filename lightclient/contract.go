// Package lightclient implements a light client contract that stores the
// consensus commitments of a remote chain, accepts signed headers carrying a
// validator quorum and verifies merkle membership against the stored roots.
package lightclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

// Event types and attributes
const (
	EventCreateClient = "create_client"
	EventUpdateClient = "update_client"
	EventMisbehaviour = "misbehaviour"

	AttributeClientID        = "client_id"
	AttributeClientType      = "client_type"
	AttributeConsensusHeight = "consensus_height"
)

// Contract is the light client host.Contract
type Contract struct{}

// New returns the light client contract
func New() *Contract {
	return &Contract{}
}

func (c *Contract) Instantiate(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m InstantiateMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	if m.IbcHost == "" {
		return nil, fmt.Errorf("%w: ibc host is required", ErrUnauthorized)
	}
	if err := configItem.Save(deps.Storage, config{Owner: info.Sender, IbcHost: m.IbcHost}); err != nil {
		return nil, err
	}
	return host.NewResponse(), nil
}

func (c *Contract) Execute(deps host.Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (*wasmvmtypes.Response, error) {
	var m ExecuteMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	cfg, err := configItem.Load(deps.Storage)
	if err != nil {
		return nil, err
	}
	if info.Sender != cfg.IbcHost {
		return nil, fmt.Errorf("%w: sender %s is not the ibc host", ErrUnauthorized, info.Sender)
	}
	switch {
	case m.CreateClient != nil:
		return createClient(deps, env, m.CreateClient)
	case m.UpdateClient != nil:
		return updateClient(deps, env, m.UpdateClient)
	}
	return nil, host.ErrUnknownMessage
}

func createClient(deps host.Deps, env wasmvmtypes.Env, m *CreateClientMsg) (*wasmvmtypes.Response, error) {
	if clientStates.Has(deps.Storage, m.ClientID) {
		return nil, fmt.Errorf("%w: %s", ErrClientAlreadyExists, m.ClientID)
	}
	cs, err := DecodeClientState(m.ClientState)
	if err != nil {
		return nil, err
	}
	a, err := algorithmOf(cs.Kind)
	if err != nil {
		return nil, err
	}
	if cs.TrustDenominator == 0 || cs.TrustNumerator == 0 || cs.TrustNumerator > cs.TrustDenominator {
		return nil, fmt.Errorf("%w: trust level %d/%d", ErrFailedToSaveClientState, cs.TrustNumerator, cs.TrustDenominator)
	}
	cons, err := DecodeConsensusState(m.ConsensusState)
	if err != nil {
		return nil, err
	}
	if err := saveClient(deps.Storage, m.ClientID, cs); err != nil {
		return nil, err
	}
	if err := saveConsensus(deps.Storage, env, m.ClientID, cs.LatestHeight, cons); err != nil {
		return nil, err
	}
	commitment, err := cs.Commitment()
	if err != nil {
		return nil, err
	}
	resp := host.NewResponse()
	resp.Data = commitment.Bytes()
	resp.Events = append(resp.Events, clientEvent(EventCreateClient, m.ClientID, a.name, cs.LatestHeight))
	return resp, nil
}

func updateClient(deps host.Deps, env wasmvmtypes.Env, m *UpdateClientMsg) (*wasmvmtypes.Response, error) {
	cs, err := loadClient(deps.Storage, m.ClientID)
	if err != nil {
		return nil, err
	}
	if cs.Frozen() {
		return nil, fmt.Errorf("%w: %s at height %d", ErrClientFrozen, m.ClientID, cs.FrozenHeight)
	}
	a, err := algorithmOf(cs.Kind)
	if err != nil {
		return nil, err
	}
	sh, err := host.DecodeSignedHeader(m.SignedHeader)
	if err != nil {
		return nil, err
	}
	h := sh.Header
	if h.NetworkID != cs.NetworkID {
		return nil, fmt.Errorf("%w: network %q, client tracks %q", ErrInvalidHeader, h.NetworkID, cs.NetworkID)
	}
	now := env.Block.Time
	if cs.MaxClockDrift != 0 && h.Timestamp > uint64(now)+cs.MaxClockDrift {
		return nil, fmt.Errorf("%w: header time %d is ahead of block time %d", ErrInvalidHeader, h.Timestamp, now)
	}
	latest, err := loadConsensus(deps.Storage, m.ClientID, cs.LatestHeight)
	if err != nil {
		return nil, err
	}
	if cs.TrustingPeriod != 0 && latest.Timestamp+cs.TrustingPeriod < uint64(now) {
		return nil, fmt.Errorf("%w: %s last updated at %d", ErrClientExpired, m.ClientID, latest.Timestamp)
	}
	if err := a.verifyHeader(deps.API, cs, sh); err != nil {
		return nil, err
	}

	cons := ConsensusStateOf(h)
	resp := host.NewResponse()
	existing, ok, err := consensusStates.May(deps.Storage, heightKey(m.ClientID, h.MainHeight))
	if err != nil {
		return nil, err
	}
	switch {
	case ok && existing.MessageRoot == cons.MessageRoot:
		return nil, fmt.Errorf("%w: %s at height %d", ErrConsensusStateExists, m.ClientID, h.MainHeight)
	case ok:
		// two valid headers for one height
		cs.FrozenHeight = h.MainHeight
		if err := saveClient(deps.Storage, m.ClientID, cs); err != nil {
			return nil, err
		}
		resp.Events = append(resp.Events, clientEvent(EventMisbehaviour, m.ClientID, a.name, h.MainHeight))
		return resp, nil
	case h.MainHeight < cs.LatestHeight:
		return nil, fmt.Errorf("%w: header height %d below latest %d", ErrHeightNotAdvancing, h.MainHeight, cs.LatestHeight)
	case cons.Timestamp < latest.Timestamp:
		return nil, fmt.Errorf("%w: header time %d before %d", ErrTimestampNotMonotonic, cons.Timestamp, latest.Timestamp)
	}

	if err := saveConsensus(deps.Storage, env, m.ClientID, h.MainHeight, &cons); err != nil {
		return nil, err
	}
	cs.LatestHeight = h.MainHeight
	cs.NextValidatorsHash = h.NextValidatorsHash
	if err := saveClient(deps.Storage, m.ClientID, cs); err != nil {
		return nil, err
	}
	commitment, err := cons.Commitment()
	if err != nil {
		return nil, err
	}
	resp.Data = commitment.Bytes()
	resp.Events = append(resp.Events, clientEvent(EventUpdateClient, m.ClientID, a.name, h.MainHeight))
	return resp, nil
}

func (c *Contract) Query(deps host.Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	var m QueryMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	switch {
	case m.ClientState != nil:
		cs, err := loadClient(deps.Storage, m.ClientState.ClientID)
		if err != nil {
			return nil, err
		}
		raw, err := cs.Encode()
		if err != nil {
			return nil, err
		}
		return json.Marshal(ClientStateResponse{ClientState: raw, ClientType: cs.Kind.String(), Frozen: cs.Frozen()})
	case m.ConsensusState != nil:
		cons, err := loadConsensus(deps.Storage, m.ConsensusState.ClientID, m.ConsensusState.Height)
		if err != nil {
			return nil, err
		}
		raw, err := cons.Encode()
		if err != nil {
			return nil, err
		}
		return json.Marshal(ConsensusStateResponse{ConsensusState: raw, MessageRoot: cons.MessageRoot.Bytes(), Timestamp: cons.Timestamp})
	case m.LatestHeight != nil:
		cs, err := loadClient(deps.Storage, m.LatestHeight.ClientID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cs.LatestHeight)
	case m.ProcessedTime != nil:
		t, ok, err := processedTimes.May(deps.Storage, heightKey(m.ProcessedTime.ClientID, m.ProcessedTime.Height))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s at height %d", ErrTimestampNotFound, m.ProcessedTime.ClientID, m.ProcessedTime.Height)
		}
		return json.Marshal(t)
	case m.ProcessedHeight != nil:
		h, ok, err := processedHeights.May(deps.Storage, heightKey(m.ProcessedHeight.ClientID, m.ProcessedHeight.Height))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s at height %d", ErrConsensusStateNotFound, m.ProcessedHeight.ClientID, m.ProcessedHeight.Height)
		}
		return json.Marshal(h)
	case m.VerifyMembership != nil:
		if err := VerifyMembership(deps.Storage, m.VerifyMembership); err != nil {
			return nil, err
		}
		return json.Marshal(VerifyMembershipResponse{Verified: true})
	}
	return nil, host.ErrUnknownMessage
}

func (c *Contract) Reply(deps host.Deps, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (*wasmvmtypes.Response, error) {
	return nil, host.ErrUnknownMessage
}

// VerifyMembership checks m against the consensus state stored at exactly m.Height
func VerifyMembership(s host.Store, m *VerifyMembershipMsg) error {
	if len(m.Key) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidMerkleProof)
	}
	cs, err := loadClient(s, m.ClientID)
	if err != nil {
		return err
	}
	a, err := algorithmOf(cs.Kind)
	if err != nil {
		return err
	}
	cons, err := loadConsensus(s, m.ClientID, m.Height)
	if err != nil {
		return err
	}
	if len(m.Root) != 0 && !bytes.Equal(m.Root, cons.MessageRoot.Bytes()) {
		return fmt.Errorf("%w: root %x is not the stored root at height %d", ErrInvalidMerkleProof, m.Root, m.Height)
	}
	if err := a.verifyMembership(cons, m.Proof, m.Value); err != nil {
		return fmt.Errorf("%w: key %s at height %d", err, m.Key, m.Height)
	}
	return nil
}

func loadClient(s host.Store, clientID string) (*ClientState, error) {
	cs, err := clientStates.Load(s, clientID)
	if errors.Is(err, host.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrClientStateNotFound, clientID)
	}
	if err != nil {
		return nil, err
	}
	return &cs, nil
}

func loadConsensus(s host.Store, clientID string, height uint64) (*ConsensusState, error) {
	cons, err := consensusStates.Load(s, heightKey(clientID, height))
	if errors.Is(err, host.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s at height %d", ErrConsensusStateNotFound, clientID, height)
	}
	if err != nil {
		return nil, err
	}
	return &cons, nil
}

func saveClient(s host.Store, clientID string, cs *ClientState) error {
	if err := clientStates.Save(s, clientID, *cs); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSaveClientState, err)
	}
	return nil
}

func saveConsensus(s host.Store, env wasmvmtypes.Env, clientID string, height uint64, cons *ConsensusState) error {
	key := heightKey(clientID, height)
	if err := consensusStates.Save(s, key, *cons); err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToSaveClientState, err)
	}
	if err := processedTimes.Save(s, key, uint64(env.Block.Time)); err != nil {
		return err
	}
	return processedHeights.Save(s, key, env.Block.Height)
}

func clientEvent(typ, clientID, clientType string, height uint64) wasmvmtypes.Event {
	return host.NewEvent(typ,
		AttributeClientID, clientID,
		AttributeClientType, clientType,
		AttributeConsensusHeight, strconv.FormatUint(height, 10),
	)
}

