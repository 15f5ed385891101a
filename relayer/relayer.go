package relayer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/ibccore"
	"github.com/0xPolygonHermez/zkevm-xcall/lightclient"
	"github.com/0xPolygonHermez/zkevm-xcall/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Kinds of relayed messages, used as metric labels
const (
	KindClientUpdate  = "update_client"
	KindRecvPacket    = "recv_packet"
	KindAcknowledge   = "acknowledge_packet"
	KindRecordTimeout = "record_timeout"
	KindTimeout       = "timeout_packet"
)

// Endpoint is one chain of the relayed connection
type Endpoint struct {
	Chain *host.Chain
	// IbcHost is the address of the ibc host contract
	IbcHost string
	// LightClient is the address of the light client contract
	LightClient string
	// ClientID names the client on this chain that tracks the counterparty
	ClientID string
	// ConnectionID names the connection on this chain
	ConnectionID string
}

func (e *Endpoint) name() string {
	return e.Chain.ChainID()
}

// Relayer moves packets, acknowledgements and headers between two chains
type Relayer struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    Config
	ends   [2]*Endpoint

	mu sync.Mutex
	// scanned is the last sealed height looked at on each end
	scanned [2]uint64
	// inflight are the packets sent by each end that are neither acknowledged nor timed out
	inflight [2]map[string]sentPacket
	done     *lru.Cache[string, struct{}]
}

// sentPacket is a packet with the height of the source block committing it
type sentPacket struct {
	packet ibccore.Packet
	height uint64
}

// New creates a relayer between a and b
func New(cfg Config, a, b *Endpoint) (*Relayer, error) {
	done, err := lru.New[string, struct{}](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Relayer{
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		ends:     [2]*Endpoint{a, b},
		inflight: [2]map[string]sentPacket{{}, {}},
		done:     done,
	}, nil
}

// Start relays on every poll interval until Stop is called
func (r *Relayer) Start() {
	ticker := time.NewTicker(r.cfg.PollInterval.Duration)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			log.Info("relayer stopped")
			return
		case <-ticker.C:
			if _, err := r.Step(r.ctx); err != nil {
				log.Errorf("relayer step: %v", err)
			}
		}
	}
}

// Stop ends the loop of Start
func (r *Relayer) Stop() {
	r.cancel()
}

func (r *Relayer) exec(ctx context.Context, end *Endpoint, msg ibccore.ExecuteMsg, what string) (*host.TxResult, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	var res *host.TxResult
	err = retry(ctx, r.cfg.RetryTimeout.Duration, what, func() error {
		var err error
		res, err = end.Chain.Execute(ctx, r.cfg.Address, end.IbcHost, raw)
		return err
	})
	return res, err
}

func query(ctx context.Context, end *Endpoint, msg ibccore.QueryMsg, out interface{}) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	res, err := end.Chain.Query(ctx, end.IbcHost, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(res, out)
}

// CreateClients registers on each end a light client that trusts the current
// validators of the other end
func (r *Relayer) CreateClients(ctx context.Context) error {
	for i, end := range r.ends {
		counterparty := r.ends[1-i]
		cs := lightclient.NewClientState(lightclient.KindIcon, counterparty.Chain.NetworkID(), 0, counterparty.Chain.Validators())
		csRaw, err := cs.Encode()
		if err != nil {
			return err
		}
		cons := lightclient.ConsensusState{NextValidatorsHash: cs.NextValidatorsHash}
		consRaw, err := cons.Encode()
		if err != nil {
			return err
		}
		msg := ibccore.ExecuteMsg{CreateClient: &ibccore.CreateClientMsg{
			ClientID:       end.ClientID,
			LightClient:    end.LightClient,
			ClientState:    csRaw,
			ConsensusState: consRaw,
		}}
		if _, err := r.exec(ctx, end, msg, "create client "+end.ClientID); err != nil {
			return fmt.Errorf("creating client %s on %s: %w", end.ClientID, end.name(), err)
		}
		log.Infof("created client %s on %s tracking %s", end.ClientID, end.name(), counterparty.name())
	}
	return nil
}

// RegisterConnections records the connection between the two clients on both
// ends. The relayer address must be the admin of both ibc hosts.
func (r *Relayer) RegisterConnections(ctx context.Context) error {
	for i, end := range r.ends {
		counterparty := r.ends[1-i]
		msg := ibccore.ExecuteMsg{RegisterConnection: &ibccore.RegisterConnectionMsg{
			ConnectionID: end.ConnectionID,
			Connection: ibccore.ConnectionEnd{
				ClientID:                 end.ClientID,
				CounterpartyConnectionID: counterparty.ConnectionID,
				CounterpartyClientID:     counterparty.ClientID,
			},
		}}
		if _, err := r.exec(ctx, end, msg, "register connection "+end.ConnectionID); err != nil {
			return fmt.Errorf("registering connection %s on %s: %w", end.ConnectionID, end.name(), err)
		}
	}
	return nil
}

// updateClient makes the header of block b of src known to the client on dst.
// Heights the client already passed are skipped.
func (r *Relayer) updateClient(ctx context.Context, src, dst *Endpoint, b *host.Block) error {
	var latest uint64
	if err := query(ctx, dst, ibccore.QueryMsg{LatestHeight: &ibccore.ClientQuery{ClientID: dst.ClientID}}, &latest); err != nil {
		return err
	}
	if latest >= b.Height {
		return nil
	}
	raw, err := b.Header.Encode()
	if err != nil {
		return err
	}
	msg := ibccore.ExecuteMsg{UpdateClient: &ibccore.UpdateClientMsg{ClientID: dst.ClientID, SignedHeader: raw}}
	if _, err := r.exec(ctx, dst, msg, fmt.Sprintf("update client %s to %d", dst.ClientID, b.Height)); err != nil {
		metrics.RecordRelayError(src.name(), dst.name(), KindClientUpdate)
		return err
	}
	metrics.RecordClientUpdate(src.name(), dst.name())
	log.Debugf("updated client %s on %s to height %d", dst.ClientID, dst.name(), b.Height)
	return nil
}

func (r *Relayer) proof(end *Endpoint, height uint64, leaf []byte) (ibccore.Proof, error) {
	path, err := end.Chain.Proof(height, leaf)
	if err != nil {
		return ibccore.Proof{}, err
	}
	return ibccore.Proof{Height: height, Path: path}, nil
}

func (r *Relayer) sealedBlock(end *Endpoint) (*host.Block, error) {
	b, err := end.Chain.Commit()
	if err != nil {
		return nil, fmt.Errorf("sealing block on %s: %w", end.name(), err)
	}
	return b, nil
}

func (r *Relayer) channelProof(ctx context.Context, end *Endpoint, b *host.Block, port, channel string) (ibccore.Proof, error) {
	var ch ibccore.ChannelEnd
	if err := query(ctx, end, ibccore.QueryMsg{Channel: &ibccore.ChannelQuery{PortID: port, ChannelID: channel}}, &ch); err != nil {
		return ibccore.Proof{}, err
	}
	leaf, err := ibccore.ChannelLeaf(port, channel, ch)
	if err != nil {
		return ibccore.Proof{}, err
	}
	return r.proof(end, b.Height, leaf)
}

func channelOf(res *host.TxResult, typ string) (string, error) {
	evs := host.FindEvents(res.Events, typ)
	if len(evs) == 0 {
		return "", fmt.Errorf("no %s event", typ)
	}
	id, _ := host.Attribute(evs[0], ibccore.AttributeChannelID)
	return id, nil
}

// Link opens an unordered channel between portA on the first end and portB on
// the second. Both chains are sealed between the handshake steps. It returns
// the channel ids on each end.
func (r *Relayer) Link(ctx context.Context, portA, portB, version string) (string, string, error) {
	a, b := r.ends[0], r.ends[1]
	res, err := r.exec(ctx, a, ibccore.ExecuteMsg{ChannelOpenInit: &ibccore.ChannelOpenInitMsg{
		PortID: portA, ConnectionID: a.ConnectionID, CounterpartyPortID: portB, Version: version, Order: ibccore.OrderUnordered,
	}}, "channel open init")
	if err != nil {
		return "", "", err
	}
	chanA, err := channelOf(res, ibccore.EventChannelOpenInit)
	if err != nil {
		return "", "", err
	}

	blockA, err := r.sealedBlock(a)
	if err != nil {
		return "", "", err
	}
	if err := r.updateClient(ctx, a, b, blockA); err != nil {
		return "", "", err
	}
	proof, err := r.channelProof(ctx, a, blockA, portA, chanA)
	if err != nil {
		return "", "", err
	}
	res, err = r.exec(ctx, b, ibccore.ExecuteMsg{ChannelOpenTry: &ibccore.ChannelOpenTryMsg{
		PortID: portB, ConnectionID: b.ConnectionID, CounterpartyPortID: portA, CounterpartyChannelID: chanA,
		CounterpartyVersion: version, Order: ibccore.OrderUnordered, Proof: proof,
	}}, "channel open try")
	if err != nil {
		return "", "", err
	}
	chanB, err := channelOf(res, ibccore.EventChannelOpenTry)
	if err != nil {
		return "", "", err
	}

	blockB, err := r.sealedBlock(b)
	if err != nil {
		return "", "", err
	}
	if err := r.updateClient(ctx, b, a, blockB); err != nil {
		return "", "", err
	}
	proof, err = r.channelProof(ctx, b, blockB, portB, chanB)
	if err != nil {
		return "", "", err
	}
	if _, err := r.exec(ctx, a, ibccore.ExecuteMsg{ChannelOpenAck: &ibccore.ChannelOpenAckMsg{
		PortID: portA, ChannelID: chanA, CounterpartyChannelID: chanB, CounterpartyVersion: version, Proof: proof,
	}}, "channel open ack"); err != nil {
		return "", "", err
	}

	blockA, err = r.sealedBlock(a)
	if err != nil {
		return "", "", err
	}
	if err := r.updateClient(ctx, a, b, blockA); err != nil {
		return "", "", err
	}
	proof, err = r.channelProof(ctx, a, blockA, portA, chanA)
	if err != nil {
		return "", "", err
	}
	if _, err := r.exec(ctx, b, ibccore.ExecuteMsg{ChannelOpenConfirm: &ibccore.ChannelOpenConfirmMsg{
		PortID: portB, ChannelID: chanB, Proof: proof,
	}}, "channel open confirm"); err != nil {
		return "", "", err
	}
	if _, err := r.sealedBlock(b); err != nil {
		return "", "", err
	}
	log.Infof("linked %s/%s on %s with %s/%s on %s", portA, chanA, a.name(), portB, chanB, b.name())
	return chanA, chanB, nil
}

func packetID(p ibccore.Packet) string {
	return fmt.Sprintf("%s/%s/%d", p.SourcePort, p.SourceChannel, p.Sequence)
}

// blockWork is what one sealed block asks the relayer to deliver
type blockWork struct {
	sends    []ibccore.Packet
	acks     []ackWork
	timeouts []ibccore.Packet
}

type ackWork struct {
	packet ibccore.Packet
	ack    []byte
}

func (r *Relayer) collect(i int, b *host.Block) blockWork {
	src := r.ends[i]
	var work blockWork
	for _, tx := range b.Txs {
		for _, ev := range tx.Events {
			if addr, _ := host.Attribute(ev, host.AttributeContractAddress); addr != src.IbcHost {
				continue
			}
			switch ev.Type {
			case ibccore.EventSendPacket:
				p, err := ibccore.PacketOf(ev)
				if err != nil {
					log.Warnf("%s block %d: %v", src.name(), b.Height, err)
					continue
				}
				work.sends = append(work.sends, p)
				r.inflight[i][packetID(p)] = sentPacket{packet: p, height: b.Height}
			case ibccore.EventWriteAcknowledgement:
				p, err := ibccore.PacketOf(ev)
				if err != nil {
					log.Warnf("%s block %d: %v", src.name(), b.Height, err)
					continue
				}
				ack, err := ibccore.AcknowledgementOf(ev)
				if err != nil {
					log.Warnf("%s block %d: %v", src.name(), b.Height, err)
					continue
				}
				work.acks = append(work.acks, ackWork{packet: p, ack: ack})
			case ibccore.EventTimeoutReceipt:
				p, err := ibccore.PacketOf(ev)
				if err != nil {
					log.Warnf("%s block %d: %v", src.name(), b.Height, err)
					continue
				}
				work.timeouts = append(work.timeouts, p)
			case ibccore.EventAcknowledgePacket, ibccore.EventTimeoutPacket:
				p, err := ibccore.PacketOf(ev)
				if err == nil {
					delete(r.inflight[i], packetID(p))
				}
			}
		}
	}
	return work
}

// seen reports whether key was delivered and otherwise marks it
func (r *Relayer) seen(key string) bool {
	if r.done.Contains(key) {
		return true
	}
	r.done.Add(key, struct{}{})
	return false
}

// Step scans the blocks sealed since the last step on both ends, delivers
// their packets and acknowledgements, then times out expired packets. It
// returns the number of delivered messages.
func (r *Relayer) Step(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delivered := 0
	for i := range r.ends {
		n, err := r.scan(ctx, i)
		delivered += n
		if err != nil {
			return delivered, err
		}
	}
	for i := range r.ends {
		n, err := r.timeouts(ctx, i)
		delivered += n
		if err != nil {
			return delivered, err
		}
	}
	return delivered, nil
}

func (r *Relayer) scan(ctx context.Context, i int) (int, error) {
	src, dst := r.ends[i], r.ends[1-i]
	delivered := 0
	latest := src.Chain.LatestHeight()
	for h := r.scanned[i] + 1; h <= latest; h++ {
		b, err := src.Chain.Block(h)
		if err != nil {
			return delivered, err
		}
		work := r.collect(i, b)
		if len(work.sends)+len(work.acks)+len(work.timeouts) > 0 {
			if err := r.updateClient(ctx, src, dst, b); err != nil {
				return delivered, fmt.Errorf("updating client %s on %s: %w", dst.ClientID, dst.name(), err)
			}
		}
		for _, p := range work.sends {
			if r.deliver(ctx, src, dst, KindRecvPacket, "recv/"+src.name()+"/"+packetID(p), func() (ibccore.ExecuteMsg, error) {
				leaf, err := ibccore.PacketLeaf(p)
				if err != nil {
					return ibccore.ExecuteMsg{}, err
				}
				proof, err := r.proof(src, b.Height, leaf)
				return ibccore.ExecuteMsg{RecvPacket: &ibccore.RecvPacketMsg{Packet: p, Proof: proof}}, err
			}) {
				delivered++
			}
		}
		for _, a := range work.acks {
			a := a
			if r.deliver(ctx, src, dst, KindAcknowledge, "ack/"+dst.name()+"/"+packetID(a.packet), func() (ibccore.ExecuteMsg, error) {
				leaf, err := ibccore.AckLeaf(a.packet, a.ack)
				if err != nil {
					return ibccore.ExecuteMsg{}, err
				}
				proof, err := r.proof(src, b.Height, leaf)
				return ibccore.ExecuteMsg{AcknowledgePacket: &ibccore.AcknowledgePacketMsg{Packet: a.packet, Acknowledgement: a.ack, Proof: proof}}, err
			}) {
				delivered++
			}
		}
		for _, p := range work.timeouts {
			p := p
			if r.deliver(ctx, src, dst, KindTimeout, "timeout/"+dst.name()+"/"+packetID(p), func() (ibccore.ExecuteMsg, error) {
				leaf, err := ibccore.TimeoutReceiptLeaf(p)
				if err != nil {
					return ibccore.ExecuteMsg{}, err
				}
				proof, err := r.proof(src, b.Height, leaf)
				return ibccore.ExecuteMsg{TimeoutPacket: &ibccore.TimeoutPacketMsg{Packet: p, Proof: proof}}, err
			}) {
				delivered++
				delete(r.inflight[1-i], packetID(p))
			}
		}
		r.scanned[i] = h
	}
	return delivered, nil
}

// deliver submits the message built by build to dst once per key. Failures are
// logged and counted, a failed delivery is not attempted again.
func (r *Relayer) deliver(ctx context.Context, src, dst *Endpoint, kind, key string, build func() (ibccore.ExecuteMsg, error)) bool {
	if r.seen(key) {
		return false
	}
	msg, err := build()
	if err == nil {
		_, err = r.exec(ctx, dst, msg, kind+" "+key)
	}
	if err != nil {
		metrics.RecordRelayError(src.name(), dst.name(), kind)
		log.Errorf("%s %s from %s to %s: %v", kind, key, src.name(), dst.name(), err)
		return false
	}
	metrics.RecordRelayed(src.name(), dst.name(), kind)
	log.Debugf("%s %s from %s to %s", kind, key, src.name(), dst.name())
	return true
}

func expired(p ibccore.Packet, b *host.Block) bool {
	if p.TimeoutHeight != 0 && b.Height >= p.TimeoutHeight {
		return true
	}
	return p.TimeoutTimestamp != 0 && b.Time >= p.TimeoutTimestamp
}

// timeouts records on the counterparty the timeout of the packets sent by
// end i whose deadline its last sealed block passed without receiving them.
// The timeout is proven back on end i once the block holding the receipt is
// scanned.
func (r *Relayer) timeouts(ctx context.Context, i int) (int, error) {
	src, dst := r.ends[i], r.ends[1-i]
	if len(r.inflight[i]) == 0 || dst.Chain.LatestHeight() == 0 {
		return 0, nil
	}
	b, err := dst.Chain.Block(dst.Chain.LatestHeight())
	if err != nil {
		return 0, err
	}
	ids := make([]string, 0, len(r.inflight[i]))
	for id, sp := range r.inflight[i] {
		if expired(sp.packet, b) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	delivered := 0
	for _, id := range ids {
		sp := r.inflight[i][id]
		p := sp.packet
		var received bool
		q := ibccore.QueryMsg{PacketReceipt: &ibccore.PacketQuery{PortID: p.DestPort, ChannelID: p.DestChannel, Sequence: p.Sequence}}
		if err := query(ctx, dst, q, &received); err != nil {
			return delivered, err
		}
		if received {
			continue
		}
		if r.deliver(ctx, src, dst, KindRecordTimeout, "record_timeout/"+src.name()+"/"+id, func() (ibccore.ExecuteMsg, error) {
			leaf, err := ibccore.PacketLeaf(p)
			if err != nil {
				return ibccore.ExecuteMsg{}, err
			}
			proof, err := r.proof(src, sp.height, leaf)
			return ibccore.ExecuteMsg{RecordTimeout: &ibccore.RecordTimeoutMsg{Packet: p, Proof: proof}}, err
		}) {
			delivered++
		}
	}
	return delivered, nil
}

// Pending returns the packets sent by the end at index i still waiting for an
// acknowledgement or a timeout
func (r *Relayer) Pending(i int) []ibccore.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]ibccore.Packet, 0, len(r.inflight[i]))
	for _, sp := range r.inflight[i] {
		res = append(res, sp.packet)
	}
	sort.Slice(res, func(a, b int) bool { return packetID(res[a]) < packetID(res[b]) })
	return res
}
