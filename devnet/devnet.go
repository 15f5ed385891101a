// Package devnet runs two in-process chains with an xcall deployment each,
// an IBC connection between them and the relayer that serves it.
package devnet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-node/log"
	"github.com/0xPolygonHermez/zkevm-xcall/connection"
	"github.com/0xPolygonHermez/zkevm-xcall/dapp"
	"github.com/0xPolygonHermez/zkevm-xcall/db"
	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/ibccore"
	"github.com/0xPolygonHermez/zkevm-xcall/lightclient"
	"github.com/0xPolygonHermez/zkevm-xcall/netaddr"
	"github.com/0xPolygonHermez/zkevm-xcall/relayer"
	"github.com/0xPolygonHermez/zkevm-xcall/utils"
	"github.com/0xPolygonHermez/zkevm-xcall/xcall"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Contract addresses, the same on both chains
const (
	IbcHostAddress     = "ibc-host"
	LightClientAddress = "light-client"
	XCallAddress       = "xcall"
	DAppAddress        = "dapp"
	// DefaultConnectionAddress is used when a chain configures no connection
	DefaultConnectionAddress = "xcall-connection"

	ClientID     = "client-0"
	ConnectionID = "connection-0"
)

// maxFlushRounds bounds Flush, a round trip with a response takes three
const maxFlushRounds = 16

// ErrNotSettled is returned by Flush when messages are still moving after maxFlushRounds
var ErrNotSettled = errors.New("devnet did not settle")

// Network is one chain with its xcall deployment
type Network struct {
	Config ChainConfig
	Chain  *host.Chain
	// Channels maps each connection address to its channel
	Channels map[string]string

	admin string
}

// NID returns the network id of the chain
func (n *Network) NID() string {
	return n.Config.NetworkID
}

// Address returns the network address of account on this chain
func (n *Network) Address(account string) string {
	na, err := netaddr.New(n.NID(), account)
	if err != nil {
		return ""
	}
	return na.String()
}

// Connections returns the connection addresses, the first is the default
func (n *Network) Connections() []string {
	if len(n.Config.Connections) == 0 {
		return []string{DefaultConnectionAddress}
	}
	return n.Config.Connections
}

// Coins returns amount of the fee denom, nil for an empty amount
func (n *Network) Coins(amount string) []wasmvmtypes.Coin {
	if amount == "" || amount == "0" {
		return nil
	}
	return []wasmvmtypes.Coin{{Denom: n.Config.Denom, Amount: amount}}
}

// Execute sends msg to contract as sender, attaching funds of the fee denom
func (n *Network) Execute(ctx context.Context, sender, contract string, msg interface{}, funds string) (*host.TxResult, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return n.Chain.Execute(ctx, sender, contract, raw, n.Coins(funds)...)
}

// Query asks contract msg and decodes the answer into out
func (n *Network) Query(ctx context.Context, contract string, msg, out interface{}) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	res, err := n.Chain.Query(ctx, contract, raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(res, out)
}

// Fund mints amount of the fee denom to addr
func (n *Network) Fund(ctx context.Context, addr, amount string) error {
	return n.Chain.Mint(ctx, addr, n.Coins(amount)...)
}

// Balance returns the fee denom balance of addr
func (n *Network) Balance(ctx context.Context, addr string) (*uint256.Int, error) {
	return n.Chain.Balance(ctx, addr, n.Config.Denom)
}

func (n *Network) instantiate(ctx context.Context, creator, addr string, c host.Contract, msg interface{}) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := n.Chain.Instantiate(ctx, creator, addr, c, raw); err != nil {
		return fmt.Errorf("instantiating %s on %s: %w", addr, n.Chain.ChainID(), err)
	}
	return nil
}

func (n *Network) configure(ctx context.Context, contract string, msg interface{}) error {
	if _, err := n.Execute(ctx, n.admin, contract, msg, ""); err != nil {
		return fmt.Errorf("configuring %s on %s: %w", contract, n.Chain.ChainID(), err)
	}
	return nil
}

// Events returns the events of type typ emitted in the sealed blocks, oldest first
func (n *Network) Events(typ string) []wasmvmtypes.Event {
	var res []wasmvmtypes.Event
	for h := uint64(1); h <= n.Chain.LatestHeight(); h++ {
		b, err := n.Chain.Block(h)
		if err != nil {
			break
		}
		for _, tx := range b.Txs {
			res = append(res, host.FindEvents(tx.Events, typ)...)
		}
	}
	return res
}

func orZero(amount string) string {
	if amount == "" {
		return "0"
	}
	return amount
}

// Devnet is two linked networks
type Devnet struct {
	A, B    *Network
	Relayer *relayer.Relayer

	cfg    Config
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func newNetwork(ctx context.Context, cfg Config, cc ChainConfig, storage db.Storage, tp utils.TimeProvider) (*Network, error) {
	if cc.CommitmentSource == "" {
		cc.CommitmentSource = IbcHostAddress
	}
	if len(cc.ValidatorKeys) == 0 {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		cc.ValidatorKeys = []string{hex.EncodeToString(crypto.FromECDSA(key))}
		log.Warnf("no validator keys for %s, signing with a generated key", cc.ChainID)
	}
	chain, err := host.NewChain(cc.Config, db.NewPrefixStorage(storage, cc.ChainID+"/"), tp)
	if err != nil {
		return nil, err
	}
	n := &Network{Config: cc, Chain: chain, Channels: map[string]string{}, admin: cfg.Admin}
	if err := n.instantiate(ctx, cfg.Relayer.Address, IbcHostAddress, ibccore.New(), ibccore.InstantiateMsg{}); err != nil {
		return nil, err
	}
	if err := n.instantiate(ctx, cfg.Admin, LightClientAddress, lightclient.New(), lightclient.InstantiateMsg{IbcHost: IbcHostAddress}); err != nil {
		return nil, err
	}
	if err := n.instantiate(ctx, cfg.Admin, XCallAddress, xcall.New(), xcall.InstantiateMsg{NetworkID: cc.NetworkID, Denom: cc.Denom}); err != nil {
		return nil, err
	}
	for _, addr := range n.Connections() {
		msg := connection.InstantiateMsg{IbcHost: IbcHostAddress, XCallHost: XCallAddress, Denom: cc.Denom}
		if err := n.instantiate(ctx, cfg.Admin, addr, connection.New(), msg); err != nil {
			return nil, err
		}
	}
	if err := n.instantiate(ctx, cfg.Admin, DAppAddress, dapp.New(), dapp.InstantiateMsg{XCall: XCallAddress}); err != nil {
		return nil, err
	}
	if cc.ProtocolFee != "" {
		if err := n.configure(ctx, XCallAddress, xcall.ExecuteMsg{SetProtocolFee: &xcall.SetProtocolFeeMsg{Value: cc.ProtocolFee}}); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// link configures the connections of n toward counterparty. The channels are
// opened afterwards.
func (n *Network) link(ctx context.Context, counterparty *Network) error {
	local, remote := n.Connections(), counterparty.Connections()
	if len(local) != len(remote) {
		return fmt.Errorf("%s has %d connections, %s has %d", n.Chain.ChainID(), len(local), counterparty.Chain.ChainID(), len(remote))
	}
	for i, addr := range local {
		err := n.configure(ctx, addr, connection.ExecuteMsg{ConfigureConnection: &connection.ConfigureConnectionMsg{
			ConnectionID:    ConnectionID,
			DstPort:         remote[i],
			CounterpartyNID: counterparty.NID(),
			ClientID:        ClientID,
			TimeoutHeight:   n.Config.TimeoutHeight,
		}})
		if err != nil {
			return err
		}
		err = n.configure(ctx, addr, connection.ExecuteMsg{SetFees: &connection.SetFeesMsg{
			NID:           counterparty.NID(),
			SendPacketFee: orZero(n.Config.SendPacketFee),
			AckFee:        orZero(n.Config.AckFee),
		}})
		if err != nil {
			return err
		}
	}
	err := n.configure(ctx, XCallAddress, xcall.ExecuteMsg{SetDefaultConnection: &xcall.SetDefaultConnectionMsg{NID: counterparty.NID(), Address: local[0]}})
	if err != nil {
		return err
	}
	return n.configure(ctx, DAppAddress, dapp.ExecuteMsg{SetConnections: &dapp.SetConnectionsMsg{
		NID:          counterparty.NID(),
		Sources:      local,
		Destinations: remote,
	}})
}

// New deploys both chains on storage and opens one channel per connection
// between them
func New(ctx context.Context, cfg Config, storage db.Storage, tp utils.TimeProvider) (*Devnet, error) {
	a, err := newNetwork(ctx, cfg, cfg.ChainA, storage, tp)
	if err != nil {
		return nil, err
	}
	b, err := newNetwork(ctx, cfg, cfg.ChainB, storage, tp)
	if err != nil {
		return nil, err
	}
	if err := a.link(ctx, b); err != nil {
		return nil, err
	}
	if err := b.link(ctx, a); err != nil {
		return nil, err
	}

	endpoint := func(n *Network) *relayer.Endpoint {
		return &relayer.Endpoint{Chain: n.Chain, IbcHost: IbcHostAddress, LightClient: LightClientAddress, ClientID: ClientID, ConnectionID: ConnectionID}
	}
	r, err := relayer.New(cfg.Relayer, endpoint(a), endpoint(b))
	if err != nil {
		return nil, err
	}
	if err := r.CreateClients(ctx); err != nil {
		return nil, err
	}
	if err := r.RegisterConnections(ctx); err != nil {
		return nil, err
	}
	remote := b.Connections()
	for i, addr := range a.Connections() {
		chanA, chanB, err := r.Link(ctx, addr, remote[i], connection.IBCVersion)
		if err != nil {
			return nil, fmt.Errorf("linking %s with %s: %w", addr, remote[i], err)
		}
		a.Channels[addr] = chanA
		b.Channels[remote[i]] = chanB
	}
	log.Infof("devnet ready: %s (%s) <-> %s (%s)", a.Chain.ChainID(), a.NID(), b.Chain.ChainID(), b.NID())
	return &Devnet{A: a, B: b, Relayer: r, cfg: cfg}, nil
}

// Config returns the configuration the devnet was deployed with
func (d *Devnet) Config() Config {
	return d.cfg
}

// Commit seals a block on both chains
func (d *Devnet) Commit() error {
	for _, n := range []*Network{d.A, d.B} {
		if _, err := n.Chain.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Flush seals blocks and relays until nothing is left to deliver. It returns
// the number of delivered messages.
func (d *Devnet) Flush(ctx context.Context) (int, error) {
	total := 0
	for i := 0; i < maxFlushRounds; i++ {
		if err := d.Commit(); err != nil {
			return total, err
		}
		n, err := d.Relayer.Step(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
	return total, ErrNotSettled
}

// Start seals blocks on both chains every block interval and runs the relayer
// until Stop
func (d *Devnet) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(2) //nolint:gomnd
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.cfg.BlockInterval.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := d.Commit(); err != nil {
					log.Errorf("sealing blocks: %v", err)
				}
			}
		}
	}()
	go func() {
		defer d.wg.Done()
		d.Relayer.Start()
	}()
}

// Stop ends the loops of Start
func (d *Devnet) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.Relayer.Stop()
	d.wg.Wait()
}
