package host

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/0xPolygonHermez/zkevm-xcall/db"
	"github.com/0xPolygonHermez/zkevm-xcall/merkle"
	"github.com/0xPolygonHermez/zkevm-xcall/metrics"
	"github.com/0xPolygonHermez/zkevm-xcall/utils"
	"github.com/0xPolygonHermez/zkevm-node/log"
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	defaultMaxCallDepth = 32
	contractPrefix      = "contract/"
)

// TxResult is the outcome of one successful transaction
type TxResult struct {
	Height   uint64
	Index    uint32
	Sender   string
	Contract string
	Events   []wasmvmtypes.Event
	Data     []byte
}

// Block is the record of the transactions executed at one height
type Block struct {
	Height uint64
	// Time is the block time in nanoseconds since unix epoch
	Time   uint64
	Txs    []*TxResult
	Leaves [][]byte
	// Header is set once the block is sealed
	Header *SignedHeader
	tree   *merkle.Tree
}

// Events returns the events of every transaction of the block, in order
func (b *Block) Events() []wasmvmtypes.Event {
	var events []wasmvmtypes.Event
	for _, tx := range b.Txs {
		events = append(events, tx.Events...)
	}
	return events
}

// Chain is a single threaded contract host. Every entry point runs
// atomically: its storage writes are committed only if it succeeds.
type Chain struct {
	mu           sync.Mutex
	cfg          Config
	storage      db.Storage
	timeProvider utils.TimeProvider
	api          API
	bank         bank
	contracts    map[string]Contract
	validators   []Validator
	keys         []*ecdsa.PrivateKey

	pending *Block
	blocks  []*Block
}

// NewChain creates a chain whose first open block has height one
func NewChain(cfg Config, storage db.Storage, timeProvider utils.TimeProvider) (*Chain, error) {
	if cfg.MaxCallDepth == 0 {
		cfg.MaxCallDepth = defaultMaxCallDepth
	}
	if len(cfg.ValidatorPowers) != 0 && len(cfg.ValidatorPowers) != len(cfg.ValidatorKeys) {
		return nil, fmt.Errorf("chain %s: %d validator keys but %d powers", cfg.ChainID, len(cfg.ValidatorKeys), len(cfg.ValidatorPowers))
	}
	c := &Chain{
		cfg:          cfg,
		storage:      storage,
		timeProvider: timeProvider,
		api:          NewAPI(),
		bank:         newBank(),
		contracts:    make(map[string]Contract),
	}
	for i, hexKey := range cfg.ValidatorKeys {
		key, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return nil, fmt.Errorf("chain %s: validator key %d: %w", cfg.ChainID, i, err)
		}
		power := uint64(1)
		if len(cfg.ValidatorPowers) != 0 {
			power = cfg.ValidatorPowers[i]
		}
		c.keys = append(c.keys, key)
		c.validators = append(c.validators, Validator{Address: crypto.PubkeyToAddress(key.PublicKey), Power: power})
	}
	c.pending = &Block{Height: 1, Time: uint64(timeProvider.Now().UnixNano())}
	return c, nil
}

// ChainID returns the configured chain id
func (c *Chain) ChainID() string {
	return c.cfg.ChainID
}

// NetworkID returns the network id stamped on headers
func (c *Chain) NetworkID() string {
	return c.cfg.NetworkID
}

// Validators returns the block signers
func (c *Chain) Validators() []Validator {
	res := make([]Validator, len(c.validators))
	copy(res, c.validators)
	return res
}

// Height returns the height of the open block
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.Height
}

// BlockTime returns the time of the open block
func (c *Chain) BlockTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Unix(0, int64(c.pending.Time))
}

// LatestHeight returns the height of the last sealed block, zero before the first
func (c *Chain) LatestHeight() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.blocks))
}

// Block returns the sealed block at height
func (c *Chain) Block(height uint64) (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if height == 0 || height > uint64(len(c.blocks)) {
		return nil, fmt.Errorf("height %d: %w", height, ErrBlockNotFound)
	}
	return c.blocks[height-1], nil
}

// Proof returns the membership proof of leaf in the message tree of the sealed block at height
func (c *Chain) Proof(height uint64, leaf []byte) ([]merkle.Node, error) {
	b, err := c.Block(height)
	if err != nil {
		return nil, err
	}
	return b.tree.ProofOf(leaf)
}

// IsContract reports whether a contract lives at addr
func (c *Chain) IsContract(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.contracts[addr]
	return ok
}

// Commit seals the open block and opens the next one
func (c *Chain) Commit() (*Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.pending
	b.tree = merkle.NewTree(b.Leaves)
	header := Header{
		MainHeight:         b.Height,
		NetworkID:          c.cfg.NetworkID,
		MessageCount:       uint64(len(b.Leaves)),
		MessageRoot:        common.Hash(b.tree.Root()),
		Timestamp:          b.Time,
		NextValidatorsHash: ValidatorsHash(c.validators),
	}
	signed, err := SignHeader(header, c.validators, c.keys)
	if err != nil {
		return nil, err
	}
	b.Header = signed
	c.blocks = append(c.blocks, b)

	next := uint64(c.timeProvider.Now().UnixNano())
	if next <= b.Time {
		next = b.Time + uint64(time.Second)
	}
	c.pending = &Block{Height: b.Height + 1, Time: next}
	metrics.RecordLatestHeight(c.cfg.ChainID, b.Height)
	log.Debugf("chain %s sealed block %d txs[%d] leaves[%d] root[%s]", c.cfg.ChainID, b.Height, len(b.Txs), len(b.Leaves), header.MessageRoot.Hex())
	return b, nil
}

// Mint credits coins to addr out of thin air. Used for genesis balances.
func (c *Chain) Mint(ctx context.Context, addr string, coins ...wasmvmtypes.Coin) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx := c.newTx(ctx, "", addr)
	if err := c.bank.mint(tx.root, addr, coins); err != nil {
		return err
	}
	_, err := tx.commit()
	return err
}

// Balance returns the committed balance of addr
func (c *Chain) Balance(ctx context.Context, addr, denom string) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx := c.newTx(ctx, "", addr)
	balance, err := c.bank.balance(tx.root, addr, denom)
	if err != nil {
		return nil, err
	}
	return balance, tx.backend.err
}

// Instantiate deploys contract at address and runs its Instantiate entry point
func (c *Chain) Instantiate(ctx context.Context, creator, address string, contract Contract, msg []byte, funds ...wasmvmtypes.Coin) (*TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.contracts[address]; ok {
		return nil, fmt.Errorf("%s: %w", address, ErrContractExists)
	}
	c.contracts[address] = contract
	tx := c.newTx(ctx, creator, address)
	res, err := tx.run(func() ([]wasmvmtypes.Event, []byte, error) {
		if err := tx.transfer(tx.root, creator, address, funds); err != nil {
			return nil, nil, err
		}
		info := wasmvmtypes.MessageInfo{Sender: creator, Funds: funds}
		resp, err := contract.Instantiate(tx.deps(tx.root, address), tx.env(address), info, msg)
		if err != nil {
			return nil, nil, &ContractError{Contract: address, Err: err}
		}
		return tx.handleResponse(tx.root, 0, address, resp)
	})
	if err != nil {
		delete(c.contracts, address)
		return nil, err
	}
	return res, nil
}

// Execute runs one transaction calling contract with msg
func (c *Chain) Execute(ctx context.Context, sender, contract string, msg []byte, funds ...wasmvmtypes.Coin) (*TxResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx := c.newTx(ctx, sender, contract)
	return tx.run(func() ([]wasmvmtypes.Event, []byte, error) {
		return tx.execute(tx.root, 0, sender, contract, msg, funds)
	})
}

// Query runs a read only query against committed state
func (c *Chain) Query(ctx context.Context, contract string, msg []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx := c.newTx(ctx, "", contract)
	res, err := tx.querier(tx.root).QueryContract(contract, msg)
	if err != nil {
		return nil, err
	}
	return res, tx.backend.err
}

// tx is the state of one entry point execution
type tx struct {
	chain    *Chain
	ctx      context.Context
	logger   *log.Logger
	backend  *backendReader
	root     *cacheStore
	sender   string
	contract string
}

func (c *Chain) newTx(ctx context.Context, sender, contract string) *tx {
	ctx = utils.WithTraceID(ctx)
	backend := &backendReader{ctx: ctx, storage: c.storage}
	return &tx{
		chain:    c,
		ctx:      ctx,
		logger:   log.WithFields(utils.TraceID, ctx.Value(utils.CtxTraceID), "chain", c.cfg.ChainID),
		backend:  backend,
		root:     newCacheStore(backend),
		sender:   sender,
		contract: contract,
	}
}

func (t *tx) run(fn func() ([]wasmvmtypes.Event, []byte, error)) (*TxResult, error) {
	start := time.Now()
	events, data, err := fn()
	if err == nil {
		err = t.backend.err
	}
	if err != nil {
		t.logger.Debugf("tx reverted, sender[%s] contract[%s] err[%v]", t.sender, t.contract, err)
		metrics.RecordExecution(t.chain.cfg.ChainID, false, time.Since(start))
		return nil, err
	}
	res := &TxResult{
		Height:   t.chain.pending.Height,
		Index:    uint32(len(t.chain.pending.Txs)),
		Sender:   t.sender,
		Contract: t.contract,
		Events:   events,
		Data:     data,
	}
	if _, err := t.commit(); err != nil {
		metrics.RecordExecution(t.chain.cfg.ChainID, false, time.Since(start))
		return nil, err
	}
	t.chain.pending.Txs = append(t.chain.pending.Txs, res)
	t.chain.pending.Leaves = append(t.chain.pending.Leaves, t.chain.leaves(events)...)
	t.logger.Debugf("tx executed, height[%d] sender[%s] contract[%s] events[%d]", res.Height, t.sender, t.contract, len(events))
	metrics.RecordExecution(t.chain.cfg.ChainID, true, time.Since(start))
	return res, nil
}

func (t *tx) commit() (int, error) {
	if t.backend.err != nil {
		return 0, t.backend.err
	}
	batch := t.root.batch()
	if len(batch) == 0 {
		return 0, nil
	}
	if err := t.chain.storage.Write(t.ctx, batch); err != nil {
		return 0, fmt.Errorf("writing %d keys: %w", len(batch), err)
	}
	return len(batch), nil
}

func (c *Chain) leaves(events []wasmvmtypes.Event) [][]byte {
	if c.cfg.CommitmentSource == "" {
		return nil
	}
	var leaves [][]byte
	for _, ev := range FindEvents(events, EventTypeCommitment) {
		source, _ := Attribute(ev, AttributeContractAddress)
		if source != c.cfg.CommitmentSource {
			continue
		}
		value, _ := Attribute(ev, AttributeLeaf)
		leaf, err := hex.DecodeString(value)
		if err != nil {
			log.Warnf("chain %s: ignoring malformed commitment leaf: %v", c.cfg.ChainID, err)
			continue
		}
		leaves = append(leaves, leaf)
	}
	return leaves
}

func (t *tx) env(addr string) wasmvmtypes.Env {
	b := t.chain.pending
	return wasmvmtypes.Env{
		Block: wasmvmtypes.BlockInfo{
			Height:  b.Height,
			Time:    wasmvmtypes.Uint64(b.Time),
			ChainID: t.chain.cfg.ChainID,
		},
		Transaction: &wasmvmtypes.TransactionInfo{Index: uint32(len(b.Txs))},
		Contract:    wasmvmtypes.ContractInfo{Address: addr},
	}
}

func (t *tx) deps(s *cacheStore, addr string) Deps {
	return Deps{
		Storage: PrefixStore(s, contractPrefix+addr+"/"),
		API:     t.chain.api,
		Querier: t.querier(s),
	}
}

func (t *tx) querier(s *cacheStore) Querier {
	return &querier{tx: t, store: s}
}

type querier struct {
	tx    *tx
	store *cacheStore
}

func (q *querier) IsContract(addr string) bool {
	_, ok := q.tx.chain.contracts[addr]
	return ok
}

func (q *querier) QueryContract(addr string, msg []byte) ([]byte, error) {
	contract, ok := q.tx.chain.contracts[addr]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr, ErrContractNotFound)
	}
	// writes made by a query are dropped
	scratch := q.store.branch()
	res, err := contract.Query(q.tx.deps(scratch, addr), q.tx.env(addr), msg)
	if err != nil {
		return nil, &ContractError{Contract: addr, Err: err}
	}
	return res, nil
}

func (q *querier) Balance(addr, denom string) (*uint256.Int, error) {
	return q.tx.chain.bank.balance(q.store, addr, denom)
}
