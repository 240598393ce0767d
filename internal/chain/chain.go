// Package chain holds the canonical block history, the confirmed world
// state, and the indexes (by hash, by height, by transaction) built on
// top of them. A single mutex guards all of it: the node runs one
// consensus-relevant goroutine at a time by design, so the lock exists to
// make that explicit and to keep RPC reads safe, not to enable real
// parallel block processing.
package chain

import (
	"fmt"
	"sync"

	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/state"
	"github.com/jiji-chain/jiji-go/internal/validation"
)

// Chain manages the sequence of accepted blocks, the confirmed world
// state, and the lookup indexes derived from them.
type Chain struct {
	mu sync.Mutex

	blocks    map[types.Hash]*block.Block
	mainChain []types.Hash
	state     *state.State
	txIndex   map[types.Hash]types.Hash // tx hash -> containing block hash
	// knownPosts maps a confirmed post's tx hash to its author, doubling
	// as both the "is this hash a known post" set and the post->author
	// lookup the jiji reference keeps as two separate collections.
	knownPosts map[types.Hash]types.PubKey
}

// New returns an empty, uninitialized chain. Call InitializeGenesis (or
// AdoptGenesis) before any other operation.
func New() *Chain {
	return &Chain{
		blocks:     make(map[types.Hash]*block.Block),
		state:      state.New(),
		txIndex:    make(map[types.Hash]types.Hash),
		knownPosts: make(map[types.Hash]types.PubKey),
	}
}

// Height returns the current chain height. Callers must not invoke it
// before genesis is initialized.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heightLocked()
}

func (c *Chain) heightLocked() uint64 {
	if len(c.mainChain) == 0 {
		return 0
	}
	return uint64(len(c.mainChain) - 1)
}

// Tip returns the latest block on the main chain, or nil if genesis has
// not yet been initialized.
func (c *Chain) Tip() *block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.mainChain) == 0 {
		return nil
	}
	return c.blocks[c.mainChain[len(c.mainChain)-1]]
}

// BlockByHeight returns the main-chain block at height, or nil if out of range.
func (c *Chain) BlockByHeight(height uint64) *block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	if height >= uint64(len(c.mainChain)) {
		return nil
	}
	return c.blocks[c.mainChain[height]]
}

// BlockByHash returns the block with the given hash, or nil if unknown.
func (c *Chain) BlockByHash(h types.Hash) *block.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blocks[h]
}

// GetTransaction looks up a confirmed transaction by hash.
func (c *Chain) GetTransaction(txHash types.Hash) (tx.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	blockHash, ok := c.txIndex[txHash]
	if !ok {
		return nil, nil
	}
	b := c.blocks[blockHash]
	for _, t := range b.Transactions {
		h, err := t.TxHash()
		if err != nil {
			return nil, fmt.Errorf("chain: hash tx: %w", err)
		}
		if h == txHash {
			return t, nil
		}
	}
	return nil, nil
}

// TxBlockHash returns the hash of the block containing txHash, and
// whether it was found — used to answer get_merkle_proof.
func (c *Chain) TxBlockHash(txHash types.Hash) (types.Hash, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.txIndex[txHash]
	return h, ok
}

// HasTx reports whether txHash is already confirmed on the chain.
func (c *Chain) HasTx(txHash types.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.txIndex[txHash]
	return ok
}

// RecentTimestamps returns the timestamps of the last count main-chain
// blocks, oldest first.
func (c *Chain) RecentTimestamps(count int) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	start := len(c.mainChain) - count
	if start < 0 {
		start = 0
	}
	out := make([]int64, 0, len(c.mainChain)-start)
	for i := start; i < len(c.mainChain); i++ {
		out = append(out, c.blocks[c.mainChain[i]].Header.Timestamp)
	}
	return out
}

// State returns the chain's confirmed world state. Callers must treat it
// as read-only; the miner clones it before building on top.
func (c *Chain) State() *state.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// KnownPosts returns a copy of the confirmed post hash -> author map.
// Unlike State, which is swapped wholesale on every AddBlock, knownPosts is
// mutated in place, so callers that range over the result after releasing
// the lock need their own copy to stay race-free.
func (c *Chain) KnownPosts() map[types.Hash]types.PubKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[types.Hash]types.PubKey, len(c.knownPosts))
	for h, author := range c.knownPosts {
		out[h] = author
	}
	return out
}

// Account returns the balance/nonce for pubkey, or the zero account if it
// has never appeared.
func (c *Chain) Account(pubkey types.PubKey) state.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	acct := c.state.Get(pubkey)
	if acct == nil {
		return state.Account{}
	}
	return *acct
}

// AddBlock validates b against the chain as of currentTime and, if valid,
// appends it and adopts the resulting state. Returns a *validation.Error
// for rule violations and a plain error for internal failures.
func (c *Chain) AddBlock(b *block.Block, currentTime int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newState, err := validation.ValidateBlock(b, (*chainReader)(c), currentTime)
	if err != nil {
		return err
	}
	return c.applyBlockLocked(b, newState)
}

// applyBlockLocked appends an already-validated block and installs its
// resulting world state. Callers must hold c.mu.
func (c *Chain) applyBlockLocked(b *block.Block, newState *state.State) error {
	blockHash, err := b.Hash()
	if err != nil {
		return fmt.Errorf("chain: hash block: %w", err)
	}

	c.blocks[blockHash] = b
	c.mainChain = append(c.mainChain, blockHash)
	c.state = newState

	for _, t := range b.Transactions {
		txHash, err := t.TxHash()
		if err != nil {
			return fmt.Errorf("chain: hash tx: %w", err)
		}
		c.txIndex[txHash] = blockHash
		if post, ok := t.(*tx.Post); ok {
			c.knownPosts[txHash] = post.Author
		}
	}
	return nil
}

// chainReader adapts *Chain to validation.ChainReader without re-taking
// c.mu — it is only ever used while the caller already holds the lock.
type chainReader Chain

func (c *chainReader) Height() uint64 { return (*Chain)(c).heightLocked() }

func (c *chainReader) Tip() *block.Block {
	if len(c.mainChain) == 0 {
		return nil
	}
	return c.blocks[c.mainChain[len(c.mainChain)-1]]
}

func (c *chainReader) BlockByHeight(height uint64) *block.Block {
	if height >= uint64(len(c.mainChain)) {
		return nil
	}
	return c.blocks[c.mainChain[height]]
}

func (c *chainReader) RecentTimestamps(count int) []int64 {
	start := len(c.mainChain) - count
	if start < 0 {
		start = 0
	}
	out := make([]int64, 0, len(c.mainChain)-start)
	for i := start; i < len(c.mainChain); i++ {
		out = append(out, c.blocks[c.mainChain[i]].Header.Timestamp)
	}
	return out
}

func (c *chainReader) State() *state.State                     { return c.state }
func (c *chainReader) KnownPosts() map[types.Hash]types.PubKey { return c.knownPosts }
func (c *chainReader) HasTx(h types.Hash) bool {
	_, ok := c.txIndex[h]
	return ok
}
