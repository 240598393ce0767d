// Package mempool holds unconfirmed transactions: it validates incoming
// transactions against the chain's confirmed state, orders them by gas
// fee for block inclusion, and evicts the cheapest entry when full.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/state"
	"github.com/jiji-chain/jiji-go/internal/validation"
)

// Mempool errors that callers may want to match on with errors.Is.
var (
	ErrCoinbaseNotAllowed = errors.New("coinbase transactions cannot be added to mempool")
	ErrAlreadyPending     = errors.New("transaction already in mempool")
	ErrAlreadyConfirmed   = errors.New("transaction already confirmed")
	ErrPoolFull           = errors.New("mempool full and fee too low for eviction")
)

// ChainView is the slice of chain state the mempool needs: the confirmed
// world state, confirmed post authors, and a confirmed-transaction check.
// *chain.Chain satisfies this directly.
type ChainView interface {
	State() *state.State
	KnownPosts() map[types.Hash]types.PubKey
	HasTx(h types.Hash) bool
}

// Pool holds unconfirmed, signature- and state-valid transactions.
type Pool struct {
	mu      sync.Mutex
	chain   ChainView
	maxSize int
	txs     map[types.Hash]tx.Transaction
	// order records insertion order so GetPending can break fee ties the
	// same deterministic way every time, rather than depending on map
	// iteration order.
	order []types.Hash
}

// New creates a Pool backed by chain, holding at most maxSize transactions.
func New(chain ChainView, maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = config.MaxMempoolSize
	}
	return &Pool{
		chain:   chain,
		maxSize: maxSize,
		txs:     make(map[types.Hash]tx.Transaction),
	}
}

// Size returns the number of pending transactions.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.txs)
}

// Has reports whether txHash is currently pending.
func (p *Pool) Has(txHash types.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.txs[txHash]
	return ok
}

// Add validates t and adds it to the pool, returning its hash. Coinbase
// transactions are always rejected — they only ever arrive as part of a
// mined block.
func (p *Pool) Add(t tx.Transaction) (types.Hash, error) {
	if _, isCoinbase := t.(*tx.Coinbase); isCoinbase {
		return types.Hash{}, ErrCoinbaseNotAllowed
	}

	txHash, err := t.TxHash()
	if err != nil {
		return types.Hash{}, fmt.Errorf("mempool: hash tx: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.txs[txHash]; exists {
		return types.Hash{}, ErrAlreadyPending
	}
	if p.chain.HasTx(txHash) {
		return types.Hash{}, ErrAlreadyConfirmed
	}

	if err := validation.ValidateTransactionFormat(t, 0); err != nil {
		return types.Hash{}, err
	}
	if err := validation.ValidateTransactionState(t, p.chain.State(), p.chain.KnownPosts()); err != nil {
		return types.Hash{}, err
	}

	if len(p.txs) >= p.maxSize {
		lowestHash, lowestFee, ok := p.findLowestFeeLocked()
		if !ok || gasFee(t) <= lowestFee {
			return types.Hash{}, ErrPoolFull
		}
		delete(p.txs, lowestHash)
		p.removeFromOrderLocked(lowestHash)
	}

	p.txs[txHash] = t
	p.order = append(p.order, txHash)
	return txHash, nil
}

// Remove drops a single transaction by hash, if present.
func (p *Pool) Remove(txHash types.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.txs, txHash)
	p.removeFromOrderLocked(txHash)
}

// RemoveConfirmed drops every transaction in b from the pool — called
// once a block carrying them has been accepted onto the chain.
func (p *Pool) RemoveConfirmed(b *block.Block) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range b.Transactions {
		h, err := t.TxHash()
		if err != nil {
			return fmt.Errorf("mempool: hash confirmed tx: %w", err)
		}
		delete(p.txs, h)
		p.removeFromOrderLocked(h)
	}
	return nil
}

// Revalidate re-checks every pending transaction against the chain's
// current state and purges anything no longer valid — a stale nonce or an
// insufficient balance caused by another transaction from the same
// account confirming first. Returns the hashes removed.
func (p *Pool) Revalidate() ([]types.Hash, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var removed []types.Hash
	st := p.chain.State()
	knownPosts := p.chain.KnownPosts()
	for txHash, t := range p.txs {
		if err := validation.ValidateTransactionState(t, st, knownPosts); err != nil {
			delete(p.txs, txHash)
			p.removeFromOrderLocked(txHash)
			removed = append(removed, txHash)
		}
	}
	return removed, nil
}

// removeFromOrderLocked drops txHash from the insertion-order slice.
// Callers must hold p.mu.
func (p *Pool) removeFromOrderLocked(txHash types.Hash) {
	for i, h := range p.order {
		if h == txHash {
			p.order = append(p.order[:i], p.order[i+1:]...)
			return
		}
	}
}

// GetByHash returns the pending transaction with the given hash, or nil.
func (p *Pool) GetByHash(txHash types.Hash) tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.txs[txHash]
}

// GetPending returns every pending transaction ordered by gas fee, highest
// first — the order a miner should consider them for inclusion. Ties are
// broken by insertion order (oldest first), so the result is deterministic
// across calls rather than depending on map iteration order.
func (p *Pool) GetPending() []tx.Transaction {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]tx.Transaction, 0, len(p.order))
	for _, h := range p.order {
		out = append(out, p.txs[h])
	}
	sort.SliceStable(out, func(i, j int) bool { return gasFee(out[i]) > gasFee(out[j]) })
	return out
}

func (p *Pool) findLowestFeeLocked() (types.Hash, uint64, bool) {
	var lowestHash types.Hash
	var lowestFee uint64
	found := false
	for h, t := range p.txs {
		fee := gasFee(t)
		if !found || fee < lowestFee {
			lowestHash, lowestFee, found = h, fee, true
		}
	}
	return lowestHash, lowestFee, found
}

// gasFee extracts a transaction's fee, used for both priority ordering
// and eviction. Coinbase transactions never reach the pool, but return 0
// for completeness rather than panicking on an unexpected type.
func gasFee(t tx.Transaction) uint64 {
	if signable, ok := t.(tx.Signable); ok {
		return signable.Fee()
	}
	return 0
}
