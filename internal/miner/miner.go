// Package miner assembles candidate blocks from the mempool and seals
// them with proof-of-work.
package miner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/merkle"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/state"
	"github.com/jiji-chain/jiji-go/internal/validation"
)

// yieldEvery bounds how many nonces are tried between cancellation checks,
// keeping mining responsive to shutdown without paying a syscall per nonce.
const yieldEvery = 1 << 16

// blockHeaderOverhead is a rough byte estimate for a block's header and
// envelope, used only to keep candidate blocks under the wire size limit.
const blockHeaderOverhead = 200

// ChainReader is the slice of chain state the miner needs to build a
// template: current height/tip, recent timestamps for the median-time
// rule, and the confirmed state/known posts to simulate against.
type ChainReader interface {
	Height() uint64
	Tip() *block.Block
	BlockByHeight(height uint64) *block.Block
	RecentTimestamps(n int) []int64
	State() *state.State
	KnownPosts() map[types.Hash]types.PubKey
	HasTx(h types.Hash) bool
}

// MempoolReader is the slice of mempool behavior the miner needs to
// select candidate transactions.
type MempoolReader interface {
	GetPending() []tx.Transaction
}

// Miner builds candidate blocks from mempool transactions and grinds
// their nonce until proof-of-work is satisfied.
type Miner struct {
	chain   ChainReader
	mempool MempoolReader
	pubkey  types.PubKey
}

// New returns a Miner that pays block rewards to pubkey.
func New(chain ChainReader, mempool MempoolReader, pubkey types.PubKey) *Miner {
	return &Miner{chain: chain, mempool: mempool, pubkey: pubkey}
}

// CreateBlockTemplate builds an unsealed candidate block: a coinbase
// paying the current block reward plus as many mempool transactions as
// validate against the simulated working state and fit within the block
// size limit.
func (m *Miner) CreateBlockTemplate() (*block.Block, error) {
	height := m.chain.Height() + 1

	var prevHash types.Hash
	if tip := m.chain.Tip(); tip != nil {
		h, err := tip.Hash()
		if err != nil {
			return nil, fmt.Errorf("miner: hash tip: %w", err)
		}
		prevHash = h
	}

	difficulty := validation.ComputeExpectedDifficulty(m.chain, height)

	timestamp := time.Now().Unix()
	if recent := m.chain.RecentTimestamps(config.MedianTimeBlockCount); len(recent) > 0 {
		if med := median(recent); timestamp <= med {
			timestamp = med + 1
		}
	}

	reward := config.BlockReward(height)
	coinbase := &tx.Coinbase{Recipient: m.pubkey, Amount: reward, Height: height}
	selected := []tx.Transaction{coinbase}

	workingState := m.chain.State().Clone()
	if err := workingState.Apply(coinbase, m.pubkey, types.PubKey{}); err != nil {
		return nil, fmt.Errorf("miner: apply coinbase to template: %w", err)
	}
	workingPosts := make(map[types.Hash]types.PubKey, len(m.chain.KnownPosts()))
	for k, v := range m.chain.KnownPosts() {
		workingPosts[k] = v
	}

	for _, t := range m.mempool.GetPending() {
		if err := validation.ValidateTransactionFormat(t, height); err != nil {
			continue
		}
		if err := validation.ValidateTransactionState(t, workingState, workingPosts); err != nil {
			continue
		}

		candidate := append(selected, t)
		size, err := estimateSize(candidate)
		if err != nil {
			return nil, err
		}
		if size > config.MaxBlockSize {
			break
		}

		var targetAuthor types.PubKey
		if endorse, ok := t.(*tx.Endorse); ok && endorse.Amount > 0 {
			targetAuthor = workingPosts[endorse.Target]
		}
		if err := workingState.Apply(t, m.pubkey, targetAuthor); err != nil {
			continue
		}
		selected = candidate

		if post, ok := t.(*tx.Post); ok {
			txHash, err := post.TxHash()
			if err != nil {
				return nil, fmt.Errorf("miner: hash post: %w", err)
			}
			workingPosts[txHash] = post.Author
		}
	}

	txHashes := make([]types.Hash, len(selected))
	for i, t := range selected {
		h, err := t.TxHash()
		if err != nil {
			return nil, fmt.Errorf("miner: hash tx %d: %w", i, err)
		}
		txHashes[i] = h
	}
	txRoot := merkle.Root(txHashes)

	stateRoot, err := workingState.Root()
	if err != nil {
		return nil, fmt.Errorf("miner: compute state root: %w", err)
	}

	return &block.Block{
		Header: block.Header{
			Version:      config.ProtocolVersion,
			Height:       height,
			PrevHash:     prevHash,
			Timestamp:    timestamp,
			Miner:        m.pubkey,
			Difficulty:   difficulty,
			Nonce:        0,
			TxMerkleRoot: txRoot,
			StateRoot:    stateRoot,
			TxCount:      uint32(len(selected)),
		},
		Transactions: selected,
	}, nil
}

// MineBlock grinds b's nonce until it meets its own stated difficulty, or
// ctx is cancelled. Cancellation is checked every yieldEvery nonces rather
// than on every iteration, so grinding stays cheap.
func (m *Miner) MineBlock(ctx context.Context, b *block.Block) error {
	for {
		if b.Header.Nonce%yieldEvery == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		meets, err := b.MeetsDifficulty(config.MaxTarget)
		if err != nil {
			return fmt.Errorf("miner: meets difficulty: %w", err)
		}
		if meets {
			return nil
		}
		b.Header.Nonce++
	}
}

// MineNext builds a template, mines it, and returns the sealed block
// without adding it to the chain or touching the mempool — the caller is
// responsible for both, since only it knows whether the block ultimately
// got accepted.
func (m *Miner) MineNext(ctx context.Context) (*block.Block, error) {
	template, err := m.CreateBlockTemplate()
	if err != nil {
		return nil, err
	}
	if err := m.MineBlock(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

func estimateSize(txs []tx.Transaction) (int, error) {
	total := blockHeaderOverhead
	for _, t := range txs {
		b, err := json.Marshal(t.ToMap())
		if err != nil {
			return 0, fmt.Errorf("miner: estimate size: %w", err)
		}
		total += len(b)
	}
	return total, nil
}

func median(values []int64) int64 {
	sorted := append([]int64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
