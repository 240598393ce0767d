package chain

import (
	"fmt"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/merkle"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/state"
)

// InitializeGenesis creates, mines, and applies the genesis block: a
// single Coinbase transaction paying the height-0 block reward to
// minerPubkey. It is an error to call this on a chain that already has
// blocks.
func (c *Chain) InitializeGenesis(minerPubkey types.PubKey, timestamp int64) (*block.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.mainChain) != 0 {
		return nil, fmt.Errorf("chain: already initialized")
	}

	reward := config.BlockReward(0)
	coinbase := &tx.Coinbase{Recipient: minerPubkey, Amount: reward, Height: 0}

	coinbaseHash, err := coinbase.TxHash()
	if err != nil {
		return nil, fmt.Errorf("chain: hash genesis coinbase: %w", err)
	}
	txRoot := merkle.Root([]types.Hash{coinbaseHash})

	tempState := state.New()
	if err := tempState.Apply(coinbase, minerPubkey, types.PubKey{}); err != nil {
		return nil, fmt.Errorf("chain: apply genesis coinbase: %w", err)
	}
	stateRoot, err := tempState.Root()
	if err != nil {
		return nil, fmt.Errorf("chain: compute genesis state root: %w", err)
	}

	b := &block.Block{
		Header: block.Header{
			Version:      config.ProtocolVersion,
			Height:       0,
			PrevHash:     types.Hash{},
			Timestamp:    timestamp,
			Miner:        minerPubkey,
			Difficulty:   config.GenesisDifficulty,
			Nonce:        0,
			TxMerkleRoot: txRoot,
			StateRoot:    stateRoot,
			TxCount:      1,
		},
		Transactions: []tx.Transaction{coinbase},
	}

	for {
		meets, err := b.MeetsDifficulty(config.MaxTarget)
		if err != nil {
			return nil, fmt.Errorf("chain: genesis meets difficulty: %w", err)
		}
		if meets {
			break
		}
		b.Header.Nonce++
	}

	if err := c.applyBlockLocked(b, tempState); err != nil {
		return nil, err
	}
	return b, nil
}

// AdoptGenesis applies an already-constructed genesis block supplied by a
// peer or operator instead of mining a fresh one — used so every node in
// a network shares the same genesis rather than each minting its own.
func (c *Chain) AdoptGenesis(b *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.mainChain) != 0 {
		return fmt.Errorf("chain: already initialized")
	}
	if b.Header.Height != 0 || !b.Header.PrevHash.IsZero() {
		return fmt.Errorf("chain: not a genesis block")
	}
	if len(b.Transactions) != 1 {
		return fmt.Errorf("chain: genesis must carry exactly one transaction")
	}
	coinbase, ok := b.Transactions[0].(*tx.Coinbase)
	if !ok {
		return fmt.Errorf("chain: genesis transaction must be a coinbase")
	}

	meets, err := b.MeetsDifficulty(config.MaxTarget)
	if err != nil {
		return fmt.Errorf("chain: genesis meets difficulty: %w", err)
	}
	if !meets {
		return fmt.Errorf("chain: genesis does not satisfy its own difficulty")
	}

	st := state.New()
	if err := st.Apply(coinbase, coinbase.Recipient, types.PubKey{}); err != nil {
		return fmt.Errorf("chain: apply genesis coinbase: %w", err)
	}
	stateRoot, err := st.Root()
	if err != nil {
		return fmt.Errorf("chain: compute genesis state root: %w", err)
	}
	if stateRoot != b.Header.StateRoot {
		return fmt.Errorf("chain: genesis state_root mismatch")
	}

	return c.applyBlockLocked(b, st)
}
