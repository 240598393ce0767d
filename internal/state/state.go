// Package state implements the account-based world state: balances and
// nonces for every pubkey that has ever appeared in an applied
// transaction, plus the Merkle commitment over that set used as a
// block's state root.
package state

import (
	"fmt"
	"sort"

	"github.com/jiji-chain/jiji-go/pkg/codec"
	"github.com/jiji-chain/jiji-go/pkg/merkle"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

// Account holds one pubkey's token balance and transaction nonce.
type Account struct {
	Balance uint64
	Nonce   uint64
}

// State tracks every account that has appeared in the chain so far.
// It is not safe for concurrent use; callers (the chain, the miner) guard
// it with their own locks.
type State struct {
	accounts map[types.PubKey]*Account
}

// New returns an empty world state.
func New() *State {
	return &State{accounts: make(map[types.PubKey]*Account)}
}

// Get returns the account for pubkey, or nil if it has never appeared.
func (s *State) Get(pubkey types.PubKey) *Account {
	return s.accounts[pubkey]
}

// GetOrCreate returns pubkey's account, creating a zero-balance one if
// this is the first time pubkey has appeared.
func (s *State) GetOrCreate(pubkey types.PubKey) *Account {
	acct, ok := s.accounts[pubkey]
	if !ok {
		acct = &Account{}
		s.accounts[pubkey] = acct
	}
	return acct
}

// Apply applies a single already-validated transaction to the state.
// targetAuthor resolves an Endorse's target post to the pubkey that
// authored it — required so the endorsement's tip can be credited; it may
// be the zero value when the endorsed post carries no tip.
func (s *State) Apply(transaction tx.Transaction, miner types.PubKey, targetAuthor types.PubKey) error {
	switch t := transaction.(type) {
	case *tx.Coinbase:
		s.applyCoinbase(t)
	case *tx.Post:
		s.applyPost(t, miner)
	case *tx.Endorse:
		s.applyEndorse(t, miner, targetAuthor)
	case *tx.Transfer:
		s.applyTransfer(t, miner)
	default:
		return fmt.Errorf("state: unknown transaction type %T", transaction)
	}
	return nil
}

func (s *State) applyCoinbase(t *tx.Coinbase) {
	s.GetOrCreate(t.Recipient).Balance += t.Amount
}

func (s *State) applyPost(t *tx.Post, miner types.PubKey) {
	author := s.GetOrCreate(t.Author)
	author.Balance -= t.GasFee
	author.Nonce++
	s.GetOrCreate(miner).Balance += t.GasFee
}

func (s *State) applyEndorse(t *tx.Endorse, miner, targetAuthor types.PubKey) {
	author := s.GetOrCreate(t.Author)
	author.Balance -= t.GasFeeN + t.Amount
	author.Nonce++
	s.GetOrCreate(miner).Balance += t.GasFeeN
	if t.Amount > 0 && !targetAuthor.IsZero() {
		s.GetOrCreate(targetAuthor).Balance += t.Amount
	}
}

func (s *State) applyTransfer(t *tx.Transfer, miner types.PubKey) {
	sender := s.GetOrCreate(t.Sender)
	sender.Balance -= t.Amount + t.GasFeeN
	sender.Nonce++
	s.GetOrCreate(t.Recipient).Balance += t.Amount
	s.GetOrCreate(miner).Balance += t.GasFeeN
}

// Root computes the Merkle commitment over every account, sorted by
// pubkey, each leaf being sha256(canonical({pubkey, balance, nonce})).
func (s *State) Root() (types.Hash, error) {
	if len(s.accounts) == 0 {
		return merkle.EmptyHash, nil
	}
	keys := make([]types.PubKey, 0, len(s.accounts))
	for k := range s.accounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	leaves := make([]types.Hash, len(keys))
	for i, k := range keys {
		acct := s.accounts[k]
		h, err := codec.Hash(map[string]any{
			"pubkey":  k.String(),
			"balance": acct.Balance,
			"nonce":   acct.Nonce,
		})
		if err != nil {
			return types.Hash{}, fmt.Errorf("state: hash account leaf: %w", err)
		}
		leaves[i] = types.Hash(h)
	}
	return merkle.Root(leaves), nil
}

// Clone returns a deep copy, used by the miner to build a working state
// for a candidate block without mutating the chain's confirmed state.
func (s *State) Clone() *State {
	out := New()
	for k, v := range s.accounts {
		acctCopy := *v
		out.accounts[k] = &acctCopy
	}
	return out
}
