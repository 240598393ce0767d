package state

import (
	"testing"

	"github.com/jiji-chain/jiji-go/pkg/merkle"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

func pk(b byte) types.PubKey {
	var p types.PubKey
	p[0] = b
	return p
}

func TestApplyCoinbaseCreditsRecipient(t *testing.T) {
	s := New()
	recipient := pk(1)
	if err := s.Apply(&tx.Coinbase{Recipient: recipient, Amount: 50, Height: 1}, types.PubKey{}, types.PubKey{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := s.Get(recipient).Balance; got != 50 {
		t.Fatalf("got balance %d, want 50", got)
	}
}

func TestApplyPostChargesGasFeeToMiner(t *testing.T) {
	s := New()
	author, miner := pk(1), pk(2)
	s.GetOrCreate(author).Balance = 100
	p := &tx.Post{Author: author, Nonce: 0, GasFee: 5, Body: "hello"}
	if err := s.Apply(p, miner, types.PubKey{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.Get(author).Balance != 95 {
		t.Fatalf("author balance = %d, want 95", s.Get(author).Balance)
	}
	if s.Get(author).Nonce != 1 {
		t.Fatalf("author nonce = %d, want 1", s.Get(author).Nonce)
	}
	if s.Get(miner).Balance != 5 {
		t.Fatalf("miner balance = %d, want 5", s.Get(miner).Balance)
	}
}

func TestApplyEndorseCreditsTargetAuthor(t *testing.T) {
	s := New()
	author, miner, target := pk(1), pk(2), pk(3)
	s.GetOrCreate(author).Balance = 100
	e := &tx.Endorse{Author: author, Amount: 10, GasFeeN: 2}
	if err := s.Apply(e, miner, target); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.Get(author).Balance != 88 {
		t.Fatalf("author balance = %d, want 88", s.Get(author).Balance)
	}
	if s.Get(target).Balance != 10 {
		t.Fatalf("target balance = %d, want 10", s.Get(target).Balance)
	}
	if s.Get(miner).Balance != 2 {
		t.Fatalf("miner balance = %d, want 2", s.Get(miner).Balance)
	}
}

func TestApplyEndorseZeroAmountSkipsTargetCredit(t *testing.T) {
	s := New()
	author, miner := pk(1), pk(2)
	s.GetOrCreate(author).Balance = 100
	e := &tx.Endorse{Author: author, Amount: 0, GasFeeN: 2}
	if err := s.Apply(e, miner, types.PubKey{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.Get(types.PubKey{}) != nil {
		t.Fatal("expected no account created for zero-value target")
	}
}

func TestApplyTransferMovesBalance(t *testing.T) {
	s := New()
	sender, recipient, miner := pk(1), pk(2), pk(3)
	s.GetOrCreate(sender).Balance = 100
	tr := &tx.Transfer{Sender: sender, Recipient: recipient, Amount: 30, GasFeeN: 1}
	if err := s.Apply(tr, miner, types.PubKey{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.Get(sender).Balance != 69 {
		t.Fatalf("sender balance = %d, want 69", s.Get(sender).Balance)
	}
	if s.Get(recipient).Balance != 30 {
		t.Fatalf("recipient balance = %d, want 30", s.Get(recipient).Balance)
	}
}

func TestRootEmptyStateMatchesEmptyHash(t *testing.T) {
	s := New()
	root, err := s.Root()
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	empty := merkle.EmptyHash
	if root != empty {
		t.Fatal("expected empty state root to equal merkle.EmptyHash")
	}
}

func TestRootDeterministicRegardlessOfInsertOrder(t *testing.T) {
	s1 := New()
	s1.GetOrCreate(pk(1)).Balance = 10
	s1.GetOrCreate(pk(2)).Balance = 20

	s2 := New()
	s2.GetOrCreate(pk(2)).Balance = 20
	s2.GetOrCreate(pk(1)).Balance = 10

	r1, _ := s1.Root()
	r2, _ := s2.Root()
	if r1 != r2 {
		t.Fatal("expected root to be independent of insertion order")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	s.GetOrCreate(pk(1)).Balance = 10
	clone := s.Clone()
	clone.GetOrCreate(pk(1)).Balance = 999
	if s.Get(pk(1)).Balance != 10 {
		t.Fatal("expected clone mutation not to affect original")
	}
}
