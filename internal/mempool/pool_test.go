package mempool

import (
	"errors"
	"testing"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/crypto"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/state"
)

// fakeChain is a minimal ChainView backed by a single in-memory state.
type fakeChain struct {
	st    *state.State
	posts map[types.Hash]types.PubKey
	txs   map[types.Hash]bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		st:    state.New(),
		posts: make(map[types.Hash]types.PubKey),
		txs:   make(map[types.Hash]bool),
	}
}

func (f *fakeChain) State() *state.State                    { return f.st }
func (f *fakeChain) KnownPosts() map[types.Hash]types.PubKey { return f.posts }
func (f *fakeChain) HasTx(h types.Hash) bool                 { return f.txs[h] }

func signedTransfer(t *testing.T, fc *fakeChain, balance, amount, fee uint64) *tx.Transfer {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	fc.st.GetOrCreate(priv.PublicKey()).Balance = balance

	tr := &tx.Transfer{
		Sender:    priv.PublicKey(),
		Recipient: types.PubKey{0xaa},
		Amount:    amount,
		GasFeeN:   fee,
	}
	if err := tx.Sign(tr, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tr
}

func TestPoolAddAcceptsValidTransfer(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)
	tr := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee)

	h, err := pool.Add(tr)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !pool.Has(h) {
		t.Error("expected tx to be pending after Add")
	}
	if pool.Size() != 1 {
		t.Errorf("size = %d, want 1", pool.Size())
	}
}

func TestPoolAddRejectsCoinbase(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)
	cb := &tx.Coinbase{Recipient: types.PubKey{1}, Amount: 50, Height: 1}
	if _, err := pool.Add(cb); !errors.Is(err, ErrCoinbaseNotAllowed) {
		t.Fatalf("expected ErrCoinbaseNotAllowed, got %v", err)
	}
}

func TestPoolAddRejectsDuplicate(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)
	tr := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee)

	if _, err := pool.Add(tr); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := pool.Add(tr); !errors.Is(err, ErrAlreadyPending) {
		t.Fatalf("expected ErrAlreadyPending, got %v", err)
	}
}

func TestPoolAddRejectsAlreadyConfirmed(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)
	tr := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee)
	h, err := tr.TxHash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	fc.txs[h] = true

	if _, err := pool.Add(tr); !errors.Is(err, ErrAlreadyConfirmed) {
		t.Fatalf("expected ErrAlreadyConfirmed, got %v", err)
	}
}

func TestPoolAddRejectsInvalidState(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)
	// Insufficient balance for amount + fee.
	tr := signedTransfer(t, fc, 5, 10, config.MinimumGasFee)

	if _, err := pool.Add(tr); err == nil {
		t.Fatal("expected error for insufficient balance")
	}
}

func TestPoolAddEvictsLowestFeeWhenFull(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 2)

	low := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee)
	mid := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee+5)
	if _, err := pool.Add(low); err != nil {
		t.Fatalf("add low: %v", err)
	}
	if _, err := pool.Add(mid); err != nil {
		t.Fatalf("add mid: %v", err)
	}

	high := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee+50)
	highHash, err := pool.Add(high)
	if err != nil {
		t.Fatalf("add high: %v", err)
	}

	lowHash, _ := low.TxHash()
	if pool.Has(lowHash) {
		t.Error("expected lowest-fee transaction to be evicted")
	}
	if !pool.Has(highHash) {
		t.Error("expected high-fee transaction to remain")
	}
	if pool.Size() != 2 {
		t.Errorf("size = %d, want 2", pool.Size())
	}
}

func TestPoolAddRejectsWhenFullAndFeeTooLow(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 1)

	high := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee+50)
	if _, err := pool.Add(high); err != nil {
		t.Fatalf("add high: %v", err)
	}

	low := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee)
	if _, err := pool.Add(low); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull, got %v", err)
	}
}

func TestPoolRemoveConfirmedDropsBlockTransactions(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)
	tr := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee)
	h, err := pool.Add(tr)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	b := &block.Block{Transactions: []tx.Transaction{tr}}
	if err := pool.RemoveConfirmed(b); err != nil {
		t.Fatalf("remove confirmed: %v", err)
	}
	if pool.Has(h) {
		t.Error("expected confirmed tx to be removed from pool")
	}
}

func TestPoolRevalidatePurgesStaleNonce(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)
	tr := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee)
	h, err := pool.Add(tr)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// Simulate the sender's nonce advancing via another confirmed tx.
	fc.st.Get(tr.Sender).Nonce++

	removed, err := pool.Revalidate()
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if len(removed) != 1 || removed[0] != h {
		t.Fatalf("expected %v removed, got %v", h, removed)
	}
	if pool.Has(h) {
		t.Error("expected stale tx purged by revalidate")
	}
}

func TestPoolGetPendingOrdersByFeeDescending(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)

	low := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee)
	high := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee+20)
	mid := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee+5)

	for _, tr := range []*tx.Transfer{low, high, mid} {
		if _, err := pool.Add(tr); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	pending := pool.GetPending()
	if len(pending) != 3 {
		t.Fatalf("len = %d, want 3", len(pending))
	}
	highHash, _ := high.TxHash()
	midHash, _ := mid.TxHash()
	lowHash, _ := low.TxHash()

	h0, _ := pending[0].TxHash()
	h1, _ := pending[1].TxHash()
	h2, _ := pending[2].TxHash()
	if h0 != highHash || h1 != midHash || h2 != lowHash {
		t.Fatalf("pending not ordered by fee descending: %v %v %v", h0, h1, h2)
	}
}

func TestPoolGetPendingBreaksTiesByInsertionOrder(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)

	first := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee+5)
	second := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee+5)
	third := signedTransfer(t, fc, 1000, 10, config.MinimumGasFee+5)

	for _, tr := range []*tx.Transfer{first, second, third} {
		if _, err := pool.Add(tr); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	firstHash, _ := first.TxHash()
	secondHash, _ := second.TxHash()
	thirdHash, _ := third.TxHash()
	want := []types.Hash{firstHash, secondHash, thirdHash}

	for i := 0; i < 5; i++ {
		pending := pool.GetPending()
		if len(pending) != 3 {
			t.Fatalf("len = %d, want 3", len(pending))
		}
		for j, tr := range pending {
			h, _ := tr.TxHash()
			if h != want[j] {
				t.Fatalf("call %d: pending[%d] = %v, want %v (ties must break by insertion order every call)", i, j, h, want[j])
			}
		}
	}
}

func TestPoolGetByHashReturnsNilForUnknown(t *testing.T) {
	fc := newFakeChain()
	pool := New(fc, 100)
	if got := pool.GetByHash(types.Hash{0xff}); got != nil {
		t.Error("expected nil for unknown hash")
	}
}
