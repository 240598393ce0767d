package node

import (
	"testing"
	"time"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/crypto"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

func newTestNode(t *testing.T, minerSeed byte) *Node {
	t.Helper()
	cfg := DefaultConfig()
	miner := types.PubKey{minerSeed}
	n, err := New(cfg, miner, 1700000000)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return n
}

func TestNewInitializesGenesis(t *testing.T) {
	n := newTestNode(t, 1)
	if n.Height() != 0 {
		t.Fatalf("height = %d, want 0", n.Height())
	}
}

func signedTransfer(t *testing.T, n *Node, balance, amount, fee uint64) *tx.Transfer {
	t.Helper()
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	n.chain.State().GetOrCreate(priv.PublicKey()).Balance = balance

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

func TestHandleNewTransactionAddsToMempool(t *testing.T) {
	n := newTestNode(t, 2)
	tr := signedTransfer(t, n, 1000, 10, config.MinimumGasFee)

	if err := n.HandleNewTransaction(tr, nil); err != nil {
		t.Fatalf("handle new transaction: %v", err)
	}
	if n.mempool.Size() != 1 {
		t.Fatalf("mempool size = %d, want 1", n.mempool.Size())
	}
}

func TestHandleNewTransactionRejectsInvalid(t *testing.T) {
	n := newTestNode(t, 3)
	tr := signedTransfer(t, n, 5, 1000, config.MinimumGasFee) // amount+fee > balance

	if err := n.HandleNewTransaction(tr, nil); err == nil {
		t.Fatal("expected rejection for insufficient balance")
	}
	if n.mempool.Size() != 0 {
		t.Fatalf("mempool size = %d, want 0 after rejection", n.mempool.Size())
	}
}

func TestHandleNewBlockMinedLocallyExtendsChain(t *testing.T) {
	n := newTestNode(t, 4)

	tmpl, err := n.miner.CreateBlockTemplate()
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	if err := n.miner.MineBlock(n.ctx, tmpl); err != nil {
		t.Fatalf("mine block: %v", err)
	}

	if err := n.HandleNewBlock(tmpl, nil); err != nil {
		t.Fatalf("handle new block: %v", err)
	}
	if n.Height() != 1 {
		t.Fatalf("height = %d, want 1", n.Height())
	}
}

func TestHandleNewBlockIgnoresWrongHeight(t *testing.T) {
	n := newTestNode(t, 5)

	tmpl, err := n.miner.CreateBlockTemplate()
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	tmpl.Header.Height = 5 // not tip+1
	if err := n.miner.MineBlock(n.ctx, tmpl); err != nil {
		t.Fatalf("mine block: %v", err)
	}

	if err := n.HandleNewBlock(tmpl, nil); err != nil {
		t.Fatalf("handle new block should no-op, not error: %v", err)
	}
	if n.Height() != 0 {
		t.Fatalf("height = %d, want 0 (block should have been ignored)", n.Height())
	}
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.P2PPort = 19501
	cfg.RPCPort = 19502
	n, err := New(cfg, types.PubKey{6}, time.Now().Unix())
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if err := n.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := n.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestTwoNodesGossipTransaction(t *testing.T) {
	cfgA := DefaultConfig()
	cfgA.P2PPort = 19511
	cfgA.RPCPort = 19512
	genesisTime := time.Now().Unix()
	a, err := New(cfgA, types.PubKey{8}, genesisTime)
	if err != nil {
		t.Fatalf("new node a: %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("start a: %v", err)
	}
	defer a.Stop()

	cfgB := DefaultConfig()
	cfgB.P2PPort = 19513
	cfgB.RPCPort = 19514
	b, err := New(cfgB, types.PubKey{8}, genesisTime)
	if err != nil {
		t.Fatalf("new node b: %v", err)
	}
	if err := b.Start(); err != nil {
		t.Fatalf("start b: %v", err)
	}
	defer b.Stop()

	if err := b.p2p.ConnectToPeer("127.0.0.1", cfgA.P2PPort); err != nil {
		t.Fatalf("connect b to a: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && (a.p2p.PeerCount() == 0 || b.p2p.PeerCount() == 0) {
		time.Sleep(10 * time.Millisecond)
	}
	if a.p2p.PeerCount() == 0 || b.p2p.PeerCount() == 0 {
		t.Fatal("peers never connected")
	}

	tr := signedTransfer(t, a, 1000, 10, config.MinimumGasFee)
	b.chain.State().GetOrCreate(tr.Sender).Balance = 1000
	if err := a.HandleNewTransaction(tr, nil); err != nil {
		t.Fatalf("handle new transaction on a: %v", err)
	}

	txHash, err := tr.TxHash()
	if err != nil {
		t.Fatalf("tx hash: %v", err)
	}
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && b.mempool.GetByHash(txHash) == nil {
		time.Sleep(10 * time.Millisecond)
	}
	if b.mempool.GetByHash(txHash) == nil {
		t.Fatal("transaction never gossiped to node b")
	}
}
