package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/crypto"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/chain"
	"github.com/jiji-chain/jiji-go/internal/mempool"
)

type testEnv struct {
	server *Server
	chain  *chain.Chain
	pool   *mempool.Pool
	miner  types.PubKey
	url    string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	c := chain.New()
	miner := types.PubKey{7}
	if _, err := c.InitializeGenesis(miner, time.Now().Unix()); err != nil {
		t.Fatalf("initialize genesis: %v", err)
	}
	pool := mempool.New(c, config.MaxMempoolSize)

	srv := New("127.0.0.1:0", c, pool, nil)
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return &testEnv{server: srv, chain: c, pool: pool, miner: miner, url: "http://" + srv.Addr() + "/"}
}

func (e *testEnv) call(t *testing.T, method string, params any) Response {
	t.Helper()
	reqBody, err := json.Marshal(Request{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	resp, err := http.Post(e.url, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestGetLatestBlockReturnsGenesis(t *testing.T) {
	env := setupTestEnv(t)
	resp := env.call(t, "get_latest_block", struct{}{})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var decoded struct {
		Header struct {
			Height uint64 `json:"height"`
		} `json:"header"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal block: %v", err)
	}
	if decoded.Header.Height != 0 {
		t.Fatalf("height = %d, want 0", decoded.Header.Height)
	}
}

func TestGetNodeInfoReportsHeightAndMempoolSize(t *testing.T) {
	env := setupTestEnv(t)
	resp := env.call(t, "get_node_info", struct{}{})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	raw, _ := json.Marshal(resp.Result)
	var info NodeInfoResult
	if err := json.Unmarshal(raw, &info); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if info.Height != 0 || info.MempoolSize != 0 || info.PeerCount != 0 {
		t.Fatalf("unexpected node info: %+v", info)
	}
}

func TestGetAccountReturnsZeroForUnknownPubkey(t *testing.T) {
	env := setupTestEnv(t)
	resp := env.call(t, "get_account", PubKeyParams{PubKey: fmt.Sprintf("%064x", 0)})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var acct AccountResult
	if err := json.Unmarshal(raw, &acct); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if acct.Balance != 0 || acct.Nonce != 0 {
		t.Fatalf("unexpected account: %+v", acct)
	}
}

func TestGetAccountReturnsMinerBalance(t *testing.T) {
	env := setupTestEnv(t)
	resp := env.call(t, "get_account", PubKeyParams{PubKey: env.miner.String()})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var acct AccountResult
	if err := json.Unmarshal(raw, &acct); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if acct.Balance != config.BlockReward(0) {
		t.Fatalf("balance = %d, want %d", acct.Balance, config.BlockReward(0))
	}
}

func TestSubmitTransactionAddsToMempoolAndReturnsHash(t *testing.T) {
	env := setupTestEnv(t)

	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	env.chain.State().GetOrCreate(priv.PublicKey()).Balance = 1000

	transfer := &tx.Transfer{
		Sender:    priv.PublicKey(),
		Recipient: types.PubKey{0xaa},
		Amount:    10,
		GasFeeN:   config.MinimumGasFee,
	}
	if err := tx.Sign(transfer, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	txBytes, err := json.Marshal(transfer)
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}

	resp := env.call(t, "submit_transaction", SubmitTransactionParams{Transaction: txBytes})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	raw, _ := json.Marshal(resp.Result)
	var result SubmitTransactionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	wantHash, err := transfer.TxHash()
	if err != nil {
		t.Fatalf("tx hash: %v", err)
	}
	if result.TxHash != wantHash.String() {
		t.Fatalf("tx_hash = %s, want %s", result.TxHash, wantHash.String())
	}
	if env.pool.Size() != 1 {
		t.Fatalf("mempool size = %d, want 1", env.pool.Size())
	}
}

func TestGetMempoolListsSubmittedHash(t *testing.T) {
	env := setupTestEnv(t)

	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	env.chain.State().GetOrCreate(priv.PublicKey()).Balance = 1000
	transfer := &tx.Transfer{Sender: priv.PublicKey(), Recipient: types.PubKey{0xbb}, Amount: 5, GasFeeN: config.MinimumGasFee}
	if err := tx.Sign(transfer, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := env.pool.Add(transfer); err != nil {
		t.Fatalf("add to pool: %v", err)
	}

	resp := env.call(t, "get_mempool", struct{}{})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result)
	var result MempoolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("transactions = %v, want 1 entry", result.Transactions)
	}
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	env := setupTestEnv(t)
	resp := env.call(t, "bogus_method", struct{}{})
	if resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %+v", resp.Error)
	}
}

func TestGetBlockRequiresHeightOrHash(t *testing.T) {
	env := setupTestEnv(t)
	resp := env.call(t, "get_block", struct{}{})
	if resp.Error == nil {
		t.Fatal("expected error when neither height nor hash given")
	}
}
