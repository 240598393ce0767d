package tx

import (
	"encoding/json"
	"testing"

	"github.com/jiji-chain/jiji-go/pkg/crypto"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

func TestSignAndVerifyTransfer(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	transfer := &Transfer{
		Sender:    priv.PublicKey(),
		Recipient: types.PubKey{9},
		Amount:    10,
		Nonce:     0,
		GasFeeN:   1,
	}
	if err := Sign(transfer, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !VerifySignature(transfer) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerifyFailsAfterTamper(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	transfer := &Transfer{Sender: priv.PublicKey(), Recipient: types.PubKey{9}, Amount: 10, GasFeeN: 1}
	if err := Sign(transfer, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	transfer.Amount = 999
	if VerifySignature(transfer) {
		t.Fatal("expected signature to fail after tamper")
	}
}

func TestUnsignedTransactionFailsVerification(t *testing.T) {
	transfer := &Transfer{Sender: types.PubKey{1}, Recipient: types.PubKey{2}, Amount: 1}
	if VerifySignature(transfer) {
		t.Fatal("expected unsigned transaction to fail verification")
	}
}

func TestTxHashExcludesSignature(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	transfer := &Transfer{Sender: priv.PublicKey(), Recipient: types.PubKey{9}, Amount: 10, GasFeeN: 1}
	hashBefore, err := transfer.TxHash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := Sign(transfer, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	hashAfter, err := transfer.TxHash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hashBefore != hashAfter {
		t.Fatal("expected tx hash to be stable across signing since signature is excluded")
	}
}

func TestUnmarshalTransactionJSONDispatchesByType(t *testing.T) {
	cb := &Coinbase{Recipient: types.PubKey{1}, Amount: 50, Height: 1}
	raw, err := json.Marshal(cb)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalTransactionJSON(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.TxType() != TypeCoinbase {
		t.Fatalf("expected coinbase, got %s", decoded.TxType())
	}
}

func TestUnmarshalTransactionJSONUnknownType(t *testing.T) {
	_, err := UnmarshalTransactionJSON([]byte(`{"tx_type":"bogus"}`))
	if err == nil {
		t.Fatal("expected error for unknown tx_type")
	}
}

func TestPostJSONRoundTrip(t *testing.T) {
	priv, _ := crypto.GenerateKey()
	reply := types.Hash{7}
	p := &Post{Author: priv.PublicKey(), Nonce: 1, Timestamp: 1000, Body: "hi", ReplyTo: &reply, GasFee: 2}
	if err := Sign(p, priv); err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := UnmarshalTransactionJSON(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	dp := decoded.(*Post)
	if dp.Body != "hi" || dp.ReplyTo == nil || *dp.ReplyTo != reply {
		t.Fatalf("round trip mismatch: %+v", dp)
	}
	if !VerifySignature(dp) {
		t.Fatal("expected round-tripped signature to still verify")
	}
}
