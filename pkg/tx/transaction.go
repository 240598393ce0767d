// Package tx defines the four transaction kinds carried on the chain —
// Coinbase, Post, Endorse, and Transfer — as a tagged union expressed in
// Go as an interface with one concrete struct per kind.
package tx

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/jiji-chain/jiji-go/pkg/codec"
	"github.com/jiji-chain/jiji-go/pkg/crypto"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

// Type identifies which concrete transaction kind a Transaction is.
type Type string

const (
	TypeCoinbase Type = "coinbase"
	TypePost     Type = "post"
	TypeEndorse  Type = "endorse"
	TypeTransfer Type = "transfer"
)

// signatureField is excluded from the canonical encoding when computing the
// bytes that get signed or hashed.
const signatureField = "signature"

// Transaction is implemented by every concrete transaction kind. ToMap
// renders the transaction as the exact field set that gets canonicalized
// for hashing and, for signed kinds, for signing.
type Transaction interface {
	TxType() Type
	ToMap() map[string]any
	TxHash() (types.Hash, error)
}

// Signable is implemented by the three user-submitted transaction kinds,
// each of which carries a signature over its own canonical encoding.
type Signable interface {
	Transaction
	SignerKey() types.PubKey
	Signature() []byte
	SetSignature(sig []byte)
	Fee() uint64
}

// txHash computes sha256(Canonicalize(t.ToMap(), exclude...)).
func txHash(t Transaction, exclude ...string) (types.Hash, error) {
	h, err := codec.Hash(t.ToMap(), exclude...)
	if err != nil {
		return types.Hash{}, fmt.Errorf("tx: hash: %w", err)
	}
	return types.Hash(h), nil
}

// signingPayload returns the canonical bytes a Signable's signature covers:
// its own field map with the signature field removed.
func signingPayload(t Signable) ([]byte, error) {
	payload, err := codec.Canonicalize(t.ToMap(), signatureField)
	if err != nil {
		return nil, fmt.Errorf("tx: canonicalize: %w", err)
	}
	return payload, nil
}

// Sign computes and installs a signature over t's canonical payload using
// priv. priv's public key must equal t.SignerKey().
func Sign(t Signable, priv *crypto.PrivateKey) error {
	payload, err := signingPayload(t)
	if err != nil {
		return err
	}
	t.SetSignature(priv.Sign(payload))
	return nil
}

// VerifySignature reports whether t carries a valid signature from its
// declared signer.
func VerifySignature(t Signable) bool {
	sig := t.Signature()
	if len(sig) == 0 {
		return false
	}
	payload, err := signingPayload(t)
	if err != nil {
		return false
	}
	return crypto.VerifySignature(payload, sig, t.SignerKey())
}

// Coinbase is the block-reward transaction. It is not signed — its
// validity is established by its position as the first transaction of a
// block whose miner reward matches the schedule.
type Coinbase struct {
	Recipient types.PubKey
	Amount    uint64
	Height    uint64
}

func (c *Coinbase) TxType() Type { return TypeCoinbase }

func (c *Coinbase) ToMap() map[string]any {
	return map[string]any{
		"tx_type":   string(TypeCoinbase),
		"recipient": c.Recipient.String(),
		"amount":    c.Amount,
		"height":    c.Height,
	}
}

func (c *Coinbase) TxHash() (types.Hash, error) { return txHash(c) }

type coinbaseJSON struct {
	TxType    Type         `json:"tx_type"`
	Recipient types.PubKey `json:"recipient"`
	Amount    uint64       `json:"amount"`
	Height    uint64       `json:"height"`
}

func (c Coinbase) MarshalJSON() ([]byte, error) {
	return json.Marshal(coinbaseJSON{TypeCoinbase, c.Recipient, c.Amount, c.Height})
}

func (c *Coinbase) UnmarshalJSON(data []byte) error {
	var j coinbaseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	c.Recipient, c.Amount, c.Height = j.Recipient, j.Amount, j.Height
	return nil
}

// Post publishes a text body to the network, optionally as a reply to an
// existing post identified by its transaction hash.
type Post struct {
	Author    types.PubKey
	Nonce     uint64
	Timestamp int64
	Body      string
	ReplyTo   *types.Hash
	GasFee    uint64
	Sig       []byte
}

func (p *Post) TxType() Type { return TypePost }

func (p *Post) ToMap() map[string]any {
	var replyTo any
	if p.ReplyTo != nil {
		replyTo = p.ReplyTo.String()
	}
	return map[string]any{
		"tx_type":   string(TypePost),
		"author":    p.Author.String(),
		"nonce":     p.Nonce,
		"timestamp": p.Timestamp,
		"body":      p.Body,
		"reply_to":  replyTo,
		"gas_fee":   p.GasFee,
		"signature": hex.EncodeToString(p.Sig),
	}
}

func (p *Post) TxHash() (types.Hash, error) { return txHash(p, signatureField) }
func (p *Post) SignerKey() types.PubKey     { return p.Author }
func (p *Post) Signature() []byte           { return p.Sig }
func (p *Post) SetSignature(sig []byte)     { p.Sig = sig }
func (p *Post) Fee() uint64                 { return p.GasFee }

type postJSON struct {
	TxType    Type         `json:"tx_type"`
	Author    types.PubKey `json:"author"`
	Nonce     uint64       `json:"nonce"`
	Timestamp int64        `json:"timestamp"`
	Body      string       `json:"body"`
	ReplyTo   *types.Hash  `json:"reply_to"`
	GasFee    uint64       `json:"gas_fee"`
	Signature string       `json:"signature"`
}

func (p Post) MarshalJSON() ([]byte, error) {
	return json.Marshal(postJSON{
		TxType: TypePost, Author: p.Author, Nonce: p.Nonce, Timestamp: p.Timestamp,
		Body: p.Body, ReplyTo: p.ReplyTo, GasFee: p.GasFee, Signature: hex.EncodeToString(p.Sig),
	})
}

func (p *Post) UnmarshalJSON(data []byte) error {
	var j postJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	sig, err := decodeSig(j.Signature)
	if err != nil {
		return err
	}
	p.Author, p.Nonce, p.Timestamp, p.Body, p.ReplyTo, p.GasFee, p.Sig =
		j.Author, j.Nonce, j.Timestamp, j.Body, j.ReplyTo, j.GasFee, sig
	return nil
}

// Endorse endorses an existing post, carrying an optional tip amount and a
// short message.
type Endorse struct {
	Author  types.PubKey
	Nonce   uint64
	Target  types.Hash
	Amount  uint64
	Message string
	GasFeeN uint64
	Sig     []byte
}

func (e *Endorse) TxType() Type { return TypeEndorse }

func (e *Endorse) ToMap() map[string]any {
	return map[string]any{
		"tx_type":   string(TypeEndorse),
		"author":    e.Author.String(),
		"nonce":     e.Nonce,
		"target":    e.Target.String(),
		"amount":    e.Amount,
		"message":   e.Message,
		"gas_fee":   e.GasFeeN,
		"signature": hex.EncodeToString(e.Sig),
	}
}

func (e *Endorse) TxHash() (types.Hash, error) { return txHash(e, signatureField) }
func (e *Endorse) SignerKey() types.PubKey     { return e.Author }
func (e *Endorse) Signature() []byte           { return e.Sig }
func (e *Endorse) SetSignature(sig []byte)     { e.Sig = sig }
func (e *Endorse) Fee() uint64                 { return e.GasFeeN }

type endorseJSON struct {
	TxType    Type         `json:"tx_type"`
	Author    types.PubKey `json:"author"`
	Nonce     uint64       `json:"nonce"`
	Target    types.Hash   `json:"target"`
	Amount    uint64       `json:"amount"`
	Message   string       `json:"message"`
	GasFee    uint64       `json:"gas_fee"`
	Signature string       `json:"signature"`
}

func (e Endorse) MarshalJSON() ([]byte, error) {
	return json.Marshal(endorseJSON{
		TxType: TypeEndorse, Author: e.Author, Nonce: e.Nonce, Target: e.Target,
		Amount: e.Amount, Message: e.Message, GasFee: e.GasFeeN, Signature: hex.EncodeToString(e.Sig),
	})
}

func (e *Endorse) UnmarshalJSON(data []byte) error {
	var j endorseJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	sig, err := decodeSig(j.Signature)
	if err != nil {
		return err
	}
	e.Author, e.Nonce, e.Target, e.Amount, e.Message, e.GasFeeN, e.Sig =
		j.Author, j.Nonce, j.Target, j.Amount, j.Message, j.GasFee, sig
	return nil
}

// Transfer moves tokens directly from sender to recipient.
type Transfer struct {
	Sender    types.PubKey
	Recipient types.PubKey
	Amount    uint64
	Nonce     uint64
	GasFeeN   uint64
	Sig       []byte
}

func (t *Transfer) TxType() Type { return TypeTransfer }

func (t *Transfer) ToMap() map[string]any {
	return map[string]any{
		"tx_type":   string(TypeTransfer),
		"sender":    t.Sender.String(),
		"recipient": t.Recipient.String(),
		"amount":    t.Amount,
		"nonce":     t.Nonce,
		"gas_fee":   t.GasFeeN,
		"signature": hex.EncodeToString(t.Sig),
	}
}

func (t *Transfer) TxHash() (types.Hash, error) { return txHash(t, signatureField) }
func (t *Transfer) SignerKey() types.PubKey     { return t.Sender }
func (t *Transfer) Signature() []byte           { return t.Sig }
func (t *Transfer) SetSignature(sig []byte)     { t.Sig = sig }
func (t *Transfer) Fee() uint64                 { return t.GasFeeN }

type transferJSON struct {
	TxType    Type         `json:"tx_type"`
	Sender    types.PubKey `json:"sender"`
	Recipient types.PubKey `json:"recipient"`
	Amount    uint64       `json:"amount"`
	Nonce     uint64       `json:"nonce"`
	GasFee    uint64       `json:"gas_fee"`
	Signature string       `json:"signature"`
}

func (t Transfer) MarshalJSON() ([]byte, error) {
	return json.Marshal(transferJSON{
		TxType: TypeTransfer, Sender: t.Sender, Recipient: t.Recipient,
		Amount: t.Amount, Nonce: t.Nonce, GasFee: t.GasFeeN, Signature: hex.EncodeToString(t.Sig),
	})
}

func (t *Transfer) UnmarshalJSON(data []byte) error {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	sig, err := decodeSig(j.Signature)
	if err != nil {
		return err
	}
	t.Sender, t.Recipient, t.Amount, t.Nonce, t.GasFeeN, t.Sig =
		j.Sender, j.Recipient, j.Amount, j.Nonce, j.GasFee, sig
	return nil
}

func decodeSig(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("tx: invalid signature hex: %w", err)
	}
	return b, nil
}
