package block

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jiji-chain/jiji-go/pkg/merkle"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

// Block is a complete header plus its transaction body. Transactions[0]
// is always the block's Coinbase.
type Block struct {
	Header       Header
	Transactions []tx.Transaction
}

// Hash returns the block's content address, which is just its header's hash.
func (b *Block) Hash() (types.Hash, error) {
	return b.Header.Hash()
}

// ComputeTxMerkleRoot recomputes the Merkle root over b.Transactions,
// independent of whatever value is currently stored in the header.
func (b *Block) ComputeTxMerkleRoot() (types.Hash, error) {
	hashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		h, err := t.TxHash()
		if err != nil {
			return types.Hash{}, fmt.Errorf("block: hash tx %d: %w", i, err)
		}
		hashes[i] = h
	}
	return merkle.Root(hashes), nil
}

// SerializedSize approximates the block's wire size as the length of its
// canonical JSON encoding.
func (b *Block) SerializedSize() (int, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return 0, fmt.Errorf("block: size: %w", err)
	}
	return len(raw), nil
}

// MeetsDifficulty reports whether the block's hash, read as a big-endian
// integer, is at or below MaxTarget/difficulty.
func (b *Block) MeetsDifficulty(maxTarget *big.Int) (bool, error) {
	hash, err := b.Hash()
	if err != nil {
		return false, err
	}
	if b.Header.Difficulty == 0 {
		return false, fmt.Errorf("block: difficulty must be positive")
	}
	hashInt := new(big.Int).SetBytes(hash[:])
	target := new(big.Int).Div(maxTarget, new(big.Int).SetUint64(b.Header.Difficulty))
	return hashInt.Cmp(target) <= 0, nil
}

type blockJSON struct {
	Header       Header            `json:"header"`
	Transactions []json.RawMessage `json:"transactions"`
}

// MarshalJSON encodes the block as {header, transactions}, relying on each
// transaction's own MarshalJSON for its tagged-union wire form.
func (b Block) MarshalJSON() ([]byte, error) {
	txs := make([]json.RawMessage, len(b.Transactions))
	for i, t := range b.Transactions {
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("block: marshal tx %d: %w", i, err)
		}
		txs[i] = raw
	}
	return json.Marshal(blockJSON{Header: b.Header, Transactions: txs})
}

// UnmarshalJSON decodes a block, dispatching each transaction to its
// concrete type via tx.UnmarshalTransactionJSON.
func (b *Block) UnmarshalJSON(data []byte) error {
	var j blockJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	txs := make([]tx.Transaction, len(j.Transactions))
	for i, raw := range j.Transactions {
		t, err := tx.UnmarshalTransactionJSON(raw)
		if err != nil {
			return fmt.Errorf("block: decode tx %d: %w", i, err)
		}
		txs[i] = t
	}
	b.Header = j.Header
	b.Transactions = txs
	return nil
}
