// Package block defines the block header and block body types, along
// with the hashing, sizing, and difficulty checks defined over them.
package block

import (
	"encoding/json"
	"fmt"

	"github.com/jiji-chain/jiji-go/pkg/codec"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

// Header carries a block's metadata and proof-of-work fields.
type Header struct {
	Version      uint32
	Height       uint64
	PrevHash     types.Hash
	Timestamp    int64
	Miner        types.PubKey
	Difficulty   uint64
	Nonce        uint64
	TxMerkleRoot types.Hash
	StateRoot    types.Hash
	TxCount      uint32
}

// ToMap renders the header as the field map its hash is computed over.
func (h Header) ToMap() map[string]any {
	return map[string]any{
		"version":        h.Version,
		"height":         h.Height,
		"prev_hash":      h.PrevHash.String(),
		"timestamp":      h.Timestamp,
		"miner":          h.Miner.String(),
		"difficulty":     h.Difficulty,
		"nonce":          h.Nonce,
		"tx_merkle_root": h.TxMerkleRoot.String(),
		"state_root":     h.StateRoot.String(),
		"tx_count":       h.TxCount,
	}
}

// Hash computes the header's content address: sha256(canonicalize(ToMap())).
func (h Header) Hash() (types.Hash, error) {
	sum, err := codec.Hash(h.ToMap())
	if err != nil {
		return types.Hash{}, fmt.Errorf("block: hash header: %w", err)
	}
	return types.Hash(sum), nil
}

type headerJSON struct {
	Version      uint32       `json:"version"`
	Height       uint64       `json:"height"`
	PrevHash     types.Hash   `json:"prev_hash"`
	Timestamp    int64        `json:"timestamp"`
	Miner        types.PubKey `json:"miner"`
	Difficulty   uint64       `json:"difficulty"`
	Nonce        uint64       `json:"nonce"`
	TxMerkleRoot types.Hash   `json:"tx_merkle_root"`
	StateRoot    types.Hash   `json:"state_root"`
	TxCount      uint32       `json:"tx_count"`
}

// MarshalJSON encodes the header with hex-encoded hash and pubkey fields.
func (h Header) MarshalJSON() ([]byte, error) {
	return json.Marshal(headerJSON{
		Version: h.Version, Height: h.Height, PrevHash: h.PrevHash, Timestamp: h.Timestamp,
		Miner: h.Miner, Difficulty: h.Difficulty, Nonce: h.Nonce,
		TxMerkleRoot: h.TxMerkleRoot, StateRoot: h.StateRoot, TxCount: h.TxCount,
	})
}

// UnmarshalJSON decodes a header from its hex-encoded wire representation.
func (h *Header) UnmarshalJSON(data []byte) error {
	var j headerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*h = Header{
		Version: j.Version, Height: j.Height, PrevHash: j.PrevHash, Timestamp: j.Timestamp,
		Miner: j.Miner, Difficulty: j.Difficulty, Nonce: j.Nonce,
		TxMerkleRoot: j.TxMerkleRoot, StateRoot: j.StateRoot, TxCount: j.TxCount,
	}
	return nil
}
