package rpc

import (
	"encoding/json"

	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/tx"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeApplicationErr = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      any    `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ── Param types ─────────────────────────────────────────────────────────

// SubmitTransactionParams is the params of submit_transaction.
type SubmitTransactionParams struct {
	Transaction json.RawMessage `json:"transaction"`
}

// GetBlockParams is the params of get_block: exactly one of Height or
// Hash must be set.
type GetBlockParams struct {
	Height *uint64 `json:"height,omitempty"`
	Hash   string  `json:"hash,omitempty"`
}

// HashParams is the params of get_transaction and get_merkle_proof.
type HashParams struct {
	TxHash string `json:"tx_hash"`
}

// PubKeyParams is the params of get_account.
type PubKeyParams struct {
	PubKey string `json:"pubkey"`
}

// ── Result types ────────────────────────────────────────────────────────

// SubmitTransactionResult is the result of submit_transaction.
type SubmitTransactionResult struct {
	TxHash string `json:"tx_hash"`
}

// AccountResult is the result of get_account.
type AccountResult struct {
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// MempoolResult is the result of get_mempool.
type MempoolResult struct {
	Transactions []string `json:"transactions"`
}

// ProofStep is one sibling hash in a Merkle inclusion proof.
type ProofStep struct {
	Hash   string `json:"hash"`
	IsLeft bool   `json:"is_left"`
}

// MerkleProofResult is the result of get_merkle_proof.
type MerkleProofResult struct {
	TxHash    string      `json:"tx_hash"`
	BlockHash string      `json:"block_hash"`
	Index     int         `json:"index"`
	Proof     []ProofStep `json:"proof"`
	Root      string      `json:"root"`
}

// NodeInfoResult is the result of get_node_info.
type NodeInfoResult struct {
	Height      uint64 `json:"height"`
	PeerCount   int    `json:"peer_count"`
	MempoolSize int    `json:"mempool_size"`
}

// blockOrNotFound and txOrNotFound turn a nil lookup result into a
// "not found" application error; otherwise the wire shape is just the
// value's own MarshalJSON.
func blockOrNotFound(b *block.Block) (any, *Error) {
	if b == nil {
		return nil, &Error{Code: CodeApplicationErr, Message: "block not found"}
	}
	return b, nil
}

func txOrNotFound(t tx.Transaction) (any, *Error) {
	if t == nil {
		return nil, &Error{Code: CodeApplicationErr, Message: "transaction not found"}
	}
	return t, nil
}
