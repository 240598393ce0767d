package rpc

import (
	"fmt"

	"github.com/jiji-chain/jiji-go/pkg/merkle"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

func (s *Server) handleSubmitTransaction(req *Request) (any, *Error) {
	var params SubmitTransactionParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if len(params.Transaction) == 0 {
		return nil, &Error{Code: CodeApplicationErr, Message: "missing 'transaction' parameter"}
	}

	transaction, err := tx.UnmarshalTransactionJSON(params.Transaction)
	if err != nil {
		return nil, &Error{Code: CodeApplicationErr, Message: fmt.Sprintf("invalid transaction: %v", err)}
	}

	txHash, err := s.mempool.Add(transaction)
	if err != nil {
		return nil, &Error{Code: CodeApplicationErr, Message: fmt.Sprintf("rejected: %v", err)}
	}

	if s.p2p != nil {
		s.p2p.BroadcastTx(txHash, nil)
	}

	return &SubmitTransactionResult{TxHash: txHash.String()}, nil
}

func (s *Server) handleGetBlock(req *Request) (any, *Error) {
	var params GetBlockParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}

	switch {
	case params.Height != nil:
		return blockOrNotFound(s.chain.BlockByHeight(*params.Height))
	case params.Hash != "":
		h, err := types.HexToHash(params.Hash)
		if err != nil {
			return nil, &Error{Code: CodeApplicationErr, Message: fmt.Sprintf("invalid hash: %v", err)}
		}
		return blockOrNotFound(s.chain.BlockByHash(h))
	default:
		return nil, &Error{Code: CodeApplicationErr, Message: "must specify 'height' or 'hash'"}
	}
}

func (s *Server) handleGetTransaction(req *Request) (any, *Error) {
	var params HashParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	txHash, err := types.HexToHash(params.TxHash)
	if err != nil {
		return nil, &Error{Code: CodeApplicationErr, Message: fmt.Sprintf("invalid tx_hash: %v", err)}
	}

	confirmed, lookupErr := s.chain.GetTransaction(txHash)
	if lookupErr != nil {
		return nil, &Error{Code: CodeApplicationErr, Message: lookupErr.Error()}
	}
	if confirmed != nil {
		return txOrNotFound(confirmed)
	}
	return txOrNotFound(s.mempool.GetByHash(txHash))
}

func (s *Server) handleGetAccount(req *Request) (any, *Error) {
	var params PubKeyParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	pubkey, err := types.HexToPubKey(params.PubKey)
	if err != nil {
		return nil, &Error{Code: CodeApplicationErr, Message: fmt.Sprintf("invalid pubkey: %v", err)}
	}
	acct := s.chain.Account(pubkey)
	return &AccountResult{Balance: acct.Balance, Nonce: acct.Nonce}, nil
}

func (s *Server) handleGetLatestBlock(req *Request) (any, *Error) {
	return blockOrNotFound(s.chain.Tip())
}

func (s *Server) handleGetMempool(req *Request) (any, *Error) {
	pending := s.mempool.GetPending()
	hashes := make([]string, 0, len(pending))
	for _, t := range pending {
		h, err := t.TxHash()
		if err != nil {
			continue
		}
		hashes = append(hashes, h.String())
	}
	return &MempoolResult{Transactions: hashes}, nil
}

func (s *Server) handleGetMerkleProof(req *Request) (any, *Error) {
	var params HashParams
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	txHash, err := types.HexToHash(params.TxHash)
	if err != nil {
		return nil, &Error{Code: CodeApplicationErr, Message: fmt.Sprintf("invalid tx_hash: %v", err)}
	}

	blockHash, ok := s.chain.TxBlockHash(txHash)
	if !ok {
		return nil, &Error{Code: CodeApplicationErr, Message: "transaction not in any confirmed block"}
	}
	b := s.chain.BlockByHash(blockHash)
	if b == nil {
		return nil, &Error{Code: CodeApplicationErr, Message: "block not found for transaction"}
	}

	txHashes := make([]types.Hash, len(b.Transactions))
	index := -1
	for i, t := range b.Transactions {
		h, err := t.TxHash()
		if err != nil {
			return nil, &Error{Code: CodeApplicationErr, Message: err.Error()}
		}
		txHashes[i] = h
		if h == txHash {
			index = i
		}
	}
	if index < 0 {
		return nil, &Error{Code: CodeApplicationErr, Message: "transaction hash not found in indexed block"}
	}

	proof, err := merkle.GenerateProof(txHashes, index)
	if err != nil {
		return nil, &Error{Code: CodeApplicationErr, Message: err.Error()}
	}
	steps := make([]ProofStep, len(proof))
	for i, p := range proof {
		steps[i] = ProofStep{Hash: p.Hash.String(), IsLeft: p.IsLeft}
	}

	return &MerkleProofResult{
		TxHash:    txHash.String(),
		BlockHash: blockHash.String(),
		Index:     index,
		Proof:     steps,
		Root:      b.Header.TxMerkleRoot.String(),
	}, nil
}

func (s *Server) handleGetNodeInfo(req *Request) (any, *Error) {
	peerCount := 0
	if s.p2p != nil {
		peerCount = s.p2p.PeerCount()
	}
	return &NodeInfoResult{
		Height:      s.chain.Height(),
		PeerCount:   peerCount,
		MempoolSize: s.mempool.Size(),
	}, nil
}
