package p2p

import (
	"encoding/json"

	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/log"
)

// -- Peer exchange --

func (s *Server) onPeersRequest(peer *Peer) {
	s.mu.Lock()
	addrs := make([]PeerAddr, 0, len(s.peers))
	for addr := range s.peers {
		if addr != peer.Addr() {
			addrs = append(addrs, addr)
		}
	}
	s.mu.Unlock()

	msg, err := makePeersResponse(addrs)
	if err != nil {
		return
	}
	peer.send(msg)
}

func (s *Server) onPeersResponse(msg Message) {
	var payload peersResponsePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	s.mu.Lock()
	for _, addr := range payload.Peers {
		s.knownAddresses[addr] = true
	}
	s.mu.Unlock()
}

// -- Transaction gossip --

func (s *Server) onTxAnnounce(peer *Peer, msg Message) {
	var payload txAnnouncePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	if s.markSeenTx(payload.TxHash) {
		return
	}
	txHash, err := types.HexToHash(payload.TxHash)
	if err != nil {
		return
	}
	if s.mempool.Has(txHash) || s.chain.HasTx(txHash) {
		return
	}
	req, err := makeTxRequest(payload.TxHash)
	if err != nil {
		return
	}
	peer.send(req)
}

func (s *Server) onTxRequest(peer *Peer, msg Message) {
	var payload txRequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	txHash, err := types.HexToHash(payload.TxHash)
	if err != nil {
		return
	}

	var raw json.RawMessage
	if t := s.mempool.GetByHash(txHash); t != nil {
		raw, _ = json.Marshal(t)
	} else if t, err := s.chain.GetTransaction(txHash); err == nil && t != nil {
		raw, _ = json.Marshal(t)
	}

	resp, err := makeTxResponse(raw)
	if err != nil {
		return
	}
	peer.send(resp)
}

func (s *Server) onTxResponse(peer *Peer, msg Message) {
	var payload txResponsePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	if len(payload.Transaction) == 0 || string(payload.Transaction) == "null" {
		return
	}
	transaction, err := tx.UnmarshalTransactionJSON(payload.Transaction)
	if err != nil {
		log.P2P.Debug().Str("peer", peer.host).Err(err).Msg("invalid transaction from peer")
		return
	}
	if err := s.handler.HandleNewTransaction(transaction, peer); err != nil {
		log.P2P.Debug().Str("peer", peer.host).Err(err).Msg("rejected transaction from peer")
	}
}

// -- Block gossip --

func (s *Server) onBlockAnnounce(peer *Peer, msg Message) {
	var payload blockAnnouncePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	if s.markSeenBlock(payload.BlockHash) {
		return
	}
	blockHash, err := types.HexToHash(payload.BlockHash)
	if err != nil {
		return
	}
	if s.chain.BlockByHash(blockHash) != nil {
		return
	}

	height := s.chain.Height()
	switch {
	case payload.Height == height+1:
		if req, err := makeBlockRequestByHash(payload.BlockHash); err == nil {
			peer.send(req)
		}
	case payload.Height > height+1:
		s.startSync(peer)
	}
}

func (s *Server) onBlockRequest(peer *Peer, msg Message) {
	var payload blockRequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}

	var b *block.Block
	if payload.BlockHash != "" {
		if h, err := types.HexToHash(payload.BlockHash); err == nil {
			b = s.chain.BlockByHash(h)
		}
	} else if payload.Height != nil {
		b = s.chain.BlockByHeight(*payload.Height)
	}

	var raw json.RawMessage
	if b != nil {
		raw, _ = json.Marshal(b)
	}
	resp, err := makeBlockResponse(raw)
	if err != nil {
		return
	}
	peer.send(resp)
}

func (s *Server) onBlockResponse(peer *Peer, msg Message) {
	var payload blockResponsePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	if len(payload.Block) == 0 || string(payload.Block) == "null" {
		return
	}
	var b block.Block
	if err := json.Unmarshal(payload.Block, &b); err != nil {
		log.P2P.Debug().Str("peer", peer.host).Err(err).Msg("invalid block from peer")
		return
	}
	if err := s.handler.HandleNewBlock(&b, peer); err != nil {
		log.P2P.Debug().Str("peer", peer.host).Err(err).Msg("rejected block from peer")
	}
}

// -- Broadcasting --

// BroadcastTx announces txHash to every connected peer except exclude.
func (s *Server) BroadcastTx(txHash types.Hash, exclude *Peer) {
	hexHash := hashHex(txHash)
	s.markSeenTx(hexHash)
	msg, err := makeTxAnnounce(hexHash)
	if err != nil {
		return
	}
	s.broadcast(msg, exclude)
}

// BroadcastBlock announces blockHash/height to every connected peer
// except exclude.
func (s *Server) BroadcastBlock(blockHash types.Hash, height uint64, exclude *Peer) {
	hexHash := hashHex(blockHash)
	s.markSeenBlock(hexHash)
	msg, err := makeBlockAnnounce(hexHash, height)
	if err != nil {
		return
	}
	s.broadcast(msg, exclude)
}

func (s *Server) broadcast(msg Message, exclude *Peer) {
	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		if p != exclude && !p.IsClosed() {
			p.send(msg)
		}
	}
}

// markSeenTx records txHashHex as seen and reports whether it had already
// been recorded.
func (s *Server) markSeenTx(txHashHex string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if s.seenTx[txHashHex] {
		return true
	}
	s.seenTx[txHashHex] = true
	return false
}

// markSeenBlock records blockHashHex as seen and reports whether it had
// already been recorded.
func (s *Server) markSeenBlock(blockHashHex string) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()
	if s.seenBlocks[blockHashHex] {
		return true
	}
	s.seenBlocks[blockHashHex] = true
	return false
}
