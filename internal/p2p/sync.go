package p2p

import (
	"encoding/json"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/block"

	"github.com/jiji-chain/jiji-go/internal/log"
)

// startSync requests blocks from peer starting just above our own height,
// in batches of config.SyncBatchSize. Only one sync runs at a time.
func (s *Server) startSync(peer *Peer) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return
	}
	s.syncing = true
	s.mu.Unlock()

	start := s.chain.Height() + 1
	end := start + config.SyncBatchSize - 1
	msg, err := makeSyncRequest(start, end)
	if err != nil {
		s.markSyncDone()
		return
	}
	log.P2P.Info().Str("peer", peer.host).Uint64("start_height", start).Uint64("end_height", end).
		Msg("starting sync")
	if err := peer.send(msg); err != nil {
		s.markSyncDone()
	}
}

// markSyncDone clears the in-progress sync flag.
func (s *Server) markSyncDone() {
	s.mu.Lock()
	s.syncing = false
	s.mu.Unlock()
}

func (s *Server) onSyncRequest(peer *Peer, msg Message) {
	var payload syncRequestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}

	end := payload.EndHeight
	if tip := s.chain.Height(); end > tip {
		end = tip
	}

	blocks := make([]json.RawMessage, 0)
	for height := payload.StartHeight; height <= end; height++ {
		b := s.chain.BlockByHeight(height)
		if b == nil {
			break
		}
		raw, err := json.Marshal(b)
		if err != nil {
			continue
		}
		blocks = append(blocks, raw)
	}

	resp, err := makeSyncResponse(blocks)
	if err != nil {
		return
	}
	peer.send(resp)
}

func (s *Server) onSyncResponse(peer *Peer, msg Message) {
	var payload syncResponsePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.markSyncDone()
		return
	}

	for _, raw := range payload.Blocks {
		var b block.Block
		if err := json.Unmarshal(raw, &b); err != nil {
			log.P2P.Debug().Str("peer", peer.host).Err(err).Msg("invalid block in sync response")
			s.markSyncDone()
			return
		}
		if err := s.handler.HandleNewBlock(&b, peer); err != nil {
			log.P2P.Debug().Str("peer", peer.host).Err(err).Msg("sync block rejected")
			s.markSyncDone()
			return
		}
	}

	s.markSyncDone()
	if len(payload.Blocks) > 0 && peer.peerHeight > s.chain.Height() {
		s.startSync(peer)
	}
}
