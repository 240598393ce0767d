package p2p

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/internal/log"
)

// genesisHash returns the hex hash of height-0 on our chain, or "" if we
// have no genesis yet.
func (s *Server) genesisHash() string {
	genesis := s.chain.BlockByHeight(0)
	if genesis == nil {
		return ""
	}
	h, err := genesis.Hash()
	if err != nil {
		return ""
	}
	return hashHex(h)
}

// sendHandshake sends our own handshake over peer's connection.
func (s *Server) sendHandshake(peer *Peer) error {
	msg, err := makeHandshake(s.chain.Height(), s.genesisHash())
	if err != nil {
		return err
	}
	return peer.send(msg)
}

// processHandshake records the peer-reported version/height/genesis from
// an incoming handshake message.
func (s *Server) processHandshake(peer *Peer, msg Message) {
	var payload handshakePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return
	}
	peer.version = payload.Version
	peer.peerHeight = payload.Height
	peer.genesisHash = payload.GenesisHash
}

// performHandshake drives the outbound side of a handshake: send ours,
// wait for theirs, and reject the peer if its genesis doesn't match.
func (s *Server) performHandshake(peer *Peer) error {
	if err := s.sendHandshake(peer); err != nil {
		return err
	}

	peer.conn.SetDeadline(time.Now().Add(time.Duration(config.HandshakeTimeout) * time.Second))
	msg, err := peer.receive()
	peer.conn.SetDeadline(time.Time{})
	if err != nil {
		return fmt.Errorf("p2p: handshake receive: %w", err)
	}
	if msg.Type != MsgHandshake {
		return fmt.Errorf("p2p: expected handshake, got message type %d", msg.Type)
	}
	s.processHandshake(peer, msg)

	ourGenesis := s.genesisHash()
	if ourGenesis != "" && peer.genesisHash != ourGenesis {
		log.P2P.Warn().Str("peer", peer.host).Msg("genesis mismatch, rejecting peer")
		return nil
	}
	peer.handshakeDone = true
	return nil
}
