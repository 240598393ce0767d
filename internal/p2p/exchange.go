package p2p

import (
	"time"

	"github.com/jiji-chain/jiji-go/config"
)

// peerExchangeLoop periodically asks every connected peer for its peer
// list and dials any newly-learned address we aren't already connected to.
func (s *Server) peerExchangeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(config.PeerExchangeInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.requestPeersFromAll()
			s.dialKnownAddresses()
		}
	}
}

func (s *Server) requestPeersFromAll() {
	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	req, err := makePeersRequest()
	if err != nil {
		return
	}
	for _, p := range peers {
		p.send(req)
	}
}

func (s *Server) dialKnownAddresses() {
	s.mu.Lock()
	if len(s.peers) >= s.cfg.MaxPeers {
		s.mu.Unlock()
		return
	}
	candidates := make([]PeerAddr, 0)
	for addr := range s.knownAddresses {
		if _, connected := s.peers[addr]; !connected {
			candidates = append(candidates, addr)
		}
	}
	s.mu.Unlock()

	for _, addr := range candidates {
		if s.PeerCount() >= s.cfg.MaxPeers {
			return
		}
		s.ConnectToPeer(addr.Host, addr.Port)
	}
}
