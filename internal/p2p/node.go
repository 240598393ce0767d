package p2p

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/log"
)

// ChainView is the slice of chain state the P2P layer needs: enough to
// answer handshakes, serve sync/gossip requests, and decide whether an
// announced block or transaction is already known.
type ChainView interface {
	Height() uint64
	BlockByHash(h types.Hash) *block.Block
	BlockByHeight(height uint64) *block.Block
	GetTransaction(txHash types.Hash) (tx.Transaction, error)
	HasTx(h types.Hash) bool
}

// MempoolView is the slice of mempool state the P2P layer needs to answer
// transaction gossip requests.
type MempoolView interface {
	Has(h types.Hash) bool
	GetByHash(h types.Hash) tx.Transaction
}

// Handler receives transactions and blocks learned from peers. The node
// package implements this; p2p never imports node, avoiding a cycle.
type Handler interface {
	HandleNewTransaction(t tx.Transaction, from *Peer) error
	HandleNewBlock(b *block.Block, from *Peer) error
}

// Config configures a Server's listening address and peering limits.
type Config struct {
	Host     string
	Port     int
	MaxPeers int
}

// DefaultConfig returns the protocol's default P2P configuration.
func DefaultConfig() Config {
	return Config{Host: "0.0.0.0", Port: config.DefaultP2PPort, MaxPeers: config.MaxPeers}
}

// Server manages peer connections, gossip, and chain sync over raw TCP.
type Server struct {
	cfg     Config
	chain   ChainView
	mempool MempoolView
	handler Handler

	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu             sync.Mutex
	peers          map[PeerAddr]*Peer
	knownAddresses map[PeerAddr]bool
	syncing        bool

	seenMu     sync.Mutex
	seenTx     map[string]bool
	seenBlocks map[string]bool
}

// NewServer creates a Server bound to cfg, serving chain/mempool state and
// forwarding learned transactions and blocks to handler.
func NewServer(cfg Config, chain ChainView, mempool MempoolView, handler Handler) *Server {
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = config.MaxPeers
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:            cfg,
		chain:          chain,
		mempool:        mempool,
		handler:        handler,
		ctx:            ctx,
		cancel:         cancel,
		peers:          make(map[PeerAddr]*Peer),
		knownAddresses: make(map[PeerAddr]bool),
		seenTx:         make(map[string]bool),
		seenBlocks:     make(map[string]bool),
	}
}

// Start begins listening for inbound connections and launches the
// background peer-exchange loop.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("p2p: listen on %s: %w", addr, err)
	}
	s.listener = ln
	log.P2P.Info().Str("addr", addr).Msg("p2p server listening")

	s.wg.Add(1)
	go s.acceptLoop()
	s.wg.Add(1)
	go s.peerExchangeLoop()
	return nil
}

// Stop closes the listener and every peer connection, then waits for the
// server's background goroutines to exit.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.peers = make(map[PeerAddr]*Peer)
	s.mu.Unlock()

	for _, p := range peers {
		p.close()
	}

	s.wg.Wait()
	return nil
}

// PeerCount returns the number of currently connected peers.
func (s *Server) PeerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				log.P2P.Debug().Err(err).Msg("accept error")
				return
			}
		}
		s.wg.Add(1)
		go s.handleInbound(conn)
	}
}

func (s *Server) handleInbound(conn net.Conn) {
	defer s.wg.Done()

	host, portStr, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		conn.Close()
		return
	}
	port, _ := strconv.Atoi(portStr)

	if s.PeerCount() >= s.cfg.MaxPeers {
		conn.Close()
		return
	}

	peer := newPeer(conn, host, port, true)
	conn.SetDeadline(time.Now().Add(time.Duration(config.HandshakeTimeout) * time.Second))
	msg, err := peer.receive()
	if err != nil || msg.Type != MsgHandshake {
		peer.close()
		return
	}
	s.processHandshake(peer, msg)
	if err := s.sendHandshake(peer); err != nil {
		peer.close()
		return
	}
	conn.SetDeadline(time.Time{})

	ourGenesis := s.genesisHash()
	if ourGenesis != "" && peer.genesisHash != ourGenesis {
		log.P2P.Warn().Str("peer", peer.host).Msg("genesis mismatch, rejecting inbound peer")
		peer.close()
		return
	}
	peer.handshakeDone = true

	s.mu.Lock()
	s.peers[peer.Addr()] = peer
	s.mu.Unlock()
	log.P2P.Info().Str("peer", fmt.Sprintf("%s:%d", host, port)).Msg("inbound peer connected")

	s.wg.Add(1)
	go s.peerLoop(peer)
}

// ConnectToPeer dials host:port, performs a handshake, and — if genesis
// hashes match — adds the peer to the connected set.
func (s *Server) ConnectToPeer(host string, port int) error {
	addr := PeerAddr{Host: host, Port: port}

	s.mu.Lock()
	if _, exists := s.peers[addr]; exists {
		s.mu.Unlock()
		return nil
	}
	if len(s.peers) >= s.cfg.MaxPeers {
		s.mu.Unlock()
		return fmt.Errorf("p2p: max peers reached")
	}
	s.mu.Unlock()

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)),
		time.Duration(config.HandshakeTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("p2p: dial %s:%d: %w", host, port, err)
	}

	peer := newPeer(conn, host, port, false)
	if err := s.performHandshake(peer); err != nil {
		peer.close()
		return err
	}
	if !peer.handshakeDone {
		peer.close()
		return fmt.Errorf("p2p: handshake failed with %s:%d", host, port)
	}

	s.mu.Lock()
	s.peers[addr] = peer
	s.mu.Unlock()
	log.P2P.Info().Str("peer", fmt.Sprintf("%s:%d", host, port)).Msg("connected to peer")

	s.wg.Add(1)
	go s.peerLoop(peer)
	return nil
}

func (s *Server) peerLoop(peer *Peer) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.peers, peer.Addr())
		s.mu.Unlock()
		peer.close()
	}()

	if peer.peerHeight > s.chain.Height() {
		s.startSync(peer)
	}

	for !peer.IsClosed() {
		msg, err := peer.receive()
		if err != nil {
			return
		}
		if !peer.limiter.Allow() {
			log.P2P.Debug().Str("peer", peer.host).Msg("peer exceeded message rate limit, dropping message")
			continue
		}
		s.handleMessage(peer, msg)
	}
}

func (s *Server) handleMessage(peer *Peer, msg Message) {
	switch msg.Type {
	case MsgPeersRequest:
		s.onPeersRequest(peer)
	case MsgPeersResponse:
		s.onPeersResponse(msg)
	case MsgTxAnnounce:
		s.onTxAnnounce(peer, msg)
	case MsgTxRequest:
		s.onTxRequest(peer, msg)
	case MsgTxResponse:
		s.onTxResponse(peer, msg)
	case MsgBlockAnnounce:
		s.onBlockAnnounce(peer, msg)
	case MsgBlockRequest:
		s.onBlockRequest(peer, msg)
	case MsgBlockResponse:
		s.onBlockResponse(peer, msg)
	case MsgSyncRequest:
		s.onSyncRequest(peer, msg)
	case MsgSyncResponse:
		s.onSyncResponse(peer, msg)
	}
}

func hashHex(h types.Hash) string { return h.String() }
