package p2p

import (
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/internal/log"
)

// Peer wraps a TCP connection to a remote node along with the handshake
// state negotiated over it.
type Peer struct {
	conn    net.Conn
	host    string
	port    int
	inbound bool

	writeMu sync.Mutex
	closed  atomic.Bool
	limiter *rate.Limiter

	version         int
	peerHeight      uint64
	genesisHash     string
	handshakeDone   bool
}

func newPeer(conn net.Conn, host string, port int, inbound bool) *Peer {
	return &Peer{
		conn:    conn,
		host:    host,
		port:    port,
		inbound: inbound,
		limiter: rate.NewLimiter(config.PeerRateLimit, config.PeerRateBurst),
	}
}

// Addr returns the peer's host and port, used as its identity in the
// node's peer map. For outbound peers the port is the one dialled; for
// inbound peers it is the remote end's source port.
func (p *Peer) Addr() PeerAddr { return PeerAddr{Host: p.host, Port: p.port} }

// IsClosed reports whether the connection has been closed.
func (p *Peer) IsClosed() bool { return p.closed.Load() }

// send writes a single framed message. Safe for concurrent use; a write
// error closes the connection.
func (p *Peer) send(msg Message) error {
	if p.IsClosed() {
		return nil
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := writeMessage(p.conn, msg); err != nil {
		log.P2P.Debug().Str("peer", p.host).Err(err).Msg("send failed, closing peer")
		p.close()
		return err
	}
	return nil
}

// receive blocks for exactly one framed message. Returns an error on EOF
// or any I/O failure, and closes the connection.
func (p *Peer) receive() (Message, error) {
	msg, err := readMessage(p.conn)
	if err != nil {
		p.close()
		return Message{}, err
	}
	return msg, nil
}

func (p *Peer) close() {
	if p.closed.Swap(true) {
		return
	}
	p.conn.Close()
}
