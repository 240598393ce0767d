// Package rpc implements the JSON-RPC 2.0 API server.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/log"
	"github.com/jiji-chain/jiji-go/internal/p2p"
	"github.com/jiji-chain/jiji-go/internal/state"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// ChainReader is the slice of chain state the RPC layer reads.
type ChainReader interface {
	Height() uint64
	Tip() *block.Block
	BlockByHeight(height uint64) *block.Block
	BlockByHash(h types.Hash) *block.Block
	GetTransaction(txHash types.Hash) (tx.Transaction, error)
	TxBlockHash(txHash types.Hash) (types.Hash, bool)
	Account(pubkey types.PubKey) state.Account
}

// MempoolReader is the slice of mempool state the RPC layer reads and
// writes.
type MempoolReader interface {
	Size() int
	GetByHash(h types.Hash) tx.Transaction
	GetPending() []tx.Transaction
	Add(t tx.Transaction) (types.Hash, error)
}

// Broadcaster lets the RPC layer announce a newly-submitted transaction
// to the rest of the network.
type Broadcaster interface {
	BroadcastTx(txHash types.Hash, exclude *p2p.Peer)
	PeerCount() int
}

// Server is the JSON-RPC 2.0 HTTP server.
type Server struct {
	addr    string
	chain   ChainReader
	mempool MempoolReader
	p2p     Broadcaster // nil disables transaction broadcasting; peer_count is then 0

	httpServer *http.Server
	ln         net.Listener
}

// New creates an RPC server bound to addr (host:port). p2p may be nil if
// the node is running without networking.
func New(addr string, chain ChainReader, mempool MempoolReader, p2p Broadcaster) *Server {
	s := &Server{addr: addr, chain: chain, mempool: mempool, p2p: p2p}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start begins listening and serving in a background goroutine. It
// returns once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc: listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	log.RPC.Info().Str("addr", ln.Addr().String()).Msg("rpc server listening")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.RPC.Error().Err(err).Msg("rpc server error")
		}
	}()
	return nil
}

// Addr returns the listener's bound address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, nil, CodeParseError, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil || len(body) > maxBodySize {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}

	result, rpcErr := s.dispatch(&req)
	if rpcErr != nil {
		writeJSON(w, Response{JSONRPC: "2.0", Error: rpcErr, ID: req.ID})
		return
	}
	writeJSON(w, Response{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (s *Server) dispatch(req *Request) (any, *Error) {
	switch req.Method {
	case "submit_transaction":
		return s.handleSubmitTransaction(req)
	case "get_block":
		return s.handleGetBlock(req)
	case "get_transaction":
		return s.handleGetTransaction(req)
	case "get_account":
		return s.handleGetAccount(req)
	case "get_latest_block":
		return s.handleGetLatestBlock(req)
	case "get_mempool":
		return s.handleGetMempool(req)
	case "get_merkle_proof":
		return s.handleGetMerkleProof(req)
	case "get_node_info":
		return s.handleGetNodeInfo(req)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, id any, code int, message string) {
	writeJSON(w, Response{JSONRPC: "2.0", Error: &Error{Code: code, Message: message}, ID: id})
}

func parseParams(req *Request, target any) *Error {
	if req.Params == nil {
		return &Error{Code: CodeApplicationErr, Message: "params required"}
	}
	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeApplicationErr, Message: "invalid params"}
	}
	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeApplicationErr, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
