// Package node orchestrates the chain, mempool, miner, P2P server, and RPC
// server into a single running process.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/chain"
	"github.com/jiji-chain/jiji-go/internal/log"
	"github.com/jiji-chain/jiji-go/internal/mempool"
	"github.com/jiji-chain/jiji-go/internal/metrics"
	"github.com/jiji-chain/jiji-go/internal/miner"
	"github.com/jiji-chain/jiji-go/internal/p2p"
	"github.com/jiji-chain/jiji-go/internal/rpc"
	"github.com/jiji-chain/jiji-go/internal/validation"
)

// Config controls which services a Node runs and where it binds them.
type Config struct {
	P2PHost string
	P2PPort int
	RPCHost string
	RPCPort int
	Mine    bool

	BootstrapPeers []p2p.PeerAddr
}

// DefaultConfig returns the protocol's default node configuration, mining
// disabled.
func DefaultConfig() Config {
	return Config{
		P2PHost: "0.0.0.0",
		P2PPort: config.DefaultP2PPort,
		RPCHost: "127.0.0.1",
		RPCPort: config.DefaultRPCPort,
	}
}

// Node wires together every subsystem behind a single lifecycle.
type Node struct {
	cfg     Config
	pubkey  types.PubKey
	chain   *chain.Chain
	mempool *mempool.Pool
	miner   *miner.Miner
	p2p     *p2p.Server
	rpc     *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New assembles a Node around minerPubkey, with genesis minted to it at
// timestamp genesisTime.
func New(cfg Config, minerPubkey types.PubKey, genesisTime int64) (*Node, error) {
	c := chain.New()
	if _, err := c.InitializeGenesis(minerPubkey, genesisTime); err != nil {
		return nil, fmt.Errorf("node: initialize genesis: %w", err)
	}

	pool := mempool.New(c, config.MaxMempoolSize)
	m := miner.New(c, pool, minerPubkey)

	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		cfg:     cfg,
		pubkey:  minerPubkey,
		chain:   c,
		mempool: pool,
		miner:   m,
		ctx:     ctx,
		cancel:  cancel,
	}

	p2pCfg := p2p.Config{Host: cfg.P2PHost, Port: cfg.P2PPort, MaxPeers: config.MaxPeers}
	n.p2p = p2p.NewServer(p2pCfg, c, pool, n)
	n.rpc = rpc.New(fmt.Sprintf("%s:%d", cfg.RPCHost, cfg.RPCPort), c, pool, n.p2p)

	return n, nil
}

// Start brings up the P2P listener, RPC server, bootstrap connections, and
// (if enabled) the mining loop. It returns once both servers are listening.
func (n *Node) Start() error {
	if err := n.p2p.Start(); err != nil {
		return fmt.Errorf("node: start p2p: %w", err)
	}
	if err := n.rpc.Start(); err != nil {
		return fmt.Errorf("node: start rpc: %w", err)
	}

	for _, addr := range n.cfg.BootstrapPeers {
		addr := addr
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			if err := n.p2p.ConnectToPeer(addr.Host, addr.Port); err != nil {
				log.Node.Warn().Str("peer", fmt.Sprintf("%s:%d", addr.Host, addr.Port)).
					Err(err).Msg("bootstrap connect failed")
			}
		}()
	}

	if n.cfg.Mine {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.runMiningLoop()
		}()
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.runMetricsLoop()
	}()

	log.Node.Info().Uint64("height", n.chain.Height()).Bool("mining", n.cfg.Mine).
		Msg("node started")
	return nil
}

// Stop cancels every background goroutine and shuts both servers down.
func (n *Node) Stop() error {
	n.cancel()
	n.wg.Wait()

	if err := n.rpc.Stop(); err != nil {
		log.Node.Warn().Err(err).Msg("rpc shutdown error")
	}
	if err := n.p2p.Stop(); err != nil {
		log.Node.Warn().Err(err).Msg("p2p shutdown error")
	}
	log.Node.Info().Msg("node stopped")
	return nil
}

// Height returns the current confirmed chain height.
func (n *Node) Height() uint64 { return n.chain.Height() }

// HandleNewTransaction implements p2p.Handler: validate, add to the
// mempool, and re-gossip to every peer except the one we heard it from.
func (n *Node) HandleNewTransaction(t tx.Transaction, from *p2p.Peer) error {
	txHash, err := n.mempool.Add(t)
	if err != nil {
		metrics.TransactionsReceived.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.TransactionsReceived.WithLabelValues("accepted").Inc()
	log.Node.Info().Str("tx_hash", txHash.String()).Msg("new transaction")
	n.p2p.BroadcastTx(txHash, from)
	return nil
}

// HandleNewBlock implements p2p.Handler: ignore blocks we already know or
// that don't extend our current tip by exactly one, otherwise validate,
// adopt, prune the mempool, and re-gossip.
func (n *Node) HandleNewBlock(b *block.Block, from *p2p.Peer) error {
	blockHash, err := b.Hash()
	if err != nil {
		return fmt.Errorf("node: hash incoming block: %w", err)
	}
	if n.chain.BlockByHash(blockHash) != nil {
		return nil
	}

	expectedHeight := n.chain.Height() + 1
	if b.Header.Height != expectedHeight {
		log.Node.Debug().Uint64("got", b.Header.Height).Uint64("want", expectedHeight).
			Msg("ignoring block, not exactly tip+1")
		return nil
	}

	if err := n.chain.AddBlock(b, time.Now().Unix()); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			metrics.BlocksReceived.WithLabelValues("rejected").Inc()
			log.Node.Warn().Str("hash", blockHash.String()).Err(err).Msg("rejected block")
			return nil
		}
		return err
	}
	metrics.BlocksReceived.WithLabelValues("accepted").Inc()

	if err := n.mempool.RemoveConfirmed(b); err != nil {
		log.Node.Warn().Err(err).Msg("remove confirmed transactions")
	}
	if _, err := n.mempool.Revalidate(); err != nil {
		log.Node.Warn().Err(err).Msg("revalidate mempool")
	}

	log.Node.Info().Str("hash", blockHash.String()).Uint64("height", b.Header.Height).
		Msg("accepted block")
	n.p2p.BroadcastBlock(blockHash, b.Header.Height, from)
	return nil
}

// runMiningLoop repeatedly builds a block template and mines it. A mined
// block is discarded if the chain advanced while it was being mined.
func (n *Node) runMiningLoop() {
	log.Node.Info().Msg("mining started")
	for {
		select {
		case <-n.ctx.Done():
			return
		default:
		}

		tmpl, err := n.miner.CreateBlockTemplate()
		if err != nil {
			log.Node.Error().Err(err).Msg("create block template")
			time.Sleep(time.Second)
			continue
		}

		if err := n.miner.MineBlock(n.ctx, tmpl); err != nil {
			if n.ctx.Err() != nil {
				return
			}
			log.Node.Error().Err(err).Msg("mine block")
			continue
		}

		if tmpl.Header.Height != n.chain.Height()+1 {
			continue
		}
		if err := n.chain.AddBlock(tmpl, time.Now().Unix()); err != nil {
			log.Node.Warn().Err(err).Msg("mined block rejected")
			continue
		}
		metrics.BlocksMined.Inc()

		if err := n.mempool.RemoveConfirmed(tmpl); err != nil {
			log.Node.Warn().Err(err).Msg("remove confirmed transactions")
		}
		if _, err := n.mempool.Revalidate(); err != nil {
			log.Node.Warn().Err(err).Msg("revalidate mempool")
		}

		blockHash, err := tmpl.Hash()
		if err != nil {
			log.Node.Error().Err(err).Msg("hash mined block")
			continue
		}
		log.Node.Info().Str("hash", blockHash.String()).Uint64("height", tmpl.Header.Height).
			Msg("mined block")
		n.p2p.BroadcastBlock(blockHash, tmpl.Header.Height, nil)
	}
}

// runMetricsLoop periodically samples chain/mempool/peer gauges.
func (n *Node) runMetricsLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			metrics.ChainHeight.Set(float64(n.chain.Height()))
			metrics.MempoolSize.Set(float64(n.mempool.Size()))
			metrics.PeersConnected.Set(float64(n.p2p.PeerCount()))
			if tip := n.chain.Tip(); tip != nil {
				metrics.CurrentDifficulty.Set(float64(tip.Header.Difficulty))
			}
		}
	}
}
