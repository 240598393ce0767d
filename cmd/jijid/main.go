// jiji full node daemon.
//
// Usage:
//
//	jijid [--mine --coinbase=<hex pubkey>] Run node
//	jijid --help                           Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/types"

	klog "github.com/jiji-chain/jiji-go/internal/log"
	"github.com/jiji-chain/jiji-go/internal/node"
	"github.com/jiji-chain/jiji-go/internal/p2p"
)

func main() {
	// ── 1. Load config (defaults → flags) ────────────────────────────────
	cfg, _ := config.Load()

	// ── 2. Init logger ────────────────────────────────────────────────────
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := klog.WithComponent("main")

	// ── 3. Resolve the miner public key ──────────────────────────────────
	minerPubkey, err := resolveCoinbase(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve coinbase")
	}

	// ── 4. Parse bootstrap peers ──────────────────────────────────────────
	bootstrap, err := parseSeeds(cfg.P2P.Seeds)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse seeds")
	}

	// ── 5. Assemble the node ──────────────────────────────────────────────
	nodeCfg := node.Config{
		P2PHost:        cfg.P2P.ListenAddr,
		P2PPort:        cfg.P2P.Port,
		RPCHost:        cfg.RPC.Addr,
		RPCPort:        cfg.RPC.Port,
		Mine:           cfg.Mining.Enabled,
		BootstrapPeers: bootstrap,
	}

	n, err := node.New(nodeCfg, minerPubkey, time.Now().Unix())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create node")
	}

	logger.Info().
		Str("p2p_addr", fmt.Sprintf("%s:%d", cfg.P2P.ListenAddr, cfg.P2P.Port)).
		Str("rpc_addr", fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)).
		Bool("mining", cfg.Mining.Enabled).
		Int("seeds", len(bootstrap)).
		Msg("starting jiji node")

	if err := n.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start node")
	}

	logger.Info().Uint64("height", n.Height()).Msg("node started successfully")

	// ── 6. Wait for shutdown ───────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	if err := n.Stop(); err != nil {
		logger.Warn().Err(err).Msg("error during shutdown")
	}
	logger.Info().Msg("goodbye")
}

// resolveCoinbase turns the configured coinbase hex string into a PubKey.
// Mining with no coinbase configured is an error; otherwise an empty key is
// fine since genesis mints to it regardless of whether this node ever mines.
func resolveCoinbase(cfg *config.Config) (types.PubKey, error) {
	if cfg.Mining.Coinbase != "" {
		return types.HexToPubKey(cfg.Mining.Coinbase)
	}
	if cfg.Mining.Enabled {
		return types.PubKey{}, fmt.Errorf("--mine requires --coinbase")
	}
	return types.PubKey{}, nil
}

// parseSeeds turns "host:port,host:port" bootstrap strings into PeerAddrs.
func parseSeeds(seeds []string) ([]p2p.PeerAddr, error) {
	out := make([]p2p.PeerAddr, 0, len(seeds))
	for _, s := range seeds {
		host, portStr, found := strings.Cut(s, ":")
		if !found {
			return nil, fmt.Errorf("invalid seed %q: expected host:port", s)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid seed %q: %w", s, err)
		}
		out = append(out, p2p.PeerAddr{Host: host, Port: port})
	}
	return out, nil
}
