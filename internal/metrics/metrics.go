// Package metrics exposes the node's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChainHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jiji",
		Name:      "chain_height",
		Help:      "Current confirmed chain height.",
	})

	MempoolSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jiji",
		Name:      "mempool_size",
		Help:      "Number of pending transactions in the mempool.",
	})

	PeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jiji",
		Name:      "peers_connected",
		Help:      "Number of connected P2P peers.",
	})

	BlocksMined = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jiji",
		Name:      "blocks_mined_total",
		Help:      "Total blocks mined locally and accepted onto the chain.",
	})

	BlocksReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jiji",
		Name:      "blocks_received_total",
		Help:      "Blocks received from peers, by acceptance result.",
	}, []string{"result"})

	TransactionsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jiji",
		Name:      "transactions_received_total",
		Help:      "Transactions handled by the node (gossip from peers), by acceptance result; RPC submissions are not counted.",
	}, []string{"result"})

	CurrentDifficulty = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jiji",
		Name:      "current_difficulty",
		Help:      "Difficulty of the current chain tip.",
	})
)

func init() {
	prometheus.MustRegister(
		ChainHeight,
		MempoolSize,
		PeersConnected,
		BlocksMined,
		BlocksReceived,
		TransactionsReceived,
		CurrentDifficulty,
	)
}
