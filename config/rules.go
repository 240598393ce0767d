// Package config separates the two kinds of configuration a node needs:
// protocol rules, which are fixed by consensus and must be identical on
// every node, and runtime settings, which are local to a single process.
package config

// Protocol rules. These are constants, not flags — changing any of them
// changes what counts as a valid chain, so they are compiled in rather
// than read from a config file.
const (
	ProtocolVersion = 1

	// Block timing.
	BlockTimeTarget             = 15  // seconds
	DifficultyAdjustmentWindow  = 100 // blocks
	MaxDifficultyAdjustment     = 4.0
	MedianTimeBlockCount        = 11
	MaxFutureTimestampSkew      = 120 // seconds

	// Block limits.
	MaxBlockSize = 262144 // bytes

	// Transaction limits.
	PostBodyLimit       = 300
	EndorseMessageLimit = 150
	MinimumGasFee       = 1

	// Token economics.
	InitialBlockReward = 50
	HalvingInterval    = 210000

	// Mempool.
	MaxMempoolSize = 10000

	// Genesis.
	GenesisDifficulty = 1

	// Networking.
	DefaultP2PPort       = 9333
	DefaultRPCPort       = 9332
	MaxPeers             = 50
	SyncBatchSize        = 50
	PeerExchangeInterval = 60 // seconds
	MaxMessageSize       = 4 * 1024 * 1024
	HandshakeTimeout     = 10 // seconds
	PeerRateLimit        = 30 // messages per second
	PeerRateBurst        = 60
)

// MaxTarget is the PoW target ceiling, 2^256 - 1.
var MaxTarget = maxTarget()

// BlockReward computes the block reward for a given height under the
// halving schedule. Reward reaches zero after 64 halvings.
func BlockReward(height uint64) uint64 {
	halvings := height / HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return InitialBlockReward >> halvings
}
