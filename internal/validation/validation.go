// Package validation implements transaction and block validation: the
// format checks every transaction must satisfy on its own, the state
// checks that depend on chain context, difficulty retargeting, and the
// full block-acceptance procedure.
package validation

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/jiji-chain/jiji-go/config"
	"github.com/jiji-chain/jiji-go/pkg/block"
	"github.com/jiji-chain/jiji-go/pkg/tx"
	"github.com/jiji-chain/jiji-go/pkg/types"

	"github.com/jiji-chain/jiji-go/internal/state"
)

// Error reports a rule violation in a transaction or block. It is the one
// error type this package returns for anything rule-related, as opposed to
// plumbing failures (which are plain wrapped errors).
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func errf(format string, args ...any) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// ChainReader is the narrow view of chain state validation needs. The
// chain package implements it; validation never imports chain, avoiding
// an import cycle.
type ChainReader interface {
	Height() uint64
	Tip() *block.Block
	BlockByHeight(height uint64) *block.Block
	RecentTimestamps(n int) []int64
	State() *state.State
	KnownPosts() map[types.Hash]types.PubKey
	HasTx(h types.Hash) bool
}

// -- Transaction format validation --

func ValidatePostFormat(p *tx.Post) error {
	if p.Body == "" {
		return errf("post body must be a non-empty string")
	}
	if utf8.RuneCountInString(p.Body) > config.PostBodyLimit {
		return errf("post body exceeds %d chars", config.PostBodyLimit)
	}
	if p.GasFee < config.MinimumGasFee {
		return errf("gas fee below minimum (%d)", config.MinimumGasFee)
	}
	if !tx.VerifySignature(p) {
		return errf("invalid post signature")
	}
	return nil
}

func ValidateEndorseFormat(e *tx.Endorse) error {
	if utf8.RuneCountInString(e.Message) > config.EndorseMessageLimit {
		return errf("message exceeds %d chars", config.EndorseMessageLimit)
	}
	if e.GasFeeN < config.MinimumGasFee {
		return errf("gas fee below minimum (%d)", config.MinimumGasFee)
	}
	if !tx.VerifySignature(e) {
		return errf("invalid endorsement signature")
	}
	return nil
}

func ValidateTransferFormat(t *tx.Transfer) error {
	if t.Sender == t.Recipient {
		return errf("sender and recipient must differ")
	}
	if t.Amount == 0 {
		return errf("transfer amount must be positive")
	}
	if t.GasFeeN < config.MinimumGasFee {
		return errf("gas fee below minimum (%d)", config.MinimumGasFee)
	}
	if !tx.VerifySignature(t) {
		return errf("invalid transfer signature")
	}
	return nil
}

func ValidateCoinbaseFormat(c *tx.Coinbase, expectedHeight uint64) error {
	if c.Height != expectedHeight {
		return errf("coinbase height mismatch")
	}
	expectedReward := config.BlockReward(expectedHeight)
	if c.Amount != expectedReward {
		return errf("coinbase amount %d != expected %d", c.Amount, expectedReward)
	}
	return nil
}

// ValidateTransactionFormat dispatches to the format validator for t's
// concrete type. expectedHeight is only meaningful for Coinbase.
func ValidateTransactionFormat(t tx.Transaction, expectedHeight uint64) error {
	switch v := t.(type) {
	case *tx.Post:
		return ValidatePostFormat(v)
	case *tx.Endorse:
		return ValidateEndorseFormat(v)
	case *tx.Transfer:
		return ValidateTransferFormat(v)
	case *tx.Coinbase:
		return ValidateCoinbaseFormat(v, expectedHeight)
	default:
		return errf("unknown transaction type %T", t)
	}
}

// -- State validation (balance, nonce, reference integrity) --

// ValidateTransactionState validates t against st, using knownPosts (post
// hash -> author) to check reply_to / endorsement target references.
// Coinbase has no state preconditions.
func ValidateTransactionState(t tx.Transaction, st *state.State, knownPosts map[types.Hash]types.PubKey) error {
	switch v := t.(type) {
	case *tx.Post:
		return validatePostState(v, st, knownPosts)
	case *tx.Endorse:
		return validateEndorseState(v, st, knownPosts)
	case *tx.Transfer:
		return validateTransferState(v, st)
	case *tx.Coinbase:
		return nil
	default:
		return errf("unknown transaction type %T", t)
	}
}

func validatePostState(p *tx.Post, st *state.State, knownPosts map[types.Hash]types.PubKey) error {
	account := st.Get(p.Author)
	if account == nil {
		return errf("author account does not exist")
	}
	if p.Nonce != account.Nonce {
		return errf("nonce mismatch: tx=%d, expected=%d", p.Nonce, account.Nonce)
	}
	if account.Balance < p.GasFee {
		return errf("insufficient balance for gas fee")
	}
	if p.ReplyTo != nil {
		if _, ok := knownPosts[*p.ReplyTo]; !ok {
			return errf("reply_to references unknown post")
		}
	}
	return nil
}

func validateEndorseState(e *tx.Endorse, st *state.State, knownPosts map[types.Hash]types.PubKey) error {
	account := st.Get(e.Author)
	if account == nil {
		return errf("author account does not exist")
	}
	if e.Nonce != account.Nonce {
		return errf("nonce mismatch: tx=%d, expected=%d", e.Nonce, account.Nonce)
	}
	totalCost := e.GasFeeN + e.Amount
	if account.Balance < totalCost {
		return errf("insufficient balance for gas + tip")
	}
	if _, ok := knownPosts[e.Target]; !ok {
		return errf("endorsement target is not a known post")
	}
	return nil
}

func validateTransferState(t *tx.Transfer, st *state.State) error {
	account := st.Get(t.Sender)
	if account == nil {
		return errf("sender account does not exist")
	}
	if t.Nonce != account.Nonce {
		return errf("nonce mismatch: tx=%d, expected=%d", t.Nonce, account.Nonce)
	}
	totalCost := t.Amount + t.GasFeeN
	if account.Balance < totalCost {
		return errf("insufficient balance for transfer + gas")
	}
	return nil
}

// -- Difficulty computation --

// ComputeExpectedDifficulty computes the required difficulty for the
// block at height, by retargeting every DifficultyAdjustmentWindow blocks
// and holding difficulty constant in between.
func ComputeExpectedDifficulty(chain ChainReader, height uint64) uint64 {
	if height == 0 {
		return config.GenesisDifficulty
	}
	if height%config.DifficultyAdjustmentWindow != 0 {
		return chain.BlockByHeight(height - 1).Header.Difficulty
	}

	windowEnd := chain.BlockByHeight(height - 1)
	windowStartHeight := height - config.DifficultyAdjustmentWindow
	windowStart := chain.BlockByHeight(windowStartHeight)
	if windowStart == nil || windowEnd == nil {
		return config.GenesisDifficulty
	}

	actualTime := windowEnd.Header.Timestamp - windowStart.Header.Timestamp
	if actualTime <= 0 {
		actualTime = 1
	}
	expectedTime := int64(config.DifficultyAdjustmentWindow * config.BlockTimeTarget)

	ratio := float64(expectedTime) / float64(actualTime)
	minRatio := 1.0 / config.MaxDifficultyAdjustment
	if ratio < minRatio {
		ratio = minRatio
	}
	if ratio > config.MaxDifficultyAdjustment {
		ratio = config.MaxDifficultyAdjustment
	}
	newDifficulty := uint64(float64(windowEnd.Header.Difficulty) * ratio)
	if newDifficulty < 1 {
		newDifficulty = 1
	}
	return newDifficulty
}

// -- Block validation --

// ValidateBlock runs the full block-acceptance procedure against chain,
// as of wall-clock currentTime (unix seconds). On success it returns the
// working state that resulted from applying every transaction — the
// caller (chain.AddBlock) adopts it as the new confirmed state rather
// than recomputing it.
func ValidateBlock(b *block.Block, chain ChainReader, currentTime int64) (*state.State, error) {
	header := b.Header

	if header.Version != config.ProtocolVersion {
		return nil, errf("unsupported version: %d", header.Version)
	}

	expectedHeight := chain.Height() + 1
	if header.Height != expectedHeight {
		return nil, errf("height mismatch: got %d, expected %d", header.Height, expectedHeight)
	}

	tip := chain.Tip()
	var expectedPrev types.Hash
	if tip != nil {
		h, err := tip.Hash()
		if err != nil {
			return nil, fmt.Errorf("validation: hash tip: %w", err)
		}
		expectedPrev = h
	}
	if header.PrevHash != expectedPrev {
		return nil, errf("prev_hash does not match tip")
	}

	recent := chain.RecentTimestamps(config.MedianTimeBlockCount)
	if len(recent) > 0 && header.Timestamp <= median(recent) {
		return nil, errf("timestamp not above median of recent blocks")
	}

	if header.Timestamp > currentTime+config.MaxFutureTimestampSkew {
		return nil, errf("timestamp too far in the future")
	}

	expectedDiff := ComputeExpectedDifficulty(chain, header.Height)
	if header.Difficulty != expectedDiff {
		return nil, errf("difficulty mismatch: got %d, expected %d", header.Difficulty, expectedDiff)
	}

	meets, err := b.MeetsDifficulty(config.MaxTarget)
	if err != nil {
		return nil, fmt.Errorf("validation: meets difficulty: %w", err)
	}
	if !meets {
		return nil, errf("block does not meet difficulty target")
	}

	if int(header.TxCount) != len(b.Transactions) {
		return nil, errf("tx_count does not match transaction list")
	}
	if len(b.Transactions) == 0 {
		return nil, errf("block has no transactions")
	}

	coinbase, ok := b.Transactions[0].(*tx.Coinbase)
	if !ok {
		return nil, errf("first transaction must be coinbase")
	}
	if err := ValidateCoinbaseFormat(coinbase, header.Height); err != nil {
		return nil, err
	}
	if coinbase.Recipient != header.Miner {
		return nil, errf("coinbase recipient must match block miner")
	}
	for _, t := range b.Transactions[1:] {
		if _, ok := t.(*tx.Coinbase); ok {
			return nil, errf("only one coinbase per block")
		}
	}

	workingState := chain.State().Clone()
	workingPosts := make(map[types.Hash]types.PubKey, len(chain.KnownPosts()))
	for k, v := range chain.KnownPosts() {
		workingPosts[k] = v
	}
	seen := make(map[types.Hash]bool, len(b.Transactions))

	for i, t := range b.Transactions {
		txHash, err := t.TxHash()
		if err != nil {
			return nil, fmt.Errorf("validation: hash tx %d: %w", i, err)
		}
		if seen[txHash] || chain.HasTx(txHash) {
			return nil, errf("duplicate transaction at index %d", i)
		}
		seen[txHash] = true

		if err := ValidateTransactionFormat(t, header.Height); err != nil {
			return nil, err
		}

		if _, isCoinbase := t.(*tx.Coinbase); !isCoinbase {
			if err := ValidateTransactionState(t, workingState, workingPosts); err != nil {
				return nil, err
			}
		}

		var targetAuthor types.PubKey
		if endorse, ok := t.(*tx.Endorse); ok && endorse.Amount > 0 {
			targetAuthor = workingPosts[endorse.Target]
		}

		if err := workingState.Apply(t, header.Miner, targetAuthor); err != nil {
			return nil, fmt.Errorf("validation: apply tx %d: %w", i, err)
		}

		if post, ok := t.(*tx.Post); ok {
			workingPosts[txHash] = post.Author
		}
	}

	expectedMerkle, err := b.ComputeTxMerkleRoot()
	if err != nil {
		return nil, fmt.Errorf("validation: compute tx merkle root: %w", err)
	}
	if header.TxMerkleRoot != expectedMerkle {
		return nil, errf("tx_merkle_root mismatch")
	}

	expectedStateRoot, err := workingState.Root()
	if err != nil {
		return nil, fmt.Errorf("validation: compute state root: %w", err)
	}
	if header.StateRoot != expectedStateRoot {
		return nil, errf("state_root mismatch")
	}

	size, err := b.SerializedSize()
	if err != nil {
		return nil, fmt.Errorf("validation: serialized size: %w", err)
	}
	if size > config.MaxBlockSize {
		return nil, errf("block exceeds maximum size")
	}

	return workingState, nil
}

// median returns the statistical median of a slice of timestamps. On an
// even-length input it returns the average of the two middle values,
// truncated by integer division.
func median(values []int64) int64 {
	sorted := make([]int64, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
