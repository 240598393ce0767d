// Package merkle builds and verifies binary Merkle trees over SHA-256
// leaf hashes, used both for the per-block transaction root and for the
// world-state account root.
package merkle

import (
	"fmt"

	"github.com/jiji-chain/jiji-go/pkg/crypto"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

// EmptyHash is the root of a tree with no leaves: sha256("").
var EmptyHash = crypto.Hash(nil)

// Proof is one step of a Merkle inclusion proof: the sibling hash at that
// level, and whether the sibling sits to the left of the accumulated hash.
type Proof struct {
	Hash   types.Hash `json:"hash"`
	IsLeft bool       `json:"is_left"`
}

// Root computes the Merkle root of a list of leaf hashes. An odd level is
// extended by duplicating its last element before pairing. An empty input
// yields EmptyHash.
func Root(hashes []types.Hash) types.Hash {
	if len(hashes) == 0 {
		return EmptyHash
	}
	level := make([]types.Hash, len(hashes))
	copy(level, hashes)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, crypto.HashConcat(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

// GenerateProof builds an inclusion proof for the leaf at index within
// hashes, following the same level-by-level pairing Root does.
func GenerateProof(hashes []types.Hash, index int) ([]Proof, error) {
	if len(hashes) == 0 || index < 0 || index >= len(hashes) {
		return nil, fmt.Errorf("merkle: invalid index %d for %d leaves", index, len(hashes))
	}
	var proof []Proof
	level := make([]types.Hash, len(hashes))
	copy(level, hashes)
	idx := index
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		if idx%2 == 0 {
			proof = append(proof, Proof{Hash: level[idx+1], IsLeft: false})
		} else {
			proof = append(proof, Proof{Hash: level[idx-1], IsLeft: true})
		}
		next := make([]types.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, crypto.HashConcat(level[i], level[i+1]))
		}
		level = next
		idx /= 2
	}
	return proof, nil
}

// VerifyProof recomputes the root implied by leaf and proof and reports
// whether it matches root.
func VerifyProof(leaf types.Hash, proof []Proof, root types.Hash) bool {
	current := leaf
	for _, step := range proof {
		if step.IsLeft {
			current = crypto.HashConcat(step.Hash, current)
		} else {
			current = crypto.HashConcat(current, step.Hash)
		}
	}
	return current == root
}
