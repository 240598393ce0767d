package merkle

import (
	"testing"

	"github.com/jiji-chain/jiji-go/pkg/crypto"
	"github.com/jiji-chain/jiji-go/pkg/types"
)

func leaves(strs ...string) []types.Hash {
	hs := make([]types.Hash, len(strs))
	for i, s := range strs {
		hs[i] = crypto.Hash([]byte(s))
	}
	return hs
}

func TestRootEmpty(t *testing.T) {
	if Root(nil) != EmptyHash {
		t.Fatal("expected empty root for no leaves")
	}
}

func TestRootSingleLeaf(t *testing.T) {
	hs := leaves("a")
	if Root(hs) != hs[0] {
		t.Fatal("expected single-leaf root to equal the leaf")
	}
}

func TestRootOddDuplicatesLast(t *testing.T) {
	hs := leaves("a", "b", "c")
	withDup := Root(hs)
	hs2 := leaves("a", "b", "c", "c")
	withoutDup := Root(hs2)
	if withDup != withoutDup {
		t.Fatal("expected odd-length tree to duplicate last leaf")
	}
}

func TestProofRoundTrip(t *testing.T) {
	hs := leaves("a", "b", "c", "d", "e")
	root := Root(hs)
	for i := range hs {
		proof, err := GenerateProof(hs, i)
		if err != nil {
			t.Fatalf("generate proof %d: %v", i, err)
		}
		if !VerifyProof(hs[i], proof, root) {
			t.Fatalf("proof for leaf %d failed to verify", i)
		}
	}
}

func TestProofRejectsWrongLeaf(t *testing.T) {
	hs := leaves("a", "b", "c", "d")
	root := Root(hs)
	proof, err := GenerateProof(hs, 0)
	if err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	if VerifyProof(crypto.Hash([]byte("wrong")), proof, root) {
		t.Fatal("expected proof to fail for wrong leaf")
	}
}

func TestProofInvalidIndex(t *testing.T) {
	hs := leaves("a", "b")
	if _, err := GenerateProof(hs, 5); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
	if _, err := GenerateProof(nil, 0); err == nil {
		t.Fatal("expected error for empty leaf set")
	}
}
