// Package crypto provides the cryptographic primitives used by the chain:
// SHA-256 content hashing and Ed25519 signing.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/jiji-chain/jiji-go/pkg/types"
)

// Signer signs messages with an Ed25519 private key.
type Signer interface {
	// Sign produces a 64-byte Ed25519 signature over an arbitrary message.
	Sign(message []byte) []byte
	// PublicKey returns the 32-byte Ed25519 public key.
	PublicKey() types.PubKey
}

// Verifier verifies Ed25519 signatures.
type Verifier interface {
	// Verify checks a signature against a message and public key.
	Verify(message, signature []byte, publicKey types.PubKey) bool
}

// PrivateKey wraps a 64-byte Ed25519 private key (seed || public key).
type PrivateKey struct {
	key ed25519.PrivateKey
}

// GenerateKey creates a new random Ed25519 keypair.
func GenerateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &PrivateKey{key: key}, nil
}

// PrivateKeyFromSeed derives a PrivateKey from a 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// Sign produces a 64-byte Ed25519 signature over message.
func (pk *PrivateKey) Sign(message []byte) []byte {
	return ed25519.Sign(pk.key, message)
}

// PublicKey returns the 32-byte Ed25519 public key.
func (pk *PrivateKey) PublicKey() types.PubKey {
	var pub types.PubKey
	copy(pub[:], pk.key.Public().(ed25519.PublicKey))
	return pub
}

// Seed returns the 32-byte seed the private key was derived from.
func (pk *PrivateKey) Seed() []byte {
	return pk.key.Seed()
}

// VerifySignature checks an Ed25519 signature against a message and a
// 32-byte public key. Returns false on any malformed input rather than
// erroring, matching how callers use it purely as a boolean gate.
func VerifySignature(message, signature []byte, publicKey types.PubKey) bool {
	if len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey[:]), message, signature)
}

// Ed25519Verifier implements the Verifier interface.
type Ed25519Verifier struct{}

// Verify checks an Ed25519 signature against a message and public key.
func (v Ed25519Verifier) Verify(message, signature []byte, publicKey types.PubKey) bool {
	return VerifySignature(message, signature, publicKey)
}

// Hash computes the SHA-256 hash of data.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// HashConcat hashes the concatenation of two hashes. Used when building
// merkle trees from sibling pairs.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}
