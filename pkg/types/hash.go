// Package types defines the primitive wire types shared across the node:
// content-address hashes and Ed25519 public keys.
package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashSize is the length in bytes of a SHA-256 digest.
const HashSize = 32

// Hash is a 256-bit content address: a block hash or a transaction hash.
type Hash [HashSize]byte

// IsZero reports whether h is the all-zero hash (used for prev_hash of genesis).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Bytes returns a copy of h as a byte slice.
func (h Hash) Bytes() []byte {
	b := make([]byte, HashSize)
	copy(b, h[:])
	return b
}

// MarshalJSON encodes h as a lowercase hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a lowercase hex string into h.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*h = Hash{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hash hex: %w", err)
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// HexToHash parses a hex string into a Hash. Returns an error unless the
// string decodes to exactly HashSize bytes.
func HexToHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("hash must be %d bytes, got %d", HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
