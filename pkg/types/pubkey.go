package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// PubKeySize is the length in bytes of an Ed25519 public key.
const PubKeySize = 32

// PubKey is a raw 32-byte Ed25519 public key, used directly as an account
// identifier — there is no separate bech32-style address derivation.
type PubKey [PubKeySize]byte

// IsZero reports whether p is the all-zero key.
func (p PubKey) IsZero() bool {
	return p == PubKey{}
}

// String returns the lowercase hex encoding of p.
func (p PubKey) String() string {
	return hex.EncodeToString(p[:])
}

// Bytes returns a copy of p as a byte slice.
func (p PubKey) Bytes() []byte {
	b := make([]byte, PubKeySize)
	copy(b, p[:])
	return b
}

// MarshalJSON encodes p as a lowercase hex string.
func (p PubKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a lowercase hex string into p.
func (p *PubKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid pubkey hex: %w", err)
	}
	if len(decoded) != PubKeySize {
		return fmt.Errorf("pubkey must be %d bytes, got %d", PubKeySize, len(decoded))
	}
	copy(p[:], decoded)
	return nil
}

// HexToPubKey parses a hex string into a PubKey.
func HexToPubKey(s string) (PubKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return PubKey{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != PubKeySize {
		return PubKey{}, fmt.Errorf("pubkey must be %d bytes, got %d", PubKeySize, len(b))
	}
	var p PubKey
	copy(p[:], b)
	return p, nil
}

// Less provides a deterministic ordering over public keys, used to sort
// accounts before building the world-state merkle tree.
func (p PubKey) Less(other PubKey) bool {
	for i := range p {
		if p[i] != other[i] {
			return p[i] < other[i]
		}
	}
	return false
}
