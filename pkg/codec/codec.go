// Package codec implements the canonical content-addressing format used
// throughout the node: deterministic JSON encoding plus SHA-256 hashing.
//
// Any map[string]any or struct decoded into one, once run through
// Canonicalize, produces the same byte sequence on every machine: object
// keys sorted and no insignificant whitespace. Binary fields are expected
// to arrive already hex-encoded (see HexString); a raw []byte is rendered
// the way encoding/json renders it, as base64. Hash() is simply
// sha256(Canonicalize(v)).
package codec

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize renders v (expected to be a map[string]any, []any, or a
// JSON-marshalable scalar) as deterministic, compact JSON: object keys in
// sorted order, no extraneous whitespace. Raw []byte values come out as
// base64, as encoding/json emits them. fields named in exclude are dropped from the
// top-level map before encoding — used to strip a signature field prior to
// computing the bytes that were signed.
func Canonicalize(v any, exclude ...string) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	if len(exclude) > 0 {
		if m, ok := normalized.(map[string]any); ok {
			for _, field := range exclude {
				delete(m, field)
			}
		}
	}
	return encodeCanonical(normalized)
}

// Hash returns sha256(Canonicalize(v, exclude...)).
func Hash(v any, exclude ...string) ([32]byte, error) {
	b, err := Canonicalize(v, exclude...)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// normalize round-trips v through encoding/json so that every value
// (structs, byte slices, numbers) becomes one of the plain types JSON
// natively represents (map[string]any, []any, string, float64, bool, nil).
// []byte fields must already have been hex-encoded by the caller's JSON
// tags (MarshalJSON) by the time this runs, since encoding/json treats
// []byte specially (base64) only via its own Marshal path.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	return out, nil
}

// encodeCanonical writes v as compact JSON with map keys sorted. This
// mirrors Python's json.dumps(sort_keys=True, separators=(",", ":")).
func encodeCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

// HexString is a convenience for encoding raw bytes the way canonicalized
// payloads expect byte fields to already appear: lowercase hex.
func HexString(b []byte) string {
	return hex.EncodeToString(b)
}
