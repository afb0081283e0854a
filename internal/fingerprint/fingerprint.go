// Package fingerprint derives content-addressed hashes over health payloads.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Canonical serializes a parsed document in canonical form: stable key
// ordering and no incidental whitespace. Two semantically identical payloads
// with different raw formatting canonicalize to the same bytes
// (encoding/json sorts map keys at every nesting level).
func Canonical(doc any) ([]byte, error) {
	return json.Marshal(doc)
}

// Hash returns the sha256 hex digest of the canonical serialization.
func Hash(doc any) (string, error) {
	b, err := Canonical(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
