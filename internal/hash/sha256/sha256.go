// Package sha256 fingerprints written tables. The digest travels in each
// artifact notification so a consumer can tell a re-run that produced the
// same table from one that changed it.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements crawler.Hasher.
type Hasher struct{}

// New returns a Hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the lowercase hex SHA-256 of an encoded artifact.
func (*Hasher) Hash(data []byte) (string, error) {
	h := sha256.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}
