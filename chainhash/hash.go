// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainhash provides the opaque 32-byte hash type used throughout
// the wire codec, the generator VM, and the block interpreter.
package chainhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashSize is the size, in bytes, of the hash type used by this module.
const HashSize = 32

// Hash is a 32-byte, opaque, bytewise-comparable identifier. It is used for
// header hashes, coin ids, and tree hashes.
type Hash [HashSize]byte

// String returns the Hash as lowercase hex, matching the display convention
// used for header hashes and coin ids.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is the all-zero value, the conventional
// "no parent" sentinel for genesis-era coins.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// CloneBytes returns a newly allocated copy of the hash's bytes.
func (h Hash) CloneBytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// NewHash returns a new Hash from a byte slice. It returns an error if the
// slice does not have the correct length.
func NewHash(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash length %d, want %d", len(b), HashSize)
	}
	copy(h[:], b)
	return h, nil
}

// NewHashFromStr creates a Hash from a hex string, matching the
// `lowercase hex` display convention in spec §3.1.
func NewHashFromStr(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("chainhash: invalid hex: %w", err)
	}
	return NewHash(b)
}

// HashH computes the canonical 32-byte hash of b. All consensus-relevant
// hashing in this module (coin ids, tree hashes, header hashes) uses this
// single function so the VM and the interpreter remain bit-exact with
// peers; it is intentionally not configurable.
func HashH(b []byte) Hash {
	return Hash(sha256.Sum256(b))
}

// HashMerge hashes the concatenation of two byte slices, a shape used
// repeatedly by tree hashing (clvm.TreeHash).
func HashMerge(a, b []byte) Hash {
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
