// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package clvm

import (
	"sync"

	"github.com/dchest/siphash"

	"github.com/dig-network/chialisten/chainhash"
)

// PuzzleHashCache memoizes TreeHash(puzzle_reveal) across spends sharing the
// same puzzle reveal bytes within a block, adapted from txscript.SigCache's
// siphash-keyed short-hash scheme: a 64-bit siphash digest of the reveal is
// used as the map key instead of the full reveal bytes, trading a
// vanishingly small false-sharing risk for a fixed-size key.
type PuzzleHashCache struct {
	k0, k1 uint64

	mtx     sync.RWMutex
	entries map[uint64]chainhash.Hash
	limit   int
}

// NewPuzzleHashCache returns a cache holding up to maxEntries tree hashes.
// k0/k1 are the siphash key; a resolver running many blocks should reuse one
// cache with a fixed key for the lifetime of a process.
func NewPuzzleHashCache(k0, k1 uint64, maxEntries int) *PuzzleHashCache {
	return &PuzzleHashCache{
		k0:      k0,
		k1:      k1,
		entries: make(map[uint64]chainhash.Hash, maxEntries),
		limit:   maxEntries,
	}
}

func (c *PuzzleHashCache) shortKey(reveal []byte) uint64 {
	return siphash.Hash(c.k0, c.k1, reveal)
}

// TreeHashOf returns TreeHash of the deserialized puzzle reveal, computing
// and caching it on first use. The caller supplies the already-deserialized
// Node since the reveal bytes alone do not identify which encoding variant
// (canonical-only per this VM) produced it.
func (c *PuzzleHashCache) TreeHashOf(rawReveal []byte, reveal Node) chainhash.Hash {
	key := c.shortKey(rawReveal)

	c.mtx.RLock()
	h, ok := c.entries[key]
	c.mtx.RUnlock()
	if ok {
		return h
	}

	h = TreeHash(reveal)

	c.mtx.Lock()
	if len(c.entries) >= c.limit {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = h
	c.mtx.Unlock()

	return h
}
