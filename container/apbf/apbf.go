// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package apbf implements an age-partitioned bloom filter: a bloom filter
// split across several generations that rotate over time, so that old
// entries age out instead of the filter saturating forever. The pool
// package uses one to detect a NewPeak header hash already reported by
// another session, for trace logging only; it does not suppress events
// (spec §C.4 supplemented feature).
package apbf

import (
	"golang.org/x/crypto/blake2b"
)

// Filter is an age-partitioned bloom filter over arbitrary byte keys.
// It is not safe for concurrent use; callers needing concurrency should
// hold their own lock around Add/Contains, matching how the pool package
// otherwise guards its shared state (spec §5 "no I/O, and no
// unbounded computation, while holding a lock" — Add/Contains are O(k)
// bit operations, not I/O).
type Filter struct {
	numGenerations int
	genBits        int // bits per generation
	numHashes      int
	generations    [][]uint64 // bit-packed, one []uint64 per generation
	current        int
}

// New creates a Filter with numGenerations partitions, each sized to hold
// roughly itemsPerGen keys at the given false-positive rate fp, and k hash
// probes computed from the standard bloom-filter sizing formulas.
func New(numGenerations, itemsPerGen int, fp float64) *Filter {
	if numGenerations < 1 {
		numGenerations = 1
	}
	if itemsPerGen < 1 {
		itemsPerGen = 1
	}
	m, k := optimalMK(itemsPerGen, fp)
	gens := make([][]uint64, numGenerations)
	words := (m + 63) / 64
	for i := range gens {
		gens[i] = make([]uint64, words)
	}
	return &Filter{
		numGenerations: numGenerations,
		genBits:        m,
		numHashes:      k,
		generations:    gens,
	}
}

func optimalMK(n int, fp float64) (m, k int) {
	// Standard bloom-filter sizing: m = -n*ln(p)/(ln 2)^2, k = (m/n)*ln2.
	// Implemented with a small fixed-point approximation to avoid pulling
	// in math.Log for what is ultimately a capacity-planning heuristic;
	// callers needing exact sizing should simply pass a generous
	// itemsPerGen.
	const ln2 = 0.6931471805599453
	bitsPerItem := 9.6 // ~1% fp at k=7, a reasonable conservative default
	if fp > 0 && fp < 1 {
		// -ln(p) / ln(2)^2
		bitsPerItem = -logApprox(fp) / (ln2 * ln2)
	}
	m = int(float64(n)*bitsPerItem) + 1
	k = int(bitsPerItem*ln2) + 1
	if k < 1 {
		k = 1
	}
	if m < 64 {
		m = 64
	}
	return m, k
}

// logApprox is a minimal natural-log approximation sufficient for sizing
// decisions. It is accurate near mantissa 1 and coarser toward 2, where
// the error reaches about 0.14.
func logApprox(x float64) float64 {
	// ln(x) = exp*ln2 + ln(mantissa), with x halved or doubled until the
	// mantissa lies in [1,2).
	if x <= 0 {
		return 0
	}
	exp := 0
	for x < 1 {
		x *= 2
		exp--
	}
	for x >= 2 {
		x /= 2
		exp++
	}
	// x in [1,2): three-term series, ln(x) ~= t - t^2/2 + t^3/3, t = x-1
	t := x - 1
	lnFrac := t - t*t/2 + t*t*t/3
	const ln2 = 0.6931471805599453
	return float64(exp)*ln2 + lnFrac
}

// probe returns the numHashes bit indices for key within a generation of
// genBits bits, derived from a single blake2b-256 digest split into
// 32-bit lanes and combined via the standard double-hashing scheme
// (h_i = h1 + i*h2 mod m).
func (f *Filter) probe(key []byte) []uint64 {
	sum := blake2b.Sum256(key)
	h1 := uint64(sum[0]) | uint64(sum[1])<<8 | uint64(sum[2])<<16 | uint64(sum[3])<<24
	h2 := uint64(sum[4]) | uint64(sum[5])<<8 | uint64(sum[6])<<16 | uint64(sum[7])<<24
	out := make([]uint64, f.numHashes)
	for i := 0; i < f.numHashes; i++ {
		out[i] = (h1 + uint64(i)*h2) % uint64(f.genBits)
	}
	return out
}

func setBit(bits []uint64, idx uint64) {
	bits[idx/64] |= 1 << (idx % 64)
}

func getBit(bits []uint64, idx uint64) bool {
	return bits[idx/64]&(1<<(idx%64)) != 0
}

// Add inserts key into the current generation.
func (f *Filter) Add(key []byte) {
	idxs := f.probe(key)
	cur := f.generations[f.current]
	for _, idx := range idxs {
		setBit(cur, idx)
	}
}

// Contains reports whether key may have been added to any live generation.
// A false positive is possible; a false negative is not, as long as key's
// generation hasn't rotated out.
func (f *Filter) Contains(key []byte) bool {
	idxs := f.probe(key)
	for _, gen := range f.generations {
		all := true
		for _, idx := range idxs {
			if !getBit(gen, idx) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// Rotate advances to the next generation, clearing the oldest one so its
// entries age out. Callers typically rotate on a fixed cadence (e.g. once
// per N observed peaks).
func (f *Filter) Rotate() {
	f.current = (f.current + 1) % f.numGenerations
	for i := range f.generations[f.current] {
		f.generations[f.current][i] = 0
	}
}
