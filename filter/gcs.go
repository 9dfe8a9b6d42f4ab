// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package filter builds a compact Golomb-coded set filter over the
// puzzle hashes touched by a parsed block (SPEC_FULL.md §C.2): an
// opt-in derived artifact on top of blockchain.ParsedBlock, not a new
// required field, so it never affects the interpreter's invariants.
// Adapted from the teacher's gcs package (gcs/gcs.go), generalized from
// a fixed 2-byte script-filter collision probability to a puzzle-hash
// filter keyed with github.com/dchest/siphash, matching the keying
// library already wired into clvm.PuzzleHashCache rather than the
// teacher's github.com/aead/siphash (kept out of go.mod to avoid two
// siphash implementations for the same concern).
package filter

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"

	"github.com/dchest/siphash"
)

var (
	// ErrNTooBig signifies the filter can't handle this many items.
	ErrNTooBig = errors.New("filter: N does not fit in uint32")
	// ErrPTooBig signifies the requested collision probability can't
	// be represented.
	ErrPTooBig = errors.New("filter: P is too large")
	// ErrNoData signifies an empty element set was passed to NewFilter.
	ErrNoData = errors.New("filter: no data provided")
)

// DefaultP is the collision probability exponent used unless a caller
// specifies otherwise: 1/2^19, matching the teacher's default basic
// filter parameter.
const DefaultP = 19

// Filter is an immutable Golomb-coded set over puzzle hashes (or any
// other []byte element), queryable for probabilistic membership.
type Filter struct {
	n           uint32
	p           uint8
	modulusNP   uint64
	filterNData []byte // 4 bytes n big-endian, remainder is filter data
}

// NewFilter builds a filter with collision probability 1/2^P over data,
// keyed by (k0, k1) so two filters built with different keys are not
// comparable (this mirrors the teacher's per-block key derivation,
// typically the block's own header hash split into two halves).
func NewFilter(p uint8, k0, k1 uint64, data [][]byte) (*Filter, error) {
	if len(data) == 0 {
		return nil, ErrNoData
	}
	if len(data) > math.MaxInt32 {
		return nil, ErrNTooBig
	}
	if p > 32 {
		return nil, ErrPTooBig
	}

	modP := uint64(1) << p
	f := &Filter{
		n:         uint32(len(data)),
		p:         p,
		modulusNP: uint64(len(data)) * modP,
	}

	values := make(uint64Slice, 0, len(data))
	for _, d := range data {
		values = append(values, siphash.Hash(k0, k1, d)%f.modulusNP)
	}
	sort.Sort(values)

	var bw bitWriter
	modPMask := modP - 1
	var lastValue uint64
	for _, v := range values {
		remainder := (v - lastValue) & modPMask
		quotient := (v - lastValue - remainder) >> p
		lastValue = v

		for ; quotient > 0; quotient-- {
			bw.writeOne()
		}
		bw.writeZero()
		bw.writeNBits(remainder, uint(p))
	}

	ndata := make([]byte, 4+len(bw.bytes))
	binary.BigEndian.PutUint32(ndata, f.n)
	copy(ndata[4:], bw.bytes)
	f.filterNData = ndata

	return f, nil
}

// FromNBytes reconstructs a filter from its serialized N+data form (as
// returned by NBytes) and a known P.
func FromNBytes(p uint8, d []byte) (*Filter, error) {
	if len(d) < 4 {
		return nil, errors.New("filter: truncated serialized filter")
	}
	n := binary.BigEndian.Uint32(d[:4])
	return &Filter{
		n:           n,
		p:           p,
		modulusNP:   uint64(n) * (uint64(1) << p),
		filterNData: d,
	}, nil
}

// NBytes returns the serialized N-prefixed filter body, P and the
// siphash key must be carried separately by the caller.
func (f *Filter) NBytes() []byte { return f.filterNData }

// N returns the number of elements the filter was built over.
func (f *Filter) N() uint32 { return f.n }

// P returns the filter's collision probability exponent.
func (f *Filter) P() uint8 { return f.p }

// Match reports whether data is likely a member of the filtered set.
func (f *Filter) Match(k0, k1 uint64, data []byte) bool {
	br := newBitReader(f.filterNData[4:])
	term := siphash.Hash(k0, k1, data) % f.modulusNP

	var lastValue uint64
	for lastValue < term {
		v, err := f.readFullUint64(&br)
		if err != nil {
			return false
		}
		lastValue += v
		if lastValue == term {
			return true
		}
	}
	return false
}

func (f *Filter) readFullUint64(b *bitReader) (uint64, error) {
	quotient, err := b.readUnary()
	if err != nil {
		return 0, err
	}
	remainder, err := b.readNBits(uint(f.p))
	if err != nil {
		return 0, err
	}
	return quotient<<f.p + remainder, nil
}

type uint64Slice []uint64

func (s uint64Slice) Len() int           { return len(s) }
func (s uint64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s uint64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
