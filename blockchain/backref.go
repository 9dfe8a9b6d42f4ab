// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

// BackRefResolver supplies the generator bytes for a list of previously
// referenced heights (spec §4.4.5). The interpreter never performs I/O
// itself; a caller typically implements this in terms of repeated
// get_block_by_height calls against the pool and extraction of the
// generator field, but the interpreter has no dependency on that package
// (spec §6 "this is the layering boundary that prevents cycles").
type BackRefResolver interface {
	// Resolve returns the generator bytes for each height in heights, in
	// the same order. If any height cannot be supplied, it returns the
	// subset of heights it could not resolve via the second return value;
	// a non-empty second return always causes ParseBlock to fail with
	// MissingBackRefError.
	Resolve(heights []uint32) (bytes [][]byte, missing []uint32)
}

// StaticResolver is a BackRefResolver backed by a fixed, caller-supplied
// map, useful for tests and for callers that have already prefetched
// every height a block might reference.
type StaticResolver map[uint32][]byte

// Resolve implements BackRefResolver.
func (r StaticResolver) Resolve(heights []uint32) ([][]byte, []uint32) {
	out := make([][]byte, 0, len(heights))
	var missing []uint32
	for _, h := range heights {
		b, ok := r[h]
		if !ok {
			missing = append(missing, h)
			continue
		}
		out = append(out, b)
	}
	if len(missing) > 0 {
		return nil, missing
	}
	return out, nil
}

// NoBackRefs is a BackRefResolver that can never supply anything; it is
// appropriate for a block whose ref_list is known empty, or to deliberately
// force MissingBackRefError in tests (spec §8 S3).
var NoBackRefs BackRefResolver = noBackRefResolver{}

type noBackRefResolver struct{}

func (noBackRefResolver) Resolve(heights []uint32) ([][]byte, []uint32) {
	if len(heights) == 0 {
		return nil, nil
	}
	return nil, heights
}
