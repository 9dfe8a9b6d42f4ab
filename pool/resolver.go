// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pool

import (
	"context"
	"sync"
	"time"

	"github.com/dig-network/chialisten/blockchain"
	"github.com/dig-network/chialisten/lru"
)

// cachingResolver implements blockchain.BackRefResolver over a Pool: a
// miss is fetched with fetchRawBlock (never the parsing GetBlockByHeight)
// and only its generator bytes are cached, so a later reference to the
// same height never repeats the round trip (spec §C.3 supplemented
// feature).
type cachingResolver struct {
	pool    *Pool
	timeout time.Duration

	mu    sync.Mutex
	cache *lru.Cache[uint32, []byte]
}

// NewCachingResolver returns a blockchain.BackRefResolver backed by p,
// remembering up to cacheSize previously-fetched generators. Exported for
// callers assembling their own blockchain.ParseBlock call against a pool;
// Pool itself uses the unexported newCachingResolver wired to
// fetchRawBlock so resolving a back-reference never recurses into
// parsing.
func NewCachingResolver(p *Pool, cacheSize int, fetchTimeout time.Duration) blockchain.BackRefResolver {
	return newCachingResolver(p, cacheSize, fetchTimeout)
}

func newCachingResolver(p *Pool, cacheSize int, fetchTimeout time.Duration) *cachingResolver {
	return &cachingResolver{
		pool:    p,
		timeout: fetchTimeout,
		cache:   lru.New[uint32, []byte](cacheSize),
	}
}

// Resolve implements blockchain.BackRefResolver.
func (r *cachingResolver) Resolve(heights []uint32) ([][]byte, []uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]byte, 0, len(heights))
	var missing []uint32
	for _, h := range heights {
		if b, ok := r.cache.Get(h); ok {
			out = append(out, b)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		resp, err := r.pool.fetchRawBlock(ctx, h, false)
		cancel()
		if err != nil {
			log.Debugf("resolve height %d: %v", h, err)
			missing = append(missing, h)
			continue
		}

		genBytes, ok, err := blockchain.ExtractGeneratorBytes(resp.Block)
		if err != nil || !ok {
			missing = append(missing, h)
			continue
		}
		r.cache.Add(h, genBytes)
		out = append(out, genBytes)
	}

	if len(missing) > 0 {
		return nil, missing
	}
	return out, nil
}
