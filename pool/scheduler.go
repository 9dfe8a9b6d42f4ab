// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pool

import "github.com/jrick/bitset"

// scheduler implements the round-robin half of spec §4.5.2's fair
// scheduler: given a snapshot of which of the pool's peers are currently
// eligible (not rate-limited, not busy, not excluded by the caller), it
// picks the next one after the last peer it handed out, so that no single
// fast peer starves the others. The pool itself still applies the
// per-peer rate limit and busy tracking before building the eligibility
// bitmap; the scheduler only owns fairness among whichever peers pass
// that filter.
type scheduler struct {
	order   []PeerKey
	rrIndex int
}

func newScheduler() *scheduler {
	return &scheduler{}
}

// setOrder replaces the peer ordering the scheduler rotates over. Called
// by the pool whenever a peer is added or removed.
func (s *scheduler) setOrder(order []PeerKey) {
	s.order = order
	if len(order) == 0 {
		s.rrIndex = 0
		return
	}
	s.rrIndex %= len(order)
}

// pick scans s.order starting just after the last peer returned, and
// returns the first one marked eligible in elig. elig is indexed
// positionally into s.order, one bit per peer.
func (s *scheduler) pick(elig bitset.Bytes) (PeerKey, bool) {
	n := len(s.order)
	for i := 0; i < n; i++ {
		idx := (s.rrIndex + i) % n
		if elig.Get(idx) {
			s.rrIndex = (idx + 1) % n
			return s.order[idx], true
		}
	}
	return "", false
}
