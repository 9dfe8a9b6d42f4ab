// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import "sync/atomic"

// atomicPeak holds the session's current observed peak behind an
// atomic.Pointer so PeakSnapshot never blocks on the session's mutex
// (spec §5 "Peak cells are readable lock-free using atomic snapshots").
type atomicPeak struct {
	v atomic.Pointer[Peak]
}

func (a *atomicPeak) load() *Peak { return a.v.Load() }

// update applies spec §4.3.4's monotonicity rule: a peak with height
// greater than or equal to the current one always replaces it; a peak
// with strictly lower height replaces it only when it carries strictly
// greater weight (handling reorgs while preventing downgrade on stale
// gossip). Returns true if the peak was replaced.
func (a *atomicPeak) update(p Peak) bool {
	for {
		old := a.v.Load()
		if old != nil && p.Height < old.Height && !p.Weight.GreaterThan(old.Weight) {
			return false
		}
		next := p
		if a.v.CompareAndSwap(old, &next) {
			return true
		}
	}
}
