// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"github.com/dig-network/chialisten/chainhash"
	"github.com/dig-network/chialisten/math/uint256"
)

// Peak is a peer's claim about the current chain tip (spec §3.4, §4.3.4).
type Peak struct {
	HeaderHash chainhash.Hash
	Height     uint32
	Weight     uint256.Weight
}
