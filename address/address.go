// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package address

import (
	"fmt"

	"github.com/dig-network/chialisten/chainhash"
)

// Human-readable parts conventionally used for puzzle-hash addresses.
const (
	HRPMainNet = "xch"
	HRPTestNet = "txch"
)

// Encode renders a 32-byte puzzle hash as a bech32m address with the
// given human-readable part (e.g. HRPMainNet).
func Encode(hrp string, puzzleHash chainhash.Hash) (string, error) {
	data, err := convertBits(puzzleHash[:], 8, 5, true)
	if err != nil {
		return "", err
	}
	return EncodeM(hrp, data)
}

// Decode parses a bech32m address back into its human-readable part and
// the 32-byte puzzle hash it encodes.
func Decode(addr string) (hrp string, puzzleHash chainhash.Hash, err error) {
	hrp, data, err := DecodeM(addr)
	if err != nil {
		return "", chainhash.Hash{}, err
	}
	raw, err := convertBits(data, 5, 8, false)
	if err != nil {
		return "", chainhash.Hash{}, err
	}
	if len(raw) != chainhash.HashSize {
		return "", chainhash.Hash{}, fmt.Errorf("address: decoded puzzle hash has wrong length %d", len(raw))
	}
	copy(puzzleHash[:], raw)
	return hrp, puzzleHash, nil
}
