// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package clvm

import "math/big"

// IntToAtom encodes v as the minimal big-endian two's-complement atom the
// VM uses for integers (spec §3.2 "amount_be_minimal", §4.4.3). A leading
// 0x00 byte is inserted when the magnitude's natural encoding would
// otherwise set the sign bit of a non-negative value, and correspondingly
// for negative values whose natural two's-complement form wouldn't already
// carry a set sign bit.
func IntToAtom(v *big.Int) Atom {
	if v.Sign() == 0 {
		return Atom(nil)
	}
	if v.Sign() > 0 {
		b := v.Bytes()
		if len(b) == 0 || b[0]&0x80 != 0 {
			b = append([]byte{0x00}, b...)
		}
		return Atom(b)
	}
	// Negative: compute two's complement over the minimal byte length.
	bitLen := new(big.Int).Not(v).BitLen()
	nBytes := bitLen/8 + 1
	mod := new(big.Int).Lsh(big.NewInt(1), uint(nBytes*8))
	twos := new(big.Int).Add(mod, v) // mod + v, v negative
	b := twos.Bytes()
	for len(b) < nBytes {
		b = append([]byte{0x00}, b...)
	}
	if b[0]&0x80 == 0 {
		b = append([]byte{0xff}, b...)
	}
	return Atom(b)
}

// IntFromAtom decodes a minimal big-endian two's-complement atom into a
// big.Int, the inverse of IntToAtom.
func IntFromAtom(a Atom) *big.Int {
	if len(a) == 0 {
		return big.NewInt(0)
	}
	if a[0]&0x80 == 0 {
		return new(big.Int).SetBytes(a)
	}
	// Negative: v = raw - 2^(8*len)
	raw := new(big.Int).SetBytes(a)
	mod := new(big.Int).Lsh(big.NewInt(1), uint(8*len(a)))
	return new(big.Int).Sub(raw, mod)
}

// Uint64ToAtom encodes a non-negative amount (spec §3.1 Amount) the same
// way the VM encodes any other non-negative integer.
func Uint64ToAtom(v uint64) Atom {
	return IntToAtom(new(big.Int).SetUint64(v))
}
