// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package clvm

import "fmt"

// Serialize encodes n using the four-case scheme in spec §4.4.2: the
// empty atom (0x80), a one-byte atom with its high bit clear (the byte
// itself), a length-prefixed atom (1..5 bytes of prefix, then the raw
// bytes), or a cons cell (0xff followed by the two serialized children).
func Serialize(n Node) ([]byte, error) {
	var out []byte
	var walk func(Node) error
	walk = func(n Node) error {
		switch v := n.(type) {
		case Atom:
			out = append(out, serializeAtom(v)...)
			return nil
		case *Pair:
			out = append(out, 0xff)
			if err := walk(v.First); err != nil {
				return err
			}
			return walk(v.Rest)
		default:
			return NewError(ErrBadEncoding, "unreachable node type")
		}
	}
	if err := walk(n); err != nil {
		return nil, err
	}
	return out, nil
}

func serializeAtom(a Atom) []byte {
	n := len(a)
	switch {
	case n == 0:
		return []byte{0x80}
	case n == 1 && a[0] < 0x80:
		return []byte{a[0]}
	case n < 0x40:
		return append([]byte{0x80 | byte(n)}, a...)
	case n < 0x2000:
		return append([]byte{0xC0 | byte(n>>8), byte(n)}, a...)
	case n < 0x100000:
		return append([]byte{0xE0 | byte(n>>16), byte(n >> 8), byte(n)}, a...)
	case n < 0x8000000:
		return append([]byte{0xF0 | byte(n>>24), byte(n >> 16), byte(n >> 8), byte(n)}, a...)
	default:
		// n < 0x400000000 in the reference scheme; our atoms are bounded
		// well below that by the codec's VarBytes limits, so a 4-byte
		// big-endian length after the 0xF8 prefix byte is always enough.
		return append([]byte{0xF8, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}, a...)
	}
}

// decodeAtomHeader returns the number of prefix bytes and the atom payload
// length of the atom whose encoding starts at buf[0]. It is shared by Deserialize and SerializedLength so the two stay
// in lock-step (spec §8 P2 depends on this).
func decodeAtomHeader(buf []byte) (prefixLen int, payloadLen int, err error) {
	if len(buf) == 0 {
		return 0, 0, NewError(ErrBadEncoding, "empty input")
	}
	b0 := buf[0]
	switch {
	case b0 == 0x80:
		return 1, 0, nil
	case b0 < 0x80:
		return 0, 1, nil // the byte itself is the one-byte atom
	case b0&0xC0 == 0x80: // 10xxxxxx
		return 1, int(b0 & 0x3F), nil
	case b0&0xE0 == 0xC0: // 110xxxxx
		if len(buf) < 2 {
			return 0, 0, NewError(ErrBadEncoding, "truncated 2-byte atom length prefix")
		}
		return 2, (int(b0&0x1F) << 8) | int(buf[1]), nil
	case b0&0xF0 == 0xE0: // 1110xxxx
		if len(buf) < 3 {
			return 0, 0, NewError(ErrBadEncoding, "truncated 3-byte atom length prefix")
		}
		return 3, (int(b0&0x0F) << 16) | (int(buf[1]) << 8) | int(buf[2]), nil
	case b0&0xF8 == 0xF0: // 11110xxx
		if len(buf) < 4 {
			return 0, 0, NewError(ErrBadEncoding, "truncated 4-byte atom length prefix")
		}
		return 4, (int(b0&0x07) << 24) | (int(buf[1]) << 16) | (int(buf[2]) << 8) | int(buf[3]), nil
	case b0 == 0xF8: // 11111000, 5-byte prefix: full big-endian uint32 length
		if len(buf) < 5 {
			return 0, 0, NewError(ErrBadEncoding, "truncated 5-byte atom length prefix")
		}
		n := (int(buf[1]) << 24) | (int(buf[2]) << 16) | (int(buf[3]) << 8) | int(buf[4])
		return 5, n, nil
	default:
		return 0, 0, NewError(ErrBadEncoding, fmt.Sprintf("invalid atom length-prefix byte 0x%02x", b0))
	}
}

// SerializedLength returns the number of bytes the encoded value starting
// at buf[0] occupies, without materializing a Node — the primitive
// skip-parse needs (spec §4.4.2).
func SerializedLength(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, NewError(ErrBadEncoding, "empty input")
	}
	if buf[0] == 0xff {
		n := 1
		for i := 0; i < 2; i++ {
			if n > len(buf) {
				return 0, NewError(ErrBadEncoding, "truncated cons cell")
			}
			childLen, err := SerializedLength(buf[n:])
			if err != nil {
				return 0, err
			}
			n += childLen
		}
		return n, nil
	}
	prefixLen, payloadLen, err := decodeAtomHeader(buf)
	if err != nil {
		return 0, err
	}
	total := prefixLen + payloadLen
	if b0 := buf[0]; b0 < 0x80 {
		total = 1 // one-byte atom is exactly the byte itself
	}
	if total > len(buf) {
		return 0, NewError(ErrBadEncoding, "truncated atom payload")
	}
	return total, nil
}

// Deserialize parses the single value at the start of buf and returns it
// together with the number of bytes consumed.
func Deserialize(buf []byte) (Node, int, error) {
	if len(buf) == 0 {
		return nil, 0, NewError(ErrBadEncoding, "empty input")
	}
	if buf[0] == 0xff {
		first, firstLen, err := Deserialize(buf[1:])
		if err != nil {
			return nil, 0, err
		}
		rest, restLen, err := Deserialize(buf[1+firstLen:])
		if err != nil {
			return nil, 0, err
		}
		return Cons(first, rest), 1 + firstLen + restLen, nil
	}
	b0 := buf[0]
	if b0 < 0x80 {
		return Atom([]byte{b0}), 1, nil
	}
	prefixLen, payloadLen, err := decodeAtomHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	total := prefixLen + payloadLen
	if total > len(buf) {
		return nil, 0, NewError(ErrBadEncoding, "truncated atom payload")
	}
	payload := buf[prefixLen:total]
	out := make([]byte, len(payload))
	copy(out, payload)
	return Atom(out), total, nil
}

// DeserializeAll parses buf as exactly one value with no trailing bytes,
// the form used to decode a generator or puzzle reveal in full.
func DeserializeAll(buf []byte) (Node, error) {
	n, consumed, err := Deserialize(buf)
	if err != nil {
		return nil, err
	}
	if consumed != len(buf) {
		return nil, NewError(ErrBadEncoding, "trailing bytes after top-level value")
	}
	return n, nil
}
