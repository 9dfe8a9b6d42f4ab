// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/dig-network/chialisten/chainhash"
)

// Cursor is a zero-copy decoder over an in-memory buffer. Unlike Reader, it
// exposes the byte span backing each decoded or skipped value, which is
// what lets the block interpreter traverse a block body without
// allocating: fields it does not need are skipped (span computed and
// discarded), fields it does need (prev_header_hash, the generator bytes)
// are returned as sub-slices of the original buffer with no copy.
//
// Every Skip/typed-read method advances off and, on success, the returned
// span equals buf[start:off) for the value just consumed — this is the
// span skip.go promises agrees with encode(decode(v)) per spec §8 P2,
// since the underlying encoding is canonical (wire never emits non-minimal
// forms, so there is exactly one valid span per value).
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a Cursor over buf starting at offset 0.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the cursor's current position.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrUnexpectedEOF, n, c.Remaining())
	}
	start := c.off
	c.off += n
	return c.buf[start:c.off], nil
}

// SkipUint8 advances past a one-byte field and returns its span.
func (c *Cursor) SkipUint8() ([]byte, error) { return c.take(1) }

// SkipBool advances past a one-byte presence/bool field and returns its
// span, validating it is 0x00 or 0x01.
func (c *Cursor) SkipBool() ([]byte, error) {
	span, err := c.take(1)
	if err != nil {
		return nil, err
	}
	if span[0] > 1 {
		return nil, ErrBadBool
	}
	return span, nil
}

// ReadUint8 decodes a single byte.
func (c *Cursor) ReadUint8() (uint8, error) {
	span, err := c.take(1)
	if err != nil {
		return 0, err
	}
	return span[0], nil
}

// ReadUint32 decodes a big-endian 32-bit field.
func (c *Cursor) ReadUint32() (uint32, error) {
	span, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(span), nil
}

// ReadUint64 decodes a big-endian 64-bit field.
func (c *Cursor) ReadUint64() (uint64, error) {
	span, err := c.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(span), nil
}

// ReadHash decodes a raw 32-byte hash with no length prefix.
func (c *Cursor) ReadHash() (chainhash.Hash, error) {
	span, err := c.take(chainhash.HashSize)
	if err != nil {
		return chainhash.Hash{}, err
	}
	var h chainhash.Hash
	copy(h[:], span)
	return h, nil
}

// SkipHash advances past a raw 32-byte hash and returns its span.
func (c *Cursor) SkipHash() ([]byte, error) { return c.take(chainhash.HashSize) }

// ReadVarBytes decodes a 32-bit length prefix and returns the payload as a
// sub-slice of the underlying buffer (no copy).
func (c *Cursor) ReadVarBytes() ([]byte, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	return c.take(int(n))
}

// SkipVarBytes advances past a length-prefixed byte field without the
// caller needing its contents, returning the full span (prefix+payload).
func (c *Cursor) SkipVarBytes() ([]byte, error) {
	start := c.off
	if _, err := c.ReadVarBytes(); err != nil {
		return nil, err
	}
	return c.buf[start:c.off], nil
}

// SkipOptionalVarBytes advances past an Optional<VarBytes> field.
func (c *Cursor) SkipOptionalVarBytes() ([]byte, error) {
	start := c.off
	present, err := c.ReadUint8()
	if err != nil {
		return nil, err
	}
	if present > 1 {
		return nil, ErrBadPresenceFlag
	}
	if present == 1 {
		if _, err := c.ReadVarBytes(); err != nil {
			return nil, err
		}
	}
	return c.buf[start:c.off], nil
}

// ReadOptionalVarBytes decodes an Optional<VarBytes>, returning nil if
// absent.
func (c *Cursor) ReadOptionalVarBytes() ([]byte, error) {
	present, err := c.ReadUint8()
	if err != nil {
		return nil, err
	}
	if present > 1 {
		return nil, ErrBadPresenceFlag
	}
	if present == 0 {
		return nil, nil
	}
	return c.ReadVarBytes()
}

// ReadUint32List decodes a List<u32>, used for the generator
// back-reference height list (spec §4.4.5).
func (c *Cursor) ReadUint32List(maxItems uint32) ([]uint32, error) {
	n, err := c.ReadUint32()
	if err != nil {
		return nil, err
	}
	if maxItems != 0 && n > maxItems {
		return nil, fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyItems, n, maxItems)
	}
	out := make([]uint32, 0, minInt(int(n), 4096))
	for i := uint32(0); i < n; i++ {
		v, err := c.ReadUint32()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
