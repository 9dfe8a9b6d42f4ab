// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dig-network/chialisten/chainhash"
)

// TestPrimitiveRoundTrip exercises P1 for the scalar and composite shapes
// in spec §4.1: decode(encode(v)) == v.
func TestPrimitiveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	h := chainhash.HashH([]byte("round-trip"))
	items := []uint32{1, 2, 3, 4294967295}
	var optPresent *uint16
	v16 := uint16(7)
	optPresent = &v16

	if err := w.WriteUint8(0xAB); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteBool(true); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteUint32(123456789); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteHash(h); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteString("hello, streamable"); err != nil {
		t.Fatal(err)
	}
	if err := WriteOptional(w, optPresent, func(w *Writer, v uint16) error { return w.WriteUint16(v) }); err != nil {
		t.Fatal(err)
	}
	if err := WriteOptional[uint16](w, nil, func(w *Writer, v uint16) error { return w.WriteUint16(v) }); err != nil {
		t.Fatal(err)
	}
	if err := WriteList(w, items, func(w *Writer, v uint32) error { return w.WriteUint32(v) }); err != nil {
		t.Fatal(err)
	}

	r := NewReader(&buf)
	if b, err := r.ReadUint8(); err != nil || b != 0xAB {
		t.Fatalf("uint8: got %v, %v", b, err)
	}
	if b, err := r.ReadBool(); err != nil || !b {
		t.Fatalf("bool: got %v, %v", b, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 123456789 {
		t.Fatalf("uint32: got %v, %v", v, err)
	}
	if got, err := r.ReadHash(); err != nil || got != h {
		t.Fatalf("hash: got %v, %v", got, err)
	}
	if s, err := r.ReadString(); err != nil || s != "hello, streamable" {
		t.Fatalf("string: got %q, %v", s, err)
	}
	gotOpt, err := ReadOptional(r, func(r *Reader) (uint16, error) { return r.ReadUint16() })
	if err != nil || gotOpt == nil || *gotOpt != 7 {
		t.Fatalf("optional present: got %v, %v", gotOpt, err)
	}
	gotNil, err := ReadOptional(r, func(r *Reader) (uint16, error) { return r.ReadUint16() })
	if err != nil || gotNil != nil {
		t.Fatalf("optional absent: got %v, %v", gotNil, err)
	}
	gotList, err := ReadList(r, 0, func(r *Reader) (uint32, error) { return r.ReadUint32() })
	if err != nil {
		t.Fatal(err)
	}
	if len(gotList) != len(items) {
		t.Fatalf("list length: got %d want %d", len(gotList), len(items))
	}
	for i := range items {
		if gotList[i] != items[i] {
			t.Fatalf("list[%d]: got %d want %d", i, gotList[i], items[i])
		}
	}
}

func TestBoolRejectsNonCanonical(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x02}))
	if _, err := r.ReadBool(); !errors.Is(err, ErrBadBool) {
		t.Fatalf("got %v, want ErrBadBool", err)
	}
}

func TestVarBytesRespectsLimit(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteVarBytes(make([]byte, 100)); err != nil {
		t.Fatal(err)
	}
	r := NewBoundedReader(&buf, 10)
	if _, err := r.ReadVarBytes(); !errors.Is(err, ErrTooManyBytes) {
		t.Fatalf("got %v, want ErrTooManyBytes", err)
	}
}

func TestStringRejectsInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteVarBytes([]byte{0xff, 0xfe, 0xfd}); err != nil {
		t.Fatal(err)
	}
	r := NewReader(&buf)
	if _, err := r.ReadString(); !errors.Is(err, ErrBadUTF8) {
		t.Fatalf("got %v, want ErrBadUTF8", err)
	}
}
