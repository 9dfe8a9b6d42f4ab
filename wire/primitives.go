// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/dig-network/chialisten/chainhash"
)

// Writer encodes streamable values onto an underlying byte sink. All
// integers are written big-endian fixed-width per spec §4.1; there is no
// varint in this codec.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer that encodes onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) WriteUint8(v uint8) error {
	_, err := w.w.Write([]byte{v})
	return err
}

func (w *Writer) WriteBool(v bool) error {
	if v {
		return w.WriteUint8(1)
	}
	return w.WriteUint8(0)
}

func (w *Writer) WriteUint16(v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.w.Write(buf[:])
	return err
}

func (w *Writer) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.w.Write(buf[:])
	return err
}

func (w *Writer) WriteUint64(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.w.Write(buf[:])
	return err
}

// WriteUint128 writes a 16-byte big-endian unsigned integer, the encoding
// used for Weight (spec §3.1, §4.1).
func (w *Writer) WriteUint128(v [16]byte) error {
	_, err := w.w.Write(v[:])
	return err
}

// WriteHash writes a 32-byte hash with no length prefix.
func (w *Writer) WriteHash(h chainhash.Hash) error {
	_, err := w.w.Write(h[:])
	return err
}

// WriteVarBytes writes a 32-bit length prefix followed by b.
func (w *Writer) WriteVarBytes(b []byte) error {
	if err := w.WriteUint32(uint32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.w.Write(b)
	return err
}

// WriteString writes s as a length-prefixed UTF-8 byte string.
func (w *Writer) WriteString(s string) error {
	return w.WriteVarBytes([]byte(s))
}

// WriteOptional writes the presence byte and, if present, v's encoding via
// encode.
func WriteOptional[T any](w *Writer, v *T, encode func(*Writer, T) error) error {
	if v == nil {
		return w.WriteBool(false)
	}
	if err := w.WriteBool(true); err != nil {
		return err
	}
	return encode(w, *v)
}

// WriteList writes a 32-bit count followed by each element's encoding via
// encode, the "List of T" shape from spec §4.1.
func WriteList[T any](w *Writer, items []T, encode func(*Writer, T) error) error {
	if err := w.WriteUint32(uint32(len(items))); err != nil {
		return err
	}
	for i := range items {
		if err := encode(w, items[i]); err != nil {
			return err
		}
	}
	return nil
}

// Reader decodes streamable values from an underlying byte source.
type Reader struct {
	r io.Reader
	// maxBytes bounds the length any single VarBytes field may declare,
	// guarding against a crafted length causing an unbounded allocation
	// before the underlying io.Reader runs dry. Zero means unbounded.
	maxBytes uint32
}

// NewReader returns a Reader that decodes from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// NewBoundedReader returns a Reader that decodes from r and refuses any
// single VarBytes allocation larger than maxBytes; list counts are
// bounded by ReadList's own maxItems argument instead. It is the reader
// used for anything originating from the network (spec §4.3.5 frame-size
// ceiling).
func NewBoundedReader(r io.Reader, maxBytes uint32) *Reader {
	return &Reader{r: r, maxBytes: maxBytes}
}

func (r *Reader) readFull(buf []byte) error {
	_, err := io.ReadFull(r.r, buf)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	var buf [1]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrBadBool
	}
}

func (r *Reader) ReadUint16() (uint16, error) {
	var buf [2]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := r.readFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func (r *Reader) ReadUint128() ([16]byte, error) {
	var buf [16]byte
	err := r.readFull(buf[:])
	return buf, err
}

func (r *Reader) ReadHash() (chainhash.Hash, error) {
	var h chainhash.Hash
	err := r.readFull(h[:])
	return h, err
}

func (r *Reader) checkLen(n uint32) error {
	if r.maxBytes != 0 && n > r.maxBytes {
		return fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyBytes, n, r.maxBytes)
	}
	return nil
}

// ReadVarBytes reads a 32-bit length prefix followed by that many bytes.
func (r *Reader) ReadVarBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if err := r.checkLen(n); err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if err := r.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadString reads a length-prefixed UTF-8 byte string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadVarBytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrBadUTF8
	}
	return string(b), nil
}

// ReadOptional reads the presence byte and, if present, decodes the payload
// with decode.
func ReadOptional[T any](r *Reader, decode func(*Reader) (T, error)) (*T, error) {
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := decode(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadList reads a 32-bit count followed by that many elements, each
// decoded with decode. maxItems, if non-zero, bounds the declared count to
// guard against a hostile peer claiming an enormous list to force a large
// allocation before the read fails.
func ReadList[T any](r *Reader, maxItems uint32, decode func(*Reader) (T, error)) ([]T, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if maxItems != 0 && n > maxItems {
		return nil, fmt.Errorf("%w: %d exceeds limit %d", ErrTooManyItems, n, maxItems)
	}
	items := make([]T, 0, minInt(int(n), 4096))
	for i := uint32(0); i < n; i++ {
		v, err := decode(r)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
