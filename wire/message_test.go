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

// TestFrameRoundTrip covers P1 for the message frame itself.
func TestFrameRoundTrip(t *testing.T) {
	id := uint16(42)
	data := []byte("payload-bytes")
	encoded, err := EncodeFrame(Frame{Type: MsgRequestBlock, ID: &id, Data: data})
	if err != nil {
		t.Fatal(err)
	}

	got, err := DecodeFrame(bytes.NewReader(encoded), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != MsgRequestBlock || got.ID == nil || *got.ID != id || !bytes.Equal(got.Data, data) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	reencoded, err := EncodeFrame(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(reencoded, encoded) {
		t.Fatalf("re-encode mismatch:\n got  %x\n want %x", reencoded, encoded)
	}
}

func TestFrameWithoutID(t *testing.T) {
	encoded, err := EncodeFrame(Frame{Type: MsgPing, ID: nil, Data: nil})
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeFrame(bytes.NewReader(encoded), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != nil {
		t.Fatalf("expected no id, got %v", *got.ID)
	}
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteUint32(1000); err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeFrame(&buf, 64); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("got %v, want ErrFrameTooLarge", err)
	}
}

func TestUnknownMessageTypeDecodesAsRaw(t *testing.T) {
	encoded, err := EncodeFrame(Frame{Type: MessageType(200), ID: nil, Data: []byte{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	f, err := DecodeFrame(bytes.NewReader(encoded), 0)
	if err != nil {
		t.Fatal(err)
	}
	body, err := DecodeBody(f)
	if err != nil {
		t.Fatal(err)
	}
	raw, ok := body.(*RawBody)
	if !ok {
		t.Fatalf("got %T, want *RawBody", body)
	}
	if raw.Type != MessageType(200) || !bytes.Equal(raw.Data, []byte{1, 2, 3}) {
		t.Fatalf("unexpected raw body: %+v", raw)
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	hs := &Handshake{
		NetworkID:       "mainnet",
		ProtocolVersion: "0.0.36",
		SoftwareVersion: "1.2.3",
		ServerPort:      8444,
		NodeType:        NodeTypeFullNode,
		Capabilities:    []Capability{{Code: 1, Version: "1"}, {Code: 2, Version: "1"}},
	}
	data, err := EncodeMessage(MsgHandshake, nil, hs.Encode)
	if err != nil {
		t.Fatal(err)
	}
	f, err := DecodeFrame(bytes.NewReader(data), 0)
	if err != nil {
		t.Fatal(err)
	}
	body, err := DecodeBody(f)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := body.(*Handshake)
	if !ok {
		t.Fatalf("got %T, want *Handshake", body)
	}
	if got.NetworkID != hs.NetworkID || got.ProtocolVersion != hs.ProtocolVersion ||
		got.ServerPort != hs.ServerPort || got.NodeType != hs.NodeType || len(got.Capabilities) != 2 {
		t.Fatalf("mismatch: %+v vs %+v", got, hs)
	}
}

// TestSkipParseAgreesWithDecode covers P2: the span produced by Cursor's
// Skip methods equals encode(decode(v)) for the same value.
func TestSkipParseAgreesWithDecode(t *testing.T) {
	h := chainhash.HashH([]byte("skip-me"))
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteHash(h); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteVarBytes([]byte("opaque-blob")); err != nil {
		t.Fatal(err)
	}
	encoded := buf.Bytes()

	c := NewCursor(encoded)
	hashSpan, err := c.SkipHash()
	if err != nil {
		t.Fatal(err)
	}
	blobSpan, err := c.SkipVarBytes()
	if err != nil {
		t.Fatal(err)
	}
	if c.Remaining() != 0 {
		t.Fatalf("expected cursor to reach end, %d bytes remain", c.Remaining())
	}

	// Re-decode via the typed Reader path and re-encode; the spans must
	// match byte for byte.
	r := NewReader(bytes.NewReader(encoded))
	gotHash, err := r.ReadHash()
	if err != nil {
		t.Fatal(err)
	}
	gotBlob, err := r.ReadVarBytes()
	if err != nil {
		t.Fatal(err)
	}
	var reencoded bytes.Buffer
	rw := NewWriter(&reencoded)
	if err := rw.WriteHash(gotHash); err != nil {
		t.Fatal(err)
	}
	if err := rw.WriteVarBytes(gotBlob); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(append(append([]byte{}, hashSpan...), blobSpan...), reencoded.Bytes()) {
		t.Fatalf("skip span disagrees with encode(decode(v))")
	}
}
