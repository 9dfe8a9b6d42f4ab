// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"
)

// MessageType is the one-byte wire code identifying a message's payload
// shape. Values below are part of the interface contract (spec §4.1) and
// must match the codes existing peers use.
type MessageType uint8

// Required message types, by numeric code.
const (
	MsgHandshake    MessageType = 1
	MsgHandshakeAck MessageType = 2
	MsgDisconnect   MessageType = 3
	MsgPing         MessageType = 4
	MsgPong         MessageType = 5
	MsgNewPeak      MessageType = 20
	MsgRequestBlock  MessageType = 26
	MsgRespondBlock  MessageType = 27
	MsgRejectBlock   MessageType = 28
	MsgRequestBlocks MessageType = 29
	MsgRespondBlocks MessageType = 30
	MsgRejectBlocks  MessageType = 31
	MsgRequestPeers MessageType = 47
	MsgRespondPeers MessageType = 48
)

// knownTypeNames is used only for logging/diagnostics; an unknown code is
// never treated as fatal (spec §4.1: "unknown codes must be decoded as an
// opaque raw body").
var knownTypeNames = map[MessageType]string{
	MsgHandshake:     "handshake",
	MsgHandshakeAck:  "handshake_ack",
	MsgDisconnect:    "disconnect",
	MsgPing:          "ping",
	MsgPong:          "pong",
	MsgNewPeak:       "new_peak",
	MsgRequestBlock:  "request_block",
	MsgRespondBlock:  "respond_block",
	MsgRejectBlock:   "reject_block",
	MsgRequestBlocks: "request_blocks",
	MsgRespondBlocks: "respond_blocks",
	MsgRejectBlocks:  "reject_blocks",
	MsgRequestPeers:  "request_peers",
	MsgRespondPeers:  "respond_peers",
}

// String returns a human name for known types, or "unknown(N)" otherwise.
func (t MessageType) String() string {
	if name, ok := knownTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// IsKnown reports whether t is one of the required message types.
func (t MessageType) IsKnown() bool {
	_, ok := knownTypeNames[t]
	return ok
}

// Frame is a decoded message frame: the type byte, an optional correlation
// id, and the raw inner message body (still to be decoded by a
// type-specific reader).
type Frame struct {
	Type MessageType
	ID   *uint16
	Data []byte
}

// EncodeFrame serializes a Frame as payload := type || Optional<id> ||
// VarBytes<data>, prefixed by its own 32-bit big-endian length, the
// complete on-the-wire representation of one message (spec §4.1).
func EncodeFrame(f Frame) ([]byte, error) {
	var payload bytes.Buffer
	pw := NewWriter(&payload)
	if err := pw.WriteUint8(uint8(f.Type)); err != nil {
		return nil, err
	}
	if err := WriteOptional(pw, f.ID, func(w *Writer, v uint16) error {
		return w.WriteUint16(v)
	}); err != nil {
		return nil, err
	}
	if err := pw.WriteVarBytes(f.Data); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	ow := NewWriter(&out)
	if err := ow.WriteUint32(uint32(payload.Len())); err != nil {
		return nil, err
	}
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

// DecodeFrame reads one length-prefixed frame from r. maxFrameBytes, if
// non-zero, is the fatal ceiling from spec §4.3.5/B1: a declared length at
// or above it ends the read before any payload bytes are consumed.
func DecodeFrame(r io.Reader, maxFrameBytes uint32) (Frame, error) {
	lr := NewReader(r)
	length, err := lr.ReadUint32()
	if err != nil {
		return Frame{}, newDecodeError("frame.length", err)
	}
	if maxFrameBytes != 0 && length >= maxFrameBytes {
		return Frame{}, newDecodeError("frame.length", fmt.Errorf("%w: %d >= %d", ErrFrameTooLarge, length, maxFrameBytes))
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, newDecodeError("frame.payload", ErrUnexpectedEOF)
	}

	pr := NewReader(bytes.NewReader(payload))
	typ, err := pr.ReadUint8()
	if err != nil {
		return Frame{}, newDecodeError("frame.type", err)
	}
	id, err := ReadOptional(pr, func(r *Reader) (uint16, error) { return r.ReadUint16() })
	if err != nil {
		return Frame{}, newDecodeError("frame.id", err)
	}
	data, err := pr.ReadVarBytes()
	if err != nil {
		return Frame{}, newDecodeError("frame.data", err)
	}

	// The framing length and the inner data length must agree up to the
	// intermediate header fields (spec §4.1): after consuming type, the
	// optional id, and the data's own length prefix plus payload, there
	// must be no payload bytes left over and none missing.
	consumed := 1 // type
	if id != nil {
		consumed += 1 + 2 // presence byte + uint16
	} else {
		consumed += 1
	}
	consumed += 4 + len(data) // VarBytes length prefix + payload
	if consumed != len(payload) {
		return Frame{}, newDecodeError("frame", fmt.Errorf("%w: payload %d bytes, header+data accounted for %d",
			ErrFrameLengthMismatch, len(payload), consumed))
	}

	return Frame{Type: MessageType(typ), ID: id, Data: data}, nil
}
