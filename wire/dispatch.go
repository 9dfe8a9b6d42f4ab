// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "bytes"

// RawBody is the fallback decode for an unrecognized message type (spec
// §4.1: "Unknown codes must be decoded as an opaque raw body").
type RawBody struct {
	Type MessageType
	Data []byte
}

// DecodeBody decodes a frame's inner data according to its message type,
// returning one of the concrete *Handshake/*NewPeak/... types for a known
// type, or a *RawBody for anything else.
func DecodeBody(f Frame) (interface{}, error) {
	r := NewReader(bytes.NewReader(f.Data))
	switch f.Type {
	case MsgHandshake, MsgHandshakeAck:
		return DecodeHandshake(r)
	case MsgDisconnect:
		return DecodeDisconnect(r)
	case MsgPing:
		return DecodePing(r)
	case MsgPong:
		return DecodePong(r)
	case MsgNewPeak:
		return DecodeNewPeak(r)
	case MsgRequestBlock:
		return DecodeRequestBlock(r)
	case MsgRespondBlock:
		return DecodeRespondBlock(r)
	case MsgRejectBlock:
		return DecodeRejectBlock(r)
	case MsgRequestBlocks:
		return DecodeRequestBlocks(r)
	case MsgRespondBlocks:
		return DecodeRespondBlocks(r)
	case MsgRejectBlocks:
		return DecodeRejectBlocks(r)
	case MsgRequestPeers:
		return DecodeRequestPeers(r)
	case MsgRespondPeers:
		return DecodeRespondPeers(r)
	default:
		return &RawBody{Type: f.Type, Data: f.Data}, nil
	}
}
