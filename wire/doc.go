// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the self-describing "streamable" binary codec
// used for every message exchanged with a peer, the message framing layered
// on top of it, and the numeric message-type registry required to
// interoperate with existing peers.
//
// Every type has exactly one canonical encoding (spec §4.1): decoding is
// total, producing either a typed value or a DecodeError naming the field
// path that failed. The codec additionally supports a "skip" mode (see
// skip.go) that advances a cursor past an encoded value without
// materializing it, which the block interpreter relies on to locate the
// transactions generator inside a FullBlock without decoding the rest of
// the record.
package wire
