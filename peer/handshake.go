// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"bytes"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dig-network/chialisten/chaincfg"
	"github.com/dig-network/chialisten/wire"
)

// LocalIdentity is the handshake the client side advertises of itself
// (spec §4.3.1).
type LocalIdentity struct {
	ProtocolVersion string
	SoftwareVersion string
	ServerPort      uint16
	NodeType        wire.NodeType
	Capabilities    []wire.Capability
}

func (id LocalIdentity) toHandshake(networkID string) wire.Handshake {
	return wire.Handshake{
		NetworkID:       networkID,
		ProtocolVersion: id.ProtocolVersion,
		SoftwareVersion: id.SoftwareVersion,
		ServerPort:      id.ServerPort,
		NodeType:        id.NodeType,
		Capabilities:    id.Capabilities,
	}
}

// doHandshake performs the synchronous handshake exchange spec §4.3.1
// requires before any other message may cross the session: the client
// sends first and then awaits the peer's handshake. The session is not
// viable unless the peer is a full node, its network_id matches, and its
// protocol_version is compatible.
func doHandshake(conn *websocket.Conn, local LocalIdentity, params *chaincfg.Params, timeout time.Duration) (*wire.Handshake, error) {
	outHS := local.toHandshake(params.NetworkID)

	conn.SetWriteDeadline(time.Now().Add(timeout))
	frame, err := wire.EncodeMessage(wire.MsgHandshake, nil, outHS.Encode)
	if err != nil {
		return nil, wrapError(ErrDecode, err, "encode handshake")
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return nil, wrapError(ErrWebSocketClosed, err, "write handshake")
	}

	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	messageType, data, err := conn.ReadMessage()
	if err != nil {
		return nil, wrapError(ErrWebSocketClosed, err, "read handshake")
	}
	if messageType != websocket.BinaryMessage {
		return nil, newError(ErrUnexpectedMessage, "text frame received during handshake")
	}

	frameIn, err := wire.DecodeFrame(bytes.NewReader(data), 0)
	if err != nil {
		return nil, wrapError(ErrDecode, err, "decode handshake frame")
	}
	if frameIn.Type != wire.MsgHandshake && frameIn.Type != wire.MsgHandshakeAck {
		return nil, newError(ErrUnexpectedMessage, "expected handshake, got %s", frameIn.Type)
	}

	peerHS, err := wire.DecodeHandshake(wire.NewReader(bytes.NewReader(frameIn.Data)))
	if err != nil {
		return nil, wrapError(ErrDecode, err, "decode handshake body")
	}

	if peerHS.NodeType != wire.NodeTypeFullNode {
		return nil, newError(ErrHandshakeRejected, "peer is not a full node (node_type=%d)", peerHS.NodeType)
	}
	if peerHS.NetworkID != params.NetworkID {
		return nil, newError(ErrHandshakeRejected, "network_id mismatch: got %q want %q", peerHS.NetworkID, params.NetworkID)
	}
	if !protocolVersionCompatible(peerHS.ProtocolVersion, outHS.ProtocolVersion) {
		return nil, newError(ErrHandshakeRejected, "protocol_version mismatch: got %q want %q", peerHS.ProtocolVersion, outHS.ProtocolVersion)
	}

	return peerHS, nil
}

// protocolVersionCompatible implements the build's compatibility rule:
// two dotted version strings are compatible when their major and minor
// components agree, per spec §4.3.1 ("protocol_version matches, within
// the compatibility rule defined by the build").
func protocolVersionCompatible(a, b string) bool {
	return majorMinor(a) == majorMinor(b)
}

func majorMinor(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) < 2 {
		return v
	}
	return parts[0] + "." + parts[1]
}
