// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"

	"github.com/dig-network/chialisten/chainhash"
)

// Capability is a (code, version-string) pair advertised during the
// handshake (spec §4.3.1).
type Capability struct {
	Code    uint16
	Version string
}

func writeCapability(w *Writer, c Capability) error {
	if err := w.WriteUint16(c.Code); err != nil {
		return err
	}
	return w.WriteString(c.Version)
}

func readCapability(r *Reader) (Capability, error) {
	code, err := r.ReadUint16()
	if err != nil {
		return Capability{}, err
	}
	ver, err := r.ReadString()
	if err != nil {
		return Capability{}, err
	}
	return Capability{Code: code, Version: ver}, nil
}

// NodeType identifies the peer kind advertised in a Handshake.
type NodeType uint8

// Node types recognized by the handshake (spec §4.3.1).
const (
	NodeTypeFullNode NodeType = 1
	NodeTypeWallet   NodeType = 6
)

// Handshake is sent immediately after the WebSocket opens, and again by the
// peer in response, before any other message (spec §4.3.1).
type Handshake struct {
	NetworkID        string
	ProtocolVersion  string
	SoftwareVersion  string
	ServerPort       uint16
	NodeType         NodeType
	Capabilities     []Capability
}

// Encode writes the Handshake body.
func (m *Handshake) Encode(w *Writer) error {
	if err := w.WriteString(m.NetworkID); err != nil {
		return err
	}
	if err := w.WriteString(m.ProtocolVersion); err != nil {
		return err
	}
	if err := w.WriteString(m.SoftwareVersion); err != nil {
		return err
	}
	if err := w.WriteUint16(m.ServerPort); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.NodeType)); err != nil {
		return err
	}
	return WriteList(w, m.Capabilities, writeCapability)
}

// DecodeHandshake decodes a Handshake body.
func DecodeHandshake(r *Reader) (*Handshake, error) {
	m := &Handshake{}
	var err error
	if m.NetworkID, err = r.ReadString(); err != nil {
		return nil, newDecodeError("Handshake.network_id", err)
	}
	if m.ProtocolVersion, err = r.ReadString(); err != nil {
		return nil, newDecodeError("Handshake.protocol_version", err)
	}
	if m.SoftwareVersion, err = r.ReadString(); err != nil {
		return nil, newDecodeError("Handshake.software_version", err)
	}
	if m.ServerPort, err = r.ReadUint16(); err != nil {
		return nil, newDecodeError("Handshake.server_port", err)
	}
	nt, err := r.ReadUint8()
	if err != nil {
		return nil, newDecodeError("Handshake.node_type", err)
	}
	m.NodeType = NodeType(nt)
	caps, err := ReadList(r, 256, readCapability)
	if err != nil {
		return nil, newDecodeError("Handshake.capabilities", err)
	}
	m.Capabilities = caps
	return m, nil
}

// EncodeMessage is a convenience that encodes v's body with enc and wraps
// it in a framed message with the given type and correlation id.
func EncodeMessage(typ MessageType, id *uint16, enc func(*Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := enc(NewWriter(&buf)); err != nil {
		return nil, err
	}
	return EncodeFrame(Frame{Type: typ, ID: id, Data: buf.Bytes()})
}

// Disconnect carries an optional human-readable reason.
type Disconnect struct {
	Reason string
}

func (m *Disconnect) Encode(w *Writer) error { return w.WriteString(m.Reason) }

func DecodeDisconnect(r *Reader) (*Disconnect, error) {
	reason, err := r.ReadString()
	if err != nil {
		return nil, newDecodeError("Disconnect.reason", err)
	}
	return &Disconnect{Reason: reason}, nil
}

// Ping and Pong carry no payload.
type Ping struct{}
type Pong struct{}

func (m *Ping) Encode(w *Writer) error { return nil }
func (m *Pong) Encode(w *Writer) error { return nil }

func DecodePing(r *Reader) (*Ping, error) { return &Ping{}, nil }
func DecodePong(r *Reader) (*Pong, error) { return &Pong{}, nil }

// NewPeak is the unsolicited event a peer emits when its chain tip
// advances (spec §3.4, §4.3.4).
type NewPeak struct {
	HeaderHash chainhash.Hash
	Height     uint32
	Weight     [16]byte // big-endian u128
}

func (m *NewPeak) Encode(w *Writer) error {
	if err := w.WriteHash(m.HeaderHash); err != nil {
		return err
	}
	if err := w.WriteUint32(m.Height); err != nil {
		return err
	}
	return w.WriteUint128(m.Weight)
}

func DecodeNewPeak(r *Reader) (*NewPeak, error) {
	m := &NewPeak{}
	var err error
	if m.HeaderHash, err = r.ReadHash(); err != nil {
		return nil, newDecodeError("NewPeak.header_hash", err)
	}
	if m.Height, err = r.ReadUint32(); err != nil {
		return nil, newDecodeError("NewPeak.height", err)
	}
	if m.Weight, err = r.ReadUint128(); err != nil {
		return nil, newDecodeError("NewPeak.weight", err)
	}
	return m, nil
}

// RequestBlock asks a peer for the full block at Height (spec §4.5.5).
type RequestBlock struct {
	Height          uint32
	IncludeTxBlock  bool
}

func (m *RequestBlock) Encode(w *Writer) error {
	if err := w.WriteUint32(m.Height); err != nil {
		return err
	}
	return w.WriteBool(m.IncludeTxBlock)
}

func DecodeRequestBlock(r *Reader) (*RequestBlock, error) {
	m := &RequestBlock{}
	var err error
	if m.Height, err = r.ReadUint32(); err != nil {
		return nil, newDecodeError("RequestBlock.height", err)
	}
	if m.IncludeTxBlock, err = r.ReadBool(); err != nil {
		return nil, newDecodeError("RequestBlock.include_tx_block", err)
	}
	return m, nil
}

// RespondBlock carries the raw streamable encoding of a FullBlock. Its
// internal structure is the block interpreter's concern (package
// blockchain), not the wire codec's; wire only needs to move the bytes.
type RespondBlock struct {
	Block []byte
}

func (m *RespondBlock) Encode(w *Writer) error { return w.WriteVarBytes(m.Block) }

func DecodeRespondBlock(r *Reader) (*RespondBlock, error) {
	b, err := r.ReadVarBytes()
	if err != nil {
		return nil, newDecodeError("RespondBlock.block", err)
	}
	return &RespondBlock{Block: b}, nil
}

// RejectBlock is returned when a peer cannot serve the requested height.
type RejectBlock struct {
	Height uint32
}

func (m *RejectBlock) Encode(w *Writer) error { return w.WriteUint32(m.Height) }

func DecodeRejectBlock(r *Reader) (*RejectBlock, error) {
	h, err := r.ReadUint32()
	if err != nil {
		return nil, newDecodeError("RejectBlock.height", err)
	}
	return &RejectBlock{Height: h}, nil
}

// RequestBlocks asks for a contiguous height range in one round trip, used
// by the pool's batched fetch policy (spec §4.5.5).
type RequestBlocks struct {
	StartHeight    uint32
	EndHeight      uint32
	IncludeTxBlock bool
}

func (m *RequestBlocks) Encode(w *Writer) error {
	if err := w.WriteUint32(m.StartHeight); err != nil {
		return err
	}
	if err := w.WriteUint32(m.EndHeight); err != nil {
		return err
	}
	return w.WriteBool(m.IncludeTxBlock)
}

func DecodeRequestBlocks(r *Reader) (*RequestBlocks, error) {
	m := &RequestBlocks{}
	var err error
	if m.StartHeight, err = r.ReadUint32(); err != nil {
		return nil, newDecodeError("RequestBlocks.start_height", err)
	}
	if m.EndHeight, err = r.ReadUint32(); err != nil {
		return nil, newDecodeError("RequestBlocks.end_height", err)
	}
	if m.IncludeTxBlock, err = r.ReadBool(); err != nil {
		return nil, newDecodeError("RequestBlocks.include_tx_block", err)
	}
	return m, nil
}

// RespondBlocks carries the raw encodings of each block in the requested
// range, in height order.
type RespondBlocks struct {
	StartHeight uint32
	EndHeight   uint32
	Blocks      [][]byte
}

func (m *RespondBlocks) Encode(w *Writer) error {
	if err := w.WriteUint32(m.StartHeight); err != nil {
		return err
	}
	if err := w.WriteUint32(m.EndHeight); err != nil {
		return err
	}
	return WriteList(w, m.Blocks, func(w *Writer, b []byte) error { return w.WriteVarBytes(b) })
}

func DecodeRespondBlocks(r *Reader) (*RespondBlocks, error) {
	m := &RespondBlocks{}
	var err error
	if m.StartHeight, err = r.ReadUint32(); err != nil {
		return nil, newDecodeError("RespondBlocks.start_height", err)
	}
	if m.EndHeight, err = r.ReadUint32(); err != nil {
		return nil, newDecodeError("RespondBlocks.end_height", err)
	}
	m.Blocks, err = ReadList(r, 4096, func(r *Reader) ([]byte, error) { return r.ReadVarBytes() })
	if err != nil {
		return nil, newDecodeError("RespondBlocks.blocks", err)
	}
	return m, nil
}

// RejectBlocks is returned when a peer cannot serve the requested range.
type RejectBlocks struct {
	StartHeight uint32
	EndHeight   uint32
}

func (m *RejectBlocks) Encode(w *Writer) error {
	if err := w.WriteUint32(m.StartHeight); err != nil {
		return err
	}
	return w.WriteUint32(m.EndHeight)
}

func DecodeRejectBlocks(r *Reader) (*RejectBlocks, error) {
	m := &RejectBlocks{}
	var err error
	if m.StartHeight, err = r.ReadUint32(); err != nil {
		return nil, newDecodeError("RejectBlocks.start_height", err)
	}
	if m.EndHeight, err = r.ReadUint32(); err != nil {
		return nil, newDecodeError("RejectBlocks.end_height", err)
	}
	return m, nil
}

// RequestPeers and RespondPeers implement simple peer-address gossip.
// They are part of the required message set (spec §4.1) but peer
// discovery over this channel is not wired into the pool's membership
// (DNS/gossip-based discovery is an external collaborator, spec §1); the
// core only needs to be able to decode/encode them so an unrequested
// RespondPeers from a peer does not trip the unknown-message path.
type RequestPeers struct{}

func (m *RequestPeers) Encode(w *Writer) error { return nil }

func DecodeRequestPeers(r *Reader) (*RequestPeers, error) { return &RequestPeers{}, nil }

// PeerAddress is a single gossiped peer address.
type PeerAddress struct {
	Host string
	Port uint16
}

func writePeerAddress(w *Writer, a PeerAddress) error {
	if err := w.WriteString(a.Host); err != nil {
		return err
	}
	return w.WriteUint16(a.Port)
}

func readPeerAddress(r *Reader) (PeerAddress, error) {
	host, err := r.ReadString()
	if err != nil {
		return PeerAddress{}, err
	}
	port, err := r.ReadUint16()
	if err != nil {
		return PeerAddress{}, err
	}
	return PeerAddress{Host: host, Port: port}, nil
}

// RespondPeers carries a list of addresses known to the peer.
type RespondPeers struct {
	Peers []PeerAddress
}

func (m *RespondPeers) Encode(w *Writer) error {
	return WriteList(w, m.Peers, writePeerAddress)
}

func DecodeRespondPeers(r *Reader) (*RespondPeers, error) {
	peers, err := ReadList(r, 4096, readPeerAddress)
	if err != nil {
		return nil, newDecodeError("RespondPeers.peers", err)
	}
	return &RespondPeers{Peers: peers}, nil
}
