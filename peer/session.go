// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements one TLS WebSocket session with a remote peer
// (spec §4.2, §4.3): the handshake, the cooperative reader/writer tasks,
// request/response correlation, and peak tracking. A Session never talks
// to other sessions or to a pool directly; it reports observed peaks and
// unsolicited messages through callbacks supplied at construction, so
// the pool (package pool) is the only thing that knows about more than
// one session at a time.
package peer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dig-network/chialisten/chaincfg"
	"github.com/dig-network/chialisten/connmgr"
	"github.com/dig-network/chialisten/math/uint256"
	"github.com/dig-network/chialisten/wire"
)

// Config controls a Session's runtime behavior.
type Config struct {
	MaxFrameBytes   uint32
	HandshakeTimeout time.Duration
	// OutgoingQueueSize bounds the writer's outgoing queue; Request
	// blocks once it is full until the writer drains it or ctx is done.
	OutgoingQueueSize int
}

// DefaultConfig returns the PoolConfig defaults from spec §6 that apply
// at the session level.
func DefaultConfig() Config {
	return Config{
		MaxFrameBytes:     64 * 1024 * 1024,
		HandshakeTimeout:  10 * time.Second,
		OutgoingQueueSize: 64,
	}
}

// Callbacks lets the owner (the pool) observe session-level events
// without the Session importing the pool package (spec §6 "the
// interpreter never calls back into the pool itself" — the same
// layering boundary applies between peer and pool).
type Callbacks struct {
	// OnNewPeak is invoked whenever this session's observed peak
	// advances (spec §4.3.4).
	OnNewPeak func(peak Peak)
	// OnUnsolicited is invoked for any decoded message that is
	// neither a correlated response, a NewPeak, nor a Ping. The
	// default behavior if nil is to drop with a trace log (spec
	// §4.3.2).
	OnUnsolicited func(body interface{})
	// OnEjected is invoked exactly once when the session becomes
	// permanently unusable, fatal or by explicit Close.
	OnEjected func(err error)
}

type waiter chan waiterResult

type waiterResult struct {
	body interface{}
	err  error
}

// Session is one live connection to a remote peer.
type Session struct {
	conn *websocket.Conn
	cfg  Config
	cb   Callbacks

	peerHandshake *wire.Handshake

	mu      sync.Mutex
	nextID  uint16
	pending map[uint16]waiter
	closed  bool

	outgoing chan []byte
	done     chan struct{}
	closeErr error

	peak atomicPeak
}

// Connect dials url (a TLS WebSocket endpoint) via connmgr, performs the
// handshake, and on success starts the session's reader/writer tasks.
func Connect(ctx context.Context, url string, tlsConfig *tls.Config, local LocalIdentity, params *chaincfg.Params, cfg Config, dialCfg connmgr.Config, cb Callbacks) (*Session, error) {
	wsConn, err := connmgr.DialWebSocket(ctx, url, tlsConfig, dialCfg)
	if err != nil {
		return nil, wrapError(ErrTLS, err, "dial %s", url)
	}

	peerHS, err := doHandshake(wsConn, local, params, cfg.HandshakeTimeout)
	if err != nil {
		wsConn.Close()
		return nil, err
	}

	s := newSession(wsConn, peerHS, cfg, cb)
	return s, nil
}

func newSession(conn *websocket.Conn, peerHS *wire.Handshake, cfg Config, cb Callbacks) *Session {
	s := &Session{
		conn:          conn,
		cfg:           cfg,
		cb:            cb,
		peerHandshake: peerHS,
		pending:       make(map[uint16]waiter),
		outgoing:      make(chan []byte, cfg.OutgoingQueueSize),
		done:          make(chan struct{}),
	}
	go s.readLoop()
	go s.writeLoop()
	return s
}

// PeerHandshake returns the handshake the peer presented.
func (s *Session) PeerHandshake() *wire.Handshake { return s.peerHandshake }

// PeakSnapshot returns the most recently observed peak, or nil if the
// peer has not yet sent one. Lock-free (spec §5 "Peak cells are
// readable lock-free using atomic snapshots").
func (s *Session) PeakSnapshot() *Peak { return s.peak.load() }

// Request sends body under typ and suspends until a correlated response
// arrives, the deadline elapses, or the session fails (spec §4.3.3).
func (s *Session) Request(ctx context.Context, typ wire.MessageType, encode func(*wire.Writer) error, timeout time.Duration) (interface{}, error) {
	id, respCh, err := s.registerWaiter()
	if err != nil {
		return nil, err
	}

	idCopy := id
	frame, err := wire.EncodeMessage(typ, &idCopy, encode)
	if err != nil {
		s.removeWaiter(id)
		return nil, wrapError(ErrDecode, err, "encode request")
	}

	select {
	case s.outgoing <- frame:
	case <-s.done:
		s.removeWaiter(id)
		return nil, s.shutdownError()
	case <-ctx.Done():
		s.removeWaiter(id)
		return nil, ctx.Err()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-respCh:
		return res.body, res.err
	case <-timer.C:
		s.removeWaiter(id)
		return nil, newError(ErrTimeout, "request %d timed out after %s", id, timeout)
	case <-s.done:
		return nil, s.shutdownError()
	case <-ctx.Done():
		s.removeWaiter(id)
		return nil, ctx.Err()
	}
}

func (s *Session) registerWaiter() (uint16, waiter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, s.shutdownErrorLocked()
	}
	var id uint16
	for {
		id = s.nextID
		s.nextID++
		if _, busy := s.pending[id]; !busy {
			break
		}
	}
	ch := make(waiter, 1)
	s.pending[id] = ch
	return id, ch, nil
}

func (s *Session) removeWaiter(id uint16) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Close gracefully ends the session: it sends a Disconnect notice if
// possible, then ejects with ErrShuttingDown.
func (s *Session) Close(reason string) {
	s.sendDisconnect(reason)
	s.eject(newError(ErrShuttingDown, "closed: %s", reason))
}

func (s *Session) sendDisconnect(reason string) {
	msg := &wire.Disconnect{Reason: reason}
	frame, err := wire.EncodeMessage(wire.MsgDisconnect, nil, msg.Encode)
	if err != nil {
		return
	}
	select {
	case s.outgoing <- frame:
	default:
	}
}

// eject tears the session down exactly once, resolving every pending
// waiter with ErrTransportLost wrapping err and invoking OnEjected
// (spec §4.3.5).
func (s *Session) eject(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closeErr = err
	pending := s.pending
	s.pending = make(map[uint16]waiter)
	s.mu.Unlock()

	close(s.done)
	s.conn.Close()

	for _, ch := range pending {
		select {
		case ch <- waiterResult{err: wrapError(ErrTransportLost, err, "session ejected")}:
		default:
		}
	}

	if s.cb.OnEjected != nil {
		s.cb.OnEjected(err)
	}
}

func (s *Session) shutdownError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdownErrorLocked()
}

func (s *Session) shutdownErrorLocked() error {
	if s.closeErr != nil {
		return wrapError(ErrShuttingDown, s.closeErr, "session closed")
	}
	return newError(ErrShuttingDown, "session closed")
}

func (s *Session) readLoop() {
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.eject(wrapError(ErrWebSocketClosed, err, "read"))
			return
		}
		if messageType != websocket.BinaryMessage {
			s.eject(newError(ErrUnexpectedMessage, "text frame received"))
			return
		}

		frame, err := wire.DecodeFrame(bytes.NewReader(data), s.cfg.MaxFrameBytes)
		if err != nil {
			s.eject(wrapError(ErrDecode, err, "frame decode"))
			return
		}
		body, err := wire.DecodeBody(frame)
		if err != nil {
			s.eject(wrapError(ErrDecode, err, "body decode"))
			return
		}
		s.dispatch(frame, body)
	}
}

func (s *Session) dispatch(frame wire.Frame, body interface{}) {
	if frame.ID != nil {
		s.mu.Lock()
		ch, ok := s.pending[*frame.ID]
		if ok {
			delete(s.pending, *frame.ID)
		}
		s.mu.Unlock()
		if !ok {
			// B2: a response matching no pending waiter is dropped.
			log.Tracef("dropping response with unmatched id %d", *frame.ID)
			return
		}
		ch <- waiterResult{body: body}
		return
	}

	switch m := body.(type) {
	case *wire.NewPeak:
		peak := Peak{HeaderHash: m.HeaderHash, Height: m.Height, Weight: uint256.FromBytes(m.Weight)}
		if s.peak.update(peak) && s.cb.OnNewPeak != nil {
			s.cb.OnNewPeak(peak)
		}
	case *wire.Ping:
		s.enqueuePong()
	default:
		if s.cb.OnUnsolicited != nil {
			s.cb.OnUnsolicited(body)
		} else {
			log.Tracef("dropping unsolicited message: %T", body)
		}
	}
}

func (s *Session) enqueuePong() {
	pong := &wire.Pong{}
	frame, err := wire.EncodeMessage(wire.MsgPong, nil, pong.Encode)
	if err != nil {
		return
	}
	select {
	case s.outgoing <- frame:
	case <-s.done:
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case frame := <-s.outgoing:
			if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.eject(wrapError(ErrWebSocketClosed, err, "write"))
				return
			}
		case <-s.done:
			return
		}
	}
}

// String identifies the session for logging by its remote address.
func (s *Session) String() string {
	return fmt.Sprintf("peer(%s)", s.conn.RemoteAddr())
}
