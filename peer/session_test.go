// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dig-network/chialisten/chaincfg"
	"github.com/dig-network/chialisten/connmgr"
	"github.com/dig-network/chialisten/wire"
)

// fakePeerServer runs a minimal remote-peer endpoint over a TLS test
// server: it performs the §4.3.1 handshake as a full node, then serves
// each request with a canned response installed by the test.
type fakePeerServer struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader
	respond  func(conn *websocket.Conn)
}

func newFakePeerServer(t *testing.T, serve func(conn *websocket.Conn)) *fakePeerServer {
	t.Helper()
	f := &fakePeerServer{respond: serve}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Read the client's handshake, then answer as a full node on
		// the same network.
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := wire.DecodeFrame(bytes.NewReader(data), 0)
		if err != nil {
			return
		}
		clientHS, err := wire.DecodeHandshake(wire.NewReader(bytes.NewReader(frame.Data)))
		if err != nil {
			return
		}

		reply := wire.Handshake{
			NetworkID:       clientHS.NetworkID,
			ProtocolVersion: clientHS.ProtocolVersion,
			SoftwareVersion: "fake-peer/0.0",
			ServerPort:      0,
			NodeType:        wire.NodeTypeFullNode,
		}
		replyFrame, err := wire.EncodeMessage(wire.MsgHandshakeAck, nil, reply.Encode)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, replyFrame); err != nil {
			return
		}

		if f.respond != nil {
			f.respond(conn)
		}
	})
	f.srv = httptest.NewTLSServer(mux)
	return f
}

func (f *fakePeerServer) wsURL() string {
	return "wss" + strings.TrimPrefix(f.srv.URL, "https") + "/ws"
}

func testTLSConfig() *tls.Config {
	return &tls.Config{InsecureSkipVerify: true}
}

func testParams() *chaincfg.Params {
	return &chaincfg.Params{Name: "simnet", NetworkID: "simnet", ProtocolVersion: "0.0.36"}
}

func testLocalIdentity() LocalIdentity {
	return LocalIdentity{ProtocolVersion: "0.0.36", SoftwareVersion: "test/0.0", NodeType: wire.NodeTypeFullNode}
}

func TestConnectHandshakeSucceeds(t *testing.T) {
	srv := newFakePeerServer(t, func(conn *websocket.Conn) {
		// keep the connection open briefly so the client's reader
		// doesn't immediately see a close.
		time.Sleep(50 * time.Millisecond)
	})
	defer srv.srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := Connect(ctx, srv.wsURL(), testTLSConfig(), testLocalIdentity(), testParams(), DefaultConfig(), connmgr.DefaultConfig(), Callbacks{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close("test done")

	if s.PeerHandshake().NodeType != wire.NodeTypeFullNode {
		t.Fatalf("expected full node peer, got node_type=%d", s.PeerHandshake().NodeType)
	}
}

func TestConnectRejectsWrongNetwork(t *testing.T) {
	srv := newFakePeerServer(t, func(conn *websocket.Conn) {
		time.Sleep(20 * time.Millisecond)
	})
	defer srv.srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	badParams := &chaincfg.Params{Name: "other", NetworkID: "other-network", ProtocolVersion: "0.0.36"}
	_, err := Connect(ctx, srv.wsURL(), testTLSConfig(), testLocalIdentity(), badParams, DefaultConfig(), connmgr.DefaultConfig(), Callbacks{})
	if err == nil {
		t.Fatal("expected handshake rejection for mismatched network_id")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Kind != ErrHandshakeRejected {
		t.Fatalf("expected ErrHandshakeRejected, got %v", err)
	}
}

func TestRequestBlockRoundTrip(t *testing.T) {
	const wantHeight = uint32(42)
	blockBytes := []byte{1, 2, 3, 4}

	srv := newFakePeerServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := wire.DecodeFrame(bytes.NewReader(data), 0)
		if err != nil {
			return
		}
		req, err := wire.DecodeRequestBlock(wire.NewReader(bytes.NewReader(frame.Data)))
		if err != nil || req.Height != wantHeight {
			return
		}
		resp := &wire.RespondBlock{Block: blockBytes}
		respFrame, err := wire.EncodeMessage(wire.MsgRespondBlock, frame.ID, resp.Encode)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.BinaryMessage, respFrame)
		time.Sleep(20 * time.Millisecond)
	})
	defer srv.srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := Connect(ctx, srv.wsURL(), testTLSConfig(), testLocalIdentity(), testParams(), DefaultConfig(), connmgr.DefaultConfig(), Callbacks{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close("test done")

	body, err := s.RequestBlock(ctx, wantHeight, true, time.Second)
	if err != nil {
		t.Fatalf("RequestBlock: %v", err)
	}
	resp, ok := body.(*wire.RespondBlock)
	if !ok {
		t.Fatalf("expected *wire.RespondBlock, got %T", body)
	}
	if !bytes.Equal(resp.Block, blockBytes) {
		t.Fatalf("block mismatch: got %x want %x", resp.Block, blockBytes)
	}
}

func TestRequestTimesOutWhenPeerDoesNotReply(t *testing.T) {
	srv := newFakePeerServer(t, func(conn *websocket.Conn) {
		// Never answers the request; just keeps the socket open.
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := Connect(ctx, srv.wsURL(), testTLSConfig(), testLocalIdentity(), testParams(), DefaultConfig(), connmgr.DefaultConfig(), Callbacks{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close("test done")

	_, err = s.RequestBlock(ctx, 1, true, 30*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	perr, ok := err.(*Error)
	if !ok || perr.Kind != ErrTimeout {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestSessionEjectsOnPeerClose(t *testing.T) {
	srv := newFakePeerServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})
	defer srv.srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ejected := make(chan struct{}, 1)
	s, err := Connect(ctx, srv.wsURL(), testTLSConfig(), testLocalIdentity(), testParams(), DefaultConfig(), connmgr.DefaultConfig(), Callbacks{
		OnEjected: func(err error) { ejected <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	select {
	case <-ejected:
	case <-time.After(time.Second):
		t.Fatal("expected OnEjected to fire after peer closed the connection")
	}

	_, err = s.Request(ctx, wire.MsgRequestBlock, (&wire.RequestBlock{Height: 1}).Encode, time.Second)
	if err == nil {
		t.Fatal("expected request on a dead session to fail")
	}
}
