// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package connmgr wraps the TLS WebSocket dial a Pool performs when
// adding a peer (spec §4.2, §5 add_peer) with bounded retry and the
// platform-specific keepalive tuning dcrd-style connection managers
// apply to long-lived peer sockets. Grounded on the teacher's connmgr
// package (kept in the pack only as a go.mod stub; no source file was
// retrievable) by its evident purpose — connection establishment with
// retry/backoff, reused across every caller that dials a peer — rather
// than any specific retrieved source line.
package connmgr

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Config controls how Dial retries a failed connection attempt.
type Config struct {
	// MaxRetries bounds the number of attempts; 0 means try exactly
	// once with no retry.
	MaxRetries int
	// RetryDelay is the base backoff between attempts; each
	// subsequent attempt doubles it, capped at RetryDelayMax.
	RetryDelay    time.Duration
	RetryDelayMax time.Duration
	// DialTimeout bounds each individual attempt (spec §4.2 "Connect
	// must complete within a configurable bounded time").
	DialTimeout time.Duration
	// KeepAliveIdle, KeepAliveInterval, and KeepAliveCount tune the
	// TCP keepalive probe schedule on the underlying socket once
	// connected (platform-specific; see keepalive_linux.go).
	KeepAliveIdle     time.Duration
	KeepAliveInterval time.Duration
	KeepAliveCount    int
}

// DefaultConfig returns reasonable defaults for dialing a peer.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        2,
		RetryDelay:        500 * time.Millisecond,
		RetryDelayMax:     5 * time.Second,
		DialTimeout:       10 * time.Second,
		KeepAliveIdle:     30 * time.Second,
		KeepAliveInterval: 10 * time.Second,
		KeepAliveCount:    4,
	}
}

// DialWebSocket establishes the TLS WebSocket session a peer connection
// requires (spec §4.2: "TLS 1.2+ WebSocket at path /ws"), retrying
// transient failures up to cfg.MaxRetries times with exponential
// backoff. It never retries a context cancellation.
func DialWebSocket(ctx context.Context, url string, tlsConfig *tls.Config, cfg Config) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: cfg.DialTimeout,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: cfg.DialTimeout}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				if err := tuneKeepAlive(tcpConn, cfg.KeepAliveIdle, cfg.KeepAliveInterval, cfg.KeepAliveCount); err != nil {
					// Keepalive tuning is best-effort; a platform that
					// rejects the syscall still gets a working connection.
					_ = err
				}
			}
			return conn, nil
		},
	}

	delay := cfg.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > cfg.RetryDelayMax {
				delay = cfg.RetryDelayMax
			}
		}

		conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
		if err == nil {
			return conn, nil
		}
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("connmgr: dial %s: %w", url, lastErr)
}
