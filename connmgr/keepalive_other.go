// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build !linux

package connmgr

import (
	"net"
	"time"
)

// tuneKeepAlive falls back to the portable net.TCPConn keepalive knobs
// on platforms where the fine-grained unix.TCP_KEEPIDLE/KEEPINTVL/KEEPCNT
// socket options are not available.
func tuneKeepAlive(conn *net.TCPConn, idle, interval time.Duration, count int) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	if idle > 0 {
		return conn.SetKeepAlivePeriod(idle)
	}
	return nil
}
