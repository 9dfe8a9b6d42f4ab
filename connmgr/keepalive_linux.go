// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

//go:build linux

package connmgr

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// tuneKeepAlive sets fine-grained TCP keepalive parameters beyond what
// net.TCPConn.SetKeepAlivePeriod exposes, so an idle peer socket is
// detected and ejected promptly instead of only on the next write
// (spec §4.3.5 fatal transport errors must surface, not hang).
func tuneKeepAlive(conn *net.TCPConn, idle, interval time.Duration, count int) error {
	if err := conn.SetKeepAlive(true); err != nil {
		return err
	}
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = rawConn.Control(func(fd uintptr) {
		if idle > 0 {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, int(idle.Seconds()))
			if sockErr != nil {
				return
			}
		}
		if interval > 0 {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, int(interval.Seconds()))
			if sockErr != nil {
				return
			}
		}
		if count > 0 {
			sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, count)
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
