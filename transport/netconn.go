// File: transport/netconn.go
// Package transport holds the shared net.Conn adapter and a generic
// byte-stream Transport implementation the tcp, tls and ipc carriers wrap.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package transport

import (
	"net"
	"syscall"
)

// NetConn adapts a standard net.Conn to api.NetConn, adding RawFD recovery
// for reactor registration.
type NetConn struct {
	conn net.Conn
}

// NewNetConn wraps an established net.Conn.
func NewNetConn(conn net.Conn) *NetConn {
	return &NetConn{conn: conn}
}

func (n *NetConn) Read(p []byte) (int, error)  { return n.conn.Read(p) }
func (n *NetConn) Write(p []byte) (int, error) { return n.conn.Write(p) }
func (n *NetConn) Close() error                { return n.conn.Close() }

// RawFD extracts the underlying file descriptor via the connection's
// SyscallConn, when available. Returns 0 for conn types without one (e.g.
// in-process or already-closed connections).
func (n *NetConn) RawFD() uintptr {
	sc, ok := n.conn.(syscall.Conn)
	if !ok {
		return 0
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0
	}
	var fd uintptr
	_ = raw.Control(func(f uintptr) { fd = f })
	return fd
}

// Underlying returns the wrapped net.Conn for carriers that need the
// concrete type (e.g. tls.Conn.HandshakeContext).
func (n *NetConn) Underlying() net.Conn { return n.conn }

// LocalAddr and RemoteAddr forward to the wrapped conn (used only for
// logging/metrics labels).
func (n *NetConn) LocalAddr() net.Addr  { return n.conn.LocalAddr() }
func (n *NetConn) RemoteAddr() net.Addr { return n.conn.RemoteAddr() }
