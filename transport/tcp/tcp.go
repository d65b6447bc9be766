// File: transport/tcp/tcp.go
// Package tcp provides the plain-TCP carrier: Dial for active sessions,
// Listen/Accept for passive ones, each wrapped as a transport.StreamTransport.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package tcp

import (
	"context"
	"net"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/transport"
)

// Dial opens an active TCP connection and disables Nagle's algorithm, as
// ZMP frames are latency-sensitive and already batch via the engine's own
// flush discipline.
func Dial(ctx context.Context, addr string) (api.Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return transport.NewStream(transport.NewNetConn(conn)), nil
}

// Listener wraps a net.Listener, handing each accepted connection back as
// an api.Transport.
type Listener struct {
	ln net.Listener
}

// Listen binds addr for passive (bind) sockets.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks for the next inbound connection.
func (l *Listener) Accept() (api.Transport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	return transport.NewStream(transport.NewNetConn(conn)), nil
}

// Addr returns the listener's bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }
