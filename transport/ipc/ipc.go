// File: transport/ipc/ipc.go
// Package ipc provides the Unix-domain-socket carrier ("ipc://" endpoints).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package ipc

import (
	"context"
	"net"
	"os"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/transport"
)

// Dial connects to a Unix domain socket path for active ipc:// sessions.
func Dial(ctx context.Context, path string) (api.Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}
	return transport.NewStream(transport.NewNetConn(conn)), nil
}

// Listener wraps a Unix domain socket listener.
type Listener struct {
	ln   net.Listener
	path string
}

// Listen binds a Unix domain socket at path, removing any stale socket
// file left behind by a previous, uncleanly terminated process.
func Listen(path string) (*Listener, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &Listener{ln: ln, path: path}, nil
}

// Accept blocks for the next inbound connection.
func (l *Listener) Accept() (api.Transport, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return transport.NewStream(transport.NewNetConn(conn)), nil
}

// Addr returns the bound socket path as a net.Addr.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops accepting new connections and removes the socket file.
func (l *Listener) Close() error {
	err := l.ln.Close()
	_ = os.Remove(l.path)
	return err
}
