// File: transport/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// StreamTransport implements api.Transport over any api.NetConn byte
// stream (TCP, TLS, Unix domain IPC): async ops run the blocking net.Conn
// call on its own goroutine and hand the result to the caller's handler,
// the idiomatic Go substitute for a true OS-level proactor.

package transport

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/zlinkio/zlink/api"
)

// StreamTransport wraps a byte-stream api.NetConn.
type StreamTransport struct {
	conn   api.NetConn
	closed atomic.Bool
}

// NewStream builds a StreamTransport over conn.
func NewStream(conn api.NetConn) *StreamTransport {
	return &StreamTransport{conn: conn}
}

// ReadSome performs a single blocking read, used by AsyncReadSome's worker
// goroutine.
func (t *StreamTransport) ReadSome(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	return t.conn.Read(buf)
}

// WriteSome performs a single blocking write, used by the engine's
// speculative-write path (spec §4.5.3).
func (t *StreamTransport) WriteSome(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	return t.conn.Write(buf)
}

// AsyncReadSome runs ReadSome on a fresh goroutine and reports the result
// to handler. Transports without a native async path all share this
// pattern rather than hand-rolling an epoll readiness wait per call.
func (t *StreamTransport) AsyncReadSome(buf []byte, handler api.IOHandler) {
	go func() {
		n, err := t.ReadSome(buf)
		handler(err, n)
	}()
}

// AsyncWriteSome runs WriteSome on a fresh goroutine and reports the result
// to handler.
func (t *StreamTransport) AsyncWriteSome(buf []byte, handler api.IOHandler) {
	go func() {
		n, err := t.WriteSome(buf)
		handler(err, n)
	}()
}

// AsyncWritev gathers header and body into one net.Buffers write when the
// underlying conn supports it, falling back to two sequential writes
// otherwise (spec §4.5.4 gather-write path).
func (t *StreamTransport) AsyncWritev(header []byte, body []byte, handler api.IOHandler) {
	go func() {
		if t.closed.Load() {
			handler(api.ErrTransportClosed, 0)
			return
		}
		if nc, ok := t.conn.(interface{ Underlying() net.Conn }); ok {
			bufs := net.Buffers{header, body}
			n, err := bufs.WriteTo(nc.Underlying())
			handler(err, int(n))
			return
		}
		n1, err := t.conn.Write(header)
		if err != nil {
			handler(err, n1)
			return
		}
		n2, err := t.conn.Write(body)
		handler(err, n1+n2)
	}()
}

// AsyncHandshake is a no-op completing immediately: plain TCP/IPC streams
// have no protocol handshake beyond the OS-level connect/accept already
// performed by the carrier package.
func (t *StreamTransport) AsyncHandshake(_ context.Context, _ api.HandshakeRole, handler func(error)) {
	handler(nil)
}

// Close closes the underlying connection.
func (t *StreamTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return t.conn.Close()
}

// Features reports plain stream-transport capabilities.
func (t *StreamTransport) Features() api.TransportFeatures {
	return api.TransportFeatures{
		SupportsSyncIO:      true,
		SupportsGatherWrite: true,
		SupportsHandshake:   false,
		PrefersAsync:        false,
	}
}

var _ api.Transport = (*StreamTransport)(nil)
