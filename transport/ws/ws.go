// File: transport/ws/ws.go
// Package ws provides the WebSocket/WSS carrier ("ws://"/"wss://"
// endpoints): AsyncWritev sends one ZMP frame as one WebSocket binary
// message, while WriteSome/AsyncWriteSome send each buffer they are given
// as its own message; ReadSome presents the message stream as a byte stream
// by buffering partial reads across message boundaries.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package ws

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zlinkio/zlink/api"
)

// Transport adapts a *websocket.Conn to api.Transport.
type Transport struct {
	conn   *websocket.Conn
	closed atomic.Bool

	readMu  sync.Mutex
	pending []byte

	writeMu sync.Mutex
}

// NewTransport wraps an already-established WebSocket connection (either a
// client Dial result or a server-side Upgrade result).
func NewTransport(conn *websocket.Conn) *Transport {
	return &Transport{conn: conn}
}

// DialConfig configures an active WS/WSS connection.
type DialConfig struct {
	TLSClientConfig *tls.Config // non-nil selects wss://
}

// Dial opens an active WebSocket connection to url (ws:// or wss://).
func Dial(ctx context.Context, url string, cfg *DialConfig) (api.Transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout}
	if cfg != nil {
		dialer.TLSClientConfig = cfg.TLSClientConfig
	}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewTransport(conn), nil
}

// Handler upgrades an inbound HTTP request to a WebSocket connection and
// hands the resulting Transport to accept. Mounted at the bind endpoint's
// path by the listener driving zctx's accept loop.
type Handler struct {
	upgrader websocket.Upgrader
	accept   func(api.Transport)
}

// NewHandler builds an http.Handler that upgrades every request and calls
// accept with the resulting Transport. checkOrigin, if nil, allows all
// origins (zlink has no browser-facing CSRF surface of its own).
func NewHandler(accept func(api.Transport), checkOrigin func(*http.Request) bool) *Handler {
	h := &Handler{accept: accept}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	if checkOrigin == nil {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	h.accept(NewTransport(conn))
}

// ReadSome copies from any buffered partial message, pulling the next
// WebSocket binary message when the buffer is empty.
func (t *Transport) ReadSome(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	t.readMu.Lock()
	defer t.readMu.Unlock()

	if len(t.pending) == 0 {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		t.pending = data
	}
	n := copy(buf, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

// WriteSome sends buf as a single WebSocket binary message. Callers that
// need a whole ZMP frame in one message should prefer AsyncWritev.
func (t *Transport) WriteSome(buf []byte) (int, error) {
	if t.closed.Load() {
		return 0, api.ErrTransportClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// AsyncReadSome runs ReadSome on a fresh goroutine.
func (t *Transport) AsyncReadSome(buf []byte, handler api.IOHandler) {
	go func() {
		n, err := t.ReadSome(buf)
		handler(err, n)
	}()
}

// AsyncWriteSome runs WriteSome on a fresh goroutine.
func (t *Transport) AsyncWriteSome(buf []byte, handler api.IOHandler) {
	go func() {
		n, err := t.WriteSome(buf)
		handler(err, n)
	}()
}

// AsyncWritev concatenates header and body into a single WebSocket binary
// message so one ZMP frame maps to exactly one WS message (spec §4.5.4).
func (t *Transport) AsyncWritev(header []byte, body []byte, handler api.IOHandler) {
	go func() {
		frame := make([]byte, 0, len(header)+len(body))
		frame = append(frame, header...)
		frame = append(frame, body...)
		n, err := t.WriteSome(frame)
		handler(err, n)
	}()
}

// AsyncHandshake is a no-op: the WebSocket upgrade already completed during
// Dial or Handler.ServeHTTP before a Transport exists.
func (t *Transport) AsyncHandshake(_ context.Context, _ api.HandshakeRole, handler func(error)) {
	handler(nil)
}

// Close closes the WebSocket connection with a normal closure frame.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}

// Features reports WebSocket carrier capabilities: message framing already
// gives a gather write, and there is no further post-connect handshake.
func (t *Transport) Features() api.TransportFeatures {
	return api.TransportFeatures{
		SupportsSyncIO:      true,
		SupportsGatherWrite: true,
		SupportsHandshake:   false,
		PrefersAsync:        true,
	}
}

var _ api.Transport = (*Transport)(nil)
