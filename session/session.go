// File: session/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Session owns the pipe pair between a socket and its transient engine,
// and the reconnect policy for active sessions (spec §4.6).

package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/engine"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
)

// ConnectFunc dials a new transport for an active session's reconnect
// attempts. Implementations close over the resolved peer address.
type ConnectFunc func(ctx context.Context) (api.Transport, error)

// Sink is the socket-facing side of a Session: the notifications a socket
// needs to react to connect/disconnect and inbound routing-id/metadata
// events without depending on the engine package directly.
type Sink interface {
	// SessionReady fires once the session's current engine completes its
	// ZMP handshake.
	SessionReady(s *Session)
	// SessionDown fires when the session's current engine dies. For an
	// active session this may be followed by a later SessionReady once
	// reconnect succeeds; for a passive session the session is done.
	SessionDown(s *Session, reason *api.ConnError)
}

var _ engine.Session = (*Session)(nil)

// Session implements engine.Session and mediates between one transient
// Engine and the two Pipes a socket reads/writes through.
type Session struct {
	id       string
	endpoint string
	active   bool

	localType      api.SocketType
	localRoutingID []byte

	engOpts engine.Options
	log     *control.Logger
	sink    Sink
	metrics *control.MetricsRegistry

	// toWire carries messages the socket wrote, which the engine pulls to
	// send out. fromWire carries messages the engine decoded off the wire,
	// which the socket reads.
	toWire   *pipe.Pipe
	fromWire *pipe.Pipe

	ctx *Context

	eng        *engine.Engine
	handshaked bool
	terminated bool

	peerRoutingID []byte
	peerProps     map[string]string

	// active-session reconnect state
	connect        ConnectFunc
	dialCtx        context.Context
	dialCancel     context.CancelFunc
	bo             *backoff.Backoff
	reconnectTimer *time.Timer
}

// Config groups the construction parameters shared by active and passive
// sessions.
type Config struct {
	ID             string
	Endpoint       string
	LocalType      api.SocketType
	LocalRoutingID []byte
	EngineOptions  engine.Options
	Log            *control.Logger
	Sink           Sink
	PipeOptions    []pipe.Option
	Metrics        *control.MetricsRegistry
}

func newBase(cfg Config) *Session {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		id:             id,
		endpoint:       cfg.Endpoint,
		localType:      cfg.LocalType,
		localRoutingID: cfg.LocalRoutingID,
		engOpts:        cfg.EngineOptions,
		metrics:        cfg.Metrics,
		log:            cfg.Log,
		sink:           cfg.Sink,
		ctx:            NewContext(),
	}
	if s.log == nil {
		s.log = control.NopLogger()
	}
	s.log = s.log.With("component", "session", "endpoint", cfg.Endpoint)

	// toWire: socket writes, engine reads (via PullMsg). onReadActivated
	// wakes the engine after a socket Flush; onWriteActivated re-applies
	// this same pipe's own activate_write accounting once enough reads
	// accrue (spec §4.4's two logical half-pipes collapse onto one Pipe
	// object here, so the "cross-thread" activate_write notification is
	// this pipe informing itself).
	var tw *pipe.Pipe
	toWireOpts := append(append([]pipe.Option(nil), cfg.PipeOptions...),
		pipe.WithReadActivated(s.RestartOutput),
		pipe.WithWriteActivated(func(n uint64) { tw.ApplyActivateWrite(n) }),
	)
	tw = pipe.New(toWireOpts...)
	s.toWire = tw

	// fromWire: engine writes (via PushMsg), socket reads. onWriterUnblock
	// wakes the engine once HWM room frees up after the socket drains.
	var fw *pipe.Pipe
	fromWireOpts := append(append([]pipe.Option(nil), cfg.PipeOptions...),
		pipe.WithWriteActivated(func(n uint64) { fw.ApplyActivateWrite(n) }),
		pipe.WithWriterUnblocked(s.RestartInput),
	)
	fw = pipe.New(fromWireOpts...)
	s.fromWire = fw

	s.ctx.Set("peer-address", cfg.Endpoint, true)
	return s
}

// NewPassive builds a session for a connection a listener just accepted: no
// reconnect, tears down with the engine (spec §4.6).
func NewPassive(cfg Config, transport api.Transport) *Session {
	s := newBase(cfg)
	s.attachEngine(transport, api.HandshakeServer)
	return s
}

// NewActive builds a session that dials connect immediately and reconnects
// with exponential backoff on engine death (spec §4.6). baseIvl and maxIvl
// parameterize the backoff curve `next = min(max_ivl, current*2) +
// jitter(0, base_ivl)`.
func NewActive(cfg Config, connect ConnectFunc, baseIvl, maxIvl time.Duration) *Session {
	s := newBase(cfg)
	s.active = true
	s.connect = connect
	s.bo = &backoff.Backoff{Min: baseIvl, Max: maxIvl, Factor: 2, Jitter: true}
	s.dialCtx, s.dialCancel = context.WithCancel(context.Background())
	s.startConnect()
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// ToSocket is the pipe the socket reads inbound (wire-delivered) messages
// from.
func (s *Session) ToSocket() *pipe.Pipe { return s.fromWire }

// FromSocket is the pipe the socket writes outbound messages into.
func (s *Session) FromSocket() *pipe.Pipe { return s.toWire }

// PeerRoutingID returns the routing-id the peer announced, if any.
func (s *Session) PeerRoutingID() []byte { return s.peerRoutingID }

// PeerProps returns the metadata properties the peer announced in its
// READY frame, if any.
func (s *Session) PeerProps() map[string]string { return s.peerProps }

// Handshaked reports whether the session's current engine has completed
// the ZMP handshake.
func (s *Session) Handshaked() bool { return s.handshaked }

// startConnect dials asynchronously and attaches the resulting transport.
// Dial runs on its own goroutine since ConnectFunc may block (DNS, TCP
// connect); the engine it ultimately plugs stays affine to whichever I/O
// thread schedules it (spec §5).
func (s *Session) startConnect() {
	if s.terminated {
		return
	}
	go func() {
		t, err := s.connect(s.dialCtx)
		if err != nil {
			s.log.Warn("connect failed", "err", err)
			s.scheduleReconnect()
			return
		}
		s.attachEngine(t, api.HandshakeClient)
	}()
}

func (s *Session) attachEngine(t api.Transport, role api.HandshakeRole) {
	if s.terminated {
		_ = t.Close()
		return
	}
	opts := s.engOpts
	opts.ReadyProps = s.ctx.ReadyProps()
	s.eng = engine.New(t, role, s.localType, s.localRoutingID, s, opts, s.log, s.endpoint)
	if s.metrics != nil {
		s.metrics.ConnectionsTotal.WithLabelValues(s.roleLabel()).Inc()
	}
	s.eng.Plug(s.dialCtxOrBackground())
}

func (s *Session) roleLabel() string {
	if s.active {
		return "active"
	}
	return "passive"
}

func (s *Session) dialCtxOrBackground() context.Context {
	if s.dialCtx != nil {
		return s.dialCtx
	}
	return context.Background()
}

// scheduleReconnect arms the next reconnect attempt per the backoff curve.
func (s *Session) scheduleReconnect() {
	if !s.active || s.terminated {
		return
	}
	d := s.bo.Duration()
	s.log.Debug("scheduling reconnect", "after", d)
	if s.metrics != nil {
		s.metrics.ReconnectsTotal.Inc()
		s.metrics.ReconnectBackoff.Observe(d.Seconds())
	}
	s.reconnectTimer = time.AfterFunc(d, s.startConnect)
}

// Terminate tears the session down: cancels any pending reconnect, stops
// the current engine, and marks the session done.
func (s *Session) Terminate() {
	if s.terminated {
		return
	}
	s.terminated = true
	if s.dialCancel != nil {
		s.dialCancel()
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	if s.eng != nil {
		s.eng.Terminate()
	}
	s.toWire.Term()
	s.fromWire.Term()
}

// --- engine.Session ---

// PullMsg drains one message the socket wrote, destined for the wire.
func (s *Session) PullMsg() (message.Message, error) {
	msg, ok := s.toWire.Read()
	if !ok {
		return message.Message{}, api.ErrWouldBlock
	}
	if s.metrics != nil {
		s.metrics.MessagesSent.Inc()
	}
	return msg, nil
}

// PushMsg delivers one wire-decoded message to the socket's inbound pipe.
func (s *Session) PushMsg(msg message.Message) error {
	if !s.fromWire.CheckWrite() {
		if s.metrics != nil {
			s.metrics.PipeHighWaterMarkHit.WithLabelValues("inbound").Inc()
		}
		return api.ErrWouldBlock
	}
	if !s.fromWire.Write(msg) {
		if s.metrics != nil {
			s.metrics.PipeHighWaterMarkHit.WithLabelValues("inbound").Inc()
		}
		return api.ErrWouldBlock
	}
	if s.metrics != nil {
		s.metrics.MessagesReceived.Inc()
	}
	return nil
}

// Flush makes PushMsg'd messages visible to the socket.
func (s *Session) Flush() { s.fromWire.Flush() }

// EngineReady marks the session handshaked and notifies the socket side.
func (s *Session) EngineReady() {
	s.handshaked = true
	if s.active {
		s.bo.Reset()
	}
	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}
	if s.sink != nil {
		s.sink.SessionReady(s)
	}
}

// EngineError reports the engine's death. Active sessions schedule a
// reconnect; passive sessions are done.
func (s *Session) EngineError(handshaked bool, reason *api.ConnError) {
	if s.metrics != nil {
		if handshaked {
			s.metrics.ActiveSessions.Dec()
		}
		s.metrics.HandshakeErrors.WithLabelValues(reason.Class.String()).Inc()
		if reason.Class == api.ErrClassTimeout {
			s.metrics.HeartbeatTimeouts.Inc()
		}
	}
	s.handshaked = false
	s.eng = nil
	s.toWire.Hiccup()
	s.fromWire.Hiccup()
	if s.sink != nil {
		s.sink.SessionDown(s, reason)
	}
	if s.active {
		s.scheduleReconnect()
	} else {
		s.Terminate()
	}
}

// SetPeerRoutingID records the peer's HELLO routing-id.
func (s *Session) SetPeerRoutingID(id []byte) {
	s.peerRoutingID = append([]byte(nil), id...)
}

// SetPeerProps records the peer's READY metadata properties.
func (s *Session) SetPeerProps(props map[string]string) {
	s.peerProps = props
}

// RestartInput tells the current engine the inbound pipe has room again.
func (s *Session) RestartInput() {
	if s.eng != nil {
		s.eng.RestartInput()
	}
}

// RestartOutput tells the current engine the outbound pipe has a message
// ready.
func (s *Session) RestartOutput() {
	if s.eng != nil {
		s.eng.RestartOutput()
	}
}
