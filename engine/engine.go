// File: engine/engine.go
// Package engine implements the per-connection ZMP state machine: the
// component that owns a Transport and drives it through handshake, the
// running message pump, and termination (spec §4.5, "the hard part").
//
// An Engine is affine to a single I/O thread for its entire life (spec §5,
// invariant 1): every method here runs on that thread, reached either
// directly (Plug, Terminate) or via a Session's mailbox-dispatched
// process_* handlers, so no internal locking is needed.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/wire"
)

// state is the engine's position in the lifecycle of spec §4.5.1.
type state int

const (
	stateHandshaking state = iota
	stateRunning
	stateTerminating
	stateFreed
)

func (s state) String() string {
	switch s {
	case stateHandshaking:
		return "handshaking"
	case stateRunning:
		return "running"
	case stateTerminating:
		return "terminating"
	case stateFreed:
		return "freed"
	default:
		return "unknown"
	}
}

// Engine is the per-connection ZMP state machine.
type Engine struct {
	transport api.Transport
	session   Session
	log       *control.Logger
	opts      Options

	localType      api.SocketType
	localRoutingID []byte

	peerType      api.SocketType
	peerRoutingID []byte

	role api.HandshakeRole

	st state

	decoder *wire.Decoder
	encoder *wire.Encoder

	readBuf []byte
	writeBuf []byte

	readPending  bool
	writePending bool

	helloSent, readySent bool
	helloRecv, readyRecv bool

	inputStopped  bool
	outputStopped bool

	// rejectedMsg holds the one decoded message the session's PushMsg most
	// recently rejected with EAGAIN; RestartInput retries it before
	// draining pendingRaw (spec §4.5.3 step 3).
	rejectedMsg *message.Message

	// pendingRaw accumulates bytes read while inputStopped, bypassing the
	// decoder entirely until RestartInput (spec §4.5.3 step 2).
	pendingRaw []byte

	heartbeat *heartbeatState

	// outQueue holds control frames (HELLO/READY/PING/PONG/ERROR) awaiting
	// transmission ahead of the next session-pulled message.
	outQueue []pendingFrame

	endpoint string
}

// pendingFrame is a not-yet-encoded outbound control frame.
type pendingFrame struct {
	flags wire.Flag
	body  []byte
}

// New builds an Engine ready for Plug. endpoint is informational (used in
// log fields and lifecycle events only).
func New(transport api.Transport, role api.HandshakeRole, localType api.SocketType, localRoutingID []byte, session Session, opts Options, log *control.Logger, endpoint string) *Engine {
	if log == nil {
		log = control.NopLogger()
	}
	maxBody := opts.MaxBodyLen
	e := &Engine{
		transport:      transport,
		session:        session,
		log:            log.With("component", "engine", "endpoint", endpoint),
		opts:           opts,
		localType:      localType,
		localRoutingID: localRoutingID,
		role:           role,
		st:             stateHandshaking,
		readBuf:        make([]byte, opts.ReadBufferSize),
		writeBuf:       make([]byte, opts.ReadBufferSize),
		endpoint:       endpoint,
	}
	e.decoder = wire.NewDecoder(maxBody, nil)
	e.encoder = wire.NewEncoder()
	e.heartbeat = newHeartbeatState(e)
	return e
}

// Plug starts the engine: the transport-level handshake (TLS/WS upgrade)
// if the carrier needs one, then the ZMP HELLO/READY exchange.
func (e *Engine) Plug(ctx context.Context) {
	e.log.Debug("plug")
	if d := e.opts.HandshakeTimeout; d > 0 {
		time.AfterFunc(d, func() {
			if e.st == stateHandshaking {
				e.fail(&api.ConnError{Class: api.ErrClassTimeout, ZMPCode: api.ZMPErrHandshakeTimeout, HasZMP: true, Reason: "handshake timeout"})
			}
		})
	}
	if e.transport.Features().SupportsHandshake {
		e.transport.AsyncHandshake(ctx, e.role, func(err error) {
			if err != nil {
				e.log.Warn("transport handshake failed", "err", err)
				e.failHandshake(api.NewConnectionError("transport handshake failed", err))
				return
			}
			e.startZMPHandshake()
		})
		return
	}
	e.startZMPHandshake()
}

func (e *Engine) startZMPHandshake() {
	e.sendHello()
	e.sendReady()
	e.postRead()
}

// Terminate begins orderly shutdown per spec §4.5.6: mark terminating,
// cancel timers, close the transport (aborting in-flight I/O), and once
// both read_pending and write_pending have cleared, the engine is freed.
func (e *Engine) Terminate() {
	if e.st == stateTerminating || e.st == stateFreed {
		return
	}
	e.log.Debug("terminate")
	e.st = stateTerminating
	e.heartbeat.cancelAll()
	_ = e.transport.Close()
	e.maybeFree()
}

// maybeFree transitions to freed once no handler completion is still
// outstanding; Close() makes any in-flight ones fire with the carrier's
// close error, which the read/write completion handlers treat as a no-op
// during termination.
func (e *Engine) maybeFree() {
	if e.st != stateTerminating {
		return
	}
	if e.readPending || e.writePending {
		return
	}
	e.st = stateFreed
	e.log.Debug("freed")
}

// fail implements spec §4.5.6 error(reason): best-effort ERROR frame,
// socket-visible disconnect notification, session notification, then
// terminate.
func (e *Engine) fail(reason *api.ConnError) {
	if e.st == stateTerminating || e.st == stateFreed {
		return
	}
	e.log.Warn("engine error", "class", reason.Class.String(), "reason", reason.Reason)
	if reason.HasZMP {
		e.sendBestEffortError(reason.ZMPCode, reason.Reason)
	}
	handshaked := e.st == stateRunning
	e.session.EngineError(handshaked, reason)
	e.Terminate()
}

func (e *Engine) failHandshake(reason *api.ConnError) {
	e.fail(reason)
}

// sendBestEffortError attempts one synchronous write of an ERROR control
// frame; failures are swallowed since the connection is already being torn
// down.
func (e *Engine) sendBestEffortError(code api.ZMPErrorCode, reason string) {
	if !e.transport.Features().SupportsSyncIO {
		return
	}
	body := wire.EncodeError(code, reason)
	var enc wire.Encoder
	if err := enc.Load(wire.FlagControl, body); err != nil {
		return
	}
	var buf [256]byte
	for !enc.Done() {
		n, _ := enc.Pull(buf[:])
		if n == 0 {
			break
		}
		if _, err := e.transport.WriteSome(buf[:n]); err != nil {
			return
		}
	}
}

// classifyAndFail maps a raw transport I/O error to a ConnError and fails
// the engine, per spec §4.5.7.
func (e *Engine) classifyAndFail(stage string, err error) {
	switch api.ClassifyIOError(err) {
	case api.IOCancelled:
		return
	case api.IONormal:
		handshaked := e.st == stateRunning
		e.session.EngineError(handshaked, api.NewConnectionError(stage+": peer closed", err))
		e.Terminate()
	default:
		e.fail(api.NewConnectionError(stage, err))
	}
}

var errShouldNotHappen = errors.New("engine: internal invariant violated")
