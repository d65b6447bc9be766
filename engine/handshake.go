// File: engine/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ZMP handshake (spec §4.5.2): both sides send HELLO then READY immediately
// on plug, expect the peer's HELLO then READY in that order, validate
// socket-type compatibility, and on both-sides-ready signal the session and
// arm the heartbeat timer.

package engine

import (
	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/wire"
)

func (e *Engine) sendHello() {
	e.queueControl(wire.FlagControl, wire.EncodeHello(e.localType, e.localRoutingID))
	e.helloSent = true
}

func (e *Engine) sendReady() {
	e.queueControl(wire.FlagControl, wire.EncodeReady(e.opts.ReadyProps))
	e.readySent = true
}

func (e *Engine) queueControl(flags wire.Flag, body []byte) {
	e.outQueue = append(e.outQueue, pendingFrame{flags: flags, body: body})
	e.pumpOutput()
}

// dispatchFrame routes a decoded frame to handshake or running-state
// handling depending on the engine's current state.
func (e *Engine) dispatchFrame(frame *wire.Frame) error {
	if frame.Flags.Control() {
		return e.onControlFrame(frame)
	}
	if e.st == stateHandshaking {
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, "data frame during handshake"))
		return errShouldNotHappen
	}
	return e.onDataFrame(frame)
}

func (e *Engine) onControlFrame(frame *wire.Frame) error {
	ctlType, err := wire.PeekControlType(frame.Body)
	if err != nil {
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, err.Error()))
		return err
	}
	switch ctlType {
	case wire.CtlHello:
		return e.onHello(frame)
	case wire.CtlReady:
		return e.onReady(frame)
	case wire.CtlHeartbeat:
		e.onPing(frame)
	case wire.CtlHeartbeatAck:
		e.onPong(frame)
	case wire.CtlError:
		e.onPeerError(frame)
	default:
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, "unknown control type"))
		return errShouldNotHappen
	}
	return nil
}

func (e *Engine) onHello(frame *wire.Frame) error {
	if e.st != stateHandshaking || e.helloRecv {
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, "unexpected HELLO"))
		return errShouldNotHappen
	}
	peerType, routingID, err := wire.DecodeHello(frame.Body)
	if err != nil {
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, err.Error()))
		return err
	}
	if !api.CompatiblePeer(e.localType, peerType) {
		e.fail(api.NewProtocolError(api.ZMPErrSocketTypeMismatch, "incompatible socket types"))
		return errShouldNotHappen
	}
	e.peerType = peerType
	e.peerRoutingID = append([]byte(nil), routingID...)
	e.helloRecv = true
	e.session.SetPeerRoutingID(e.peerRoutingID)
	return nil
}

func (e *Engine) onReady(frame *wire.Frame) error {
	if e.st != stateHandshaking || !e.helloRecv || e.readyRecv {
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, "unexpected READY"))
		return errShouldNotHappen
	}
	props, err := wire.DecodeReady(frame.Body)
	if err != nil {
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, err.Error()))
		return err
	}
	e.session.SetPeerProps(props)
	e.readyRecv = true
	e.completeHandshakeIfReady()
	return nil
}

// completeHandshakeIfReady transitions Handshaking -> Running once this
// side has both sent and received HELLO+READY (spec §4.5.2 step 5).
func (e *Engine) completeHandshakeIfReady() {
	if !(e.helloSent && e.readySent && e.helloRecv && e.readyRecv) {
		return
	}
	e.st = stateRunning
	e.log.Debug("handshake complete", "peer_type", e.peerType.String())
	e.session.EngineReady()
	e.heartbeat.arm()
	if e.opts.RecvRoutingID {
		idMsg := message.FromDecodedBody(e.peerRoutingID, false, false, true, false, false)
		e.pushDecoded(idMsg)
	}
	// Attempt an initial output drain in case the session already has
	// messages queued (e.g. a reconnecting active session).
	e.pumpOutput()
}

// onDataFrame reassembles a decoded frame into a Message and delivers it to
// the session, entering input_stopped on backpressure (spec §4.5.3).
func (e *Engine) onDataFrame(frame *wire.Frame) error {
	msg := message.FromDecodedBody(frame.Body, frame.Flags.More(), false, frame.Flags.Identity(), frame.Flags.Subscribe(), frame.Flags.Cancel())
	e.pushDecoded(msg)
	return nil
}

// pushDecoded attempts to deliver msg to the session. On EAGAIN it records
// msg as the rejected message and enters input_stopped; returns false so
// callers stop decoding further. On EPROTO it fails the connection.
func (e *Engine) pushDecoded(msg message.Message) bool {
	if err := e.session.PushMsg(msg); err != nil {
		if err == api.ErrWouldBlock {
			m := msg
			e.rejectedMsg = &m
			e.inputStopped = true
			return false
		}
		e.fail(api.NewProtocolError(api.ZMPErrInternal, "push_msg rejected: "+err.Error()))
		return false
	}
	e.session.Flush()
	return true
}
