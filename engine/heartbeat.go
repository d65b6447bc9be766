// File: engine/heartbeat.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Heartbeating (spec §4.5.5): on interval, send PING and, if no timeout is
// outstanding, arm one for HeartbeatTimeout; on receiving PING, echo a PONG
// with the same context and re-arm the timeout from the PING's TTL; a PONG
// cancels the outstanding timeout.

package engine

import (
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/wire"
)

// heartbeatState owns the two timers a running engine may have armed: the
// local PING send interval, and the TTL timeout waiting for the peer's
// next PING/PONG.
type heartbeatState struct {
	e *Engine

	interval *time.Timer
	timeout  *time.Timer
}

func newHeartbeatState(e *Engine) *heartbeatState {
	return &heartbeatState{e: e}
}

// arm starts the PING send interval if configured (spec §4.5.5).
func (h *heartbeatState) arm() {
	if h.e.opts.HeartbeatInterval <= 0 {
		return
	}
	h.interval = time.AfterFunc(h.e.opts.HeartbeatInterval, h.onIntervalFire)
}

func (h *heartbeatState) cancelAll() {
	if h.interval != nil {
		h.interval.Stop()
	}
	if h.timeout != nil {
		h.timeout.Stop()
	}
}

func (h *heartbeatState) onIntervalFire() {
	if h.e.st != stateRunning {
		return
	}
	ttlDs := uint16(h.e.opts.HeartbeatTTL / (100 * time.Millisecond))
	h.e.queueControl(wire.FlagControl, wire.EncodeHeartbeat(ttlDs, nil))
	if h.timeout == nil {
		h.resetTimeout(h.e.opts.HeartbeatTimeout)
	}
	h.interval = time.AfterFunc(h.e.opts.HeartbeatInterval, h.onIntervalFire)
}

// onTimeout fires when the peer hasn't sent a PING or PONG within the
// window their last PING's TTL (capped by local config) promised.
func (h *heartbeatState) onTimeout() {
	if h.e.st != stateRunning {
		return
	}
	h.e.fail(api.NewTimeoutError("heartbeat timeout"))
}

// resetTimeout (re)arms the TTL timer for d, the minimum of the peer's
// advertised TTL and the local HeartbeatTimeout ceiling.
func (h *heartbeatState) resetTimeout(d time.Duration) {
	if h.timeout != nil {
		h.timeout.Stop()
	}
	if d <= 0 {
		return
	}
	h.timeout = time.AfterFunc(d, h.onTimeout)
}

func (h *heartbeatState) cancelTimeout() {
	if h.timeout != nil {
		h.timeout.Stop()
		h.timeout = nil
	}
}

// onPing handles an inbound PING: echo a PONG with the same context and
// arm the TTL timeout from the peer's advertised value, capped locally.
func (e *Engine) onPing(frame *wire.Frame) {
	ttlDs, ctx, err := wire.DecodeHeartbeat(frame.Body)
	if err != nil {
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, err.Error()))
		return
	}
	e.queueControl(wire.FlagControl, wire.EncodeHeartbeatAck(ctx))
	ttl := time.Duration(ttlDs) * 100 * time.Millisecond
	if ttl <= 0 || ttl > e.opts.HeartbeatTimeout {
		ttl = e.opts.HeartbeatTimeout
	}
	e.heartbeat.resetTimeout(ttl)
}

// onPong handles an inbound PONG: cancel the outstanding timeout.
func (e *Engine) onPong(frame *wire.Frame) {
	if _, err := wire.DecodeHeartbeatAck(frame.Body); err != nil {
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, err.Error()))
		return
	}
	e.heartbeat.cancelTimeout()
}

// onPeerError handles an inbound ERROR control frame: the peer reports a
// protocol violation it detected on its end.
func (e *Engine) onPeerError(frame *wire.Frame) {
	code, reason, err := wire.DecodeError(frame.Body)
	if err != nil {
		e.fail(api.NewProtocolError(api.ZMPErrFlagsInvalid, err.Error()))
		return
	}
	e.fail(&api.ConnError{Class: api.ErrClassProtocol, ZMPCode: code, HasZMP: false, Reason: "peer reported: " + reason})
}
