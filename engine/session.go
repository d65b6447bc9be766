// File: engine/session.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/message"
)

// Session is the engine's view of its owning session (spec §4.6). One
// engine talks to exactly one session for its entire lifetime; the session
// outlives engine death and may attach a replacement engine (active/
// reconnecting sessions) or tear down with it (passive sessions).
type Session interface {
	// PullMsg drains one message from the pipe towards the wire. Returns
	// api.ErrWouldBlock when the pipe is empty (spec: "0 | EAGAIN |
	// ECONNRESET").
	PullMsg() (message.Message, error)

	// PushMsg delivers one message from the wire towards the socket.
	// Returns api.ErrWouldBlock when the inbound pipe is at HWM (spec:
	// "0 | EAGAIN | EPROTO").
	PushMsg(msg message.Message) error

	// Flush notifies the socket side that PushMsg'd messages are now
	// visible, per the pipe's coalesced-notify discipline.
	Flush()

	// EngineReady fires once the ZMP handshake completes in both
	// directions.
	EngineReady()

	// EngineError reports an engine-local failure. handshaked indicates
	// whether the ZMP handshake had already completed when the failure
	// occurred (spec §4.5.6 error()).
	EngineError(handshaked bool, reason *api.ConnError)

	// SetPeerRoutingID records the routing-id the peer announced in its
	// HELLO frame.
	SetPeerRoutingID(id []byte)

	// SetPeerProps records the metadata properties the peer announced in
	// its READY frame (spec §4.5.2 step 2).
	SetPeerProps(props map[string]string)
}
