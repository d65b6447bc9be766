// File: socket/socket.go
// Package socket implements the per-socket-type behavior of spec §9: a
// small trait interface plus one implementation per kind, rather than a
// virtual base-class hierarchy. Each type attaches to one or more
// session.Session instances (via session.Sink) and owns the routing,
// filtering and fairness policy the wire protocol itself is agnostic to.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package socket

import (
	"context"
	"errors"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
	"github.com/zlinkio/zlink/session"
)

// ErrNoPeer is returned when a socket has no attached session able to carry
// the call right now (PAIR Send/Recv, DEALER Send and XSUB Send with zero
// peers).
var ErrNoPeer = errors.New("socket: no peer attached")

// ErrUnroutable is returned by ROUTER.Send when the destination routing-id
// in the first frame names no currently attached peer.
var ErrUnroutable = errors.New("socket: unroutable destination")

// Socket is the trait every socket kind implements (spec §9):
// attach_pipe/send/recv/has_in/has_out/read_activated/pipe_terminated/
// set_option, expressed as a Go interface instead of a class hierarchy.
// AttachPipe and PipeTerminated are driven by session.Sink's
// SessionReady/SessionDown callbacks rather than called directly by users.
type Socket interface {
	session.Sink

	// Type reports the socket kind exchanged in the ZMP HELLO frame.
	Type() api.SocketType

	// PipeOptions returns the session.Config.PipeOptions a caller must
	// pass when wiring a session to this socket (see base.PipeOptions).
	PipeOptions() []pipe.Option

	// Serve runs this socket's wakeup loop until ctx is done (see
	// base.Serve). A socket does nothing with newly-inbound messages
	// until something drives this loop.
	Serve(ctx context.Context, sock Socket)

	// Send enqueues one message for delivery. Semantics of the first frame
	// and fan-out vary by kind (ROUTER expects a routing-id prefix frame,
	// PUB fans out to matching subscribers, PAIR/DEALER write to one pipe).
	Send(msg message.Message) error

	// Recv dequeues one message made ready by ReadActivated. Returns
	// api.ErrWouldBlock if nothing is ready yet.
	Recv() (message.Message, error)

	// HasIn reports whether Recv would currently succeed.
	HasIn() bool

	// HasOut reports whether Send would currently succeed without
	// blocking on HWM.
	HasOut() bool

	// ReadActivated is invoked (via Flush's onReadActivated callback,
	// wired through session.Config.PipeOptions) when a session's inbound
	// pipe has new messages visible. Kinds that intercept control frames
	// (PUB/XPUB subscriptions) act on them here instead of surfacing them
	// through Recv.
	ReadActivated(sess *session.Session)

	// SetOption records a runtime socket option, keyed by api.SockOpt.
	SetOption(opt api.SockOpt, val any) error

	// Close terminates every attached session.
	Close()
}
