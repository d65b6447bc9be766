// File: socket/base.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"context"
	"sync"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/pipe"
	"github.com/zlinkio/zlink/session"
)

// base holds the bookkeeping every socket kind shares: the attached
// sessions, a coalesced wakeup for blocking Recv callers, and the option
// bag. Each concrete kind embeds base and adds its own routing policy.
type base struct {
	mu       sync.Mutex
	typ      api.SocketType
	log      *control.Logger
	sessions map[string]*session.Session
	order    []string // insertion order, for round-robin kinds

	wake chan struct{} // 1-slot coalesced "something changed" signal

	opts map[api.SockOpt]any
}

func newBase(typ api.SocketType, log *control.Logger) base {
	if log == nil {
		log = control.NopLogger()
	}
	return base{
		typ:      typ,
		log:      log.With("component", "socket", "type", typ.String()),
		sessions: make(map[string]*session.Session),
		wake:     make(chan struct{}, 1),
		opts:     make(map[api.SockOpt]any),
	}
}

// PipeOptions returns the session.Config.PipeOptions a caller must pass
// when constructing a session for this socket, so ReadActivated fires when
// the engine delivers new inbound messages. See pipe.Pipe's append-order
// contract in session.newBase: this option lands on the socket-facing
// (fromWire) pipe only, the toWire pipe's own WithReadActivated overrides
// it for the engine-facing side.
func (b *base) PipeOptions() []pipe.Option {
	return []pipe.Option{pipe.WithReadActivated(func() {
		b.signal()
	})}
}

func (b *base) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Serve runs this socket's wakeup loop until ctx is done: each time a
// session's fromWire pipe signals new data (the edge-triggered
// pipe.WithReadActivated callback PipeOptions wires up), it drains every
// attached session through sock.ReadActivated, mirroring mailbox.Mailbox's
// own Signal-channel-plus-Drain idiom (spec §4.7) one level up the stack.
func (b *base) Serve(ctx context.Context, sock Socket) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
			b.DrainAll(sock)
		}
	}
}

// DrainAll calls sock.ReadActivated once per currently attached session.
// Exported on base (rather than only used internally by Serve) so a caller
// driving its own event loop (the future zctx I/O thread) can invoke it
// directly instead of spinning a per-socket goroutine.
func (b *base) DrainAll(sock Socket) {
	b.mu.Lock()
	sessions := make([]*session.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		sock.ReadActivated(s)
	}
}

func (b *base) attach(s *session.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[s.ID()]; ok {
		return
	}
	b.sessions[s.ID()] = s
	b.order = append(b.order, s.ID())
}

func (b *base) detach(s *session.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[s.ID()]; !ok {
		return
	}
	delete(b.sessions, s.ID())
	for i, id := range b.order {
		if id == s.ID() {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *base) peerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// Close terminates every attached session. Shared by kinds that don't need
// to do anything else on shutdown.
func (b *base) Close() {
	b.mu.Lock()
	sessions := make([]*session.Session, 0, len(b.sessions))
	for _, s := range b.sessions {
		sessions = append(sessions, s)
	}
	b.mu.Unlock()
	for _, s := range sessions {
		s.Terminate()
	}
}

// SetOption stores the option verbatim; kinds that need to react to a
// specific option (e.g. ROUTER_MANDATORY) override SetOption and fall back
// to this for the rest.
func (b *base) SetOption(opt api.SockOpt, val any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opts[opt] = val
	return nil
}

func (b *base) option(opt api.SockOpt) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.opts[opt]
	return v, ok
}
