// File: pipe/pipe.go
// Package pipe implements the bounded, HWM-gated, two-party-terminated
// message queue linking a session to a socket (spec §4.4).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package pipe

import (
	"sync/atomic"

	"github.com/zlinkio/zlink/internal/concurrency"
	"github.com/zlinkio/zlink/message"
)

// defaultCapacity is used when the caller does not request a larger ring;
// it must stay a power of two for concurrency.RingBuffer.
const defaultCapacity = 1024

// Pipe is a unidirectional bounded queue of Messages between a writer
// endpoint and a reader endpoint. Two Pipes, one per direction, compose the
// full duplex channel a session and socket exchange messages over.
//
// The underlying ring is single-producer/single-consumer: exactly one
// goroutine may call the write-side methods and exactly one may call the
// read-side methods, matching the I/O-thread affinity of the owning engine
// and socket (spec §3, invariant 1).
type Pipe struct {
	ring *concurrency.RingBuffer[message.Message]

	hwmOut uint64 // 0 means unbounded

	msgsWritten    atomic.Uint64
	msgsReadByPeer atomic.Uint64

	msgsRead     atomic.Uint64
	lastAckSent  atomic.Uint64
	activateStep uint64

	notifyPending atomic.Bool
	terminating   atomic.Bool
	terminated    atomic.Bool

	// Cross-thread callbacks, wired by the owning engine/session/socket at
	// construction time. Each posts a command into the remote owner's
	// mailbox rather than calling synchronously.
	onReadActivated  func()
	onWriteActivated func(readCount uint64)
	onWriterUnblock  func()
	onHiccup         func()
	onPipeTerm       func()
	onPipeTermAck    func()
}

// Option configures a Pipe at construction.
type Option func(*Pipe)

// WithHWM sets the outbound high water mark (spec §4.4 write-side gate). A
// value of 0 leaves writes ungated by HWM (still bounded by ring capacity).
func WithHWM(hwm uint64) Option {
	return func(p *Pipe) { p.hwmOut = hwm }
}

// WithCapacity sets the ring capacity (rounded up to a power of two). It
// must be at least the HWM so CheckWrite never reports room the ring lacks.
func WithCapacity(capacity uint64) Option {
	return func(p *Pipe) {
		p.ring = concurrency.NewRingBuffer[message.Message](nextPow2(capacity))
	}
}

// WithActivateStep sets how many reads accumulate before the reader sends
// an activate_write flow-control signal upstream (spec §4.4).
func WithActivateStep(n uint64) Option {
	return func(p *Pipe) { p.activateStep = n }
}

// WithReadActivated sets the callback invoked when Flush makes newly
// written messages visible to the reader (cross-thread wakeup).
func WithReadActivated(fn func()) Option {
	return func(p *Pipe) { p.onReadActivated = fn }
}

// WithWriteActivated sets the callback invoked on the writer's pipe when the
// reader's activate_write(N) command arrives.
func WithWriteActivated(fn func(readCount uint64)) Option {
	return func(p *Pipe) { p.onWriteActivated = fn }
}

// WithWriterUnblocked sets the callback invoked when an activate_write
// command raises msgsReadByPeer enough that a previously HWM-blocked writer
// can proceed again.
func WithWriterUnblocked(fn func()) Option {
	return func(p *Pipe) { p.onWriterUnblock = fn }
}

// WithHiccupHandler sets the callback invoked when the peer engine dies but
// the session survives (spec §4.4 hiccup).
func WithHiccupHandler(fn func()) Option {
	return func(p *Pipe) { p.onHiccup = fn }
}

// WithTermHandlers sets the two-party termination callbacks: onTerm fires
// when a pipe_term command arrives from the peer, onTermAck when the peer's
// pipe_term_ack arrives.
func WithTermHandlers(onTerm, onTermAck func()) Option {
	return func(p *Pipe) {
		p.onPipeTerm = onTerm
		p.onPipeTermAck = onTermAck
	}
}

// New builds a Pipe ready for use. Defaults: a bounded ring of
// defaultCapacity slots, no HWM, activate_write every 64 reads.
func New(opts ...Option) *Pipe {
	p := &Pipe{activateStep: 64}
	for _, opt := range opts {
		opt(p)
	}
	if p.ring == nil {
		p.ring = concurrency.NewRingBuffer[message.Message](defaultCapacity)
	}
	return p
}

func nextPow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// CheckWrite reports whether the writer may enqueue another message without
// exceeding HWM_out (spec §4.4: msgs_written - msgs_read_by_peer < HWM_out).
func (p *Pipe) CheckWrite() bool {
	if p.hwmOut == 0 {
		return true
	}
	return p.msgsWritten.Load()-p.msgsReadByPeer.Load() < p.hwmOut
}

// Write enqueues msg. Returns false if HWM or ring capacity is exhausted;
// the engine then enters input_stopped and buffers further raw bytes locally
// up to its own cap until the pipe has room again (spec §4.5.3).
func (p *Pipe) Write(msg message.Message) bool {
	if !p.CheckWrite() {
		return false
	}
	if !p.ring.Enqueue(msg) {
		return false
	}
	p.msgsWritten.Add(1)
	return true
}

// Flush makes prior Write calls visible to the reader, notifying it exactly
// once per unconsumed notification (coalesced per spec §4.4).
func (p *Pipe) Flush() {
	if p.onReadActivated == nil {
		return
	}
	if p.notifyPending.CompareAndSwap(false, true) {
		p.onReadActivated()
	}
}

// ClearNotify disarms the coalesced-notify flag; the reader calls this when
// it wakes to drain the pipe, so a subsequent Flush can notify again.
func (p *Pipe) ClearNotify() {
	p.notifyPending.Store(false)
}

// CheckRead reports whether a message is available to Read.
func (p *Pipe) CheckRead() bool {
	return p.ring.Len() > 0
}

// Read dequeues one message. When enough reads have accumulated it invokes
// the activate_write callback to the writer, advancing its view of
// msgs_read_by_peer (spec §4.4 flow control).
func (p *Pipe) Read() (message.Message, bool) {
	msg, ok := p.ring.Dequeue()
	if !ok {
		return msg, false
	}
	n := p.msgsRead.Add(1)
	if n-p.lastAckSent.Load() >= p.activateStep {
		p.lastAckSent.Store(n)
		if p.onWriteActivated != nil {
			p.onWriteActivated(n)
		}
	}
	return msg, true
}

// FlushReadActivation forces an activate_write signal for whatever has been
// read so far, regardless of the batching step. Used when a reader idles
// with a partial batch pending (e.g. on drain-to-empty).
func (p *Pipe) FlushReadActivation() {
	n := p.msgsRead.Load()
	if n == p.lastAckSent.Load() {
		return
	}
	p.lastAckSent.Store(n)
	if p.onWriteActivated != nil {
		p.onWriteActivated(n)
	}
}

// ApplyActivateWrite is called on the writer's pipe when the reader's
// activate_write(n) command arrives. It advances msgs_read_by_peer and, if
// the writer was HWM-blocked, notifies its owner that writes may resume.
func (p *Pipe) ApplyActivateWrite(readCount uint64) {
	wasBlocked := !p.CheckWrite()
	if readCount > p.msgsReadByPeer.Load() {
		p.msgsReadByPeer.Store(readCount)
	}
	if wasBlocked && p.CheckWrite() && p.onWriterUnblock != nil {
		p.onWriterUnblock()
	}
}

// Hiccup signals that the peer engine died while the session survives: any
// partially received multi-part prefix at the reader is now invalid and
// must be dropped by the owning socket (spec §4.4).
func (p *Pipe) Hiccup() {
	if p.onHiccup != nil {
		p.onHiccup()
	}
}

// Term begins the two-party termination handshake from this end: marks the
// pipe terminating and signals the peer's onPipeTerm handler.
func (p *Pipe) Term() {
	if p.terminating.CompareAndSwap(false, true) {
		if p.onPipeTerm != nil {
			p.onPipeTerm()
		}
	}
}

// OnPeerTerm is invoked when the peer's pipe_term command arrives. The
// caller (the reader's owner) must drain CheckRead/Read to empty before
// calling Ack, per spec §4.4 ("drains remaining readable messages into the
// socket, then replies pipe_term_ack").
func (p *Pipe) OnPeerTerm() {
	p.terminating.Store(true)
}

// Ack sends pipe_term_ack to the peer after drain completes.
func (p *Pipe) Ack() {
	if p.onPipeTermAck != nil {
		p.onPipeTermAck()
	}
}

// OnPeerTermAck is invoked when the peer's pipe_term_ack arrives; only then
// may this side release the pipe (spec §4.4, property P2 idempotent close).
func (p *Pipe) OnPeerTermAck() {
	p.terminated.Store(true)
}

// Terminated reports whether both sides have completed the termination
// handshake.
func (p *Pipe) Terminated() bool {
	return p.terminated.Load()
}

// Len reports the number of messages currently queued.
func (p *Pipe) Len() int { return p.ring.Len() }

// Cap reports the ring's fixed capacity.
func (p *Pipe) Cap() int { return p.ring.Cap() }
