// File: mailbox/mailbox.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package mailbox

import (
	"sync/atomic"

	"github.com/zlinkio/zlink/internal/concurrency"
)

const defaultCapacity = 256

// Mailbox is a many-producer/single-consumer command queue with an
// edge-triggered wakeup signal, owned by exactly one object (spec §4.7).
// The owning I/O thread's reactor is registered on Signal() and drains the
// mailbox with Drain when it fires.
type Mailbox struct {
	queue  *concurrency.MPSCQueue[Command]
	armed  atomic.Bool
	signal chan struct{}
}

// New builds a Mailbox with the default capacity (rounded to a power of two
// by the underlying queue).
func New() *Mailbox {
	return NewCapacity(defaultCapacity)
}

// NewCapacity builds a Mailbox whose queue holds up to capacity commands.
func NewCapacity(capacity int) *Mailbox {
	return &Mailbox{
		queue:  concurrency.NewMPSCQueue[Command](capacity),
		signal: make(chan struct{}, 1),
	}
}

// Post enqueues cmd. Per spec §4.7 delivery discipline, it signals the
// owner's reactor once per empty-to-nonempty transition rather than once
// per command, so a reactor draining a batch isn't re-woken redundantly.
// Returns false if the mailbox is full (the caller's own bug: mailboxes are
// sized for the maximum concurrent command fan-in of their owner).
func (m *Mailbox) Post(cmd Command) bool {
	if !m.queue.Enqueue(cmd) {
		return false
	}
	if m.armed.CompareAndSwap(false, true) {
		select {
		case m.signal <- struct{}{}:
		default:
		}
	}
	return true
}

// Signal returns the channel the owning reactor selects on to know a
// command is waiting.
func (m *Mailbox) Signal() <-chan struct{} {
	return m.signal
}

// Drain disarms the wakeup signal and calls handle for every command
// currently queued, in FIFO order, returning the count processed. The
// owner calls this from its I/O thread only.
func (m *Mailbox) Drain(handle func(Command)) int {
	m.armed.Store(false)
	n := 0
	for {
		cmd, ok := m.queue.Dequeue()
		if !ok {
			break
		}
		handle(cmd)
		n++
	}
	return n
}

// Pending reports a point-in-time estimate of commands currently queued.
func (m *Mailbox) Pending() int {
	return m.queue.Len()
}
