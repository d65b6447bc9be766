// File: zctx/terminator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// terminator tracks every outstanding object a Context has handed out (a
// session, a listener) by a monotonic seqnum, so Context.Terminate can
// block until they have all unregistered themselves (spec §4.8) instead of
// tearing the I/O thread pool down out from under live sessions.

package zctx

import (
	"context"
	"sync"
)

type terminator struct {
	mu          sync.Mutex
	nextSeq     uint64
	outstanding map[uint64]string
	idle        chan struct{} // closed and replaced each time outstanding becomes empty
}

func newTerminator() *terminator {
	t := &terminator{
		outstanding: make(map[uint64]string),
		idle:        make(chan struct{}),
	}
	close(t.idle) // starts empty -> already idle
	return t
}

// Register records desc (a human-readable label: "session:<id>",
// "listener:<endpoint>") as outstanding and returns its seqnum.
func (t *terminator) Register(desc string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextSeq++
	seq := t.nextSeq
	if len(t.outstanding) == 0 {
		t.idle = make(chan struct{})
	}
	t.outstanding[seq] = desc
	return seq
}

// Unregister marks seq as finished. The last Unregister to empty the set
// closes idle, unblocking any Wait.
func (t *terminator) Unregister(seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.outstanding, seq)
	if len(t.outstanding) == 0 {
		close(t.idle)
	}
}

// Count reports how many objects are currently outstanding.
func (t *terminator) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.outstanding)
}

// Wait blocks until no objects are outstanding, ctx is done, or returns
// immediately if already idle.
func (t *terminator) Wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
