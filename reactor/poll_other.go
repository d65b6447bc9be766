//go:build !linux
// +build !linux

// File: reactor/poll_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Portable reactor fallback for non-Linux builds: a registry polled with a
// short sleep between rounds. Correct but not the production Linux path;
// zctx always prefers the epoll reactor when available.

package reactor

import (
	"sync"
	"time"

	"github.com/zlinkio/zlink/api"
)

type pollReactor struct {
	mu      sync.Mutex
	entries map[uintptr]uintptr
	closed  bool
}

// New builds the portable fallback reactor.
func New() (api.Reactor, error) {
	return &pollReactor{entries: make(map[uintptr]uintptr)}, nil
}

func (r *pollReactor) Register(fd uintptr, userData uintptr) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[fd] = userData
	return nil
}

func (r *pollReactor) Wait(events []api.Event) (int, error) {
	time.Sleep(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for fd, ud := range r.entries {
		if n >= len(events) {
			break
		}
		events[n] = api.Event{Fd: fd, UserData: ud}
		n++
	}
	return n, nil
}

func (r *pollReactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.entries = nil
	return nil
}
