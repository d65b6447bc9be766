//go:build linux
// +build linux

// File: reactor/epoll_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7) reactor: level-triggered on EPOLLIN|EPOLLOUT, the user-data
// word round-tripped through the epoll_event union so the I/O thread can
// recover the engine/listener a ready fd belongs to without a map lookup.

package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/zlinkio/zlink/api"
)

type epollReactor struct {
	epfd int
}

// New opens a fresh epoll instance.
func New() (api.Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollReactor{epfd: epfd}, nil
}

// Register arms fd for both read and write readiness. The epoll_data union
// (the Fd/Pad pair in x/sys's EpollEvent) holds only one 8-byte word, so it
// carries userData verbatim; Wait reports that same word back as both Fd
// and UserData. Callers that need the real fd recoverable from a ready
// event should pass uintptr(fd) as userData.
func (r *epollReactor) Register(fd uintptr, userData uintptr) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT}
	*(*uintptr)(unsafe.Pointer(&ev.Fd)) = userData
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev)
}

// Unregister removes fd from the poll set. Not part of api.Reactor (which
// is intentionally minimal) but used directly by callers that hold a
// concrete *epollReactor, e.g. during engine teardown.
func (r *epollReactor) Unregister(fd uintptr) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
}

func (r *epollReactor) Wait(events []api.Event) (int, error) {
	raw := make([]unix.EpollEvent, len(events))
	n, err := unix.EpollWait(r.epfd, raw, -1)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := 0; i < n; i++ {
		word := *(*uintptr)(unsafe.Pointer(&raw[i].Fd))
		events[i] = api.Event{Fd: word, UserData: word}
	}
	return n, nil
}

func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}
