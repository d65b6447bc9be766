// File: transport/inproc/inproc.go
// Package inproc provides the in-process carrier for "inproc://" endpoints:
// a synchronous, unbuffered, full-duplex in-memory connection pair, looked
// up by name through zctx's endpoint registry rather than dialed over a
// real socket (spec §4.8).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package inproc

import (
	"net"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/transport"
)

// Pair returns two connected api.Transports, the binder's end and the
// connecter's end, backed by net.Pipe (no real socket, no syscalls, no
// handshake: both ends already share byte-for-byte the same stream).
func Pair() (bindEnd, connectEnd api.Transport) {
	a, b := net.Pipe()
	return transport.NewStream(transport.NewNetConn(a)), transport.NewStream(transport.NewNetConn(b))
}
