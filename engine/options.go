// File: engine/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import "time"

// Options tunes one engine instance. zctx.Options carries the
// process-wide defaults an engine is constructed with; per-socket
// SockOpt values override individual fields (spec §9 design note).
type Options struct {
	// HeartbeatInterval is the PING send period. Zero disables heartbeats.
	HeartbeatInterval time.Duration
	// HeartbeatTTL is advertised to the peer in the PING body so it knows
	// how long to wait for the next PING/PONG before timing out on us.
	HeartbeatTTL time.Duration
	// HeartbeatTimeout bounds how long this side waits for the peer's PONG
	// (or next PING) before declaring a timeout error.
	HeartbeatTimeout time.Duration

	// HandshakeTimeout bounds the HELLO/READY exchange.
	HandshakeTimeout time.Duration

	// PendingBufferCap is the hard cap on raw, not-yet-decoded bytes the
	// engine accumulates while input is stopped (spec §4.5.3, default 4 MiB).
	PendingBufferCap int

	// GatherThreshold is the body size at or above which the engine uses
	// async_writev instead of copying into the encoder (spec §4.5.4,
	// default 64 KiB).
	GatherThreshold int

	// ReadBufferSize sizes the scratch buffer used for each async_read_some.
	ReadBufferSize int

	// MaxBodyLen bounds the wire decoder's accepted body size.
	MaxBodyLen uint32

	// RecvRoutingID, when true, makes the engine deliver the peer's
	// routing-id as a synthetic first inbound message (spec §4.5.2 step 5).
	RecvRoutingID bool

	// ReadyProps carries the optional metadata properties (user-id,
	// peer-address, custom) the owning session wants advertised in this
	// engine's outbound READY frame (spec §4.5.2 step 2).
	ReadyProps map[string]string
}

// DefaultOptions returns the spec's documented defaults.
func DefaultOptions() Options {
	return Options{
		HeartbeatInterval: 0,
		HeartbeatTTL:      30 * time.Second,
		HeartbeatTimeout:  30 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		PendingBufferCap:  4 << 20,
		GatherThreshold:   64 << 10,
		ReadBufferSize:    64 << 10,
		MaxBodyLen:        0, // 0 -> wire.MaxBodyLen
	}
}
