// File: zctx/options.go
// Package zctx implements the process-wide context of spec §4.8: a fixed
// pool of I/O threads (each its own reactor + mailbox), an in-process
// endpoint registry backing "inproc://" transports, a terminator that
// tracks outstanding sessions by seqnum, and the tunables block every
// socket inherits unless it overrides a value itself.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package zctx

import (
	"time"

	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/engine"
)

// Options tunes one Context. Mirrors engine.Options' shape for the fields
// that are process-wide defaults rather than per-engine overrides.
type Options struct {
	// IOThreads sizes the fixed I/O thread pool. Spec §4.8 default is 1.
	IOThreads int

	// DefaultSndHWM/DefaultRcvHWM hold process-wide HWM defaults. Context
	// does not apply them: sessions it opens get only the socket's own
	// PipeOptions, so their pipes carry no HWM unless the socket sets one.
	DefaultSndHWM uint64
	DefaultRcvHWM uint64

	// MaxMsgSize caps a single message's body; zero means engine.Options'
	// own MaxBodyLen default applies.
	MaxMsgSize uint32

	// EngineOptions seeds every session opened through this Context.
	EngineOptions engine.Options

	// ShutdownGrace bounds how long Terminate waits for outstanding
	// sessions to self-report idle before giving up and returning.
	ShutdownGrace time.Duration

	Log     *control.Logger
	Metrics *control.MetricsRegistry
}

// DefaultOptions returns the spec's documented process-wide defaults.
func DefaultOptions() Options {
	return Options{
		IOThreads:     1,
		DefaultSndHWM: 1000,
		DefaultRcvHWM: 1000,
		EngineOptions: engine.DefaultOptions(),
		ShutdownGrace: 5 * time.Second,
	}
}
