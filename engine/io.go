// File: engine/io.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Read and write pumps. The read pump never stops posting reads (spec
// §4.5.3); the write pump enforces the single-write-in-flight invariant and
// prefers a speculative synchronous write before falling back to async
// (spec §4.5.4).

package engine

import (
	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/wire"
)

// postRead posts the next async_read_some if one isn't already in flight.
// Called after Plug and after every completed read, unconditionally,
// independent of inputStopped: the engine must keep reading even when it
// cannot yet decode (spec §4.5.3 rule 1).
func (e *Engine) postRead() {
	if e.readPending || e.st == stateTerminating || e.st == stateFreed {
		return
	}
	e.readPending = true
	e.transport.AsyncReadSome(e.readBuf, e.onReadComplete)
}

func (e *Engine) onReadComplete(err error, n int) {
	e.readPending = false
	if e.st == stateTerminating || e.st == stateFreed {
		e.maybeFree()
		return
	}
	if err != nil {
		e.classifyAndFail("read", err)
		return
	}
	data := e.readBuf[:n]
	if e.inputStopped {
		e.bufferRaw(data)
	} else if err := e.decodeAndDispatch(data); err != nil {
		return // already failed
	}
	e.postRead()
}

// bufferRaw appends data to the raw pending-bytes pool, failing the
// connection with a connection_error if the hard cap is exceeded (spec
// §4.5.3 rule 2: "peer is flooding").
func (e *Engine) bufferRaw(data []byte) {
	if len(e.pendingRaw)+len(data) > e.opts.PendingBufferCap {
		e.fail(api.NewConnectionError("pending buffer pool exceeded", nil))
		return
	}
	e.pendingRaw = append(e.pendingRaw, data...)
}

// decodeAndDispatch feeds data into the decoder, dispatching every frame it
// completes, stopping early if dispatch sets inputStopped (any bytes of data
// not yet fed to the decoder are then moved into pendingRaw).
func (e *Engine) decodeAndDispatch(data []byte) error {
	off := 0
	for off < len(data) {
		buf := e.decoder.NextBuffer()
		n := copy(buf, data[off:])
		off += n
		frame, err := e.decoder.Feed(n)
		if err != nil {
			code, _ := wire.ToZMPCode(err)
			e.fail(api.NewProtocolError(code, err.Error()))
			return err
		}
		if frame == nil {
			continue
		}
		if err := e.dispatchFrame(frame); err != nil {
			return err
		}
		if e.inputStopped {
			// Remaining unconsumed bytes in this read become raw pending
			// bytes rather than being fed further through the decoder.
			if off < len(data) {
				e.bufferRaw(data[off:])
			}
			return nil
		}
	}
	return nil
}

// RestartInput is called by the session when the inbound pipe has room
// again (spec §4.5.3 rule 3): retry the previously rejected message first,
// then drain pendingRaw through the decoder, possibly re-entering
// inputStopped if a new rejection happens mid-drain.
func (e *Engine) RestartInput() {
	if !e.inputStopped {
		return
	}
	if e.rejectedMsg != nil {
		msg := *e.rejectedMsg
		e.rejectedMsg = nil
		if !e.pushDecoded(msg) {
			return
		}
	}
	e.inputStopped = false
	if len(e.pendingRaw) == 0 {
		return
	}
	raw := e.pendingRaw
	e.pendingRaw = nil
	if err := e.decodeAndDispatch(raw); err != nil {
		return
	}
	if e.inputStopped {
		return
	}
	// Drained fully: flush, then re-check pendingRaw once more to close the
	// race where flush() triggers a new inbound that arrived meanwhile
	// (spec §4.5.3 rule 4).
	e.session.Flush()
	if len(e.pendingRaw) > 0 && !e.inputStopped {
		raw := e.pendingRaw
		e.pendingRaw = nil
		_ = e.decodeAndDispatch(raw)
	}
}

// pumpOutput drains the engine's control-frame queue and then the session's
// outbound pipe, honoring the single-write-in-flight invariant.
func (e *Engine) pumpOutput() {
	if e.writePending || e.st == stateTerminating || e.st == stateFreed {
		return
	}
	for {
		if e.encoder.Done() {
			if !e.loadNextFrame() {
				return
			}
		}
		if e.writeEncoder() {
			continue
		}
		return
	}
}

// loadNextFrame loads the next outbound frame into the encoder: a queued
// control frame first, else the next session message. Returns false when
// there is nothing to send right now (outputStopped was set) or a gather
// write was dispatched directly (bypassing the encoder).
func (e *Engine) loadNextFrame() bool {
	if len(e.outQueue) > 0 {
		f := e.outQueue[0]
		e.outQueue = e.outQueue[1:]
		_ = e.encoder.Load(f.flags, f.body)
		return true
	}
	msg, err := e.session.PullMsg()
	if err != nil {
		if err == api.ErrWouldBlock {
			e.outputStopped = true
			return false
		}
		e.fail(api.NewConnectionError("pull_msg failed", err))
		return false
	}
	flags, body := frameFromMessage(msg)
	if len(body) >= e.opts.GatherThreshold && e.transport.Features().SupportsGatherWrite {
		e.writeGather(flags, body)
		return false
	}
	_ = e.encoder.Load(flags, body)
	return true
}

// writeEncoder pulls one chunk from the encoder and writes it, preferring a
// speculative synchronous write. Returns true if the chunk was written
// synchronously and the caller should continue the outer loop; false if it
// handed off to an async write (pumpOutput will resume from onWriteComplete),
// the write failed, or there was nothing left to pull.
func (e *Engine) writeEncoder() bool {
	n, done := e.encoder.Pull(e.writeBuf)
	if n == 0 {
		return done
	}
	chunk := e.writeBuf[:n]
	features := e.transport.Features()
	wrote := 0
	if features.SupportsSyncIO && !features.PrefersAsync {
		nn, err := e.transport.WriteSome(chunk)
		if err != nil && err != api.ErrWouldBlock {
			e.classifyAndFail("write", err)
			return false
		}
		wrote = nn
	}
	if wrote < len(chunk) {
		e.asyncWriteRemainder(chunk[wrote:])
		return false
	}
	return true
}

// asyncWriteRemainder posts an async write for the unwritten tail of a
// chunk, chaining further async writes until it is fully written, then
// resumes pumpOutput.
func (e *Engine) asyncWriteRemainder(chunk []byte) {
	e.writePending = true
	e.transport.AsyncWriteSome(chunk, func(err error, n int) {
		e.writePending = false
		if e.st == stateTerminating || e.st == stateFreed {
			e.maybeFree()
			return
		}
		if err != nil {
			e.classifyAndFail("write", err)
			return
		}
		if n < len(chunk) {
			e.asyncWriteRemainder(chunk[n:])
			return
		}
		e.pumpOutput()
	})
}

// writeGather sends a large message via async_writev, avoiding a copy into
// the encoder's buffer (spec §4.5.4).
func (e *Engine) writeGather(flags wire.Flag, body []byte) {
	var hdr wire.Encoder
	if err := hdr.Load(flags, body); err != nil {
		e.fail(api.NewConnectionError("encode gather header failed", err))
		return
	}
	header := append([]byte(nil), hdr.HeaderBytes()...)
	e.writePending = true
	e.transport.AsyncWritev(header, body, func(err error, n int) {
		e.writePending = false
		if e.st == stateTerminating || e.st == stateFreed {
			e.maybeFree()
			return
		}
		if err != nil {
			e.classifyAndFail("writev", err)
			return
		}
		e.pumpOutput()
	})
}

// RestartOutput is called by the session whenever the outbound pipe has a
// message ready: the first one after handshake, or a retry after the
// engine previously got EAGAIN from PullMsg (spec §4.5.7: "Pipe HWM hit
// outbound"). Idempotent: pumpOutput no-ops if a write is already pending.
func (e *Engine) RestartOutput() {
	e.outputStopped = false
	e.pumpOutput()
}
