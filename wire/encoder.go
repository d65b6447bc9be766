// File: wire/encoder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Two-step ZMP encoder iterator: Load one frame, Pull until exhausted, Load
// the next. Mirrors the header-then-body emission the teacher's
// EncodeFrameToBufferWithMask performs in one shot, but incrementally so the
// engine can drain it across several partial async writes.

package wire

import "encoding/binary"

// Encoder serializes one ZMP frame at a time into caller-supplied buffers.
type Encoder struct {
	hdr    [HeaderLen]byte
	hdrOff int

	body    []byte
	bodyOff int

	loaded bool
}

// NewEncoder returns a ready-to-Load encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Load prepares the next frame. Must not be called while a previous frame
// is still partially pulled (callers drain with Pull until Done()).
func (e *Encoder) Load(flags Flag, body []byte) error {
	if len(body) > MaxBodyLen {
		return errBodyTooLarge
	}
	if err := flags.validate(); err != nil {
		return err
	}
	e.hdr[0] = Magic
	e.hdr[1] = Version
	e.hdr[2] = byte(flags)
	e.hdr[3] = 0
	binary.BigEndian.PutUint32(e.hdr[4:8], uint32(len(body)))
	e.hdrOff = 0
	e.body = body
	e.bodyOff = 0
	e.loaded = true
	return nil
}

// Pull copies as many bytes as fit into dst, returning how many were
// written and whether the frame is now fully emitted.
func (e *Encoder) Pull(dst []byte) (n int, done bool) {
	if !e.loaded {
		return 0, true
	}
	for n < len(dst) {
		if e.hdrOff < HeaderLen {
			c := copy(dst[n:], e.hdr[e.hdrOff:])
			e.hdrOff += c
			n += c
			continue
		}
		if e.bodyOff < len(e.body) {
			c := copy(dst[n:], e.body[e.bodyOff:])
			e.bodyOff += c
			n += c
			continue
		}
		break
	}
	done = e.hdrOff >= HeaderLen && e.bodyOff >= len(e.body)
	if done {
		e.loaded = false
	}
	return n, done
}

// Done reports whether the current frame has been fully pulled.
func (e *Encoder) Done() bool { return !e.loaded }

// HeaderBytes returns the fully-built 8-byte header for the loaded frame,
// for transports using AsyncWritev's gather path (spec §4.5.4).
func (e *Encoder) HeaderBytes() []byte { return e.hdr[:] }

// BodyBytes returns the full body slice for the loaded frame.
func (e *Encoder) BodyBytes() []byte { return e.body }
