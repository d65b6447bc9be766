// File: wire/decoder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Streaming ZMP decoder. Mirrors the incremental, allocation-conscious style
// of the teacher's DecodeFrameFromBytes (protocol/frame_codec.go) but as a
// true streaming state machine (AwaitHeader -> AwaitBody -> deliver) so the
// engine can feed it directly from async_read_some completions without
// buffering a whole frame itself first.

package wire

import "encoding/binary"

// decState is the decoder's position within one frame.
type decState int

const (
	stateAwaitHeader decState = iota
	stateAwaitBody
)

// Frame is one decoded ZMP frame, ready for the engine to hand to the
// session or interpret as a control frame.
type Frame struct {
	Flags Flag
	Body  []byte
}

// BodyAllocator supplies storage for a frame body of the given size. Engines
// pass a pool-backed allocator so large incoming payloads are donated to the
// message layer without a copy (spec §4.3).
type BodyAllocator func(size int) []byte

// Decoder is a single-frame-at-a-time ZMP parser driven by repeated calls to
// NextBuffer/Feed; it never blocks and never allocates on the header path.
type Decoder struct {
	maxBody uint32
	alloc   BodyAllocator

	state decState

	hdr       [HeaderLen]byte
	hdrFilled int

	flags    Flag
	bodyLen  uint32
	body     []byte
	bodyFill int
}

// NewDecoder builds a decoder that rejects bodies larger than maxBody
// (clamped to MaxBodyLen) and allocates body storage via alloc.
func NewDecoder(maxBody uint32, alloc BodyAllocator) *Decoder {
	if maxBody == 0 || maxBody > MaxBodyLen {
		maxBody = MaxBodyLen
	}
	if alloc == nil {
		alloc = func(n int) []byte { return make([]byte, n) }
	}
	return &Decoder{maxBody: maxBody, alloc: alloc, state: stateAwaitHeader}
}

// NextBuffer returns the slice the caller should read into next. The
// decoder owns this storage; callers must not retain it across Feed calls
// for the header tier (the body tier slice is stable per frame).
func (d *Decoder) NextBuffer() []byte {
	switch d.state {
	case stateAwaitHeader:
		return d.hdr[d.hdrFilled:]
	default:
		return d.body[d.bodyFill:]
	}
}

// Feed tells the decoder that n bytes were read into the slice most
// recently returned by NextBuffer. It returns a completed Frame when a full
// frame has been parsed, or an error if the header failed validation.
// Per spec §4.2 "AwaitHeader -> AwaitBody(size) -> deliver -> AwaitHeader".
func (d *Decoder) Feed(n int) (*Frame, error) {
	if n <= 0 {
		return nil, nil
	}
	switch d.state {
	case stateAwaitHeader:
		d.hdrFilled += n
		if d.hdrFilled < HeaderLen {
			return nil, nil
		}
		if err := d.parseHeader(); err != nil {
			return nil, err
		}
		if d.bodyLen == 0 {
			fr := &Frame{Flags: d.flags, Body: nil}
			d.resetForNextHeader()
			return fr, nil
		}
		d.body = d.alloc(int(d.bodyLen))
		d.bodyFill = 0
		d.state = stateAwaitBody
		return nil, nil
	default:
		d.bodyFill += n
		if d.bodyFill < len(d.body) {
			return nil, nil
		}
		fr := &Frame{Flags: d.flags, Body: d.body}
		d.resetForNextHeader()
		return fr, nil
	}
}

func (d *Decoder) resetForNextHeader() {
	d.hdrFilled = 0
	d.body = nil
	d.bodyFill = 0
	d.state = stateAwaitHeader
}

func (d *Decoder) parseHeader() error {
	if d.hdr[0] != Magic {
		return errInvalidMagic
	}
	if d.hdr[1] != Version {
		return errVersionMismatch
	}
	if d.hdr[3] != 0 {
		return errReservedNonzero
	}
	flags := Flag(d.hdr[2])
	if err := flags.validate(); err != nil {
		return err
	}
	bodyLen := binary.BigEndian.Uint32(d.hdr[4:8])
	if bodyLen > d.maxBody {
		return errBodyTooLarge
	}
	d.flags = flags
	d.bodyLen = bodyLen
	return nil
}
