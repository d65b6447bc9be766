// File: message/message.go
// Package message implements the Message value type: a logical zlink
// datagram frame with an inline/heap/shared-refcounted storage tier,
// a flag set, and optional attached metadata.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package message

import (
	"sync/atomic"

	"github.com/zlinkio/zlink/api"
)

// inlineCap is the size at or below which a message's payload is stored directly
// inside the Message value, avoiding a heap allocation entirely (spec §4.3:
// "sized to fit small messages inline (<= ~32 bytes)").
const inlineCap = 32

// storageTier distinguishes how a Message's bytes are backed.
type storageTier uint8

const (
	tierEmpty storageTier = iota
	tierInline
	tierHeap
	tierShared
)

// Flag mirrors wire.Flag for the subset meaningful once a frame has been
// reassembled into a Message (more/command/routing-id/subscribe/cancel).
type Flag = uint8

const (
	FlagMore Flag = 1 << iota
	FlagCommand
	FlagRoutingID
	FlagSubscribe
	FlagCancel
)

// sharedBuf is the refcounted backing store for a zero-copy donated buffer
// (spec §4.3: "for incoming large messages the decoder donates a refcounted
// shared buffer so the same bytes may be forwarded without copy").
type sharedBuf struct {
	data []byte
	refs int32
	dtor func()
}

func (s *sharedBuf) incref() { atomic.AddInt32(&s.refs, 1) }

func (s *sharedBuf) decref() {
	if atomic.AddInt32(&s.refs, -1) == 0 && s.dtor != nil {
		s.dtor()
	}
}

// Message is a single zlink frame: a byte payload, a flag set, and optional
// metadata. The zero value is a valid, empty, already-closed Message.
//
// Contract (spec §4.3, property P2): exactly one Close per successful
// Init/InitSize/InitShared; Move transfers ownership and empties the
// source; calling Close twice is a no-op, never a double-free.
type Message struct {
	tier   storageTier
	inline [inlineCap]byte
	inlineN int

	heap []byte

	shared    *sharedBuf
	sharedOff int
	sharedLen int

	flags Flag
	meta  *Metadata
}

// Init makes m an empty, zero-length message.
func (m *Message) Init() {
	m.reset()
	m.tier = tierEmpty
}

// InitSize allocates an n-byte payload, inline when it fits, heap otherwise.
func (m *Message) InitSize(n int) {
	m.reset()
	if n <= inlineCap {
		m.tier = tierInline
		m.inlineN = n
		return
	}
	m.tier = tierHeap
	m.heap = make([]byte, n)
}

// InitShared adopts a caller-owned buffer as a refcounted shared tier. dtor,
// if non-nil, runs when the last reference (across every Copy) is closed.
// Used by the engine/decoder to hand a decoded frame body to a Message
// without copying it (spec §4.2, §4.3).
func (m *Message) InitShared(data []byte, dtor func()) {
	m.reset()
	m.tier = tierShared
	m.shared = &sharedBuf{data: data, refs: 1, dtor: dtor}
	m.sharedOff = 0
	m.sharedLen = len(data)
}

// Close releases m's storage. Idempotent: a second Close on an already-empty
// Message is a no-op.
func (m *Message) Close() {
	if m.tier == tierShared && m.shared != nil {
		m.shared.decref()
	}
	m.reset()
}

func (m *Message) reset() {
	m.tier = tierEmpty
	m.inlineN = 0
	m.heap = nil
	m.shared = nil
	m.sharedOff = 0
	m.sharedLen = 0
	m.flags = 0
	if m.meta != nil {
		m.meta.decref()
		m.meta = nil
	}
}

// Move transfers ownership of from's storage into m and empties from.
func (m *Message) Move(from *Message) {
	if m == from {
		return
	}
	m.Close()
	*m = *from
	from.tier = tierEmpty
	from.inlineN = 0
	from.heap = nil
	from.shared = nil
	from.sharedOff = 0
	from.sharedLen = 0
	from.flags = 0
	from.meta = nil
}

// Copy makes m an independent reference to from's data. Heap-tier payloads
// are promoted to a refcounted shared buffer on first copy so later copies
// and the original share storage without repeated allocation, matching the
// ZMP engine's "copy for fan-out, move for hand-off" usage pattern.
func (m *Message) Copy(from *Message) {
	if m == from {
		return
	}
	m.Close()
	switch from.tier {
	case tierEmpty:
		m.tier = tierEmpty
	case tierInline:
		m.tier = tierInline
		m.inlineN = from.inlineN
		m.inline = from.inline
	case tierHeap:
		from.promoteToShared()
		fallthrough
	case tierShared:
		from.shared.incref()
		m.tier = tierShared
		m.shared = from.shared
		m.sharedOff = from.sharedOff
		m.sharedLen = from.sharedLen
	}
	m.flags = from.flags
	if from.meta != nil {
		from.meta.incref()
		m.meta = from.meta
	}
}

// promoteToShared converts a heap-tier message in place to a shared-tier
// message backed by a fresh refcount of 1, so a subsequent Copy can bump it
// instead of duplicating the bytes.
func (m *Message) promoteToShared() {
	if m.tier != tierHeap {
		return
	}
	m.tier = tierShared
	m.shared = &sharedBuf{data: m.heap, refs: 1}
	m.sharedOff = 0
	m.sharedLen = len(m.heap)
	m.heap = nil
}

// Data returns the message payload. The returned slice is only valid until
// the next mutating call on m.
func (m *Message) Data() []byte {
	switch m.tier {
	case tierInline:
		return m.inline[:m.inlineN]
	case tierHeap:
		return m.heap
	case tierShared:
		return m.shared.data[m.sharedOff : m.sharedOff+m.sharedLen]
	default:
		return nil
	}
}

// Size returns the payload length in bytes.
func (m *Message) Size() int {
	switch m.tier {
	case tierInline:
		return m.inlineN
	case tierHeap:
		return len(m.heap)
	case tierShared:
		return m.sharedLen
	default:
		return 0
	}
}

// SetFlags ORs f into the message's flag set.
func (m *Message) SetFlags(f Flag) { m.flags |= f }

// ResetFlags clears f from the message's flag set.
func (m *Message) ResetFlags(f Flag) { m.flags &^= f }

// Flags returns the current flag set.
func (m *Message) Flags() Flag { return m.flags }

// More reports whether another frame follows in this logical message.
func (m *Message) More() bool { return m.flags&FlagMore != 0 }

// SetMetadata attaches md to m, bumping md's refcount. Pass nil to detach.
func (m *Message) SetMetadata(md *Metadata) {
	if m.meta != nil {
		m.meta.decref()
	}
	if md != nil {
		md.incref()
	}
	m.meta = md
}

// Metadata returns m's attached metadata, if any.
func (m *Message) Metadata() (*Metadata, bool) {
	if m.meta == nil {
		return nil, false
	}
	return m.meta, true
}

// FromDecodedBody turns a wire-decoded frame body into a Message, deriving
// the flag set from the frame's wire flags. Bodies of at most inlineCap bytes
// are copied inline; larger ones are wrapped as a shared-tier Message,
// zero-copy.
func FromDecodedBody(body []byte, more, command, routingID, subscribe, cancel bool) Message {
	var m Message
	if len(body) <= inlineCap {
		m.tier = tierInline
		m.inlineN = copy(m.inline[:], body)
	} else {
		m.InitShared(body, nil)
	}
	if more {
		m.flags |= FlagMore
	}
	if command {
		m.flags |= FlagCommand
	}
	if routingID {
		m.flags |= FlagRoutingID
	}
	if subscribe {
		m.flags |= FlagSubscribe
	}
	if cancel {
		m.flags |= FlagCancel
	}
	return m
}

// ErrInvalidMessage is returned by callers that reject a malformed message
// outside the wire decoder itself (e.g. socket-type-specific framing rules).
var ErrInvalidMessage = api.NewError(api.ErrCodeInvalidArgument, "invalid message")
