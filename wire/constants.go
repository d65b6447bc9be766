// File: wire/constants.go
// Package wire implements ZMP framing: the 8-byte-header binary protocol
// the engine speaks on top of any byte-stream Transport.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wire

// Wire-level constants for the ZMP framing header (spec §4.2).
const (
	Magic         byte = 0x5A
	Version       byte = 0x02
	HeaderLen          = 8
	MaxBodyLen         = 1<<32 - 1 // clamp imposed by the u32 body-len field
)

// Flag bits within byte 2 of the header.
const (
	FlagMore Flag = 1 << iota
	FlagControl
	FlagIdentity
	FlagSubscribe
	FlagCancel
)

// reservedFlagMask marks bits the wire format does not define; any frame
// setting one of these is rejected as flags-invalid.
const reservedFlagMask = ^byte(FlagMore | FlagControl | FlagIdentity | FlagSubscribe | FlagCancel)

// Flag is the ZMP per-frame flag set.
type Flag byte

func (f Flag) More() bool      { return f&FlagMore != 0 }
func (f Flag) Control() bool   { return f&FlagControl != 0 }
func (f Flag) Identity() bool  { return f&FlagIdentity != 0 }
func (f Flag) Subscribe() bool { return f&FlagSubscribe != 0 }
func (f Flag) Cancel() bool    { return f&FlagCancel != 0 }

// validate enforces the mutual-exclusion rules of spec §4.2.
func (f Flag) validate() error {
	if byte(f)&reservedFlagMask != 0 {
		return errFlagsInvalid
	}
	if f.Control() && f.More() {
		return errFlagsInvalid
	}
	if f.Control() && f.Identity() {
		return errFlagsInvalid
	}
	if f.Subscribe() && f.Cancel() {
		return errFlagsInvalid
	}
	return nil
}

// ControlType is the first body byte of a control (FlagControl) frame.
type ControlType byte

const (
	CtlHello ControlType = iota + 1
	CtlHeartbeat
	CtlHeartbeatAck
	CtlReady
	CtlError
)

func (c ControlType) String() string {
	switch c {
	case CtlHello:
		return "HELLO"
	case CtlHeartbeat:
		return "HEARTBEAT"
	case CtlHeartbeatAck:
		return "HEARTBEAT_ACK"
	case CtlReady:
		return "READY"
	case CtlError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxRoutingIDLen is the spec §3 invariant 6 bound on routing-id length.
const MaxRoutingIDLen = 255

// MaxHeartbeatContextLen bounds the PING/PONG opaque context (spec §4.2).
const MaxHeartbeatContextLen = 16
