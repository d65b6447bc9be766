// File: mailbox/command.go
// Package mailbox implements the per-object MPSC command queue objects use
// to talk across I/O-thread boundaries (spec §4.7).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package mailbox

// CommandType tags the fixed-size command union of spec §4.7.
type CommandType uint8

const (
	CmdStop CommandType = iota
	CmdPlug
	CmdOwn
	CmdAttach
	CmdBind
	CmdActivateRead
	CmdActivateWrite
	CmdHiccup
	CmdPipeTerm
	CmdPipeTermAck
	CmdPipeHWM
	CmdTermReq
	CmdTerm
	CmdTermAck
	CmdTermEndpoint
	CmdReap
	CmdReaped
	CmdDone
	CmdInprocConnected
	CmdConnFailed
)

func (t CommandType) String() string {
	switch t {
	case CmdStop:
		return "stop"
	case CmdPlug:
		return "plug"
	case CmdOwn:
		return "own"
	case CmdAttach:
		return "attach"
	case CmdBind:
		return "bind"
	case CmdActivateRead:
		return "activate_read"
	case CmdActivateWrite:
		return "activate_write"
	case CmdHiccup:
		return "hiccup"
	case CmdPipeTerm:
		return "pipe_term"
	case CmdPipeTermAck:
		return "pipe_term_ack"
	case CmdPipeHWM:
		return "pipe_hwm"
	case CmdTermReq:
		return "term_req"
	case CmdTerm:
		return "term"
	case CmdTermAck:
		return "term_ack"
	case CmdTermEndpoint:
		return "term_endpoint"
	case CmdReap:
		return "reap"
	case CmdReaped:
		return "reaped"
	case CmdDone:
		return "done"
	case CmdInprocConnected:
		return "inproc_connected"
	case CmdConnFailed:
		return "conn_failed"
	default:
		return "unknown"
	}
}

// Command is a fixed-shape tagged union dispatched to a destination
// object's process_* handler. Seqnum lets destinations ignore late arrivals
// for commands that change refcounted state (spec §4.7).
type Command struct {
	Type   CommandType
	Seqnum uint64

	// Source/Destination are informational; the mailbox that received the
	// command is already the destination.
	Source any

	// ActivateRead/ActivateWrite
	ReadCount uint64

	// Attach/Own/Plug/Bind carry an opaque payload (a *pipe.Pipe, an
	// endpoint string, a socket handle, ...); callers type-assert.
	Payload any

	// TermEndpoint/Bind
	Endpoint string

	// ConnFailed
	Err error
}
