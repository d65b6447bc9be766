// File: wire/control.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Control-frame body codecs: HELLO, HEARTBEAT (PING), HEARTBEAT_ACK (PONG),
// READY, ERROR. A control frame's body is always [ControlType byte, ...];
// these helpers encode/decode everything after that byte.

package wire

import (
	"encoding/binary"
	"errors"

	"github.com/zlinkio/zlink/api"
)

var errTruncatedControl = errors.New("zmp: truncated control frame body")

// PeekControlType returns the control type of a control-flagged frame.
func PeekControlType(body []byte) (ControlType, error) {
	if len(body) < 1 {
		return 0, errTruncatedControl
	}
	return ControlType(body[0]), nil
}

// EncodeHello builds a HELLO control body (spec §4.2 table).
func EncodeHello(socketType api.SocketType, routingID []byte) []byte {
	n := len(routingID)
	if n > MaxRoutingIDLen {
		n = MaxRoutingIDLen
		routingID = routingID[:n]
	}
	body := make([]byte, 3+n)
	body[0] = byte(CtlHello)
	body[1] = byte(socketType)
	body[2] = byte(n)
	copy(body[3:], routingID)
	return body
}

// DecodeHello parses a HELLO control body.
func DecodeHello(body []byte) (socketType api.SocketType, routingID []byte, err error) {
	if len(body) < 3 {
		return 0, nil, errTruncatedControl
	}
	socketType = api.SocketType(body[1])
	idLen := int(body[2])
	if len(body) < 3+idLen {
		return 0, nil, errTruncatedControl
	}
	routingID = body[3 : 3+idLen]
	return socketType, routingID, nil
}

// EncodeHeartbeat builds a PING control body. A zero ttlDs and empty ctx
// produce the 1-byte short form (spec §4.2).
func EncodeHeartbeat(ttlDs uint16, ctx []byte) []byte {
	if ttlDs == 0 && len(ctx) == 0 {
		return []byte{byte(CtlHeartbeat)}
	}
	if len(ctx) > MaxHeartbeatContextLen {
		ctx = ctx[:MaxHeartbeatContextLen]
	}
	body := make([]byte, 4+len(ctx))
	body[0] = byte(CtlHeartbeat)
	binary.BigEndian.PutUint16(body[1:3], ttlDs)
	body[3] = byte(len(ctx))
	copy(body[4:], ctx)
	return body
}

// DecodeHeartbeat parses a PING body, accepting both the long and short form.
func DecodeHeartbeat(body []byte) (ttlDs uint16, ctx []byte, err error) {
	if len(body) < 1 {
		return 0, nil, errTruncatedControl
	}
	if len(body) == 1 {
		return 0, nil, nil
	}
	if len(body) < 4 {
		return 0, nil, errTruncatedControl
	}
	ttlDs = binary.BigEndian.Uint16(body[1:3])
	ctxLen := int(body[3])
	if len(body) < 4+ctxLen {
		return 0, nil, errTruncatedControl
	}
	return ttlDs, body[4 : 4+ctxLen], nil
}

// EncodeHeartbeatAck builds a PONG control body, echoing ctx.
func EncodeHeartbeatAck(ctx []byte) []byte {
	if len(ctx) > MaxHeartbeatContextLen {
		ctx = ctx[:MaxHeartbeatContextLen]
	}
	body := make([]byte, 2+len(ctx))
	body[0] = byte(CtlHeartbeatAck)
	body[1] = byte(len(ctx))
	copy(body[2:], ctx)
	return body
}

// DecodeHeartbeatAck parses a PONG body.
func DecodeHeartbeatAck(body []byte) (ctx []byte, err error) {
	if len(body) < 2 {
		return nil, errTruncatedControl
	}
	ctxLen := int(body[1])
	if len(body) < 2+ctxLen {
		return nil, errTruncatedControl
	}
	return body[2 : 2+ctxLen], nil
}

// EncodeReady builds a READY control body carrying an optional metadata
// property list, each entry as name-len(u8) name value-len(u32 BE) value.
func EncodeReady(props map[string]string) []byte {
	size := 1
	for k, v := range props {
		size += 1 + len(k) + 4 + len(v)
	}
	body := make([]byte, size)
	body[0] = byte(CtlReady)
	off := 1
	for k, v := range props {
		body[off] = byte(len(k))
		off++
		off += copy(body[off:], k)
		binary.BigEndian.PutUint32(body[off:off+4], uint32(len(v)))
		off += 4
		off += copy(body[off:], v)
	}
	return body
}

// DecodeReady parses a READY control body into its metadata properties.
func DecodeReady(body []byte) (props map[string]string, err error) {
	if len(body) < 1 {
		return nil, errTruncatedControl
	}
	props = make(map[string]string)
	off := 1
	for off < len(body) {
		if off+1 > len(body) {
			return nil, errTruncatedControl
		}
		nameLen := int(body[off])
		off++
		if off+nameLen+4 > len(body) {
			return nil, errTruncatedControl
		}
		name := string(body[off : off+nameLen])
		off += nameLen
		valLen := int(binary.BigEndian.Uint32(body[off : off+4]))
		off += 4
		if off+valLen > len(body) {
			return nil, errTruncatedControl
		}
		props[name] = string(body[off : off+valLen])
		off += valLen
	}
	return props, nil
}

// EncodeError builds an ERROR control body.
func EncodeError(code api.ZMPErrorCode, reason string) []byte {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	body := make([]byte, 3+len(reason))
	body[0] = byte(CtlError)
	body[1] = byte(code)
	body[2] = byte(len(reason))
	copy(body[3:], reason)
	return body
}

// DecodeError parses an ERROR control body.
func DecodeError(body []byte) (code api.ZMPErrorCode, reason string, err error) {
	if len(body) < 3 {
		return 0, "", errTruncatedControl
	}
	code = api.ZMPErrorCode(body[1])
	n := int(body[2])
	if len(body) < 3+n {
		return 0, "", errTruncatedControl
	}
	return code, string(body[3 : 3+n]), nil
}
