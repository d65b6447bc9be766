// File: wire/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package wire

import (
	"errors"

	"github.com/zlinkio/zlink/api"
)

var (
	errInvalidMagic   = errors.New("zmp: invalid magic byte")
	errVersionMismatch = errors.New("zmp: version mismatch")
	errFlagsInvalid   = errors.New("zmp: invalid flag combination")
	errBodyTooLarge   = errors.New("zmp: body exceeds configured maximum")
	errReservedNonzero = errors.New("zmp: reserved byte must be zero")
)

// ToZMPCode maps a decoder-local validation error to the wire-level
// ZMP error code sent in an ERROR control frame (spec §4.2, §7).
func ToZMPCode(err error) (api.ZMPErrorCode, bool) {
	switch {
	case errors.Is(err, errInvalidMagic):
		return api.ZMPErrInvalidMagic, true
	case errors.Is(err, errVersionMismatch):
		return api.ZMPErrVersionMismatch, true
	case errors.Is(err, errFlagsInvalid), errors.Is(err, errReservedNonzero):
		return api.ZMPErrFlagsInvalid, true
	case errors.Is(err, errBodyTooLarge):
		return api.ZMPErrBodyTooLarge, true
	default:
		return api.ZMPErrInternal, false
	}
}
