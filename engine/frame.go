// File: engine/frame.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/wire"
)

// frameFromMessage maps a Message's flag set onto ZMP wire flags for an
// outbound data frame.
func frameFromMessage(msg message.Message) (wire.Flag, []byte) {
	var f wire.Flag
	flags := msg.Flags()
	if flags&message.FlagMore != 0 {
		f |= wire.FlagMore
	}
	if flags&message.FlagRoutingID != 0 {
		f |= wire.FlagIdentity
	}
	if flags&message.FlagSubscribe != 0 {
		f |= wire.FlagSubscribe
	}
	if flags&message.FlagCancel != 0 {
		f |= wire.FlagCancel
	}
	return f, msg.Data()
}
