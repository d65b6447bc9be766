// File: socket/xsub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// XSUB: like SUB, but the application controls subscribe/cancel framing
// directly through Send instead of a Subscribe/Unsubscribe API — the raw
// ZMTP convention XSUB exposes for broker-style intermediaries.

package socket

import (
	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/session"
)

// XSub implements Socket for api.SocketXSub.
type XSub struct {
	base
	trie        *subTrie
	passThrough map[string]bool
	cursor      int
}

// NewXSub builds an unattached XSUB socket.
func NewXSub(log *control.Logger) *XSub {
	return &XSub{
		base:        newBase(api.SocketXSub, log),
		trie:        newSubTrie(),
		passThrough: make(map[string]bool),
	}
}

func (x *XSub) Type() api.SocketType { return api.SocketXSub }

// SessionReady implements session.Sink.
func (x *XSub) SessionReady(sess *session.Session) {
	x.attach(sess)
	x.mu.Lock()
	x.passThrough[sess.ID()] = false
	x.mu.Unlock()
	x.signal()
}

// SessionDown implements session.Sink.
func (x *XSub) SessionDown(sess *session.Session, _ *api.ConnError) {
	x.mu.Lock()
	delete(x.passThrough, sess.ID())
	x.mu.Unlock()
	x.detach(sess)
}

// ReadActivated implements Socket.
func (x *XSub) ReadActivated(_ *session.Session) { x.signal() }

// Send forwards msg to every attached peer. A message flagged Subscribe or
// Cancel additionally updates the local filter trie before being relayed
// upstream unmodified.
func (x *XSub) Send(msg message.Message) error {
	switch {
	case msg.Flags()&message.FlagSubscribe != 0:
		x.mu.Lock()
		x.trie.Subscribe(msg.Data())
		peers := x.peerSnapshotLocked()
		x.mu.Unlock()
		return x.broadcast(peers, msg)
	case msg.Flags()&message.FlagCancel != 0:
		x.mu.Lock()
		x.trie.Unsubscribe(msg.Data())
		peers := x.peerSnapshotLocked()
		x.mu.Unlock()
		return x.broadcast(peers, msg)
	default:
		x.mu.Lock()
		peers := x.peerSnapshotLocked()
		x.mu.Unlock()
		return x.broadcast(peers, msg)
	}
}

func (x *XSub) peerSnapshotLocked() []*session.Session {
	peers := make([]*session.Session, 0, len(x.sessions))
	for _, s := range x.sessions {
		peers = append(peers, s)
	}
	return peers
}

func (x *XSub) broadcast(peers []*session.Session, msg message.Message) error {
	if len(peers) == 0 {
		msg.Close()
		return ErrNoPeer
	}
	for i, s := range peers {
		var out message.Message
		if i == len(peers)-1 {
			out = msg
		} else {
			out.Copy(&msg)
		}
		if s.FromSocket().Write(out) {
			s.FromSocket().Flush()
		} else {
			out.Close()
		}
	}
	return nil
}

// Recv returns the next message matching the local subscription set.
func (x *XSub) Recv() (message.Message, error) {
	x.mu.Lock()
	ids := append([]string(nil), x.order...)
	start := x.cursor
	x.mu.Unlock()
	if len(ids) == 0 {
		return message.Message{}, api.ErrWouldBlock
	}
	for i := 0; i < len(ids); i++ {
		idx := (start + i) % len(ids)
		id := ids[idx]
		x.mu.Lock()
		sess := x.sessions[id]
		x.mu.Unlock()
		if sess == nil {
			continue
		}
		if msg, ok := x.drainOne(sess, id); ok {
			x.mu.Lock()
			x.cursor = idx
			if !msg.More() {
				x.cursor = (idx + 1) % len(ids)
			}
			x.mu.Unlock()
			return msg, nil
		}
	}
	return message.Message{}, api.ErrWouldBlock
}

func (x *XSub) drainOne(sess *session.Session, id string) (message.Message, bool) {
	for {
		msg, ok := sess.ToSocket().Read()
		if !ok {
			return message.Message{}, false
		}
		x.mu.Lock()
		through := x.passThrough[id]
		var keep bool
		if through {
			keep = true
		} else {
			keep = x.trie.Matches(msg.Data())
		}
		x.passThrough[id] = keep && msg.More()
		x.mu.Unlock()
		if keep {
			return msg, true
		}
		msg.Close()
	}
}

// HasIn reports whether any attached session has data ready.
func (x *XSub) HasIn() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, sess := range x.sessions {
		if sess.ToSocket().CheckRead() {
			return true
		}
	}
	return false
}

// HasOut reports whether at least one peer is attached.
func (x *XSub) HasOut() bool { return x.peerCount() > 0 }
