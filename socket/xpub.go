// File: socket/xpub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// XPUB: PUB plus visibility into the subscription stream itself. Every
// subscribe/cancel control frame updates the peer's trie exactly as PUB
// does, but is also queued as a synthetic message the application can Recv,
// so an XPUB-based broker can react to subscription changes.

package socket

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/session"
)

// XPub implements Socket for api.SocketXPub.
type XPub struct {
	base
	tries map[string]*subTrie

	eventsMu sync.Mutex
	events   *queue.Queue // of message.Message, subscribe/cancel notifications

	awaitingFirst bool
	curRecipients []string
}

// NewXPub builds an unattached XPUB socket.
func NewXPub(log *control.Logger) *XPub {
	return &XPub{
		base:          newBase(api.SocketXPub, log),
		tries:         make(map[string]*subTrie),
		events:        queue.New(),
		awaitingFirst: true,
	}
}

func (x *XPub) Type() api.SocketType { return api.SocketXPub }

// SessionReady implements session.Sink.
func (x *XPub) SessionReady(s *session.Session) {
	x.mu.Lock()
	x.tries[s.ID()] = newSubTrie()
	x.mu.Unlock()
	x.attach(s)
}

// SessionDown implements session.Sink.
func (x *XPub) SessionDown(s *session.Session, _ *api.ConnError) {
	x.mu.Lock()
	delete(x.tries, s.ID())
	x.mu.Unlock()
	x.detach(s)
}

// ReadActivated applies subscribe/cancel frames to the peer's trie and
// queues a notification event for each one.
func (x *XPub) ReadActivated(sess *session.Session) {
	x.mu.Lock()
	t := x.tries[sess.ID()]
	x.mu.Unlock()
	if t == nil {
		return
	}
	for {
		msg, ok := sess.ToSocket().Read()
		if !ok {
			return
		}
		switch {
		case msg.Flags()&message.FlagSubscribe != 0:
			t.Subscribe(msg.Data())
			x.queueEvent(&msg, message.FlagSubscribe)
		case msg.Flags()&message.FlagCancel != 0:
			t.Unsubscribe(msg.Data())
			x.queueEvent(&msg, message.FlagCancel)
		default:
			msg.Close()
		}
	}
}

func (x *XPub) queueEvent(src *message.Message, flag message.Flag) {
	var evt message.Message
	evt.InitSize(src.Size())
	copy(evt.Data(), src.Data())
	evt.SetFlags(flag)
	src.Close()
	x.eventsMu.Lock()
	x.events.Add(evt)
	x.eventsMu.Unlock()
	x.signal()
}

// Send fans msg out to every subscriber whose trie matches the topic,
// identically to Pub.Send.
func (x *XPub) Send(msg message.Message) error {
	x.mu.Lock()
	var targetIDs []string
	if x.awaitingFirst {
		topic := msg.Data()
		for id, t := range x.tries {
			if t.Matches(topic) {
				targetIDs = append(targetIDs, id)
			}
		}
		x.curRecipients = targetIDs
	} else {
		targetIDs = x.curRecipients
	}
	if msg.More() {
		x.awaitingFirst = false
	} else {
		x.awaitingFirst = true
		x.curRecipients = nil
	}
	targets := make([]*session.Session, 0, len(targetIDs))
	for _, id := range targetIDs {
		if s, ok := x.sessions[id]; ok {
			targets = append(targets, s)
		}
	}
	x.mu.Unlock()

	for _, s := range targets {
		var cp message.Message
		cp.Copy(&msg)
		if !s.FromSocket().Write(cp) {
			cp.Close()
			continue
		}
		s.FromSocket().Flush()
	}
	msg.Close()
	return nil
}

// Recv returns the next queued subscribe/cancel notification.
func (x *XPub) Recv() (message.Message, error) {
	x.eventsMu.Lock()
	defer x.eventsMu.Unlock()
	if x.events.Length() == 0 {
		return message.Message{}, api.ErrWouldBlock
	}
	evt := x.events.Remove().(message.Message)
	return evt, nil
}

// HasIn reports whether a subscription event is queued.
func (x *XPub) HasIn() bool {
	x.eventsMu.Lock()
	defer x.eventsMu.Unlock()
	return x.events.Length() > 0
}

// HasOut reports whether at least one subscriber is attached.
func (x *XPub) HasOut() bool { return x.peerCount() > 0 }
