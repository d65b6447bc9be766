// File: socket/pub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PUB: fans a message out to every attached SUB/XSUB whose subscription
// trie matches the first frame (the topic), per spec scenario S2. Plain
// PUB intercepts subscribe/cancel control frames arriving on the inbound
// pipe instead of surfacing them through Recv (that's XPUB's job).

package socket

import (
	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/session"
)

// Pub implements Socket for api.SocketPub.
type Pub struct {
	base
	tries map[string]*subTrie

	awaitingFirst bool
	curRecipients []string
}

// NewPub builds an unattached PUB socket.
func NewPub(log *control.Logger) *Pub {
	return &Pub{
		base:          newBase(api.SocketPub, log),
		tries:         make(map[string]*subTrie),
		awaitingFirst: true,
	}
}

func (p *Pub) Type() api.SocketType { return api.SocketPub }

// SessionReady implements session.Sink.
func (p *Pub) SessionReady(s *session.Session) {
	p.mu.Lock()
	p.tries[s.ID()] = newSubTrie()
	p.mu.Unlock()
	p.attach(s)
}

// SessionDown implements session.Sink.
func (p *Pub) SessionDown(s *session.Session, _ *api.ConnError) {
	p.mu.Lock()
	delete(p.tries, s.ID())
	p.mu.Unlock()
	p.detach(s)
}

// ReadActivated drains subscribe/cancel control frames the peer sent and
// applies them to that peer's subscription trie; it never surfaces them to
// the application (spec §4.1).
func (p *Pub) ReadActivated(sess *session.Session) {
	p.mu.Lock()
	t := p.tries[sess.ID()]
	p.mu.Unlock()
	if t == nil {
		return
	}
	p.applySubscriptions(sess, t)
}

func (p *Pub) applySubscriptions(sess *session.Session, t *subTrie) {
	for {
		msg, ok := sess.ToSocket().Read()
		if !ok {
			return
		}
		switch {
		case msg.Flags()&message.FlagSubscribe != 0:
			t.Subscribe(msg.Data())
		case msg.Flags()&message.FlagCancel != 0:
			t.Unsubscribe(msg.Data())
		}
		msg.Close()
	}
}

// Send fans msg out to every subscriber whose trie matches the topic (the
// first frame of the logical multi-part message). Slow subscribers at HWM
// are dropped for this message rather than blocking the publisher (ZMQ's
// PUB semantics: publish is never gated on a single reader).
func (p *Pub) Send(msg message.Message) error {
	p.mu.Lock()
	var targetIDs []string
	if p.awaitingFirst {
		topic := msg.Data()
		for id, t := range p.tries {
			if t.Matches(topic) {
				targetIDs = append(targetIDs, id)
			}
		}
		p.curRecipients = targetIDs
	} else {
		targetIDs = p.curRecipients
	}
	if msg.More() {
		p.awaitingFirst = false
	} else {
		p.awaitingFirst = true
		p.curRecipients = nil
	}
	targets := make([]*session.Session, 0, len(targetIDs))
	for _, id := range targetIDs {
		if s, ok := p.sessions[id]; ok {
			targets = append(targets, s)
		}
	}
	p.mu.Unlock()

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

// Recv is unsupported on a plain PUB socket: it only ever sees subscribe
// control frames, which ReadActivated consumes internally.
func (p *Pub) Recv() (message.Message, error) {
	return message.Message{}, api.ErrNotSupported
}

// HasIn is always false: PUB has nothing for the application to read.
func (p *Pub) HasIn() bool { return false }

// HasOut reports whether at least one subscriber is attached (matching
// ZMQ's convention that PUB is always "writable" once it has any peer).
func (p *Pub) HasOut() bool { return p.peerCount() > 0 }
