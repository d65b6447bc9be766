// File: socket/sub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SUB: maintains a local subscription trie and sends subscribe/cancel
// control frames upstream to every attached PUB/XPUB. Applies the filter
// itself too (defensive double-check, matching ZMQ's historical behavior)
// rather than trusting every peer to have filtered server-side.

package socket

import (
	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/session"
)

// Sub implements Socket for api.SocketSub.
type Sub struct {
	base
	trie *subTrie

	// per-session multi-part pass-through state: once a message's first
	// frame matches, its continuation (More) frames must pass regardless
	// of their own content.
	passThrough map[string]bool
	cursor      int
}

// NewSub builds an unattached SUB socket.
func NewSub(log *control.Logger) *Sub {
	return &Sub{
		base:        newBase(api.SocketSub, log),
		trie:        newSubTrie(),
		passThrough: make(map[string]bool),
	}
}

func (s *Sub) Type() api.SocketType { return api.SocketSub }

// Subscribe adds topic to the local filter and announces it upstream to
// every attached peer.
func (s *Sub) Subscribe(topic []byte) {
	s.mu.Lock()
	s.trie.Subscribe(topic)
	peers := s.peerSnapshotLocked()
	s.mu.Unlock()
	s.announce(peers, topic, message.FlagSubscribe)
}

// Unsubscribe removes topic from the local filter and announces the
// cancellation upstream.
func (s *Sub) Unsubscribe(topic []byte) {
	s.mu.Lock()
	s.trie.Unsubscribe(topic)
	peers := s.peerSnapshotLocked()
	s.mu.Unlock()
	s.announce(peers, topic, message.FlagCancel)
}

func (s *Sub) peerSnapshotLocked() []*session.Session {
	peers := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		peers = append(peers, sess)
	}
	return peers
}

func (s *Sub) announce(peers []*session.Session, topic []byte, flag message.Flag) {
	for _, sess := range peers {
		var ctrl message.Message
		ctrl.InitSize(len(topic))
		copy(ctrl.Data(), topic)
		ctrl.SetFlags(flag)
		if sess.FromSocket().Write(ctrl) {
			sess.FromSocket().Flush()
		} else {
			ctrl.Close()
		}
	}
}

// SessionReady implements session.Sink: announces every existing
// subscription to the newly attached peer.
func (s *Sub) SessionReady(sess *session.Session) {
	s.attach(sess)
	s.mu.Lock()
	s.passThrough[sess.ID()] = false
	empty := s.trie.Empty()
	s.mu.Unlock()
	if !empty {
		s.resendAll(sess)
	}
	s.signal()
}

// resendAll walks every leaf with a live subscription and announces it to
// sess; used only on (re)connect so a new publisher learns the full set.
func (s *Sub) resendAll(sess *session.Session) {
	s.mu.Lock()
	prefixes := collectPrefixes(&s.trie.root, nil)
	s.mu.Unlock()
	for _, p := range prefixes {
		s.announce([]*session.Session{sess}, p, message.FlagSubscribe)
	}
}

func collectPrefixes(n *trieNode, prefix []byte) [][]byte {
	var out [][]byte
	if n.refs > 0 {
		out = append(out, append([]byte(nil), prefix...))
	}
	for b, c := range n.children {
		if c != nil {
			out = append(out, collectPrefixes(c, append(prefix, byte(b)))...)
		}
	}
	return out
}

// SessionDown implements session.Sink.
func (s *Sub) SessionDown(sess *session.Session, _ *api.ConnError) {
	s.mu.Lock()
	delete(s.passThrough, sess.ID())
	s.mu.Unlock()
	s.detach(sess)
}

// ReadActivated implements Socket.
func (s *Sub) ReadActivated(_ *session.Session) { s.signal() }

// Recv returns the next message matching the local subscription set,
// draining and dropping non-matching frames along the way.
func (s *Sub) Recv() (message.Message, error) {
	s.mu.Lock()
	ids := append([]string(nil), s.order...)
	start := s.cursor
	s.mu.Unlock()
	if len(ids) == 0 {
		return message.Message{}, api.ErrWouldBlock
	}
	for i := 0; i < len(ids); i++ {
		idx := (start + i) % len(ids)
		id := ids[idx]
		s.mu.Lock()
		sess := s.sessions[id]
		s.mu.Unlock()
		if sess == nil {
			continue
		}
		if msg, ok := s.drainOne(sess, id); ok {
			s.mu.Lock()
			s.cursor = idx
			if !msg.More() {
				s.cursor = (idx + 1) % len(ids)
			}
			s.mu.Unlock()
			return msg, nil
		}
	}
	return message.Message{}, api.ErrWouldBlock
}

// drainOne pulls frames off sess until it finds one the application should
// see (a pass-through continuation, or a fresh frame matching the trie) or
// the pipe runs dry.
func (s *Sub) drainOne(sess *session.Session, id string) (message.Message, bool) {
	for {
		msg, ok := sess.ToSocket().Read()
		if !ok {
			return message.Message{}, false
		}
		s.mu.Lock()
		through := s.passThrough[id]
		var keep bool
		if through {
			keep = true
		} else {
			keep = s.trie.Matches(msg.Data())
		}
		s.passThrough[id] = keep && msg.More()
		s.mu.Unlock()
		if keep {
			return msg, true
		}
		msg.Close()
	}
}

// HasIn reports whether any attached session currently has a deliverable
// (matching) message ready. Conservative: reports true if any pipe has
// data at all, since a precise answer would require draining.
func (s *Sub) HasIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ToSocket().CheckRead() {
			return true
		}
	}
	return false
}

// HasOut is always false: SUB never sends application data, only control
// frames.
func (s *Sub) HasOut() bool { return false }

// Send is unsupported on SUB: use Subscribe/Unsubscribe instead.
func (s *Sub) Send(_ message.Message) error { return api.ErrNotSupported }
