// File: socket/stream.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// STREAM: exposes a raw (non-ZMP-framed) peer as a two-frame [identity,
// body] pair per inbound chunk, and additionally synthesizes an empty-body
// connect/disconnect event pair whenever a peer attaches or drops, so an
// application can track connection lifecycle without a separate callback
// API. The event stream is a single FIFO (github.com/eapache/queue), same
// library the teacher reached for in its own (unwired) task queue.

package socket

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/session"
)

// Stream implements Socket for api.SocketStream.
type Stream struct {
	base

	idMu        sync.Mutex
	byRoutingID map[string]*session.Session
	keyByID     map[string]string

	eventsMu sync.Mutex
	events   *queue.Queue // of message.Message, alternating identity/body frames

	sendMu      sync.Mutex
	pendingDest *session.Session
}

// NewStream builds an unattached STREAM socket.
func NewStream(log *control.Logger) *Stream {
	return &Stream{
		base:        newBase(api.SocketStream, log),
		byRoutingID: make(map[string]*session.Session),
		keyByID:     make(map[string]string),
		events:      queue.New(),
	}
}

func (s *Stream) Type() api.SocketType { return api.SocketStream }

func (s *Stream) pushEventPair(key string, body message.Message) {
	var idFrame message.Message
	idFrame.InitSize(len(key))
	copy(idFrame.Data(), key)
	idFrame.SetFlags(message.FlagRoutingID | message.FlagMore)
	body.ResetFlags(message.FlagMore)

	s.eventsMu.Lock()
	s.events.Add(idFrame)
	s.events.Add(body)
	s.eventsMu.Unlock()
	s.signal()
}

// SessionReady implements session.Sink: registers the peer's identity and
// synthesizes a connect event (identity frame + empty body).
func (s *Stream) SessionReady(sess *session.Session) {
	s.attach(sess)
	key := routingKey(sess)
	s.idMu.Lock()
	s.byRoutingID[key] = sess
	s.keyByID[sess.ID()] = key
	s.idMu.Unlock()

	var empty message.Message
	empty.Init()
	s.pushEventPair(key, empty)
}

// SessionDown implements session.Sink: synthesizes a disconnect event.
func (s *Stream) SessionDown(sess *session.Session, _ *api.ConnError) {
	s.idMu.Lock()
	key, ok := s.keyByID[sess.ID()]
	if ok {
		delete(s.byRoutingID, key)
		delete(s.keyByID, sess.ID())
	}
	s.idMu.Unlock()

	s.sendMu.Lock()
	if s.pendingDest == sess {
		s.pendingDest = nil
	}
	s.sendMu.Unlock()

	s.detach(sess)
	if ok {
		var empty message.Message
		empty.Init()
		s.pushEventPair(key, empty)
	}
}

// ReadActivated surfaces every inbound chunk as its own [identity, body]
// event pair: STREAM does not merge raw reads with More (spec §4.1).
func (s *Stream) ReadActivated(sess *session.Session) {
	key := routingKey(sess)
	for {
		msg, ok := sess.ToSocket().Read()
		if !ok {
			return
		}
		s.pushEventPair(key, msg)
	}
}

// Send addresses msg by routing-id exactly like Router.Send: the frame
// carrying message.FlagRoutingID names the destination, the following
// frame(s) are written verbatim as the raw outbound chunk.
func (s *Stream) Send(msg message.Message) error {
	if msg.Flags()&message.FlagRoutingID != 0 {
		key := string(msg.Data())
		msg.Close()
		s.idMu.Lock()
		dest := s.byRoutingID[key]
		s.idMu.Unlock()
		if dest == nil {
			return ErrUnroutable
		}
		s.sendMu.Lock()
		s.pendingDest = dest
		s.sendMu.Unlock()
		return nil
	}

	s.sendMu.Lock()
	dest := s.pendingDest
	if !msg.More() {
		s.pendingDest = nil
	}
	s.sendMu.Unlock()

	if dest == nil {
		msg.Close()
		return ErrUnroutable
	}
	if !dest.FromSocket().Write(msg) {
		return api.ErrWouldBlock
	}
	dest.FromSocket().Flush()
	return nil
}

// Recv returns the next queued event/data frame.
func (s *Stream) Recv() (message.Message, error) {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	if s.events.Length() == 0 {
		return message.Message{}, api.ErrWouldBlock
	}
	return s.events.Remove().(message.Message), nil
}

// HasIn reports whether a frame is queued.
func (s *Stream) HasIn() bool {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	return s.events.Length() > 0
}

// HasOut reports whether at least one peer is attached.
func (s *Stream) HasOut() bool { return s.peerCount() > 0 }
