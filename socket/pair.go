// File: socket/pair.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PAIR: exactly one peer, no routing, no filtering. Send/Recv map directly
// onto the single attached session's two pipes, so HWM backpressure (spec
// scenario S3) surfaces as-is from pipe.Pipe.

package socket

import (
	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/session"
)

// Pair implements Socket for api.SocketPair.
type Pair struct {
	base
	peer *session.Session
}

// NewPair builds an unattached PAIR socket.
func NewPair(log *control.Logger) *Pair {
	return &Pair{base: newBase(api.SocketPair, log)}
}

func (p *Pair) Type() api.SocketType { return api.SocketPair }

// SessionReady implements session.Sink: a second connect attempt while a
// peer is already attached is rejected by terminating the newcomer, since
// PAIR allows exactly one peer (spec §3).
func (p *Pair) SessionReady(s *session.Session) {
	p.mu.Lock()
	if p.peer != nil && p.peer != s {
		p.mu.Unlock()
		s.Terminate()
		return
	}
	p.peer = s
	p.mu.Unlock()
	p.attach(s)
	p.signal()
}

// SessionDown implements session.Sink.
func (p *Pair) SessionDown(s *session.Session, _ *api.ConnError) {
	p.mu.Lock()
	if p.peer == s {
		p.peer = nil
	}
	p.mu.Unlock()
	p.detach(s)
}

// ReadActivated implements Socket.
func (p *Pair) ReadActivated(_ *session.Session) { p.signal() }

// Send writes msg to the attached peer's outbound pipe.
func (p *Pair) Send(msg message.Message) error {
	p.mu.Lock()
	s := p.peer
	p.mu.Unlock()
	if s == nil {
		return ErrNoPeer
	}
	if !s.FromSocket().Write(msg) {
		return api.ErrWouldBlock
	}
	s.FromSocket().Flush()
	return nil
}

// Recv reads the next message from the attached peer's inbound pipe.
func (p *Pair) Recv() (message.Message, error) {
	p.mu.Lock()
	s := p.peer
	p.mu.Unlock()
	if s == nil {
		return message.Message{}, ErrNoPeer
	}
	msg, ok := s.ToSocket().Read()
	if !ok {
		return message.Message{}, api.ErrWouldBlock
	}
	return msg, nil
}

// HasIn reports whether Recv would currently succeed.
func (p *Pair) HasIn() bool {
	p.mu.Lock()
	s := p.peer
	p.mu.Unlock()
	return s != nil && s.ToSocket().CheckRead()
}

// HasOut reports whether Send would currently succeed.
func (p *Pair) HasOut() bool {
	p.mu.Lock()
	s := p.peer
	p.mu.Unlock()
	return s != nil && s.FromSocket().CheckWrite()
}
