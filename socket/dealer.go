// File: socket/dealer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DEALER: fair load-balanced Send/Recv across every attached peer, no
// routing-id framing (spec §3, scenario S1's client side talks DEALER to a
// ROUTER).

package socket

import (
	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/session"
)

// Dealer implements Socket for api.SocketDealer.
type Dealer struct {
	base
	sendCursor int
	recvCursor int
}

// NewDealer builds an unattached DEALER socket.
func NewDealer(log *control.Logger) *Dealer {
	return &Dealer{base: newBase(api.SocketDealer, log)}
}

func (d *Dealer) Type() api.SocketType { return api.SocketDealer }

// SessionReady implements session.Sink.
func (d *Dealer) SessionReady(s *session.Session) {
	d.attach(s)
	d.signal()
}

// SessionDown implements session.Sink.
func (d *Dealer) SessionDown(s *session.Session, _ *api.ConnError) {
	d.detach(s)
}

// ReadActivated implements Socket.
func (d *Dealer) ReadActivated(_ *session.Session) { d.signal() }

// Send round-robins msg to the next writable attached peer.
func (d *Dealer) Send(msg message.Message) error {
	d.mu.Lock()
	ids := append([]string(nil), d.order...)
	start := d.sendCursor
	d.mu.Unlock()
	if len(ids) == 0 {
		msg.Close()
		return ErrNoPeer
	}
	for i := 0; i < len(ids); i++ {
		idx := (start + i) % len(ids)
		d.mu.Lock()
		s := d.sessions[ids[idx]]
		d.mu.Unlock()
		if s == nil || !s.FromSocket().CheckWrite() {
			continue
		}
		if s.FromSocket().Write(msg) {
			s.FromSocket().Flush()
			d.mu.Lock()
			d.sendCursor = (idx + 1) % len(ids)
			d.mu.Unlock()
			return nil
		}
	}
	msg.Close()
	return api.ErrWouldBlock
}

// Recv round-robins across attached peers' inbound pipes.
func (d *Dealer) Recv() (message.Message, error) {
	d.mu.Lock()
	ids := append([]string(nil), d.order...)
	start := d.recvCursor
	d.mu.Unlock()
	if len(ids) == 0 {
		return message.Message{}, api.ErrWouldBlock
	}
	for i := 0; i < len(ids); i++ {
		idx := (start + i) % len(ids)
		d.mu.Lock()
		s := d.sessions[ids[idx]]
		d.mu.Unlock()
		if s == nil {
			continue
		}
		if msg, ok := s.ToSocket().Read(); ok {
			d.mu.Lock()
			d.recvCursor = (idx + 1) % len(ids)
			d.mu.Unlock()
			return msg, nil
		}
	}
	return message.Message{}, api.ErrWouldBlock
}

// HasIn reports whether any attached peer has a message ready.
func (d *Dealer) HasIn() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sessions {
		if s.ToSocket().CheckRead() {
			return true
		}
	}
	return false
}

// HasOut reports whether any attached peer can accept a write.
func (d *Dealer) HasOut() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sessions {
		if s.FromSocket().CheckWrite() {
			return true
		}
	}
	return false
}
