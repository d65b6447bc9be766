// File: socket/router.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ROUTER: exposes an explicit routing-id identity map and a fair-queued
// Recv across attached peers (spec scenario S1, DEALER<->ROUTER). Send
// addresses by routing-id frame; Recv prepends the sender's routing-id.
// The fair-queue rotation is backed by eapache/queue, matching the
// teacher's own choice of that library for its (otherwise unwired) task
// queue.

package socket

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/session"
)

// Router implements Socket for api.SocketRouter.
type Router struct {
	base

	idMu        sync.Mutex
	byRoutingID map[string]*session.Session // routing key -> session
	keyByID     map[string]string           // session id -> routing key

	readyMu sync.Mutex
	ready   *queue.Queue // session ids awaiting a Recv drain turn
	queued  map[string]bool

	sendMu      sync.Mutex
	pendingDest *session.Session

	recvMu        sync.Mutex
	activeRecv    string
	needAddrFrame bool
}

// NewRouter builds an unattached ROUTER socket.
func NewRouter(log *control.Logger) *Router {
	return &Router{
		base:        newBase(api.SocketRouter, log),
		byRoutingID: make(map[string]*session.Session),
		keyByID:     make(map[string]string),
		ready:       queue.New(),
		queued:      make(map[string]bool),
	}
}

func (r *Router) Type() api.SocketType { return api.SocketRouter }

// routingKey derives the identity ROUTER addresses a peer by: the routing-
// id it announced in HELLO, or its session id if it announced none.
func routingKey(s *session.Session) string {
	if id := s.PeerRoutingID(); len(id) > 0 {
		return string(id)
	}
	return s.ID()
}

// SessionReady implements session.Sink.
func (r *Router) SessionReady(s *session.Session) {
	r.attach(s)
	key := routingKey(s)
	r.idMu.Lock()
	r.byRoutingID[key] = s
	r.keyByID[s.ID()] = key
	r.idMu.Unlock()
}

// SessionDown implements session.Sink.
func (r *Router) SessionDown(s *session.Session, _ *api.ConnError) {
	r.idMu.Lock()
	if key, ok := r.keyByID[s.ID()]; ok {
		delete(r.byRoutingID, key)
		delete(r.keyByID, s.ID())
	}
	r.idMu.Unlock()

	r.sendMu.Lock()
	if r.pendingDest == s {
		r.pendingDest = nil
	}
	r.sendMu.Unlock()

	r.detach(s)
}

// ReadActivated enqueues s for its fair-queue Recv turn.
func (r *Router) ReadActivated(s *session.Session) {
	r.readyMu.Lock()
	if !r.queued[s.ID()] {
		r.queued[s.ID()] = true
		r.ready.Add(s.ID())
	}
	r.readyMu.Unlock()
	r.signal()
}

// Send addresses msg by routing-id: the frame carrying message.FlagRoutingID
// names the destination and is consumed without being forwarded; every
// following frame up to (and including) the final non-More frame is
// written verbatim to that peer.
func (r *Router) Send(msg message.Message) error {
	if msg.Flags()&message.FlagRoutingID != 0 {
		key := string(msg.Data())
		msg.Close()
		r.idMu.Lock()
		dest := r.byRoutingID[key]
		r.idMu.Unlock()
		if dest == nil {
			return ErrUnroutable
		}
		r.sendMu.Lock()
		r.pendingDest = dest
		r.sendMu.Unlock()
		return nil
	}

	r.sendMu.Lock()
	dest := r.pendingDest
	if !msg.More() {
		r.pendingDest = nil
	}
	r.sendMu.Unlock()

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

// Recv returns the next frame: either a synthetic routing-id frame
// identifying the sender of a newly-selected peer, or the next payload
// frame of the message currently being drained from that peer.
func (r *Router) Recv() (message.Message, error) {
	r.recvMu.Lock()
	active := r.activeRecv
	needAddr := r.needAddrFrame
	r.recvMu.Unlock()

	if active != "" {
		r.mu.Lock()
		sess := r.sessions[active]
		r.mu.Unlock()
		if sess != nil {
			if needAddr {
				r.recvMu.Lock()
				r.needAddrFrame = false
				r.recvMu.Unlock()
				return r.addrFrame(sess), nil
			}
			if msg, ok := sess.ToSocket().Read(); ok {
				if !msg.More() {
					r.recvMu.Lock()
					r.activeRecv = ""
					r.recvMu.Unlock()
				}
				return msg, nil
			}
		}
		r.recvMu.Lock()
		r.activeRecv = ""
		r.recvMu.Unlock()
	}

	for {
		r.readyMu.Lock()
		if r.ready.Length() == 0 {
			r.readyMu.Unlock()
			return message.Message{}, api.ErrWouldBlock
		}
		id := r.ready.Remove().(string)
		r.queued[id] = false
		r.readyMu.Unlock()

		r.mu.Lock()
		sess := r.sessions[id]
		r.mu.Unlock()
		if sess == nil || !sess.ToSocket().CheckRead() {
			continue
		}
		r.recvMu.Lock()
		r.activeRecv = id
		r.needAddrFrame = true
		r.recvMu.Unlock()
		return r.Recv()
	}
}

func (r *Router) addrFrame(sess *session.Session) message.Message {
	key := routingKey(sess)
	var m message.Message
	m.InitSize(len(key))
	copy(m.Data(), key)
	m.SetFlags(message.FlagRoutingID | message.FlagMore)
	return m
}

// HasIn reports whether Recv has a frame ready without blocking.
func (r *Router) HasIn() bool {
	r.recvMu.Lock()
	active := r.activeRecv
	r.recvMu.Unlock()
	if active != "" {
		return true
	}
	r.readyMu.Lock()
	defer r.readyMu.Unlock()
	return r.ready.Length() > 0
}

// HasOut reports whether at least one routable peer is attached.
func (r *Router) HasOut() bool {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	return len(r.byRoutingID) > 0
}
