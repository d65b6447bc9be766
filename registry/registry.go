// File: registry/registry.go
// Package registry is the auxiliary service-registry and discovery client
// spec.md §1 names as a "collaborator treated as external": a PUB/SUB
// application built on top of zlink rather than a new wire protocol.
// A Server binds a PUB socket and periodically announces every endpoint
// registered with it; a Client subscribes and keeps a local table of the
// endpoints it has heard about.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/socket"
	"github.com/zlinkio/zlink/zctx"
)

// Announcement is one named endpoint's wire representation, JSON-encoded
// as the PUB payload after the topic prefix. A tiny auxiliary protocol
// like this has no business inventing its own binary codec.
type Announcement struct {
	Name     string    `json:"name"`
	Endpoint string    `json:"endpoint"`
	Type     string    `json:"type"` // api.SocketType.String()
	Seq      uint64    `json:"seq"`
	At       time.Time `json:"at"`
}

const topicPrefix = "zlink.registry."

// Server owns the authoritative set of named endpoints and re-announces
// all of them over its PUB socket every interval until ctx is cancelled.
type Server struct {
	pub *socket.Pub
	log *control.Logger

	mu       sync.Mutex
	seq      uint64
	entries  map[string]Announcement
	interval time.Duration
}

// NewServer builds a Server bound to endpoint (typically "tcp://host:port"
// or "inproc://name") through zc, announcing every interval.
func NewServer(ctx context.Context, zc *zctx.Context, endpoint string, interval time.Duration, log *control.Logger) (*Server, error) {
	if log == nil {
		log = control.NopLogger()
	}
	pub := socket.NewPub(log)
	if interval <= 0 {
		interval = time.Second
	}
	s := &Server{pub: pub, log: log, entries: make(map[string]Announcement), interval: interval}

	var err error
	if isInproc(endpoint) {
		_, err = zc.BindInproc(ctx, inprocName(endpoint), api.SocketPub, pub)
	} else {
		err = zc.Listen(ctx, endpoint, api.SocketPub, pub)
	}
	if err != nil {
		return nil, err
	}

	go s.announceLoop(ctx)
	return s, nil
}

// Register adds or updates name's endpoint; the next announce tick will
// publish it (and every other registered entry) again.
func (s *Server) Register(name, endpoint string, typ api.SocketType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.entries[name] = Announcement{Name: name, Endpoint: endpoint, Type: typ.String(), Seq: s.seq, At: time.Now()}
}

// Unregister removes name; it simply stops being announced (no tombstone
// frame, matching the spec's "auxiliary, not rigorously specified" status).
func (s *Server) Unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
}

func (s *Server) announceLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.announceAll()
		}
	}
}

func (s *Server) announceAll() {
	s.mu.Lock()
	entries := make([]Announcement, 0, len(s.entries))
	for _, e := range s.entries {
		e.At = time.Now()
		entries = append(entries, e)
	}
	s.mu.Unlock()

	for _, e := range entries {
		body, err := json.Marshal(e)
		if err != nil {
			s.log.Warn("registry: marshal announcement failed", "name", e.Name, "err", err)
			continue
		}
		var m message.Message
		topic := topicPrefix + e.Name
		m.InitSize(len(topic) + 1 + len(body))
		buf := m.Data()
		n := copy(buf, topic)
		buf[n] = ' '
		copy(buf[n+1:], body)
		if err := s.pub.Send(m); err != nil {
			s.log.Debug("registry: announce send skipped", "name", e.Name, "err", err)
		}
	}
}

func isInproc(endpoint string) bool {
	return len(endpoint) >= 9 && endpoint[:9] == "inproc://"
}

func inprocName(endpoint string) string { return endpoint[9:] }
