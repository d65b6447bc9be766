// File: engine/engine_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/transport/inproc"
)

// fakeSession is a minimal Session backed by plain slices guarded by a
// mutex, good enough to drive an Engine from a test goroutine.
type fakeSession struct {
	mu sync.Mutex

	outbox []message.Message // PullMsg source
	inbox  []message.Message // PushMsg sink

	readyOnce sync.Once
	readyCh   chan struct{}

	errCh chan *api.ConnError

	peerRoutingID []byte

	eng *Engine
}

func newFakeSession() *fakeSession {
	return &fakeSession{readyCh: make(chan struct{}), errCh: make(chan *api.ConnError, 1)}
}

func (s *fakeSession) PullMsg() (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outbox) == 0 {
		return message.Message{}, api.ErrWouldBlock
	}
	m := s.outbox[0]
	s.outbox = s.outbox[1:]
	return m, nil
}

func (s *fakeSession) PushMsg(msg message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, msg)
	return nil
}

func (s *fakeSession) Flush() {}

func (s *fakeSession) EngineReady() {
	s.readyOnce.Do(func() { close(s.readyCh) })
}

func (s *fakeSession) EngineError(handshaked bool, reason *api.ConnError) {
	select {
	case s.errCh <- reason:
	default:
	}
}

func (s *fakeSession) SetPeerRoutingID(id []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerRoutingID = append([]byte(nil), id...)
}

func (s *fakeSession) SetPeerProps(props map[string]string) {}

func (s *fakeSession) enqueue(body []byte) {
	s.mu.Lock()
	var m message.Message
	m.InitSize(len(body))
	copy(m.Data(), body)
	s.outbox = append(s.outbox, m)
	s.mu.Unlock()
	s.eng.RestartOutput()
}

func (s *fakeSession) drainInbox() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.inbox
	s.inbox = nil
	return out
}

func waitReady(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("handshake did not complete in time")
	}
}

func TestHandshakeAndRoundTrip(t *testing.T) {
	a, b := inproc.Pair()
	sa, sb := newFakeSession(), newFakeSession()
	opts := DefaultOptions()

	ea := New(a, api.HandshakeClient, api.SocketPair, []byte("A"), sa, opts, nil, "a")
	eb := New(b, api.HandshakeServer, api.SocketPair, []byte("B"), sb, opts, nil, "b")
	sa.eng, sb.eng = ea, eb

	ctx := context.Background()
	ea.Plug(ctx)
	eb.Plug(ctx)

	waitReady(t, sa.readyCh)
	waitReady(t, sb.readyCh)

	if string(sa.peerRoutingID) != "B" {
		t.Errorf("a's peer routing id = %q, want B", sa.peerRoutingID)
	}
	if string(sb.peerRoutingID) != "A" {
		t.Errorf("b's peer routing id = %q, want A", sb.peerRoutingID)
	}

	sa.enqueue([]byte("hello from a"))

	deadline := time.After(2 * time.Second)
	for {
		msgs := sb.drainInbox()
		if len(msgs) > 0 {
			if string(msgs[0].Data()) != "hello from a" {
				t.Fatalf("got %q, want %q", msgs[0].Data(), "hello from a")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("message never arrived")
		case <-time.After(10 * time.Millisecond):
		}
	}

	ea.Terminate()
	eb.Terminate()
}

func TestIncompatibleSocketTypesFail(t *testing.T) {
	a, b := inproc.Pair()
	sa, sb := newFakeSession(), newFakeSession()
	opts := DefaultOptions()

	ea := New(a, api.HandshakeClient, api.SocketPub, []byte("A"), sa, opts, nil, "a")
	eb := New(b, api.HandshakeServer, api.SocketDealer, []byte("B"), sb, opts, nil, "b")
	sa.eng, sb.eng = ea, eb

	ctx := context.Background()
	ea.Plug(ctx)
	eb.Plug(ctx)

	select {
	case reason := <-sa.errCh:
		if reason.Class != api.ErrClassProtocol {
			t.Errorf("class = %v, want protocol_error", reason.Class)
		}
	case <-sb.errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a protocol error from socket-type mismatch")
	}
}
