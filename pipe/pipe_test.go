// File: pipe/pipe_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pipe

import (
	"testing"

	"github.com/zlinkio/zlink/message"
)

func newTestMsg(s string) message.Message {
	var m message.Message
	m.InitSize(len(s))
	copy(m.Data(), s)
	return m
}

func TestWriteReadFIFO(t *testing.T) {
	p := New(WithCapacity(16))
	for _, s := range []string{"a", "b", "c"} {
		if !p.Write(newTestMsg(s)) {
			t.Fatalf("Write(%q) failed", s)
		}
	}
	p.Flush()
	for _, want := range []string{"a", "b", "c"} {
		m, ok := p.Read()
		if !ok {
			t.Fatalf("expected a message for %q", want)
		}
		if string(m.Data()) != want {
			t.Errorf("got %q, want %q", m.Data(), want)
		}
	}
	if _, ok := p.Read(); ok {
		t.Error("expected empty pipe after draining")
	}
}

func TestHWMBlocksWriter(t *testing.T) {
	p := New(WithCapacity(16), WithHWM(2))
	if !p.Write(newTestMsg("1")) {
		t.Fatal("first write should succeed")
	}
	if !p.Write(newTestMsg("2")) {
		t.Fatal("second write should succeed")
	}
	if p.Write(newTestMsg("3")) {
		t.Fatal("third write should be blocked by HWM")
	}
	if p.CheckWrite() {
		t.Error("CheckWrite should report false at HWM")
	}
}

func TestActivateWriteUnblocksAtHWM(t *testing.T) {
	unblocked := false
	p := New(WithCapacity(16), WithHWM(1), WithWriterUnblocked(func() { unblocked = true }))
	p.Write(newTestMsg("1"))
	if p.Write(newTestMsg("2")) {
		t.Fatal("expected HWM block")
	}
	p.ApplyActivateWrite(1)
	if !unblocked {
		t.Error("expected writer-unblocked callback to fire")
	}
	if !p.Write(newTestMsg("2")) {
		t.Error("expected write to succeed after activate_write")
	}
}

func TestFlushCoalescesNotify(t *testing.T) {
	notifyCount := 0
	p := New(WithCapacity(16), WithReadActivated(func() { notifyCount++ }))
	p.Write(newTestMsg("a"))
	p.Flush()
	p.Write(newTestMsg("b"))
	p.Flush() // should be a no-op: prior notify still pending
	if notifyCount != 1 {
		t.Errorf("notifyCount = %d, want 1 (coalesced)", notifyCount)
	}
	p.ClearNotify()
	p.Flush()
	if notifyCount != 2 {
		t.Errorf("notifyCount = %d, want 2 after ClearNotify", notifyCount)
	}
}

func TestActivateWriteStepBatching(t *testing.T) {
	var lastAck uint64
	p := New(WithCapacity(16), WithActivateStep(2), WithWriteActivated(func(n uint64) { lastAck = n }))
	for i := 0; i < 3; i++ {
		p.Write(newTestMsg("x"))
	}
	p.Flush()
	p.Read()
	if lastAck != 0 {
		t.Errorf("expected no activation yet, lastAck=%d", lastAck)
	}
	p.Read()
	if lastAck != 2 {
		t.Errorf("expected activation at 2 reads, lastAck=%d", lastAck)
	}
	p.Read()
	if lastAck != 2 {
		t.Errorf("expected no further activation below step, lastAck=%d", lastAck)
	}
	p.FlushReadActivation()
	if lastAck != 3 {
		t.Errorf("expected forced activation at 3, lastAck=%d", lastAck)
	}
}

func TestTwoPartyTermination(t *testing.T) {
	var peerSawTerm, selfSawAck bool
	p := New(WithCapacity(4))
	p.onPipeTerm = func() { peerSawTerm = true }

	peer := New(WithCapacity(4))
	peer.onPipeTermAck = func() { selfSawAck = true }

	p.Term()
	if !peerSawTerm {
		t.Fatal("expected peer term callback")
	}

	peer.OnPeerTerm()
	peer.Ack()
	if !selfSawAck {
		t.Fatal("expected term-ack callback on originator")
	}

	p.OnPeerTermAck()
	if !p.Terminated() {
		t.Error("expected pipe to be terminated after ack observed")
	}
}

func TestHiccupNotifiesOwner(t *testing.T) {
	called := false
	p := New(WithCapacity(4), WithHiccupHandler(func() { called = true }))
	p.Hiccup()
	if !called {
		t.Error("expected hiccup handler to fire")
	}
}
