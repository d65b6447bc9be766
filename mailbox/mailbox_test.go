// File: mailbox/mailbox_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package mailbox

import (
	"sync"
	"testing"
)

func TestPostSignalsOnEmptyToNonEmpty(t *testing.T) {
	m := New()
	select {
	case <-m.Signal():
		t.Fatal("should not be armed before any Post")
	default:
	}
	if !m.Post(Command{Type: CmdPlug}) {
		t.Fatal("Post failed")
	}
	select {
	case <-m.Signal():
	default:
		t.Fatal("expected signal after first Post")
	}
}

func TestDrainProcessesFIFO(t *testing.T) {
	m := New()
	m.Post(Command{Type: CmdAttach, Seqnum: 1})
	m.Post(Command{Type: CmdBind, Seqnum: 2})
	m.Post(Command{Type: CmdActivateRead, Seqnum: 3})

	var seen []CommandType
	n := m.Drain(func(c Command) { seen = append(seen, c.Type) })
	if n != 3 {
		t.Fatalf("Drain processed %d, want 3", n)
	}
	want := []CommandType{CmdAttach, CmdBind, CmdActivateRead}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("seen[%d] = %v, want %v", i, seen[i], w)
		}
	}
}

func TestDrainRearmsSignal(t *testing.T) {
	m := New()
	m.Post(Command{Type: CmdStop})
	m.Drain(func(Command) {})
	m.Post(Command{Type: CmdStop})
	select {
	case <-m.Signal():
	default:
		t.Fatal("expected re-armed signal after Drain then Post")
	}
}

func TestConcurrentProducers(t *testing.T) {
	m := NewCapacity(4096)
	const producers = 8
	const perProducer = 100
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !m.Post(Command{Type: CmdActivateWrite, Seqnum: uint64(id*perProducer + i)}) {
				}
			}
		}(p)
	}
	wg.Wait()

	total := 0
	for total < producers*perProducer {
		total += m.Drain(func(Command) {})
	}
	if total != producers*perProducer {
		t.Errorf("total drained = %d, want %d", total, producers*perProducer)
	}
}
