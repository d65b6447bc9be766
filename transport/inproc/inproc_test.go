// File: transport/inproc/inproc_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package inproc

import "testing"

func TestPairExchangesBytes(t *testing.T) {
	a, b := Pair()
	defer a.Close()
	defer b.Close()

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 5)
		n, err := b.ReadSome(buf)
		if err != nil {
			t.Errorf("ReadSome: %v", err)
		}
		if string(buf[:n]) != "hello" {
			t.Errorf("got %q, want hello", buf[:n])
		}
		close(done)
	}()

	if _, err := a.WriteSome([]byte("hello")); err != nil {
		t.Fatalf("WriteSome: %v", err)
	}
	<-done
}
