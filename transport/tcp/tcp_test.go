// File: transport/tcp/tcp_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"context"
	"testing"
	"time"
)

func TestDialListenRoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan struct{})
	go func() {
		srv, err := ln.Accept()
		if err != nil {
			return
		}
		buf := make([]byte, 5)
		srv.ReadSome(buf)
		srv.WriteSome(buf)
		close(accepted)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cli, err := Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	if _, err := cli.WriteSome([]byte("hello")); err != nil {
		t.Fatalf("WriteSome: %v", err)
	}
	buf := make([]byte, 5)
	n, err := cli.ReadSome(buf)
	if err != nil {
		t.Fatalf("ReadSome: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("got %q, want hello", buf[:n])
	}
	<-accepted
}
