// File: transport/ws/ws_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zlinkio/zlink/api"
)

func TestDialHandlerRoundTrip(t *testing.T) {
	accepted := make(chan api.Transport, 1)
	h := NewHandler(func(tr api.Transport) { accepted <- tr }, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cli, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	if _, err := cli.WriteSome([]byte("hello")); err != nil {
		t.Fatalf("WriteSome: %v", err)
	}

	var peer api.Transport
	select {
	case peer = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never accepted connection")
	}
	defer peer.Close()

	buf := make([]byte, 5)
	n, err := peer.ReadSome(buf)
	if err != nil {
		t.Fatalf("ReadSome: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("got %q, want hello", buf[:n])
	}

	if !peer.Features().SupportsGatherWrite {
		t.Error("want SupportsGatherWrite")
	}
}

func TestAsyncWritevMergesHeaderAndBody(t *testing.T) {
	accepted := make(chan api.Transport, 1)
	h := NewHandler(func(tr api.Transport) { accepted <- tr }, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cli, err := Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer cli.Close()

	var peer api.Transport
	select {
	case peer = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never accepted connection")
	}
	defer peer.Close()

	done := make(chan error, 1)
	cli.AsyncWritev([]byte("head:"), []byte("body"), func(err error, n int) { done <- err })
	if err := <-done; err != nil {
		t.Fatalf("AsyncWritev: %v", err)
	}

	buf := make([]byte, 16)
	n, err := peer.ReadSome(buf)
	if err != nil {
		t.Fatalf("ReadSome: %v", err)
	}
	if string(buf[:n]) != "head:body" {
		t.Errorf("got %q, want head:body", buf[:n])
	}
}
