// File: registry/registry_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/zctx"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition never became true")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestServerClientAnnounceRoundTrip(t *testing.T) {
	zc, err := zctx.New(zctx.DefaultOptions())
	if err != nil {
		t.Fatalf("zctx.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer zc.Terminate()

	srv, err := NewServer(ctx, zc, "inproc://registry-test", 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv.Register("orders", "tcp://orders.internal:5555", api.SocketRouter)

	cli, err := NewClient(ctx, zc, "inproc://registry-test", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		a, ok := cli.Lookup("orders")
		return ok && a.Endpoint == "tcp://orders.internal:5555"
	})

	a, _ := cli.Lookup("orders")
	if a.Type != api.SocketRouter.String() {
		t.Fatalf("announced type = %q, want %q", a.Type, api.SocketRouter.String())
	}
}
