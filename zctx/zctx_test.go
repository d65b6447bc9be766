// File: zctx/zctx_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package zctx

import (
	"context"
	"testing"
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/message"
)

func textMsg(s string) message.Message {
	var m message.Message
	m.InitSize(len(s))
	copy(m.Data(), s)
	return m
}

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

func TestContextInprocPairRoundTrip(t *testing.T) {
	c, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := c.OpenSocket(api.SocketPair)
	if err != nil {
		t.Fatalf("OpenSocket: %v", err)
	}
	cli, err := c.OpenSocket(api.SocketPair)
	if err != nil {
		t.Fatalf("OpenSocket: %v", err)
	}

	if _, err := c.BindInproc(ctx, "rt", api.SocketPair, srv); err != nil {
		t.Fatalf("BindInproc: %v", err)
	}
	if _, err := c.ConnectInproc(ctx, "rt", api.SocketPair, cli); err != nil {
		t.Fatalf("ConnectInproc: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool { return cli.HasOut() })
	if err := cli.Send(textMsg("ping")); err != nil {
		t.Fatalf("cli.Send: %v", err)
	}

	var got message.Message
	waitUntil(t, 2*time.Second, func() bool {
		m, err := srv.Recv()
		if err != nil {
			return false
		}
		got = m
		return true
	})
	if string(got.Data()) != "ping" {
		t.Fatalf("srv recv = %q, want ping", got.Data())
	}

	cancel()
	if err := c.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
}

func TestContextChooseThreadLowestLoad(t *testing.T) {
	c, err := New(Options{IOThreads: 3, EngineOptions: DefaultOptions().EngineOptions, ShutdownGrace: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Terminate()

	c.threads[0].incLoad()
	c.threads[0].incLoad()
	c.threads[1].incLoad()

	got := c.chooseThread(0)
	if got != c.threads[2] {
		t.Fatalf("chooseThread picked thread %d, want the unloaded thread 2", got.idx)
	}
}

func TestContextControlReportsStatsAndConfig(t *testing.T) {
	c, err := New(Options{IOThreads: 2, EngineOptions: DefaultOptions().EngineOptions, ShutdownGrace: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Terminate()

	rt := c.Control()
	stats := rt.Stats()
	if stats["io_threads"] != 2 {
		t.Fatalf("Stats()[io_threads] = %v, want 2", stats["io_threads"])
	}

	rt.SetConfig(map[string]any{"log_level": "debug"})
	if got := rt.GetConfig()["log_level"]; got != "debug" {
		t.Fatalf("GetConfig()[log_level] = %v, want debug", got)
	}

	var probed bool
	rt.RegisterDebugProbe("seen", func() any { probed = true; return "ok" })
	if dump := rt.DumpState()["seen"]; dump != "ok" || !probed {
		t.Fatalf("DumpState()[seen] = %v, probed=%v", dump, probed)
	}
}

func TestInprocRegistryConnectWithoutBindFails(t *testing.T) {
	c, err := New(DefaultOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Terminate()

	if _, err := c.reg.Connect(context.Background(), "nope"); err != api.ErrNotFound {
		t.Fatalf("Connect to unbound name: err=%v, want ErrNotFound", err)
	}
}
