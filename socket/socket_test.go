// File: socket/socket_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package socket

import (
	"context"
	"testing"
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/engine"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/pipe"
	"github.com/zlinkio/zlink/session"
	"github.com/zlinkio/zlink/transport/inproc"
)

func textMsg(s string, more bool) message.Message {
	var m message.Message
	m.InitSize(len(s))
	copy(m.Data(), s)
	if more {
		m.SetFlags(message.FlagMore)
	}
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

func onceTransport(t api.Transport) session.ConnectFunc {
	used := false
	return func(_ context.Context) (api.Transport, error) {
		if used {
			return nil, api.ErrNotSupported
		}
		used = true
		return t, nil
	}
}

// TestPairHighWaterMark exercises scenario S3: a PAIR socket's outbound
// pipe rejects writes once HWM is reached, and the messages queued before
// that still reach the peer.
func TestPairHighWaterMark(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := inproc.Pair()
	srv := NewPair(nil)
	cli := NewPair(nil)

	hwmOpt := pipe.WithHWM(2)

	session.NewPassive(session.Config{
		ID: "srv", Endpoint: "inproc://pair", LocalType: api.SocketPair,
		EngineOptions: engine.DefaultOptions(), Sink: srv,
		PipeOptions: append(srv.PipeOptions(), hwmOpt),
	}, b)

	session.NewActive(session.Config{
		ID: "cli", Endpoint: "inproc://pair", LocalType: api.SocketPair,
		EngineOptions: engine.DefaultOptions(), Sink: cli,
		PipeOptions: append(cli.PipeOptions(), hwmOpt),
	}, onceTransport(a), 10*time.Millisecond, 50*time.Millisecond)

	go srv.Serve(ctx, srv)
	go cli.Serve(ctx, cli)

	waitUntil(t, 2*time.Second, func() bool { return cli.peerCount() == 1 })
	waitUntil(t, 2*time.Second, func() bool { return srv.peerCount() == 1 })

	// Fill the outbound pipe to HWM without the peer draining.
	sent := 0
	for i := 0; i < 10; i++ {
		if err := cli.Send(textMsg("x", false)); err != nil {
			break
		}
		sent++
	}
	if sent == 0 {
		t.Fatal("expected at least one send to succeed before HWM")
	}
	if err := cli.Send(textMsg("overflow", false)); err == nil {
		t.Fatalf("expected HWM to reject a send after %d messages queued", sent)
	}

	// The server side must receive at least one of the queued messages.
	waitUntil(t, 2*time.Second, func() bool {
		_, err := srv.Recv()
		return err == nil
	})
}

// TestDealerRouterRoundTrip exercises scenario S1: a DEALER connects to a
// ROUTER, the ROUTER learns the DEALER's routing-id, and addresses a reply
// back to it by that id.
func TestDealerRouterRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := inproc.Pair()
	router := NewRouter(nil)
	dealer := NewDealer(nil)

	session.NewPassive(session.Config{
		ID: "router-side", Endpoint: "inproc://s1", LocalType: api.SocketRouter,
		LocalRoutingID: []byte("R"), EngineOptions: engine.DefaultOptions(), Sink: router,
		PipeOptions: router.PipeOptions(),
	}, b)

	session.NewActive(session.Config{
		ID: "dealer-side", Endpoint: "inproc://s1", LocalType: api.SocketDealer,
		LocalRoutingID: []byte("D1"), EngineOptions: engine.DefaultOptions(), Sink: dealer,
		PipeOptions: dealer.PipeOptions(),
	}, onceTransport(a), 10*time.Millisecond, 50*time.Millisecond)

	go router.Serve(ctx, router)
	go dealer.Serve(ctx, dealer)

	waitUntil(t, 2*time.Second, func() bool { return router.HasOut() })

	if err := dealer.Send(textMsg("ping", false)); err != nil {
		t.Fatalf("dealer send: %v", err)
	}

	var idFrame, body message.Message
	waitUntil(t, 2*time.Second, func() bool {
		m, err := router.Recv()
		if err != nil {
			return false
		}
		idFrame = m
		return true
	})
	if idFrame.Flags()&message.FlagRoutingID == 0 {
		t.Fatal("expected first router recv to be a routing-id frame")
	}
	if string(idFrame.Data()) != "D1" {
		t.Fatalf("routing-id = %q, want D1", idFrame.Data())
	}

	waitUntil(t, 2*time.Second, func() bool {
		m, err := router.Recv()
		if err != nil {
			return false
		}
		body = m
		return true
	})
	if string(body.Data()) != "ping" {
		t.Fatalf("body = %q, want ping", body.Data())
	}

	// Address a reply back to D1.
	addr := textMsg("D1", false)
	addr.SetFlags(message.FlagRoutingID)
	if err := router.Send(addr); err != nil {
		t.Fatalf("router addr send: %v", err)
	}
	if err := router.Send(textMsg("pong", false)); err != nil {
		t.Fatalf("router body send: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		m, err := dealer.Recv()
		if err != nil {
			return false
		}
		if string(m.Data()) != "pong" {
			t.Fatalf("dealer recv = %q, want pong", m.Data())
		}
		return true
	})
}

// TestPubSubFilter exercises scenario S2: a SUB subscribed to "a" receives
// messages published under topic "a" and not those published under "b".
func TestPubSubFilter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := inproc.Pair()
	pub := NewPub(nil)
	sub := NewSub(nil)

	session.NewPassive(session.Config{
		ID: "pub-side", Endpoint: "inproc://s2", LocalType: api.SocketPub,
		EngineOptions: engine.DefaultOptions(), Sink: pub,
		PipeOptions: pub.PipeOptions(),
	}, b)

	session.NewActive(session.Config{
		ID: "sub-side", Endpoint: "inproc://s2", LocalType: api.SocketSub,
		EngineOptions: engine.DefaultOptions(), Sink: sub,
		PipeOptions: sub.PipeOptions(),
	}, onceTransport(a), 10*time.Millisecond, 50*time.Millisecond)

	go pub.Serve(ctx, pub)
	go sub.Serve(ctx, sub)

	waitUntil(t, 2*time.Second, func() bool { return pub.peerCount() == 1 && sub.peerCount() == 1 })

	sub.Subscribe([]byte("a"))

	// Give the subscribe control frame time to reach PUB's trie.
	waitUntil(t, 2*time.Second, func() bool {
		pub.mu.Lock()
		t := pub.tries["pub-side"]
		pub.mu.Unlock()
		return t != nil && t.Matches([]byte("a"))
	})

	if err := pub.Send(textMsg("b-topic-msg", false)); err != nil {
		t.Fatalf("pub send (b): %v", err)
	}
	if err := pub.Send(textMsg("a-topic-msg", false)); err != nil {
		t.Fatalf("pub send (a): %v", err)
	}

	var got message.Message
	waitUntil(t, 2*time.Second, func() bool {
		m, err := sub.Recv()
		if err != nil {
			return false
		}
		got = m
		return true
	})
	if string(got.Data()) != "a-topic-msg" {
		t.Fatalf("sub recv = %q, want a-topic-msg (b-topic should have been filtered)", got.Data())
	}

	if _, err := sub.Recv(); err != api.ErrWouldBlock {
		t.Fatalf("expected no further messages, got err=%v", err)
	}
}
