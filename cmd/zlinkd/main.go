// File: cmd/zlinkd/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// zlinkd is a minimal ROUTER echo daemon: it binds one endpoint, accepts
// DEALER/REQ-style peers, and echoes every frame back to its sender.
// Demo wiring only, per spec.md's Non-goal on elaborate CLI/demo UX.

package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/message"
	"github.com/zlinkio/zlink/socket"
	"github.com/zlinkio/zlink/zctx"
)

func main() {
	addr := flag.String("addr", "tcp://:9090", "ROUTER bind endpoint (tcp://host:port or ipc://path)")
	threads := flag.Int("io-threads", 1, "zctx I/O thread pool size")
	flag.Parse()

	zlog := control.NewLogger(slog.LevelInfo)

	opts := zctx.DefaultOptions()
	opts.IOThreads = *threads
	opts.Log = zlog
	opts.Metrics = control.NewMetricsRegistry()

	zc, err := zctx.New(opts)
	if err != nil {
		log.Fatalf("zctx.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	router := socket.NewRouter(zlog)

	if err := zc.Listen(ctx, *addr, api.SocketRouter, router); err != nil {
		log.Fatalf("Listen(%s): %v", *addr, err)
	}
	zlog.Info("zlinkd listening", "addr", *addr)

	go echoLoop(ctx, router, zlog)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	zlog.Info("zlinkd shutting down")
	cancel()
	if err := zc.Terminate(); err != nil {
		zlog.Warn("zctx.Terminate", "err", err)
	}
}

// echoLoop reads [routing-id, body] pairs off router and writes them
// straight back to the same sender.
func echoLoop(ctx context.Context, router *socket.Router, zlog *control.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		idFrame, err := router.Recv()
		if err == api.ErrWouldBlock {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Millisecond):
			}
			continue
		}
		if err != nil {
			return
		}
		body, err := router.Recv()
		if err != nil {
			continue
		}

		idFrame.SetFlags(message.FlagRoutingID)
		if err := router.Send(idFrame); err != nil {
			zlog.Debug("zlinkd: reply addressing failed", "err", err)
			body.Close()
			continue
		}
		if err := router.Send(body); err != nil {
			zlog.Debug("zlinkd: reply body send failed", "err", err)
		}
	}
}
