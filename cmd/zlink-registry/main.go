// File: cmd/zlink-registry/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// zlink-registry runs the service-registry PUB server from the registry
// package, reading its static endpoint table from -entries at startup.
// Demo wiring only, per spec.md's Non-goal on elaborate CLI/demo UX.

package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/registry"
	"github.com/zlinkio/zlink/zctx"
)

// -entries takes "name=endpoint,name=endpoint" pairs to register at
// startup (the socket type announced is informational only here).
func main() {
	addr := flag.String("addr", "tcp://:9191", "registry PUB endpoint")
	entries := flag.String("entries", "", "comma-separated name=endpoint pairs to announce")
	interval := flag.Duration("interval", time.Second, "re-announce interval")
	flag.Parse()

	zlog := control.NewLogger(slog.LevelInfo)

	zc, err := zctx.New(zctx.DefaultOptions())
	if err != nil {
		log.Fatalf("zctx.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := registry.NewServer(ctx, zc, *addr, *interval, zlog)
	if err != nil {
		log.Fatalf("registry.NewServer(%s): %v", *addr, err)
	}

	for _, pair := range strings.Split(*entries, ",") {
		name, endpoint, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			continue
		}
		srv.Register(name, endpoint, api.SocketPair)
		zlog.Info("zlink-registry: registered", "name", name, "endpoint", endpoint)
	}

	zlog.Info("zlink-registry listening", "addr", *addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	zlog.Info("zlink-registry shutting down")
	cancel()
	if err := zc.Terminate(); err != nil {
		zlog.Warn("zctx.Terminate", "err", err)
	}
}
