// File: zctx/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package zctx

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/mailbox"
	"github.com/zlinkio/zlink/session"
	"github.com/zlinkio/zlink/socket"
	"github.com/zlinkio/zlink/transport/ipc"
	"github.com/zlinkio/zlink/transport/tcp"
)

// Context is the process-wide object of spec §4.8: it owns the fixed I/O
// thread pool, the inproc endpoint registry, and the tunables every socket
// opened through it inherits. Application code constructs exactly one.
type Context struct {
	opts Options
	log  *control.Logger

	threads []*ioThread
	reg     *inprocRegistry
	term    *terminator
	mgr     *session.Manager
	rt      *control.Runtime

	mu     sync.Mutex
	closed bool

	servedMu sync.Mutex
	served   map[socket.Socket]bool
}

// New builds a Context with the given tunables, starting its I/O thread
// pool immediately.
func New(opts Options) (*Context, error) {
	if opts.IOThreads <= 0 {
		opts.IOThreads = 1
	}
	if opts.Log == nil {
		opts.Log = control.NopLogger()
	}
	log := opts.Log.With("component", "zctx")

	c := &Context{
		opts: opts,
		log:  log,
		reg:    newInprocRegistry(),
		term:   newTerminator(),
		mgr:    session.NewManager(16),
		rt:     control.NewRuntime(),
		served: make(map[socket.Socket]bool),
	}
	for i := 0; i < opts.IOThreads; i++ {
		t, err := newIOThread(i, log)
		if err != nil {
			c.shutdownThreads()
			return nil, fmt.Errorf("zctx: start io thread %d: %w", i, err)
		}
		c.threads = append(c.threads, t)
		go t.run(c.handleCommand)
	}
	c.rt.SetStatsFn(c.stats)
	c.rt.RegisterDebugProbe("io_thread_load", c.threadLoads)
	control.RegisterPlatformProbes(c.rt.DebugProbes)
	return c, nil
}

// Control returns the live introspection surface (config store, debug
// probes, aggregated stats) for this Context.
func (c *Context) Control() *control.Runtime { return c.rt }

// stats backs Runtime.Stats: outstanding registered objects plus per-thread
// load, cheap enough to compute on every call.
func (c *Context) stats() map[string]any {
	return map[string]any{
		"outstanding":  c.term.Count(),
		"io_threads":   len(c.threads),
		"thread_loads": c.threadLoads(),
	}
}

func (c *Context) threadLoads() any {
	loads := make([]int64, len(c.threads))
	for i, t := range c.threads {
		loads[i] = t.load.Load()
	}
	return loads
}

// handleCommand is the placeholder process_* dispatch every io thread
// drains its mailbox into. Today only CmdTermReq carries real behavior
// (decrement the terminator's refcount); the rest of the union (spec §4.7)
// is reserved for a future direct-registration transport that posts
// attach/bind/pipe-term commands instead of driving sessions from its own
// goroutine as transports do now.
func (c *Context) handleCommand(cmd mailbox.Command) {
	switch cmd.Type {
	case mailbox.CmdTermReq:
		c.term.Unregister(cmd.Seqnum)
	default:
		c.log.Debug("unhandled io-thread command", "type", cmd.Type.String())
	}
}

// chooseThread picks the least-loaded thread whose affinity bit is set in
// mask, or across all threads when mask is zero (spec §4.8: "lowest-load
// first, modulo an affinity bitmask").
func (c *Context) chooseThread(mask uint64) *ioThread {
	var best *ioThread
	var bestLoad int64
	for _, t := range c.threads {
		if mask != 0 && mask&t.affMask == 0 {
			continue
		}
		l := t.load.Load()
		if best == nil || l < bestLoad {
			best, bestLoad = t, l
		}
	}
	if best == nil && len(c.threads) > 0 {
		best = c.threads[0]
	}
	return best
}

// OpenSocket builds an unattached socket.Socket of typ, logged under this
// Context's logger.
func (c *Context) OpenSocket(typ api.SocketType) (socket.Socket, error) {
	switch typ {
	case api.SocketPair:
		return socket.NewPair(c.log), nil
	case api.SocketPub:
		return socket.NewPub(c.log), nil
	case api.SocketSub:
		return socket.NewSub(c.log), nil
	case api.SocketXPub:
		return socket.NewXPub(c.log), nil
	case api.SocketXSub:
		return socket.NewXSub(c.log), nil
	case api.SocketDealer:
		return socket.NewDealer(c.log), nil
	case api.SocketRouter:
		return socket.NewRouter(c.log), nil
	case api.SocketStream:
		return socket.NewStream(c.log), nil
	default:
		return nil, api.ErrNotSupported
	}
}

// ensureServing starts sock's wakeup loop (base.Serve, via the Socket
// interface) the first time any Bind/Connect call wires a session to it;
// later calls for the same socket are no-ops, since one loop already drains
// every attached session.
func (c *Context) ensureServing(ctx context.Context, sock socket.Socket) {
	c.servedMu.Lock()
	defer c.servedMu.Unlock()
	if c.served[sock] {
		return
	}
	c.served[sock] = true
	go sock.Serve(ctx, sock)
}

// sessionConfig builds the session.Config shared by Bind and Connect,
// tagging every session with a fresh uuid so each one opened through a
// Context is traceable even across sockets that never set api.OptRoutingID
// themselves. A non-zero MaxMsgSize overrides EngineOptions.MaxBodyLen.
func (c *Context) sessionConfig(endpoint string, typ api.SocketType, sock socket.Socket, routingID []byte) session.Config {
	eo := c.opts.EngineOptions
	if c.opts.MaxMsgSize != 0 {
		eo.MaxBodyLen = c.opts.MaxMsgSize
	}
	return session.Config{
		ID:             uuid.NewString(),
		Endpoint:       endpoint,
		LocalType:      typ,
		LocalRoutingID: routingID,
		EngineOptions:  eo,
		Log:            c.log,
		Sink:           sock,
		PipeOptions:    sock.PipeOptions(),
		Metrics:        c.opts.Metrics,
	}
}

// BindInproc registers name in the in-process registry and spawns a
// goroutine that accepts connecters against sock for as long as ctx runs.
// This is the concrete backing for spec §4.8's "registry of in-process
// endpoint names -> bound sockets".
func (c *Context) BindInproc(ctx context.Context, name string, typ api.SocketType, sock socket.Socket) (*InprocListener, error) {
	l, err := c.reg.Bind(name)
	if err != nil {
		return nil, err
	}
	c.ensureServing(ctx, sock)
	seq := c.term.Register("inproc-listener:" + name)
	go func() {
		defer c.term.Unregister(seq)
		defer c.reg.Unbind(name)
		for {
			transport, err := l.Accept(ctx)
			if err != nil {
				return
			}
			cfg := c.sessionConfig("inproc://"+name, typ, sock, nil)
			c.mgr.Put(session.NewPassive(cfg, transport))
		}
	}()
	return l, nil
}

// ConnectInproc dials a bound inproc name and wires the resulting session
// to sock. Unlike a real carrier there is nothing to retry: either the name
// is bound right now or it returns api.ErrNotFound immediately.
func (c *Context) ConnectInproc(ctx context.Context, name string, typ api.SocketType, sock socket.Socket) (*session.Session, error) {
	transport, err := c.reg.Connect(ctx, name)
	if err != nil {
		return nil, err
	}
	c.ensureServing(ctx, sock)
	cfg := c.sessionConfig("inproc://"+name, typ, sock, nil)
	s := session.NewPassive(cfg, transport)
	c.mgr.Put(s)
	return s, nil
}

// Listen binds endpoint (tcp://host:port or ipc://path) and accepts
// sessions for sock until ctx is cancelled. "inproc://" names must go
// through BindInproc instead, since they have no OS listener to Accept on;
// ws/wss/tls carriers need extra per-deployment config (TLS certs, origin
// checks) and so are wired directly via session.NewPassive by callers that
// hold that config, rather than through this generic dispatch.
func (c *Context) Listen(ctx context.Context, endpoint string, typ api.SocketType, sock socket.Socket) error {
	scheme, addr, ok := strings.Cut(endpoint, "://")
	if !ok {
		return api.ErrInvalidArgument
	}
	var accept func() (api.Transport, error)
	var closeListener func() error
	switch scheme {
	case "tcp":
		ln, err := tcp.Listen(addr)
		if err != nil {
			return err
		}
		accept, closeListener = ln.Accept, ln.Close
	case "ipc":
		ln, err := ipc.Listen(addr)
		if err != nil {
			return err
		}
		accept, closeListener = ln.Accept, ln.Close
	default:
		return fmt.Errorf("zctx: Listen: unsupported scheme %q: %w", scheme, api.ErrNotSupported)
	}

	c.ensureServing(ctx, sock)
	seq := c.term.Register("listener:" + endpoint)
	go func() {
		defer c.term.Unregister(seq)
		defer closeListener()
		go func() { <-ctx.Done(); closeListener() }()
		for {
			transport, err := accept()
			if err != nil {
				return
			}
			cfg := c.sessionConfig(endpoint, typ, sock, nil)
			c.mgr.Put(session.NewPassive(cfg, transport))
		}
	}()
	return nil
}

// Connect dials endpoint (tcp://host:port or ipc://path) and wires a
// reconnecting active session to sock, using thread assigned by affinity
// for load reporting. See Listen's doc comment for the ws/wss/tls carve-out.
func (c *Context) Connect(ctx context.Context, endpoint string, typ api.SocketType, sock socket.Socket, affinity uint64) (*session.Session, error) {
	scheme, addr, ok := strings.Cut(endpoint, "://")
	if !ok {
		return nil, api.ErrInvalidArgument
	}
	var dial session.ConnectFunc
	switch scheme {
	case "tcp":
		dial = func(dctx context.Context) (api.Transport, error) { return tcp.Dial(dctx, addr) }
	case "ipc":
		dial = func(dctx context.Context) (api.Transport, error) { return ipc.Dial(dctx, addr) }
	case "inproc":
		return c.ConnectInproc(ctx, addr, typ, sock)
	default:
		return nil, fmt.Errorf("zctx: Connect: unsupported scheme %q: %w", scheme, api.ErrNotSupported)
	}

	c.ensureServing(ctx, sock)
	t := c.chooseThread(affinity)
	if t != nil {
		t.incLoad()
	}
	cfg := c.sessionConfig(endpoint, typ, sock, nil)
	s := session.NewActive(cfg, dial, 100*time.Millisecond, 5*time.Second)
	c.mgr.Put(s)
	seq := c.term.Register("session:" + cfg.ID)
	go func() {
		<-ctx.Done()
		c.mgr.Delete(s.ID())
		if t != nil {
			t.decLoad()
		}
		c.term.Unregister(seq)
	}()
	return s, nil
}

// Session looks up a session previously handed out by this Context by ID.
func (c *Context) Session(id string) (*session.Session, bool) { return c.mgr.Get(id) }

// Terminate stops the I/O thread pool once every registered listener and
// session has unregistered, or opts.ShutdownGrace elapses first. Any
// session still in the manager once the grace period expires (a caller
// that never cancelled the context it passed to Connect/Listen) is
// terminated directly rather than left dangling past pool shutdown.
func (c *Context) Terminate() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ShutdownGrace)
	defer cancel()
	err := c.term.Wait(ctx)
	c.mgr.Range(func(s *session.Session) { s.Terminate() })
	c.shutdownThreads()
	return err
}

func (c *Context) shutdownThreads() {
	for _, t := range c.threads {
		t.Stop()
	}
}

// Outstanding reports how many sessions/listeners are still registered;
// exposed mainly for tests and diagnostics.
func (c *Context) Outstanding() int { return c.term.Count() }
