// File: zctx/registry.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The in-process endpoint registry backing "inproc://" binds: a name a
// listener registers once, and any number of connecters later look up to
// get a freshly-minted transport.inproc.Pair() end (spec §4.8).

package zctx

import (
	"context"
	"sync"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/transport/inproc"
)

// InprocListener is the bind side of a registered inproc endpoint: each
// Connect call hands it a fresh transport end via Accept.
type InprocListener struct {
	name   string
	accept chan api.Transport
	done   chan struct{}
	once   sync.Once
}

// Accept blocks for the next connecter, or returns ctx.Err() if ctx is
// cancelled first, or api.ErrTransportClosed once Close has been called.
func (l *InprocListener) Accept(ctx context.Context) (api.Transport, error) {
	select {
	case t, ok := <-l.accept:
		if !ok {
			return nil, api.ErrTransportClosed
		}
		return t, nil
	case <-l.done:
		return nil, api.ErrTransportClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unblocks any pending Accept. For a listener from Context.BindInproc,
// the accept goroutine then unregisters the endpoint name.
func (l *InprocListener) Close() {
	l.once.Do(func() { close(l.done) })
}

type inprocRegistry struct {
	mu        sync.Mutex
	listeners map[string]*InprocListener
}

func newInprocRegistry() *inprocRegistry {
	return &inprocRegistry{listeners: make(map[string]*InprocListener)}
}

// Bind registers name, returning a listener Connect calls will rendezvous
// with. Binding an already-bound name fails with api.ErrAlreadyExists.
func (r *inprocRegistry) Bind(name string) (*InprocListener, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[name]; ok {
		return nil, api.ErrAlreadyExists
	}
	l := &InprocListener{name: name, accept: make(chan api.Transport), done: make(chan struct{})}
	r.listeners[name] = l
	return l, nil
}

// Unbind removes name so future Connect calls fail with api.ErrNotFound.
func (r *inprocRegistry) Unbind(name string) {
	r.mu.Lock()
	l, ok := r.listeners[name]
	if ok {
		delete(r.listeners, name)
	}
	r.mu.Unlock()
	if ok {
		l.Close()
	}
}

// Connect looks up name's listener and hands it the bind end of a fresh
// inproc.Pair, returning the connect end to the caller.
func (r *inprocRegistry) Connect(ctx context.Context, name string) (api.Transport, error) {
	r.mu.Lock()
	l, ok := r.listeners[name]
	r.mu.Unlock()
	if !ok {
		return nil, api.ErrNotFound
	}
	bindEnd, connectEnd := inproc.Pair()
	select {
	case l.accept <- bindEnd:
		return connectEnd, nil
	case <-l.done:
		bindEnd.Close()
		connectEnd.Close()
		return nil, api.ErrTransportClosed
	case <-ctx.Done():
		bindEnd.Close()
		connectEnd.Close()
		return nil, ctx.Err()
	}
}
