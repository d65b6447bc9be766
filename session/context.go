// File: session/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-session metadata store implementing api.Context. A session attaches
// one of these to carry the optional READY properties (user-id,
// peer-address, custom) spec §4.5.2 step 2 leaves to "the socket" — here,
// to whatever creates the session.

package session

import (
	"sync"
	"time"

	"github.com/zlinkio/zlink/api"
)

type entry struct {
	value      any
	propagated bool
	expiry     time.Time
}

// Context is a thread-safe, propagation-aware api.Context implementation.
type Context struct {
	mu    sync.RWMutex
	store map[string]entry
}

var _ api.Context = (*Context)(nil)

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{store: make(map[string]entry)}
}

func (c *Context) Set(key string, value any, propagated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = entry{value: value, propagated: propagated}
}

func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	if !ok {
		return nil, false
	}
	if !e.expiry.IsZero() && time.Now().After(e.expiry) {
		return nil, false
	}
	return e.value, true
}

func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

func (c *Context) Clone() api.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string]entry, len(c.store))
	for k, v := range c.store {
		cp[k] = v
	}
	return &Context{store: cp}
}

func (c *Context) WithExpiration(key string, ttlNanos int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.store[key]; ok {
		e.expiry = time.Now().Add(time.Duration(ttlNanos))
		c.store[key] = e
	}
}

func (c *Context) IsPropagated(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	return ok && e.propagated
}

func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := time.Now()
	keys := make([]string, 0, len(c.store))
	for k, v := range c.store {
		if v.expiry.IsZero() || v.expiry.After(now) {
			keys = append(keys, k)
		}
	}
	return keys
}

// ReadyProps collects the string-valued propagated entries as the property
// set carried in the engine's outbound READY frame.
func (c *Context) ReadyProps() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	props := make(map[string]string)
	now := time.Now()
	for k, e := range c.store {
		if !e.propagated {
			continue
		}
		if !e.expiry.IsZero() && now.After(e.expiry) {
			continue
		}
		if s, ok := e.value.(string); ok {
			props[k] = s
		}
	}
	return props
}
