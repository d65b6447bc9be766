// File: registry/client.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/zlinkio/zlink/api"
	"github.com/zlinkio/zlink/control"
	"github.com/zlinkio/zlink/socket"
	"github.com/zlinkio/zlink/zctx"
)

// Client subscribes to a Server's announcements and keeps a local table of
// the most recent Announcement seen per name.
type Client struct {
	sub *socket.Sub
	log *control.Logger

	mu    sync.RWMutex
	table map[string]Announcement
}

// NewClient connects to a Server at endpoint through zc and subscribes to
// every name (or a specific name, via SubscribeName, for a narrower feed).
func NewClient(ctx context.Context, zc *zctx.Context, endpoint string, log *control.Logger) (*Client, error) {
	if log == nil {
		log = control.NopLogger()
	}
	sub := socket.NewSub(log)
	c := &Client{sub: sub, log: log, table: make(map[string]Announcement)}

	var err error
	if isInproc(endpoint) {
		_, err = zc.ConnectInproc(ctx, inprocName(endpoint), api.SocketSub, sub)
	} else {
		_, err = zc.Connect(ctx, endpoint, api.SocketSub, sub, 0)
	}
	if err != nil {
		return nil, err
	}
	sub.Subscribe([]byte(topicPrefix))

	go c.drainLoop(ctx)
	return c, nil
}

// SubscribeName narrows the feed to registered names beginning with name:
// it subscribes to that name and drops the catch-all subscription NewClient
// made. Further calls add more names. Call before relying on Lookup for that
// name if the server hosts many.
func (c *Client) SubscribeName(name string) {
	c.sub.Subscribe([]byte(topicPrefix + name))
	c.sub.Unsubscribe([]byte(topicPrefix))
}

// drainLoop polls Recv with a short sleep between empty rounds, the same
// idiom reactor's portable poll fallback uses for the same reason: Sub has
// no exported blocking-wait primitive, only the internal wakeup base.Serve
// consumes, so a bounded sleep is the grounded alternative to a hot spin.
func (c *Client) drainLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, err := c.sub.Recv()
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
		c.handle(msg.Data())
	}
}

func (c *Client) handle(frame []byte) {
	idx := bytes.IndexByte(frame, ' ')
	if idx < 0 {
		return
	}
	var a Announcement
	if err := json.Unmarshal(frame[idx+1:], &a); err != nil {
		c.log.Warn("registry: discard malformed announcement", "err", err)
		return
	}
	c.mu.Lock()
	c.table[a.Name] = a
	c.mu.Unlock()
}

// Lookup returns the most recent Announcement seen for name.
func (c *Client) Lookup(name string) (Announcement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.table[name]
	return a, ok
}

// All returns a snapshot of every endpoint currently known.
func (c *Client) All() []Announcement {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Announcement, 0, len(c.table))
	for _, a := range c.table {
		out = append(out, a)
	}
	return out
}
