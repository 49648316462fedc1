// Package workers provides the bounded worker context a session lends to
// bulk tabular processing. A Context is created lazily, at most once per
// session, and must be released with Close when the session ends. Closing
// while a MapChunks call is still running is not supported; callers finish
// their work first.
package workers

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by MapChunks after Close.
var ErrClosed = errors.New("worker context closed")

// Context runs chunked work on a fixed number of goroutines.
type Context struct {
	limit int

	mu     sync.Mutex
	base   context.Context
	cancel context.CancelFunc
	closed bool
}

// New creates a worker context. A non-positive limit means one worker per CPU.
func New(limit int) *Context {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Context{limit: limit, base: base, cancel: cancel}
}

// Limit reports how many chunks may run at once.
func (c *Context) Limit() int { return c.limit }

// MapChunks splits [0, n) into consecutive chunks of at most chunk items and
// calls fn(lo, hi) for each, at most Limit at a time. It returns the first
// error any call produced.
func (c *Context) MapChunks(n, chunk int, fn func(lo, hi int) error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	base := c.base
	c.mu.Unlock()

	if n <= 0 {
		return nil
	}
	if chunk <= 0 {
		chunk = n
	}

	g, ctx := errgroup.WithContext(base)
	g.SetLimit(c.limit)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(lo, hi)
		})
	}
	return g.Wait()
}

// Close releases the context. It is safe to call more than once.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()
	return nil
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
