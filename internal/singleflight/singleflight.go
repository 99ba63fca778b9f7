// Package singleflight coalesces concurrent persistent-store lookups so that
// a key requested several times in one batch is read once.
package singleflight

import (
	"context"
	"sync"
)

// Group runs at most one fn per key at a time. Callers arriving while a call
// is in flight wait for and share its result.
//
// Concurrency notes:
//   - The first caller for a key is the leader and runs fn.
//   - Followers wait on c.done. Publishing (val, err) happens-before
//     close(c.done), so reads after <-done observe the final values.
//   - Cancelling ctx in a follower unblocks only that follower; the leader's
//     fn keeps running. Thread ctx into fn to cancel the work itself.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done chan struct{} // closed when val/err are published
	val  V
	err  error
	dups int
}

// Do runs fn once for key among concurrent callers. shared reports whether
// the result was handed to more than one caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, true, c.err
		case <-ctx.Done():
			var zero V
			return zero, false, ctx.Err()
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	delete(g.m, key)
	dups := c.dups
	g.mu.Unlock()
	close(c.done)

	return c.val, dups > 0, c.err
}
