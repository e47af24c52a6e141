// Package singleflight guarantees at most one in-flight load per key.
package singleflight

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// errLeaderPanicked is delivered to followers when the leader's fn panicked.
var errLeaderPanicked = errors.New("singleflight: load panicked")

// Group coalesces concurrent calls for the same key so that fn runs once.
//
// The first caller for a key is the leader and runs fn on its own goroutine.
// Followers block on the flight's done channel; the result is published
// before done is closed, so reads after <-done see the final values.
// A follower whose ctx is cancelled returns ctx.Err() without affecting the
// leader.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*flight[V]
}

type flight[V any] struct {
	done    chan struct{}
	val     V
	err     error
	waiters int
}

// Do runs fn once for key. shared reports whether the result was produced by
// another caller's fn.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, shared bool, err error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*flight[V])
	}
	if f, ok := g.m[key]; ok {
		f.waiters++
		g.mu.Unlock()

		select {
		case <-f.done:
			return f.val, true, f.err
		case <-ctx.Done():
			var zero V
			return zero, true, ctx.Err()
		}
	}

	f := &flight[V]{done: make(chan struct{})}
	g.m[key] = f
	g.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			f.err = fmt.Errorf("%w: %v", errLeaderPanicked, r)
			g.finish(key, f)
			panic(r)
		}
		g.finish(key, f)
	}()

	f.val, f.err = fn()
	return f.val, false, f.err
}

// finish publishes the flight and forgets the key.
func (g *Group[K, V]) finish(key K, f *flight[V]) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
	close(f.done)
}

// InFlight returns the number of keys currently being loaded.
func (g *Group[K, V]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
