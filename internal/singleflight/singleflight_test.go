package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Concurrent callers for one key share a single execution of fn.
func TestGroup_Coalesces(t *testing.T) {
	t.Parallel()

	var g Group[uint64, string]
	var calls atomic.Int32
	release := make(chan struct{})

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make([]string, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, _, err := g.Do(context.Background(), 7, func() (string, error) {
				calls.Add(1)
				<-release
				return "v7", nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Let every follower attach before the leader finishes.
	require.Eventually(t, func() bool { return waiters(&g, 7) == n-1 }, 2*time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "v7", r)
	}
	assert.Equal(t, 0, g.InFlight())
}

// A cancelled follower returns early; the leader still completes.
func TestGroup_FollowerCancel(t *testing.T) {
	t.Parallel()

	var g Group[int, int]
	started := make(chan struct{})
	release := make(chan struct{})

	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(context.Background(), 1, func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		leaderDone <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, shared, err := g.Do(ctx, 1, func() (int, error) { return 0, nil })
	assert.True(t, shared)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-leaderDone)
}

// Errors are shared with followers and the key is forgotten afterwards.
func TestGroup_ErrorNotCached(t *testing.T) {
	t.Parallel()

	var g Group[int, int]
	boom := errors.New("boom")
	_, _, err := g.Do(context.Background(), 1, func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	v, shared, err := g.Do(context.Background(), 1, func() (int, error) { return 5, nil })
	require.NoError(t, err)
	assert.False(t, shared)
	assert.Equal(t, 5, v)
}

func waiters[K comparable, V any](g *Group[K, V], key K) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if f, ok := g.m[key]; ok {
		return f.waiters
	}
	return 0
}
