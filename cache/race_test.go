package cache

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tracked is a value whose holders are counted by the test itself, so the
// eviction callback can prove nobody was reading it.
type tracked struct {
	id   ID
	n    int64
	held atomic.Int64
}

func (v *tracked) Size() int64 { return v.n }

// A mixed acquire/hold/release workload over a budget far smaller than the
// key space. Should pass under `-race` without detector reports, never evict
// a held value and keep the byte accounting exact.
func TestRace_AcquireReleaseUnderPressure(t *testing.T) {
	var violations atomic.Int64
	c := New[*tracked](LoaderFunc[*tracked](func(_ context.Context, id ID) (*tracked, error) {
		return &tracked{id: id, n: int64(id%7+1) * 8}, nil
	}), Options[*tracked]{
		MaxMemory:    2_048,
		CleanupRatio: 0.75,
		Shards:       16,
		OnEvict: func(id ID, v *tracked, reason EvictReason) {
			if reason == EvictPolicy && v.held.Load() != 0 {
				violations.Add(1)
			}
		},
	})
	t.Cleanup(func() { _ = c.Close() })

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 1_000
	deadline := time.Now().Add(time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(seed int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(seed)*9973))
			var hand []*Handle[*tracked]
			for time.Now().Before(deadline) {
				id := ID(r.Intn(keyspace))
				h := c.GetOrCreate(context.Background(), id)
				if !h.Valid() {
					t.Errorf("invalid handle for %d: %v", id, h.Err())
					return
				}
				v := h.Value()
				v.held.Add(1)
				if v.id != id {
					t.Errorf("handle %d carries value of %d", id, v.id)
				}
				hand = append(hand, h)
				// Hold up to a few handles to keep some objects pinned.
				if len(hand) > r.Intn(4) {
					old := hand[0]
					hand = hand[1:]
					old.Value().held.Add(-1)
					old.Release()
				}
			}
			for _, h := range hand {
				h.Value().held.Add(-1)
				h.Release()
			}
		}(w)
	}
	wg.Wait()

	assert.Zero(t, violations.Load(), "held values were evicted")
	assert.Equal(t, residentBytes(c), c.Stats().Used)
	for _, s := range c.shards {
		s.mu.RLock()
		for id, o := range s.m {
			require.Zero(t, o.refs.Load(), "id %d still referenced", id)
		}
		s.mu.RUnlock()
	}
}

// One hundred goroutines call GetOrCreate on the same id concurrently.
// The Loader should run once; everyone gets the same object.
func TestRace_GetOrCreateSameID(t *testing.T) {
	var calls atomic.Int64
	c := New[[]byte](LoaderFunc[[]byte](func(context.Context, ID) ([]byte, error) {
		calls.Add(1)
		time.Sleep(2 * time.Millisecond) // simulate I/O
		return []byte("brick"), nil
	}), Options[[]byte]{MaxMemory: 1 << 10})
	t.Cleanup(func() { _ = c.Close() })

	const goroutines = 100
	start := make(chan struct{})
	handles := make([]*Handle[[]byte], goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			<-start
			handles[i] = c.GetOrCreate(context.Background(), 11)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	refs, ok := c.RefCount(11)
	require.True(t, ok)
	assert.Equal(t, int64(goroutines), refs)
	for _, h := range handles {
		require.True(t, h.Valid())
		assert.Same(t, handles[0].obj, h.obj)
		h.Release()
	}
	refs, _ = c.RefCount(11)
	assert.Zero(t, refs)
}
