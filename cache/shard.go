package cache

import (
	"sync"
	"sync/atomic"

	"github.com/IvanBrykalov/lodcache/policy"
)

// shard is an independent partition of the entry map with its own lock.
// Every critical section is a map operation plus constant work; loads never
// run under mu.
type shard[T any] struct {
	mu sync.RWMutex
	m  map[ID]*object[T]
}

func newShard[T any]() *shard[T] {
	return &shard[T]{m: make(map[ID]*object[T])}
}

// acquire takes a reference on the resident object for id, if any.
// The lock makes the increment atomic with respect to evictIdle.
func (s *shard[T]) acquire(id ID, now int64) (*object[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.m[id]
	if !ok {
		return nil, false
	}
	o.refs.Add(1)
	o.touch(now)
	return o, true
}

// peek takes a reference without recording an access.
func (s *shard[T]) peek(id ID) (*object[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.m[id]
	if !ok {
		return nil, false
	}
	o.refs.Add(1)
	return o, true
}

// insert publishes a freshly loaded object holding one reference for the
// loading caller. If another object won the race it is acquired instead.
// Once closed is set nothing is published and insert returns nil; Close sets
// it before draining, so any object published earlier is drained.
func (s *shard[T]) insert(o *object[T], now int64, closed *atomic.Bool, stats *Statistics) (*object[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if closed.Load() {
		return nil, false
	}
	if cur, ok := s.m[o.id]; ok {
		cur.refs.Add(1)
		cur.touch(now)
		return cur, false
	}
	o.refs.Store(1)
	o.touch(now)
	s.m[o.id] = o
	stats.loaded(o.size)
	return o, true
}

// evictIdle removes id if it is resident and unreferenced.
// Acquire holds the read lock, so no reference can appear while we hold
// the write lock.
func (s *shard[T]) evictIdle(id ID, stats *Statistics) (*object[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.m[id]
	if !ok || o.refs.Load() > 0 {
		return nil, false
	}
	delete(s.m, id)
	stats.unloaded(o.size)
	return o, true
}

// drain removes every object regardless of references.
func (s *shard[T]) drain(stats *Statistics) []*object[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*object[T], 0, len(s.m))
	for id, o := range s.m {
		delete(s.m, id)
		stats.unloaded(o.size)
		out = append(out, o)
	}
	return out
}

// candidates appends a policy view of every resident object.
func (s *shard[T]) candidates(dst []policy.Candidate[ID]) []policy.Candidate[ID] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.m {
		dst = append(dst, policy.Candidate[ID]{
			ID:       o.id,
			Size:     o.size,
			LastUsed: o.lastUsed.Load(),
			Hits:     o.hits.Load(),
			Refs:     o.refs.Load(),
		})
	}
	return dst
}

// refs returns the reference count of id.
func (s *shard[T]) refs(id ID) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.m[id]
	if !ok {
		return 0, false
	}
	return o.refs.Load(), true
}

// Len returns the number of resident objects.
func (s *shard[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
