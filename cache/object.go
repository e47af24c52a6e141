package cache

import "sync/atomic"

// object is a loaded unit of data owned by exactly one shard map.
// Only fully loaded objects are ever inserted, so consumers never observe a
// partial state. id, val and size are immutable after insertion.
type object[T any] struct {
	id   ID
	val  T
	size int64

	// refs counts outstanding handles; eviction requires zero.
	refs atomic.Int64
	// lastUsed is the clock reading of the latest acquire (UnixNano).
	lastUsed atomic.Int64
	// hits counts acquires since load; the loading acquire is the first.
	hits atomic.Uint64
}

// touch records an access at now.
func (o *object[T]) touch(now int64) {
	o.lastUsed.Store(now)
	o.hits.Add(1)
}
