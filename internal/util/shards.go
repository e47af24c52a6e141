// Package util contains internal helpers (id hashing, shard math, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "runtime"

// maxShards bounds the automatic shard count; eviction snapshots walk every
// shard, so more shards than this only adds scan overhead.
const maxShards = 256

// ShardCount resolves a requested shard count into a power of two.
// A non-positive request picks nextPow2(2*GOMAXPROCS) clamped to [1..256].
func ShardCount(requested int) int {
	if requested <= 0 {
		p := runtime.GOMAXPROCS(0)
		if p < 1 {
			p = 1
		}
		requested = 2 * p
		if requested > maxShards {
			requested = maxShards
		}
	}
	return int(NextPow2(uint64(requested)))
}

// NextPow2 returns the smallest power of two >= x (1 for x <= 1).
// Overflow clamps to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	if x == 0 {
		return 1 << 63
	}
	return x
}

// ShardIndex maps a hash onto [0, shards). shards must be a power of two.
func ShardIndex(hash uint64, shards int) int {
	return int(hash & uint64(shards-1))
}
