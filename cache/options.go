package cache

import (
	"log/slog"

	"github.com/IvanBrykalov/lodcache/policy"
)

// EvictReason explains why an object was unloaded.
type EvictReason int

const (
	// EvictPolicy: selected by the active eviction policy under memory pressure.
	EvictPolicy EvictReason = iota
	// EvictClose: unloaded because the cache was closed.
	EvictClose
	// EvictUnload: dropped by an explicit Unload call.
	EvictUnload
)

func (r EvictReason) String() string {
	switch r {
	case EvictClose:
		return "close"
	case EvictUnload:
		return "unload"
	default:
		return "policy"
	}
}

// ApplyResult is the outcome of one eviction pass.
type ApplyResult int

const (
	// ApplyNotActivated: the policy saw no memory pressure.
	ApplyNotActivated ApplyResult = iota
	// ApplyEmpty: under pressure but nothing is loaded.
	ApplyEmpty
	// ApplyActivated: objects were evicted and the policy is satisfied.
	ApplyActivated
	// ApplyExhausted: every evictable object is gone and the cache is still
	// over target; the rest is referenced or protected. Not an error: the
	// cache keeps running over budget and reports it through Stats.
	ApplyExhausted
	// ApplyBusy: another goroutine is already running a pass.
	ApplyBusy
)

func (r ApplyResult) String() string {
	switch r {
	case ApplyNotActivated:
		return "not-activated"
	case ApplyEmpty:
		return "empty"
	case ApplyActivated:
		return "activated"
	case ApplyExhausted:
		return "exhausted"
	case ApplyBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// NoopMetrics is used when none is configured.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	// Size reports the loaded object count and bytes after each change.
	Size(objects int64, usedBytes int64)
	LoadFailed()
	// OverBudget is signalled when an eviction pass ends exhausted.
	OverBudget()
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures a Cache. Zero values are safe; New applies:
//   - nil Policy   => lru.New(MaxMemory, CleanupRatio)
//   - Shards <= 0  => auto (rounded up to a power of two)
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => discard
type Options[T any] struct {
	// Name labels the statistics block (e.g. "raw data cache").
	Name string

	// MaxMemory is the byte budget for the default LRU policy.
	// Ignored when Policy is set.
	MaxMemory int64
	// CleanupRatio in (0, 1] for the default LRU policy; 0 means 1.
	CleanupRatio float64
	// ProtectList seeds the policy's protect list (tunable policies only).
	ProtectList []ID

	// Policy is a pluggable eviction policy; nil => LRU.
	Policy policy.Policy[ID]

	// Shards defines the number of entry-map partitions. 0 = auto.
	Shards int

	// Size returns the footprint of a loaded value in bytes.
	// nil => len for []byte and string, Size() for Sizer, else 0.
	Size func(v T) int64

	// OnEvict is called after an object left the cache, outside any lock.
	OnEvict func(id ID, v T, reason EvictReason)
	// OnApply observes the outcome of every eviction pass.
	OnApply func(ApplyResult)

	Metrics Metrics
	Logger  *slog.Logger

	// Clock overrides the access-time source (tests). nil => time.Now().
	Clock Clock
}
