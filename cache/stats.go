package cache

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/IvanBrykalov/lodcache/internal/util"
)

const mb = 1 << 20

// Statistics accounts memory and hit/miss counts for one cache.
// It is mutated only by the cache; readers take a Stats snapshot.
//
// used equals the sum of the sizes of loaded objects: both are updated
// under the same shard lock that inserts or removes the object.
type Statistics struct {
	name string
	max  func() int64

	used    atomic.Int64
	objects atomic.Int64

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      [util.CacheLineSize]byte
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64

	evictions    atomic.Uint64
	loadFailures atomic.Uint64
	overBudget   atomic.Uint64
}

// Stats is a point-in-time copy of Statistics.
type Stats struct {
	Name string
	// Used is the number of bytes held by loaded objects.
	Used int64
	// Max is the policy's memory budget.
	Max     int64
	Objects int64
	Hits    uint64
	Misses  uint64
	// Evictions counts objects unloaded by the policy or by Unload.
	Evictions    uint64
	LoadFailures uint64
	// OverBudget counts eviction passes that ran out of evictable objects
	// before reaching the policy target.
	OverBudget uint64
}

func newStatistics(name string, max func() int64) *Statistics {
	return &Statistics{name: name, max: max}
}

func (s *Statistics) loaded(size int64) {
	s.objects.Add(1)
	s.used.Add(size)
}

func (s *Statistics) unloaded(size int64) {
	s.objects.Add(-1)
	s.used.Add(-size)
}

// UsedMemory returns the bytes held by loaded objects.
func (s *Statistics) UsedMemory() int64 { return s.used.Load() }

// ResetCounters zeroes the hit/miss/eviction counters. Memory accounting
// is left intact.
func (s *Statistics) ResetCounters() {
	s.hits.Store(0)
	s.misses.Store(0)
	s.evictions.Store(0)
	s.loadFailures.Store(0)
	s.overBudget.Store(0)
}

// Snapshot copies the current counters.
func (s *Statistics) Snapshot() Stats {
	return Stats{
		Name:         s.name,
		Used:         s.used.Load(),
		Max:          s.max(),
		Objects:      s.objects.Load(),
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Evictions:    s.evictions.Load(),
		LoadFailures: s.loadFailures.Load(),
		OverBudget:   s.overBudget.Load(),
	}
}

// HitRatio returns hits/(hits+misses), 0 when nothing was requested.
func (st Stats) HitRatio() float64 {
	total := st.Hits + st.Misses
	if total == 0 {
		return 0
	}
	return float64(st.Hits) / float64(total)
}

// Exceeded reports whether usage is above the budget.
func (st Stats) Exceeded() bool { return st.Used > st.Max }

// String renders a multi-line diagnostic block.
func (st Stats) String() string {
	var b strings.Builder
	b.WriteString(st.Name)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  Used Memory: %d/%dMB\n", (st.Used+mb-1)/mb, (st.Max+mb-1)/mb)
	fmt.Fprintf(&b, "  Block Count: %d\n", st.Objects)
	fmt.Fprintf(&b, "  Cache hits: %d (%d%%)\n", st.Hits, int(100*st.HitRatio()))
	fmt.Fprintf(&b, "  Cache misses: %d\n", st.Misses)
	if st.OverBudget > 0 {
		fmt.Fprintf(&b, "  Over budget: %d\n", st.OverBudget)
	}
	return b.String()
}
