package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/lodcache/internal/singleflight"
	"github.com/IvanBrykalov/lodcache/internal/util"
	"github.com/IvanBrykalov/lodcache/policy"
	"github.com/IvanBrykalov/lodcache/policy/lru"
)

// Cache is a reference-counted object cache keyed by ID with a pluggable
// eviction policy. All methods are safe for concurrent use.
//
// Objects are materialized by a Loader on the first GetOrCreate for an id.
// Memory pressure is only resolved from inside GetOrCreate; releasing a
// handle never evicts.
type Cache[T any] struct {
	shards []*shard[T]
	loader Loader[T]
	pol    policy.Policy[ID]
	stats  *Statistics
	closed atomic.Bool

	opt Options[T]
	log *slog.Logger

	// sf guarantees at most one in-flight load per id.
	sf singleflight.Group[ID, *object[T]]

	// evictMu serializes eviction passes; contenders skip instead of queueing.
	evictMu sync.Mutex
}

// New constructs a cache that loads misses through loader.
// Defaults:
//   - nil Policy  -> LRU with Options.MaxMemory / Options.CleanupRatio
//   - nil Metrics -> NoopMetrics
//   - nil Logger  -> discard
//   - Shards <= 0 -> auto, rounded up to the next power of two
func New[T any](loader Loader[T], opt Options[T]) *Cache[T] {
	if loader == nil {
		panic("cache: nil Loader")
	}
	if opt.Policy == nil {
		if opt.MaxMemory <= 0 {
			panic("cache: MaxMemory must be > 0 when no Policy is given")
		}
		opt.Policy = lru.New[ID](opt.MaxMemory, opt.CleanupRatio)
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	if opt.Name == "" {
		opt.Name = "Statistics"
	}
	if len(opt.ProtectList) > 0 {
		if t, ok := opt.Policy.(policy.Tunable[ID]); ok {
			t.SetProtected(opt.ProtectList)
		}
	}

	n := util.ShardCount(opt.Shards)
	shards := make([]*shard[T], n)
	for i := range shards {
		shards[i] = newShard[T]()
	}

	return &Cache[T]{
		shards: shards,
		loader: loader,
		pol:    opt.Policy,
		stats:  newStatistics(opt.Name, opt.Policy.MaxMemory),
		opt:    opt,
		log:    opt.Logger.With("cache", opt.Name),
	}
}

// GetOrCreate returns an acquired handle for id, loading it on a miss.
//
// Concurrent misses for the same id share one Load. A failed load yields an
// invalid handle carrying a *LoadError; the failure is not cached, so a
// later call retries. After the lookup the policy is consulted and, under
// memory pressure, unreferenced objects are evicted.
//
// The returned handle is never nil. Callers must check Valid before use and
// Release valid handles when done.
func (c *Cache[T]) GetOrCreate(ctx context.Context, id ID) *Handle[T] {
	if id == InvalidID {
		return invalidHandle[T](id, ErrInvalidID)
	}
	if c.closed.Load() {
		return invalidHandle[T](id, ErrClosed)
	}

	s := c.getShard(id)
	if o, ok := s.acquire(id, c.now()); ok {
		c.stats.hits.Add(1)
		c.opt.Metrics.Hit()
		c.maybeEvict()
		return newHandle(o)
	}

	c.stats.misses.Add(1)
	c.opt.Metrics.Miss()
	h := c.load(ctx, s, id)
	c.maybeEvict()
	return h
}

// load resolves a miss. The object may be evicted between the leader's
// insert and a follower's acquire; the follower then loads again. A follower
// whose leader gave up on its own context also retries, taking over the
// load.
func (c *Cache[T]) load(ctx context.Context, s *shard[T], id ID) *Handle[T] {
	for {
		if c.closed.Load() {
			return invalidHandle[T](id, ErrClosed)
		}
		var mine *object[T]
		o, shared, err := c.sf.Do(ctx, id, func() (*object[T], error) {
			// Another flight may have finished just before ours started.
			if cur, ok := s.acquire(id, c.now()); ok {
				mine = cur
				return cur, nil
			}
			v, err := c.loader.Load(ctx, id)
			if err != nil {
				return nil, err
			}
			fresh := &object[T]{id: id, val: v, size: c.sizeOf(v)}
			cur, inserted := s.insert(fresh, c.now(), &c.closed, c.stats)
			if cur == nil {
				// Close drained the shards while we were loading.
				c.opt.Metrics.Evict(EvictClose)
				if cb := c.opt.OnEvict; cb != nil {
					cb(id, v, EvictClose)
				}
				return nil, ErrClosed
			}
			if inserted {
				c.opt.Metrics.Size(c.stats.objects.Load(), c.stats.used.Load())
				c.log.Debug("object loaded", "id", uint64(id), "size", fresh.size)
			}
			mine = cur
			return cur, nil
		})
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return invalidHandle[T](id, ErrClosed)
			}
			if isContextErr(err) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return invalidHandle[T](id, ctxErr)
				}
				if shared {
					continue
				}
			}
			if !shared {
				c.stats.loadFailures.Add(1)
				c.opt.Metrics.LoadFailed()
				c.log.Warn("load failed", "id", uint64(id), "error", err)
			}
			return invalidHandle[T](id, &LoadError{ID: id, Err: err})
		}
		if mine != nil {
			// Leader: the reference was taken under the shard lock.
			return newHandle(mine)
		}
		if got, ok := s.acquire(o.id, c.now()); ok {
			return newHandle(got)
		}
		if err := ctx.Err(); err != nil {
			return invalidHandle[T](id, err)
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Lookup returns an acquired handle for id only if it is already loaded.
// It never loads, never evicts and does not count as a hit or miss.
func (c *Cache[T]) Lookup(id ID) (*Handle[T], bool) {
	if id == InvalidID || c.closed.Load() {
		return nil, false
	}
	o, ok := c.getShard(id).peek(id)
	if !ok {
		return nil, false
	}
	return newHandle(o), true
}

// RefCount returns the number of outstanding handles for a loaded id.
func (c *Cache[T]) RefCount(id ID) (int64, bool) {
	return c.getShard(id).refs(id)
}

// Len returns the number of loaded objects.
func (c *Cache[T]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache[T]) Stats() Stats { return c.stats.Snapshot() }

// Statistics returns the live statistics of this cache.
func (c *Cache[T]) Statistics() *Statistics { return c.stats }

// Policy returns the active eviction policy.
func (c *Cache[T]) Policy() policy.Policy[ID] { return c.pol }

// SetMaximumMemory changes the policy's memory budget.
func (c *Cache[T]) SetMaximumMemory(bytes int64) error {
	t, ok := c.pol.(policy.Tunable[ID])
	if !ok {
		return ErrNotTunable
	}
	t.SetMaxMemory(bytes)
	return nil
}

// SetCleanupRatio changes the fraction of the budget an eviction pass
// reduces usage to. ratio must be in (0, 1].
func (c *Cache[T]) SetCleanupRatio(ratio float64) error {
	t, ok := c.pol.(policy.Tunable[ID])
	if !ok {
		return ErrNotTunable
	}
	return t.SetCleanupRatio(ratio)
}

// SetProtectList replaces the set of ids exempt from eviction.
func (c *Cache[T]) SetProtectList(ids []ID) error {
	t, ok := c.pol.(policy.Tunable[ID])
	if !ok {
		return ErrNotTunable
	}
	t.SetProtected(ids)
	return nil
}

// Unload drops id if it is loaded and unreferenced. It reports whether the
// object was unloaded; referenced, unknown and invalid ids are left alone.
// Protection only shields objects from the policy, not from Unload.
func (c *Cache[T]) Unload(id ID) bool {
	if id == InvalidID || c.closed.Load() {
		return false
	}
	o, ok := c.getShard(id).evictIdle(id, c.stats)
	if !ok {
		return false
	}
	c.evicted(o, EvictUnload)
	c.opt.Metrics.Size(c.stats.objects.Load(), c.stats.used.Load())
	c.log.Debug("object unloaded", "id", uint64(id), "size", o.size)
	return true
}

// evicted reports an object that left the map through evictIdle.
func (c *Cache[T]) evicted(o *object[T], reason EvictReason) {
	c.stats.evictions.Add(1)
	c.opt.Metrics.Evict(reason)
	if obs, ok := c.pol.(policy.Observer[ID]); ok {
		obs.OnEvict(o.id)
	}
	if cb := c.opt.OnEvict; cb != nil {
		cb(o.id, o.val, reason)
	}
}

// Close unloads every object and makes further lookups return invalid
// handles. Values held through outstanding handles stay readable.
func (c *Cache[T]) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	for _, s := range c.shards {
		for _, o := range s.drain(c.stats) {
			c.opt.Metrics.Evict(EvictClose)
			if cb := c.opt.OnEvict; cb != nil {
				cb(o.id, o.val, EvictClose)
			}
		}
	}
	c.opt.Metrics.Size(c.stats.objects.Load(), c.stats.used.Load())
	return nil
}

// ---- eviction ----

// maybeEvict runs a pass when the policy reports memory pressure.
func (c *Cache[T]) maybeEvict() {
	if !c.pol.WillActivate(c.usage()) {
		return
	}
	r := c.applyPolicy()
	if cb := c.opt.OnApply; cb != nil {
		cb(r)
	}
}

// applyPolicy evicts policy-selected objects until the policy is satisfied
// or the candidates run out. It never evicts referenced objects; refs are
// re-checked under the shard lock because the snapshot may be stale.
func (c *Cache[T]) applyPolicy() ApplyResult {
	if !c.evictMu.TryLock() {
		return ApplyBusy
	}
	defer c.evictMu.Unlock()

	if !c.pol.WillActivate(c.usage()) {
		return ApplyNotActivated
	}

	cands := make([]policy.Candidate[ID], 0, c.stats.objects.Load())
	for _, s := range c.shards {
		cands = s.candidates(cands)
	}
	if len(cands) == 0 {
		return ApplyEmpty
	}

	evicted := 0
	for _, id := range c.pol.SelectVictims(cands) {
		if c.pol.IsSatisfied(c.usage()) {
			break
		}
		o, ok := c.getShard(id).evictIdle(id, c.stats)
		if !ok {
			continue
		}
		evicted++
		c.evicted(o, EvictPolicy)
	}
	u := c.usage()
	c.opt.Metrics.Size(u.Objects, u.Used)

	if !c.pol.IsSatisfied(u) {
		c.stats.overBudget.Add(1)
		c.opt.Metrics.OverBudget()
		c.log.Warn("eviction exhausted, running over budget",
			"used", u.Used,
			"max", c.pol.MaxMemory(),
			"objects", u.Objects,
			"evicted", evicted,
		)
		return ApplyExhausted
	}
	c.log.Debug("eviction pass", "evicted", evicted, "used", u.Used)
	return ApplyActivated
}

// ---- helpers ----

func (c *Cache[T]) usage() policy.Usage {
	return policy.Usage{Used: c.stats.used.Load(), Objects: c.stats.objects.Load()}
}

// getShard picks a shard by hashing the id; len(c.shards) is a power of two.
func (c *Cache[T]) getShard(id ID) *shard[T] {
	return c.shards[util.ShardIndex(util.HashID(uint64(id)), len(c.shards))]
}

func (c *Cache[T]) now() int64 {
	if c.opt.Clock != nil {
		return c.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (c *Cache[T]) sizeOf(v T) int64 {
	var n int64
	if c.opt.Size != nil {
		n = c.opt.Size(v)
	} else {
		n = sizeOf(v)
	}
	if n < 0 {
		n = 0
	}
	return n
}
