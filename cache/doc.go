// Package cache provides a generic, reference-counted object cache for
// out-of-core data (volume bricks, textures, histograms) with a pluggable
// eviction policy.
//
// Design
//
//   - Identity: objects are keyed by ID. InvalidID never maps to an object.
//
//   - Loading: a Loader materializes the value on the first GetOrCreate for
//     an id. Loads run outside every lock and at most one load per id is in
//     flight; concurrent callers for the same id wait for it (singleflight).
//     Objects are published only once fully loaded.
//
//   - Failure: a failed load is not an error return. GetOrCreate hands back
//     an invalid Handle (Valid() == false) whose Err wraps ErrLoad, so hot
//     paths branch on validity instead of unwinding errors.
//
//   - Lifetime: every valid Handle holds one reference. Release drops it;
//     Clone takes another. Referenced objects are never evicted.
//
//   - Storage: ids are hashed onto shards, each an RWMutex-guarded map.
//     Map mutation is the only work done under a shard lock.
//
//   - Policies: the policy package decides when eviction starts and stops
//     and orders victims. LRU is the default; 2Q is provided. Eviction runs
//     only from GetOrCreate, never from Release. If every remaining object is
//     referenced or protected the pass stops over budget; Stats().OverBudget
//     and Metrics.OverBudget report it so producers can throttle.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size/LoadFailed/
//     OverBudget signals. NoopMetrics is the default; metrics/prom exports
//     them to Prometheus.
//
// Basic usage
//
//	c := cache.New[[]byte](cache.LoaderFunc[[]byte](readBrick), cache.Options[[]byte]{
//	    MaxMemory:    512 << 20,
//	    CleanupRatio: 0.8,
//	})
//	h := c.GetOrCreate(ctx, id)
//	defer h.Release()
//	if !h.Valid() {
//	    return h.Err()
//	}
//	upload(h.Value())
//
// Protecting objects that are on screen
//
//	_ = c.SetProtectList(visibleIDs)
//
// Thread-safety
//
// All methods on Cache and Handle are safe for concurrent use. A single
// Handle must be released once; further calls are ignored.
package cache
