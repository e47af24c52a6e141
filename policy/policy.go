// Package policy defines the eviction strategy contract used by the cache.
//
// A policy never touches cache storage. The cache hands it a usage snapshot
// to decide whether eviction should start or stop, and a list of resident
// candidates to order; the cache performs the actual unloading.
package policy

import (
	"cmp"
	"errors"
)

// ErrInvalidRatio is returned when a cleanup ratio lies outside (0, 1].
var ErrInvalidRatio = errors.New("policy: cleanup ratio must be in (0, 1]")

// Usage is a point-in-time view of cache memory consumption.
type Usage struct {
	// Used is the number of bytes held by loaded objects.
	Used int64
	// Objects is the number of loaded objects.
	Objects int64
}

// Candidate describes one loaded object considered for eviction.
type Candidate[K cmp.Ordered] struct {
	ID K
	// Size in bytes.
	Size int64
	// LastUsed is the clock reading (UnixNano) of the latest access.
	LastUsed int64
	// Hits counts accesses since the object was loaded (the load itself is 1).
	Hits uint64
	// Refs is the number of outstanding handles at snapshot time.
	Refs int64
}

// Policy decides when eviction runs and in which order objects go.
// Implementations must be safe for concurrent use.
//
// Semantics:
//   - WillActivate reports whether the cache is under memory pressure.
//   - IsSatisfied reports whether an eviction pass may stop.
//   - SelectVictims returns ids to unload, most evictable first. It must drop
//     candidates that are referenced (Refs > 0) or protected.
type Policy[K cmp.Ordered] interface {
	WillActivate(Usage) bool
	IsSatisfied(Usage) bool
	SelectVictims([]Candidate[K]) []K
	// MaxMemory returns the configured budget in bytes.
	MaxMemory() int64
}

// Tunable is implemented by policies that can be reconfigured at runtime.
type Tunable[K cmp.Ordered] interface {
	SetMaxMemory(bytes int64)
	SetCleanupRatio(ratio float64) error
	// SetProtected replaces the protect list.
	SetProtected(ids []K)
	Protected(id K) bool
}

// Observer is implemented by policies that keep state about evicted ids.
// OnEvict is called after the cache has unloaded id.
type Observer[K cmp.Ordered] interface {
	OnEvict(id K)
}

// ValidRatio reports whether r is an acceptable cleanup ratio.
func ValidRatio(r float64) bool { return r > 0 && r <= 1 }

// Unreferenced returns the candidates with no outstanding handles that are
// not protected. The input slice is not modified.
func Unreferenced[K cmp.Ordered](cands []Candidate[K], protected func(K) bool) []Candidate[K] {
	out := make([]Candidate[K], 0, len(cands))
	for _, c := range cands {
		if c.Refs > 0 {
			continue
		}
		if protected != nil && protected(c.ID) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ByRecency orders candidates oldest access first; equal timestamps fall
// back to the lower id so that eviction order is deterministic.
func ByRecency[K cmp.Ordered](a, b Candidate[K]) int {
	if c := cmp.Compare(a.LastUsed, b.LastUsed); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// IDs extracts candidate ids in order.
func IDs[K cmp.Ordered](cands []Candidate[K]) []K {
	ids := make([]K, len(cands))
	for i, c := range cands {
		ids[i] = c.ID
	}
	return ids
}
