package policy

import (
	"cmp"
	"math"
	"sync"
)

// Budget holds the memory budget, cleanup ratio and protect list shared by
// the bundled policies. It implements the activation half of Policy and the
// whole of Tunable; concrete policies embed it and add SelectVictims.
type Budget[K cmp.Ordered] struct {
	mu      sync.RWMutex
	max     int64
	ratio   float64
	target  int64 // floor(max * ratio)
	protect map[K]struct{}
}

// NewBudget returns a budget of maxMemory bytes. A ratio outside (0, 1]
// falls back to 1.
func NewBudget[K cmp.Ordered](maxMemory int64, cleanupRatio float64) *Budget[K] {
	if !ValidRatio(cleanupRatio) {
		cleanupRatio = 1
	}
	b := &Budget[K]{ratio: cleanupRatio, protect: make(map[K]struct{})}
	b.setMaxLocked(maxMemory)
	return b
}

// WillActivate reports used > max.
func (b *Budget[K]) WillActivate(u Usage) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return u.Used > b.max
}

// IsSatisfied reports used <= max*cleanupRatio.
func (b *Budget[K]) IsSatisfied(u Usage) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return u.Used <= b.target
}

// MaxMemory returns the budget in bytes.
func (b *Budget[K]) MaxMemory() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.max
}

// CleanupRatio returns the fraction of MaxMemory an eviction pass aims for.
func (b *Budget[K]) CleanupRatio() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ratio
}

// SetMaxMemory changes the budget. Negative values are treated as 0.
func (b *Budget[K]) SetMaxMemory(bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setMaxLocked(bytes)
}

// SetCleanupRatio changes the eviction target.
func (b *Budget[K]) SetCleanupRatio(ratio float64) error {
	if !ValidRatio(ratio) {
		return ErrInvalidRatio
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ratio = ratio
	b.setMaxLocked(b.max)
	return nil
}

// SetProtected replaces the protect list with ids.
func (b *Budget[K]) SetProtected(ids []K) {
	m := make(map[K]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	b.mu.Lock()
	b.protect = m
	b.mu.Unlock()
}

// Protected reports whether id is exempt from eviction.
func (b *Budget[K]) Protected(id K) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.protect[id]
	return ok
}

func (b *Budget[K]) setMaxLocked(bytes int64) {
	if bytes < 0 {
		bytes = 0
	}
	b.max = bytes
	// The epsilon absorbs binary rounding of ratios such as 0.7.
	b.target = int64(math.Floor(float64(bytes)*b.ratio + 1e-9))
}
