// Package lru implements the least-recently-used eviction policy.
package lru

import (
	"cmp"
	"slices"

	"github.com/IvanBrykalov/lodcache/policy"
)

// lru evicts unreferenced, unprotected objects in ascending last-access
// order. Among equally recent objects the lower id goes first.
type lru[K cmp.Ordered] struct {
	*policy.Budget[K]
}

// New returns an LRU policy with a budget of maxMemory bytes.
// cleanupRatio in (0, 1] sets how far below the budget a pass evicts;
// 1 evicts until exactly at budget, smaller values add hysteresis.
func New[K cmp.Ordered](maxMemory int64, cleanupRatio float64) policy.Policy[K] {
	return &lru[K]{Budget: policy.NewBudget[K](maxMemory, cleanupRatio)}
}

// SelectVictims implements policy.Policy.
func (p *lru[K]) SelectVictims(cands []policy.Candidate[K]) []K {
	victims := policy.Unreferenced(cands, p.Protected)
	slices.SortFunc(victims, policy.ByRecency[K])
	return policy.IDs(victims)
}

// compile-time checks
var (
	_ policy.Policy[uint64]  = (*lru[uint64])(nil)
	_ policy.Tunable[uint64] = (*lru[uint64])(nil)
)
