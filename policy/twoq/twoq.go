// Package twoq implements a 2Q-flavoured victim ordering.
package twoq

import (
	"cmp"
	"container/list"
	"slices"
	"sync"

	"github.com/IvanBrykalov/lodcache/policy"
)

// twoQ splits resident objects into two classes:
//
//   - A1in (probation): loaded once and never read again. A volume scan
//     touches each brick once, so these go first.
//   - Am (mature): accessed more than once, or re-loaded shortly after being
//     evicted from A1in.
//
// Each class is ordered by recency (oldest first, lower id on ties) and all
// of A1in precedes Am. A1out keeps the ids of recently evicted A1in objects
// (no data); when such an id is loaded again it is admitted straight to Am.
type twoQ[K cmp.Ordered] struct {
	*policy.Budget[K]

	mu       sync.Mutex
	capGhost int
	// ids classified A1in by the latest SelectVictims
	probation map[K]struct{}
	// resident ids promoted to Am from A1out
	mature map[K]struct{}
	// A1out: MRU at Front(), element.Value is K
	ghostList *list.List
	ghostIdx  map[K]*list.Element
}

// New returns a 2Q policy with a budget of maxMemory bytes. ghosts bounds
// the A1out history; half the expected resident object count is a sane start.
func New[K cmp.Ordered](maxMemory int64, cleanupRatio float64, ghosts int) policy.Policy[K] {
	if ghosts < 1 {
		ghosts = 1
	}
	return &twoQ[K]{
		Budget:    policy.NewBudget[K](maxMemory, cleanupRatio),
		capGhost:  ghosts,
		probation: make(map[K]struct{}),
		mature:    make(map[K]struct{}),
		ghostList: list.New(),
		ghostIdx:  make(map[K]*list.Element),
	}
}

// SelectVictims implements policy.Policy: A1in oldest first, then Am.
func (q *twoQ[K]) SelectVictims(cands []policy.Candidate[K]) []K {
	evictable := policy.Unreferenced(cands, q.Protected)

	q.mu.Lock()
	var in, am []policy.Candidate[K]
	probation := make(map[K]struct{}, len(evictable))
	for _, c := range evictable {
		if ge, ok := q.ghostIdx[c.ID]; ok {
			// Second chance: reloaded after an A1in eviction.
			q.ghostList.Remove(ge)
			delete(q.ghostIdx, c.ID)
			q.mature[c.ID] = struct{}{}
		}
		if _, ok := q.mature[c.ID]; ok || c.Hits > 1 {
			am = append(am, c)
			continue
		}
		probation[c.ID] = struct{}{}
		in = append(in, c)
	}
	q.probation = probation
	q.mu.Unlock()

	slices.SortFunc(in, policy.ByRecency[K])
	slices.SortFunc(am, policy.ByRecency[K])
	return append(policy.IDs(in), policy.IDs(am)...)
}

// OnEvict implements policy.Observer. Evicted A1in ids become ghosts;
// Am evictions leave no trace.
func (q *twoQ[K]) OnEvict(id K) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.mature[id]; ok {
		delete(q.mature, id)
		return
	}
	if _, ok := q.probation[id]; !ok {
		return
	}
	delete(q.probation, id)

	if old := q.ghostIdx[id]; old != nil {
		q.ghostList.Remove(old)
	}
	q.ghostIdx[id] = q.ghostList.PushFront(id)
	for q.ghostList.Len() > q.capGhost {
		tail := q.ghostList.Back()
		if tail == nil {
			break
		}
		delete(q.ghostIdx, tail.Value.(K))
		q.ghostList.Remove(tail)
	}
}

// compile-time checks
var (
	_ policy.Policy[uint64]   = (*twoQ[uint64])(nil)
	_ policy.Tunable[uint64]  = (*twoQ[uint64])(nil)
	_ policy.Observer[uint64] = (*twoQ[uint64])(nil)
)
