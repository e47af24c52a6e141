package twoq

import (
	"testing"

	"github.com/IvanBrykalov/lodcache/policy"
)

func newTwoQ(ghosts int) *twoQ[uint64] {
	return New[uint64](100, 1, ghosts).(*twoQ[uint64])
}

// Objects touched once are evicted before re-read objects, even if newer.
func TestTwoQ_ProbationBeforeMature(t *testing.T) {
	t.Parallel()

	q := newTwoQ(4)
	got := q.SelectVictims([]policy.Candidate[uint64]{
		{ID: 1, LastUsed: 1, Hits: 3}, // oldest but mature
		{ID: 2, LastUsed: 5, Hits: 1},
		{ID: 3, LastUsed: 4, Hits: 1},
	})
	want := []uint64{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

// An id evicted from A1in and loaded again is treated as mature.
func TestTwoQ_GhostGivesSecondChance(t *testing.T) {
	t.Parallel()

	q := newTwoQ(4)
	_ = q.SelectVictims([]policy.Candidate[uint64]{{ID: 7, LastUsed: 1, Hits: 1}})
	q.OnEvict(7)
	if _, ok := q.ghostIdx[7]; !ok {
		t.Fatal("A1in eviction must leave a ghost")
	}

	got := q.SelectVictims([]policy.Candidate[uint64]{
		{ID: 7, LastUsed: 1, Hits: 1}, // reloaded, older
		{ID: 8, LastUsed: 9, Hits: 1},
	})
	if len(got) != 2 || got[0] != 8 || got[1] != 7 {
		t.Fatalf("reloaded ghost must rank after probation objects, got %v", got)
	}
	if _, ok := q.ghostIdx[7]; ok {
		t.Fatal("ghost must be consumed on re-admission")
	}

	// Evicting it from Am must not create a new ghost.
	q.OnEvict(7)
	if _, ok := q.ghostIdx[7]; ok {
		t.Fatal("Am eviction must not populate ghosts")
	}
}

// The ghost history is bounded.
func TestTwoQ_GhostCapacity(t *testing.T) {
	t.Parallel()

	q := newTwoQ(2)
	for id := uint64(1); id <= 3; id++ {
		_ = q.SelectVictims([]policy.Candidate[uint64]{{ID: id, Hits: 1}})
		q.OnEvict(id)
	}
	if q.ghostList.Len() != 2 {
		t.Fatalf("want 2 ghosts, got %d", q.ghostList.Len())
	}
	if _, ok := q.ghostIdx[1]; ok {
		t.Fatal("oldest ghost must be dropped")
	}
}

func TestTwoQ_SkipsReferencedAndProtected(t *testing.T) {
	t.Parallel()

	q := newTwoQ(2)
	q.SetProtected([]uint64{2})
	got := q.SelectVictims([]policy.Candidate[uint64]{
		{ID: 1, Refs: 2, Hits: 1},
		{ID: 2, Hits: 1},
		{ID: 3, Hits: 1},
	})
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("want [3], got %v", got)
	}
}
