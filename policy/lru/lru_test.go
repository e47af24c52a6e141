package lru

import (
	"testing"

	"github.com/IvanBrykalov/lodcache/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Victims come back oldest first.
func TestLRU_SelectVictims_Order(t *testing.T) {
	t.Parallel()

	p := New[uint64](100, 1)
	got := p.SelectVictims([]policy.Candidate[uint64]{
		{ID: 3, LastUsed: 30, Size: 40},
		{ID: 1, LastUsed: 10, Size: 40},
		{ID: 2, LastUsed: 20, Size: 40},
	})
	assert.Equal(t, []uint64{1, 2, 3}, got)
}

// Equal access times fall back to ascending id.
func TestLRU_SelectVictims_TieBreak(t *testing.T) {
	t.Parallel()

	p := New[uint64](100, 1)
	got := p.SelectVictims([]policy.Candidate[uint64]{
		{ID: 8, LastUsed: 5},
		{ID: 3, LastUsed: 5},
		{ID: 5, LastUsed: 5},
	})
	assert.Equal(t, []uint64{3, 5, 8}, got)
}

// Referenced and protected objects are never proposed, whatever their age.
func TestLRU_SelectVictims_SkipsReferencedAndProtected(t *testing.T) {
	t.Parallel()

	p := New[uint64](100, 1)
	tun, ok := p.(policy.Tunable[uint64])
	require.True(t, ok, "lru must be tunable")
	tun.SetProtected([]uint64{2})

	got := p.SelectVictims([]policy.Candidate[uint64]{
		{ID: 1, LastUsed: 1, Refs: 1},
		{ID: 2, LastUsed: 2},
		{ID: 3, LastUsed: 3},
	})
	assert.Equal(t, []uint64{3}, got)
}

// The input slice must not be reordered.
func TestLRU_SelectVictims_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	p := New[uint64](100, 1)
	in := []policy.Candidate[uint64]{{ID: 2, LastUsed: 2}, {ID: 1, LastUsed: 1}}
	_ = p.SelectVictims(in)
	assert.Equal(t, uint64(2), in[0].ID)
}

func TestLRU_Activation(t *testing.T) {
	t.Parallel()

	p := New[uint64](100, 0.8)
	assert.True(t, p.WillActivate(policy.Usage{Used: 120}))
	assert.False(t, p.IsSatisfied(policy.Usage{Used: 120}))
	assert.True(t, p.IsSatisfied(policy.Usage{Used: 80}))
	assert.Equal(t, int64(100), p.MaxMemory())
}
