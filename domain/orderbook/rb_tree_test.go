package orderbook

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRBTreeInsertFindDelete(t *testing.T) {
	tree := NewRBTree()
	pl1 := tree.UpsertLevel(100)
	require.NotNil(t, pl1)
	require.Same(t, pl1, tree.FindLevel(100))

	tree.UpsertLevel(200)
	require.Equal(t, uint64(100), tree.MinLevel().Price)
	require.Equal(t, uint64(200), tree.MaxLevel().Price)

	require.True(t, tree.DeleteLevel(100))
	require.Nil(t, tree.FindLevel(100))
	require.Equal(t, uint64(200), tree.MinLevel().Price)
	require.Equal(t, 1, tree.Size())
}

func TestDeleteNonExistentLevel(t *testing.T) {
	tree := NewRBTree()
	require.False(t, tree.DeleteLevel(123))
}

func TestEmptyTreeMinMax(t *testing.T) {
	tree := NewRBTree()
	require.Nil(t, tree.MinLevel())
	require.Nil(t, tree.MaxLevel())
	require.Nil(t, tree.Successor(0))
	require.Nil(t, tree.Predecessor(1<<63))
}

func TestUpsertDuplicateLevel(t *testing.T) {
	tree := NewRBTree()
	require.Same(t, tree.UpsertLevel(150), tree.UpsertLevel(150))
	require.Equal(t, 1, tree.Size())
}

func TestSuccessorPredecessorOfMissingKey(t *testing.T) {
	tree := NewRBTree()
	for _, p := range []uint64{10, 20, 30} {
		tree.UpsertLevel(p)
	}
	require.Equal(t, uint64(20), tree.Successor(15).Price)
	require.Equal(t, uint64(30), tree.Successor(20).Price)
	require.Nil(t, tree.Successor(30))
	require.Equal(t, uint64(10), tree.Predecessor(15).Price)
	require.Nil(t, tree.Predecessor(10))
}

// Random inserts and deletes against a sorted reference, checking the
// red-black properties and the cached extremes after every step.
func TestRBTreeRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tree := NewRBTree()
	ref := map[uint64]bool{}

	for i := 0; i < 4000; i++ {
		price := uint64(rng.Intn(500) + 1)
		if rng.Intn(3) == 0 {
			require.Equal(t, ref[price], tree.DeleteLevel(price))
			delete(ref, price)
		} else {
			tree.UpsertLevel(price)
			ref[price] = true
		}

		require.Positive(t, tree.blackHeight(tree.root), "red-black property broken at step %d", i)
		require.Equal(t, len(ref), tree.Size())
		if len(ref) == 0 {
			require.Nil(t, tree.MinLevel())
			require.Nil(t, tree.MaxLevel())
			continue
		}
		keys := make([]uint64, 0, len(ref))
		for k := range ref {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
		require.Equal(t, keys[0], tree.MinLevel().Price)
		require.Equal(t, keys[len(keys)-1], tree.MaxLevel().Price)
	}

	var asc []uint64
	tree.ForEachAscending(func(pl *PriceLevel) bool {
		asc = append(asc, pl.Price)
		return true
	})
	require.True(t, sort.SliceIsSorted(asc, func(a, b int) bool { return asc[a] < asc[b] }))
	require.Len(t, asc, len(ref))
}
