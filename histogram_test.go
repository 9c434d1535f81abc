package colorhist

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rgb(r, g, b uint8) Key[uint8] { return MustKey(r, g, b) }

func newRGB(t testing.TB, opts ...Option) *Histogram[uint8] {
	t.Helper()
	h, err := New[uint8](3, opts...)
	require.NoError(t, err)
	return h
}

// checkTree verifies the tree links: every live node is reachable from the
// head exactly once, parent links mirror child links, and keys are strictly
// ordered in-order.
func checkTree[T Element](t *testing.T, h *Histogram[T]) {
	t.Helper()
	if h.Len() == 0 {
		require.Equal(t, nilRef, h.head)
		return
	}
	require.NotEqual(t, nilRef, h.head)
	require.Equal(t, nilRef, h.slab.node(h.head).parent)

	seen := make(map[int32]bool, h.Len())
	var prev *Key[T]
	var walk func(i int32)
	walk = func(i int32) {
		if i == nilRef {
			return
		}
		require.False(t, seen[i], "node %d reached twice", i)
		require.Less(t, int(i), h.Len(), "link to non-live node %d", i)
		seen[i] = true
		n := h.slab.node(i)
		if n.left != nilRef {
			require.Equal(t, i, h.slab.node(n.left).parent)
		}
		if n.right != nilRef {
			require.Equal(t, i, h.slab.node(n.right).parent)
		}
		walk(n.left)
		if prev != nil {
			require.True(t, prev.Less(n.key), "in-order %v before %v", *prev, n.key)
		}
		k := n.key
		prev = &k
		walk(n.right)
	}
	walk(h.head)
	require.Len(t, seen, h.Len())
}

func TestNew_Validation(t *testing.T) {
	_, err := New[uint8](0)
	require.ErrorIs(t, err, ErrArity)
	_, err = New[uint8](MaxArity + 1)
	require.ErrorIs(t, err, ErrArity)
	_, err = New[uint8](3, WithBlockBits(0))
	require.Error(t, err)
	_, err = New[uint8](3, WithBlockBits(25))
	require.Error(t, err)
}

func TestHistogram_Scenario(t *testing.T) {
	h := newRGB(t)
	for i := 0; i < 5; i++ {
		h.Add(1, rgb(1, 1, 1))
	}
	for i := 0; i < 3; i++ {
		h.Add(1, rgb(2, 2, 2))
	}
	h.Add(1, rgb(9, 9, 9))

	require.Equal(t, 3, h.Len())
	assert.Equal(t, 9.0, h.Total())

	h.Sort()
	assert.Equal(t, Entry[uint8]{rgb(9, 9, 9), 1}, h.At(0))
	assert.Equal(t, Entry[uint8]{rgb(2, 2, 2), 3}, h.At(1))
	assert.Equal(t, Entry[uint8]{rgb(1, 1, 1), 5}, h.At(2))
}

func TestHistogram_AccumulationIsAdditive(t *testing.T) {
	split := newRGB(t)
	once := newRGB(t)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		k := rgb(uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)))
		w1, w2 := rng.Float64()*10, rng.Float64()*10
		split.Add(w1, k)
		split.Add(w2, k)
		once.Add(w1+w2, k)
	}
	require.Equal(t, once.Len(), split.Len())
	for _, e := range once.Entries() {
		assert.InDelta(t, e.Count, split.Count(e.Key), 1e-9)
	}
}

func TestHistogram_DistinctKeysIndependentOfOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var obs []Key[uint8]
	distinct := map[Key[uint8]]float64{}
	for i := 0; i < 3000; i++ {
		k := rgb(uint8(rng.Intn(16)), uint8(rng.Intn(16)), uint8(rng.Intn(4)))
		obs = append(obs, k)
		distinct[k]++
	}

	for trial := 0; trial < 3; trial++ {
		rng.Shuffle(len(obs), func(i, j int) { obs[i], obs[j] = obs[j], obs[i] })
		h := newRGB(t, WithBlockBits(6))
		for _, k := range obs {
			h.Add(1, k)
		}
		require.Equal(t, len(distinct), h.Len())
		for k, c := range distinct {
			assert.Equal(t, c, h.Count(k))
		}
		checkTree(t, h)
	}
}

func TestHistogram_LookupAndCount(t *testing.T) {
	h := newRGB(t)
	h.Add(2, rgb(10, 20, 30))
	h.Add(0.5, rgb(0, 0, 0))

	i, ok := h.Lookup(rgb(10, 20, 30))
	require.True(t, ok)
	assert.Equal(t, rgb(10, 20, 30), h.At(i).Key)

	_, ok = h.Lookup(rgb(1, 1, 1))
	assert.False(t, ok)
	assert.Zero(t, h.Count(rgb(1, 1, 1)))
	assert.Equal(t, 0.5, h.Count(rgb(0, 0, 0)))

	_, ok = h.Lookup(MustKey[uint8](10, 20))
	assert.False(t, ok)
}

func TestHistogram_TryAddRejectsContractViolations(t *testing.T) {
	h := newRGB(t)
	require.ErrorIs(t, h.TryAdd(1, MustKey[uint8](1, 2)), ErrArity)
	require.ErrorIs(t, h.TryAdd(-1, rgb(1, 2, 3)), ErrWeight)
	assert.Zero(t, h.Len())

	assert.Panics(t, func() { h.Add(1, MustKey[uint8](1, 2, 3, 4)) })
	require.NoError(t, h.TryAdd(0, rgb(1, 2, 3)))
	assert.Equal(t, 1, h.Len())
}

func TestHistogram_AtOutOfRangePanics(t *testing.T) {
	h := newRGB(t)
	h.Add(1, rgb(1, 2, 3))
	assert.Panics(t, func() { h.At(1) })
	assert.Panics(t, func() { h.At(-1) })
}

func TestHistogram_NodeAddressStableAcrossBlockGrowth(t *testing.T) {
	h := newRGB(t, WithBlockBits(2))
	h.Add(4, rgb(128, 128, 128))
	i, ok := h.Lookup(rgb(128, 128, 128))
	require.True(t, ok)
	n := h.slab.node(int32(i))

	for r := 0; r < 50; r++ {
		h.Add(1, rgb(uint8(r*5), uint8(r), 3))
	}
	require.Greater(t, len(h.slab.blocks), 10)

	assert.Same(t, n, h.slab.node(int32(i)))
	assert.Equal(t, rgb(128, 128, 128), n.key)
	assert.Equal(t, 4.0, n.count)
	checkTree(t, h)
}

func TestHistogram_IncreasingKeysDegenerate(t *testing.T) {
	h := newRGB(t)
	for i := 0; i < 100; i++ {
		h.Add(1, rgb(uint8(i), 0, 0))
	}
	assert.Equal(t, 100, h.Depth())
	checkTree(t, h)
}

func TestHistogram_RemoveLeafAndMissing(t *testing.T) {
	h := newRGB(t)
	h.Add(1, rgb(5, 5, 5))
	h.Add(2, rgb(3, 3, 3))
	h.Add(3, rgb(7, 7, 7))

	assert.False(t, h.Remove(rgb(9, 9, 9)))
	assert.False(t, h.Remove(MustKey[uint8](5, 5)))
	require.True(t, h.Remove(rgb(7, 7, 7)))

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 3.0, h.Total())
	_, ok := h.Lookup(rgb(7, 7, 7))
	assert.False(t, ok)
	checkTree(t, h)
}

func TestHistogram_RemoveTwoChildrenAndRoot(t *testing.T) {
	h := newRGB(t, WithBlockBits(2))
	keys := []uint8{50, 30, 70, 20, 40, 60, 80, 35, 45, 65}
	for _, v := range keys {
		h.Add(float64(v), rgb(v, 0, 0))
	}
	checkTree(t, h)

	for _, v := range []uint8{30, 50, 70, 20} {
		require.True(t, h.Remove(rgb(v, 0, 0)), "remove %d", v)
		checkTree(t, h)
	}
	assert.Equal(t, len(keys)-4, h.Len())
	for _, v := range []uint8{40, 60, 80, 35, 45, 65} {
		assert.Equal(t, float64(v), h.Count(rgb(v, 0, 0)))
	}
}

func TestHistogram_RemoveKeepsPositionsDense(t *testing.T) {
	h := newRGB(t, WithBlockBits(2))
	for v := 0; v < 10; v++ {
		h.Add(1, rgb(uint8(v*7%10), 0, 0))
	}
	require.True(t, h.Remove(rgb(3, 0, 0)))
	require.True(t, h.Remove(rgb(9, 0, 0)))

	seen := map[Key[uint8]]bool{}
	for i, e := range h.Entries() {
		assert.Less(t, i, h.Len())
		seen[e.Key] = true
	}
	assert.Len(t, seen, 8)
	assert.False(t, seen[rgb(3, 0, 0)])

	// Freed slots are reused before the slab grows again.
	blocks := len(h.slab.blocks)
	h.Add(1, rgb(100, 0, 0))
	h.Add(1, rgb(101, 0, 0))
	assert.Equal(t, blocks, len(h.slab.blocks))
	assert.Equal(t, 10, h.Len())
	checkTree(t, h)
}

func TestHistogram_RemoveAllThenReuse(t *testing.T) {
	h := newRGB(t, WithBlockBits(1))
	for v := uint8(0); v < 5; v++ {
		h.Add(1, rgb(v, v, v))
	}
	for v := uint8(0); v < 5; v++ {
		require.True(t, h.Remove(rgb(v, v, v)))
	}
	assert.Zero(t, h.Len())
	assert.Zero(t, h.Depth())
	checkTree(t, h)

	h.Add(2, rgb(1, 1, 1))
	assert.Equal(t, 2.0, h.Count(rgb(1, 1, 1)))
}

func TestHistogram_WiderElements(t *testing.T) {
	h, err := New[int32](2)
	require.NoError(t, err)
	h.Add(1, MustKey[int32](-1_000_000, 5))
	h.Add(1, MustKey[int32](1_000_000, 5))
	h.Add(1, MustKey[int32](-1_000_000, 5))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 2.0, h.Count(MustKey[int32](-1_000_000, 5)))
}
