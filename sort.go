package colorhist

import (
	"fmt"
	"sort"
)

// byCount sorts the live prefix of a slab by ascending count. It addresses
// nodes through the block/offset split, so the segmented storage never has
// to be copied into one contiguous slice.
type byCount[T Element] struct {
	s *slab[T]
}

func (b byCount[T]) Len() int { return b.s.live }

func (b byCount[T]) Less(i, j int) bool {
	return b.s.node(int32(i)).count < b.s.node(int32(j)).count
}

// Swap exchanges payloads only; tree links are rebuilt afterwards.
func (b byCount[T]) Swap(i, j int) {
	a, c := b.s.node(int32(i)), b.s.node(int32(j))
	a.key, c.key = c.key, a.key
	a.count, c.count = c.count, a.count
}

// Sort reorders positions by ascending weight: At(0) is the lightest key and
// At(Len()-1) the heaviest. Equal weights end up in unspecified order.
//
// Sort leaves the tree links stale. They are rebuilt by RebuildTree or by
// the next operation that searches the tree.
func (h *Histogram[T]) Sort() {
	if h.sorted {
		return
	}
	sort.Sort(byCount[T]{&h.slab})
	h.sorted = true
	h.stale = h.slab.live > 0
}

func (h *Histogram[T]) ensureTree() {
	if h.stale {
		h.RebuildTree()
	}
}

// RebuildTree relinks the tree over the current positions, inserting them in
// positional order with position 0 as the root. Afterwards a key search and
// positional access agree on every node.
func (h *Histogram[T]) RebuildTree() {
	h.stale = false
	n := int32(h.slab.live)
	if n == 0 {
		h.head = nilRef
		return
	}
	h.head = 0
	h.slab.node(0).unlink()
	for i := int32(1); i < n; i++ {
		in := h.slab.node(i)
		in.unlink()
		p := h.head
		for {
			pn := h.slab.node(p)
			c := in.key.Compare(pn.key)
			if c == 0 {
				// Keys are deduplicated on insert, so this means the slab
				// was corrupted.
				panic(fmt.Sprintf("colorhist: duplicate key %v at positions %d and %d", in.key, p, i))
			}
			next := &pn.right
			if c < 0 {
				next = &pn.left
			}
			if *next == nilRef {
				*next = i
				in.parent = p
				break
			}
			p = *next
		}
	}
}

// TopK returns up to k heaviest entries, heaviest first. It sorts the
// histogram if needed.
func (h *Histogram[T]) TopK(k int) []Entry[T] {
	h.Sort()
	k = min(max(k, 0), h.slab.live)
	out := make([]Entry[T], 0, k)
	for i := h.slab.live - 1; i >= h.slab.live-k; i-- {
		out = append(out, h.At(i))
	}
	return out
}
