package colorhist

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

var (
	// ErrArity is returned when a key's arity does not match the histogram's.
	ErrArity = errors.New("key arity mismatch")
	// ErrWeight is returned for negative or NaN weights.
	ErrWeight = errors.New("invalid weight")
)

// Entry is one distinct key and its accumulated weight.
type Entry[T Element] struct {
	Key   Key[T]
	Count float64
}

// View is an indexable, sized collection of entries. *Histogram satisfies it;
// the clustering functions only need a View.
type View[T Element] interface {
	Len() int
	At(i int) Entry[T]
}

// Option configures a Histogram.
type Option func(*options)

type options struct {
	blockBits uint
}

// WithBlockBits sets the slab block size to 1<<bits nodes. bits must be in
// [1, 24].
func WithBlockBits(bits uint) Option {
	return func(o *options) { o.blockBits = bits }
}

// Histogram accumulates weights per distinct Key.
//
// Keys are held in an unbalanced binary search tree whose nodes live in a
// slab, so Add is O(depth) and positional access through At is O(1). Depth
// depends on insertion order: strictly increasing keys degrade the tree to a
// list. Pixel colors are diverse enough that this is not a problem in
// practice.
//
// After Sort, positions are ordered by weight and the tree links are stale;
// they are rebuilt by RebuildTree, or lazily by the next Add, Lookup or
// Remove. A Histogram is not safe for concurrent use.
type Histogram[T Element] struct {
	slab   slab[T]
	head   int32
	arity  int
	total  float64
	stale  bool
	sorted bool
}

// New returns an empty histogram for keys of the given arity.
func New[T Element](arity int, opts ...Option) (*Histogram[T], error) {
	if arity < 1 || arity > MaxArity {
		return nil, fmt.Errorf("colorhist: arity must be in [1, %d], got %d: %w", MaxArity, arity, ErrArity)
	}
	o := options{blockBits: DefaultBlockBits}
	for _, opt := range opts {
		opt(&o)
	}
	if o.blockBits < 1 || o.blockBits > 24 {
		return nil, fmt.Errorf("colorhist: block bits must be in [1, 24], got %d", o.blockBits)
	}
	return &Histogram[T]{
		slab:  newSlab[T](o.blockBits),
		head:  nilRef,
		arity: arity,
	}, nil
}

// Arity returns the key arity fixed at construction.
func (h *Histogram[T]) Arity() int { return h.arity }

// Len returns the number of distinct keys.
func (h *Histogram[T]) Len() int { return h.slab.live }

// Total returns the sum of all accumulated weights.
func (h *Histogram[T]) Total() float64 { return h.total }

// Sorted reports whether positions are currently in ascending weight order.
func (h *Histogram[T]) Sorted() bool { return h.sorted }

// At returns the entry at position i. It panics if i is out of range.
func (h *Histogram[T]) At(i int) Entry[T] {
	n := h.nodeAt(i)
	return Entry[T]{Key: n.key, Count: n.count}
}

func (h *Histogram[T]) nodeAt(i int) *node[T] {
	if i < 0 || i >= h.slab.live {
		panic(fmt.Sprintf("colorhist: index %d out of range [0, %d)", i, h.slab.live))
	}
	return h.slab.node(int32(i))
}

// Entries yields every position and its entry in positional order.
func (h *Histogram[T]) Entries() iter.Seq2[int, Entry[T]] {
	return func(yield func(int, Entry[T]) bool) {
		for i := 0; i < h.slab.live; i++ {
			n := h.slab.node(int32(i))
			if !yield(i, Entry[T]{Key: n.key, Count: n.count}) {
				return
			}
		}
	}
}

func (h *Histogram[T]) checkAdd(w float64, key Key[T]) error {
	if key.Arity() != h.arity {
		return fmt.Errorf("colorhist: key %v has arity %d, histogram has %d: %w", key, key.Arity(), h.arity, ErrArity)
	}
	if w < 0 || math.IsNaN(w) {
		return fmt.Errorf("colorhist: weight %v for key %v: %w", w, key, ErrWeight)
	}
	return nil
}

// TryAdd is Add with the arity and weight checks reported as errors.
func (h *Histogram[T]) TryAdd(w float64, key Key[T]) error {
	if err := h.checkAdd(w, key); err != nil {
		return err
	}
	h.add(w, key)
	return nil
}

// Add accumulates weight w onto key, inserting the key if it is new. It
// panics on an arity mismatch or a negative or NaN weight.
func (h *Histogram[T]) Add(w float64, key Key[T]) {
	if err := h.checkAdd(w, key); err != nil {
		panic(err)
	}
	h.add(w, key)
}

func (h *Histogram[T]) add(w float64, key Key[T]) {
	h.ensureTree()
	n := h.slab.node(h.at(key))
	n.count += w
	h.total += w
	h.sorted = false
}

// at returns the index of key's node, allocating and linking a new node if
// the key is absent.
func (h *Histogram[T]) at(key Key[T]) int32 {
	if h.head == nilRef {
		h.head = h.newNode(key, nilRef)
		return h.head
	}
	p := h.head
	for {
		pn := h.slab.node(p)
		switch key.Compare(pn.key) {
		case -1:
			if pn.left != nilRef {
				p = pn.left
				continue
			}
			// pn stays valid across getNew: blocks never move.
			pn.left = h.newNode(key, p)
			return pn.left
		case 1:
			if pn.right != nilRef {
				p = pn.right
				continue
			}
			pn.right = h.newNode(key, p)
			return pn.right
		default:
			return p
		}
	}
}

func (h *Histogram[T]) newNode(key Key[T], parent int32) int32 {
	i := h.slab.getNew()
	n := h.slab.node(i)
	n.key = key
	n.parent = parent
	return i
}

// find returns the index of key's node or nilRef.
func (h *Histogram[T]) find(key Key[T]) int32 {
	p := h.head
	for p != nilRef {
		pn := h.slab.node(p)
		switch key.Compare(pn.key) {
		case -1:
			p = pn.left
		case 1:
			p = pn.right
		default:
			return p
		}
	}
	return nilRef
}

// Lookup returns the current position of key.
func (h *Histogram[T]) Lookup(key Key[T]) (int, bool) {
	if key.Arity() != h.arity {
		return 0, false
	}
	h.ensureTree()
	i := h.find(key)
	if i == nilRef {
		return 0, false
	}
	return int(i), true
}

// Count returns the accumulated weight of key, or 0 if it is absent.
func (h *Histogram[T]) Count(key Key[T]) float64 {
	i, ok := h.Lookup(key)
	if !ok {
		return 0
	}
	return h.slab.node(int32(i)).count
}

// Remove deletes key and returns whether it was present.
//
// The key's node is spliced out of the tree. To keep positions dense, the
// node at the last position is then moved into the vacated slot and the last
// slot is returned to the slab's free list. Positions other than the removed
// one and the last one are unchanged.
func (h *Histogram[T]) Remove(key Key[T]) bool {
	if key.Arity() != h.arity {
		return false
	}
	h.ensureTree()
	z := h.find(key)
	if z == nilRef {
		return false
	}
	zn := h.slab.node(z)
	h.total -= zn.count

	switch {
	case zn.left == nilRef:
		h.transplant(z, zn.right)
	case zn.right == nilRef:
		h.transplant(z, zn.left)
	default:
		y := h.minimum(zn.right)
		yn := h.slab.node(y)
		if yn.parent != z {
			h.transplant(y, yn.right)
			yn.right = zn.right
			h.slab.node(yn.right).parent = y
		}
		h.transplant(z, y)
		yn.left = zn.left
		h.slab.node(yn.left).parent = y
	}

	last := int32(h.slab.live - 1)
	if z != last {
		h.relocate(last, z)
	}
	h.slab.release(last)
	h.sorted = false
	return true
}

// transplant replaces the subtree rooted at u with the subtree rooted at v.
func (h *Histogram[T]) transplant(u, v int32) {
	un := h.slab.node(u)
	switch {
	case un.parent == nilRef:
		h.head = v
	case h.slab.node(un.parent).left == u:
		h.slab.node(un.parent).left = v
	default:
		h.slab.node(un.parent).right = v
	}
	if v != nilRef {
		h.slab.node(v).parent = un.parent
	}
}

func (h *Histogram[T]) minimum(i int32) int32 {
	for {
		l := h.slab.node(i).left
		if l == nilRef {
			return i
		}
		i = l
	}
}

// relocate moves the live node at src into the unused slot dst and repoints
// every link that referred to src.
func (h *Histogram[T]) relocate(src, dst int32) {
	sn, dn := h.slab.node(src), h.slab.node(dst)
	*dn = *sn
	switch {
	case dn.parent == nilRef:
		h.head = dst
	case h.slab.node(dn.parent).left == src:
		h.slab.node(dn.parent).left = dst
	default:
		h.slab.node(dn.parent).right = dst
	}
	if dn.left != nilRef {
		h.slab.node(dn.left).parent = dst
	}
	if dn.right != nilRef {
		h.slab.node(dn.right).parent = dst
	}
}

// Depth returns the number of nodes on the longest root-to-leaf path.
func (h *Histogram[T]) Depth() int {
	h.ensureTree()
	if h.head == nilRef {
		return 0
	}
	type frame struct {
		i     int32
		depth int
	}
	deepest := 0
	stack := []frame{{h.head, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		deepest = max(deepest, f.depth)
		n := h.slab.node(f.i)
		if n.left != nilRef {
			stack = append(stack, frame{n.left, f.depth + 1})
		}
		if n.right != nilRef {
			stack = append(stack, frame{n.right, f.depth + 1})
		}
	}
	return deepest
}
