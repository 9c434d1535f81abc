package colorhist

// DefaultBlockBits sizes slab blocks at 1<<16 nodes. Block sizes are powers
// of two so a linear index splits into block and offset with shift and mask.
const DefaultBlockBits = 16

// nilRef marks an empty parent/left/right/next link.
const nilRef int32 = -1

// node is one distinct key's aggregation record. parent/left/right carry the
// tree links while the node is live; next is only meaningful while the node
// sits on the slab's free list.
type node[T Element] struct {
	key   Key[T]
	count float64

	parent int32
	left   int32
	right  int32

	next int32
}

func (n *node[T]) unlink() {
	n.parent, n.left, n.right, n.next = nilRef, nilRef, nilRef, nilRef
}

// slab hands out nodes from fixed-size blocks. Blocks are appended and never
// reallocated, so the address of every node (and its linear index) stays
// valid for the slab's lifetime.
//
// Node i lives at blocks[i>>bits][i&mask]. Nodes [0, live) are in use; the
// free list always starts at index live, so the live nodes form a dense
// prefix of the linear index space.
type slab[T Element] struct {
	blocks [][]node[T]
	bits   uint
	mask   int32
	free   int32
	live   int
}

func newSlab[T Element](bits uint) slab[T] {
	return slab[T]{
		bits: bits,
		mask: int32(1)<<bits - 1,
		free: nilRef,
	}
}

func (s *slab[T]) blockSize() int { return 1 << s.bits }

// allocateBlock appends a new block, threads all of its nodes into a free
// chain ending in nilRef and returns the linear index of the chain's head.
func (s *slab[T]) allocateBlock() int32 {
	size := s.blockSize()
	base := int32(len(s.blocks)) << s.bits
	block := make([]node[T], size)
	for i := range block {
		block[i].unlink()
		block[i].next = base + int32(i) + 1
	}
	block[size-1].next = nilRef
	s.blocks = append(s.blocks, block)
	return base
}

// getNew pops a node off the free list, growing the slab first if the list
// is exhausted. The returned node is zeroed and unlinked.
func (s *slab[T]) getNew() int32 {
	if s.free == nilRef {
		s.free = s.allocateBlock()
	}
	i := s.free
	n := s.node(i)
	s.free = n.next
	*n = node[T]{}
	n.unlink()
	s.live++
	return i
}

// release pushes node i back onto the free list. Only the highest live index
// may be released, which keeps the live prefix dense.
func (s *slab[T]) release(i int32) {
	if int(i) != s.live-1 {
		panic("colorhist: slab release of non-tail node")
	}
	n := s.node(i)
	*n = node[T]{}
	n.unlink()
	n.next = s.free
	s.free = i
	s.live--
}

// node returns the node at linear index i.
func (s *slab[T]) node(i int32) *node[T] {
	return &s.blocks[i>>s.bits][i&s.mask]
}

// capacity returns the number of nodes backed by allocated blocks.
func (s *slab[T]) capacity() int { return len(s.blocks) << s.bits }
