package pool

// subpage subdivides a single leaf page into maxNumElems equal-sized
// cells tracked by a bitmap. It is created once per leaf and reused
// (via init) across size classes for the lifetime of its owning chunk.
//
// subpage is threaded into a doubly-linked, size-class-scoped free list
// anchored by a sentinel head (see subpagePool); prev/next are nil iff
// the subpage is not currently linked into any pool.
type subpage struct {
	chunk        *Chunk
	memoryMapIdx int
	runOffset    int
	pageSize     int

	elemSize     int
	maxNumElems  int
	bitmapLength int
	bitmap       []uint64

	numAvail  int
	nextAvail int

	doNotDestroy bool

	prev, next *subpage
}

// newSubpage constructs a subpage bound to one leaf of chunk. The
// bitmap is sized for the smallest supported element (minSubpage
// bytes) so that re-running init at a different size class never
// reallocates it, so a leaf's backing bitmap storage survives being
// handed to a different size class over its lifetime.
func newSubpage(chunk *Chunk, memoryMapIdx, runOffset, pageSize, minSubpage int) *subpage {
	words := (pageSize/minSubpage + 63) / 64
	return &subpage{
		chunk:        chunk,
		memoryMapIdx: memoryMapIdx,
		runOffset:    runOffset,
		pageSize:     pageSize,
		bitmap:       make([]uint64, words),
	}
}

// newSubpageHead constructs a standalone sentinel node anchoring one
// size class's free list. Its chunk is nil and its fields are inert;
// it exists only to give addToPool/removeFromPool a node to splice
// around. prev/next self-loop when the pool is empty.
func newSubpageHead() *subpage {
	h := &subpage{doNotDestroy: true}
	h.prev = h
	h.next = h
	return h
}

// init (re)initializes the subpage for elemSize and links it to the
// front of head's pool. Called both on first use of a leaf and every
// time a leaf is reused for a (possibly different) size class.
func (sp *subpage) init(head *subpage, elemSize int) {
	if elemSize <= 0 {
		panic("pool: subpage.init called with non-positive elemSize")
	}
	sp.doNotDestroy = true
	sp.elemSize = elemSize
	sp.maxNumElems = sp.pageSize / elemSize
	sp.numAvail = sp.maxNumElems
	sp.nextAvail = 0
	sp.bitmapLength = (sp.maxNumElems + 63) / 64
	for i := 0; i < sp.bitmapLength; i++ {
		sp.bitmap[i] = 0
	}
	sp.addToPool(head)
}

// allocate reserves the lowest-index free cell, returning its bitmap
// index. ok is false if the subpage has no free cells or is dead.
func (sp *subpage) allocate() (bitmapIdx int, ok bool) {
	if sp.numAvail == 0 || !sp.doNotDestroy {
		return 0, false
	}

	idx := sp.getNextAvail()
	if idx < 0 {
		return 0, false
	}

	q, r := idx>>6, uint(idx&63)
	sp.bitmap[q] |= uint64(1) << r

	sp.numAvail--
	if sp.numAvail == 0 {
		sp.removeFromPool()
	}
	return idx, true
}

// free releases bitmapIdx. The returned bool reports whether the
// subpage remains in use (still linked into head's pool, underlying
// page stays allocated); false means the caller must release the leaf
// back to the buddy tree.
func (sp *subpage) free(head *subpage, bitmapIdx int) bool {
	q, r := bitmapIdx>>6, uint(bitmapIdx&63)
	sp.bitmap[q] &^= uint64(1) << r
	sp.nextAvail = bitmapIdx

	if sp.numAvail == 0 {
		sp.numAvail++
		sp.addToPool(head)
		return true
	}

	sp.numAvail++
	if sp.numAvail != sp.maxNumElems {
		return true
	}

	// Fully free. If this subpage is the only non-head node in the
	// pool, keep it linked to amortize the next allocation at this
	// size class instead of churning the leaf.
	if sp.prev == sp.next {
		return true
	}

	sp.doNotDestroy = false
	sp.removeFromPool()
	return false
}

func (sp *subpage) addToPool(head *subpage) {
	sp.prev = head
	sp.next = head.next
	sp.next.prev = sp
	head.next = sp
}

func (sp *subpage) removeFromPool() {
	sp.prev.next = sp.next
	sp.next.prev = sp.prev
	sp.next = nil
	sp.prev = nil
}

func (sp *subpage) getNextAvail() int {
	if sp.nextAvail >= 0 {
		n := sp.nextAvail
		sp.nextAvail = -1
		return n
	}
	return sp.findNextAvail()
}

// findNextAvail scans lowest-word-first, lowest-bit-first, biasing
// reuse toward low addresses within the page.
func (sp *subpage) findNextAvail() int {
	for i := 0; i < sp.bitmapLength; i++ {
		bits := sp.bitmap[i]
		if ^bits != 0 {
			if idx := sp.findNextAvail0(i, bits); idx >= 0 {
				return idx
			}
		}
	}
	return -1
}

func (sp *subpage) findNextAvail0(i int, bits uint64) int {
	base := i << 6
	for j := 0; j < 64; j++ {
		if bits&1 == 0 {
			val := base | j
			if val < sp.maxNumElems {
				return val
			}
			return -1
		}
		bits >>= 1
	}
	return -1
}
