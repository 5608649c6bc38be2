package pool

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/elayo/pagepool/internal/buf"
	"github.com/elayo/pagepool/memsrc"
)

const (
	// defaultMinSubpage is the smallest supported subpage cell size.
	defaultMinSubpage = 16

	// defaultMaxCachedChunks bounds the number of wholly-free chunks an
	// arena keeps warm in q000 before releasing them to the memory
	// source. Mirrors a bounded per-chunk buffer cache, applied one
	// level up at the arena instead of per chunk.
	defaultMaxCachedChunks = 4
)

// Allocator is the external interface a caller drives: normalize,
// dispatch to a chunk, and hand back an opaque Region.
type Allocator interface {
	Allocate(reqCapacity int) (Region, error)
	Free(r Region) error
}

// Region is the caller-facing handle an allocation hands back: chunk,
// offset, length, and the normalized capacity actually reserved. It
// carries no read/write cursor or reference count — those remain out
// of scope for this package.
type Region struct {
	Chunk     *Chunk
	Handle    Handle
	Offset    int
	Length    int
	MaxLength int
}

// Bytes returns the live byte slice backing this region. It is only
// valid until the region is freed.
func (r Region) Bytes() []byte {
	b, ok := buf.Slice(r.Chunk.memory, r.Offset, r.Length)
	if !ok {
		panic("pool: region out of bounds for its chunk")
	}
	return b
}

// SubpageMetrics reports this region's leaf-page slab metrics (cell
// count, free cell count, element size, page size), or ok == false if
// the region was satisfied by a full-run allocation instead of a
// subpage slab.
func (r Region) SubpageMetrics() (maxNumElements, numAvailable, elementSize, pageSize int, ok bool) {
	return r.Chunk.SubpageMetrics(r.Handle)
}

// subpagePool anchors one size class's doubly-linked subpage free
// list behind its own mutex — the "size-class head" named throughout
// this package's concurrency contract. Its identity is stable for
// the arena's lifetime.
type subpagePool struct {
	mu   sync.Mutex
	head *subpage
}

// chunkList is a bucket of chunks whose usage falls in [minUsage,
// maxUsage), mirroring Netty's PoolChunkList fullness buckets
// (q000..q100) so an allocation request can probe the least-full
// non-empty bucket first. listFor walks these bounds directly, so they
// are the single source of truth for bucket routing.
type chunkList struct {
	minUsage, maxUsage int
	chunks             []*Chunk
}

// Arena owns a set of chunks bucketed by fullness and one subpage pool
// per size class. It is the concrete stand-in for the "owning arena"
// the chunk/subpage layer treats as an external collaborator.
type Arena struct {
	mu sync.Mutex

	pageSize int
	maxOrder int
	chunkSize int
	minSubpage int

	src memsrc.Source
	log *slog.Logger

	sizeClasses   *sizeClassTable
	subpagePools  []*subpagePool

	qInit, q000, q025, q050, q075, q100 *chunkList

	maxCachedChunks int

	stats ArenaStats
}

// ArenaStats holds cumulative counters for diagnostics.
type ArenaStats struct {
	Chunks       int
	AllocCalls   int
	FreeCalls    int
	GrowCalls    int
	SubpageAllocs int
	RunAllocs    int
}

// ArenaOption configures NewArena.
type ArenaOption func(*Arena)

// WithMinSubpage overrides the smallest supported subpage cell size
// (default 16 bytes).
func WithMinSubpage(n int) ArenaOption {
	return func(a *Arena) { a.minSubpage = n }
}

// WithMaxCachedChunks overrides how many wholly-free chunks are kept
// warm before being released to the memory source.
func WithMaxCachedChunks(n int) ArenaOption {
	return func(a *Arena) { a.maxCachedChunks = n }
}

// WithLogger attaches a *slog.Logger for allocation/free/grow events.
// The default logger discards all output, so callers that never opt in
// never pay for logging calls.
func WithLogger(l *slog.Logger) ArenaOption {
	return func(a *Arena) { a.log = l }
}

// NewArena constructs an Arena whose chunks are pageSize<<maxOrder
// bytes, backed by src.
func NewArena(pageSize, maxOrder int, src memsrc.Source, opts ...ArenaOption) *Arena {
	if !isPowerOfTwo(pageSize) {
		panic("pool: pageSize must be a power of two")
	}
	if maxOrder < 0 || maxOrder >= 30 {
		panic("pool: maxOrder must be in [0, 30)")
	}
	chunkSize, ok := buf.MulOverflowSafe(pageSize, 1<<maxOrder)
	if !ok {
		panic("pool: pageSize << maxOrder overflows int")
	}

	a := &Arena{
		pageSize:        pageSize,
		maxOrder:        maxOrder,
		chunkSize:       chunkSize,
		minSubpage:      defaultMinSubpage,
		src:             src,
		log:             discardLogger(),
		maxCachedChunks: defaultMaxCachedChunks,
	}
	for _, opt := range opts {
		opt(a)
	}

	a.sizeClasses = newSizeClassTable(a.pageSize, a.minSubpage)
	a.subpagePools = make([]*subpagePool, a.sizeClasses.numClasses)
	for i := range a.subpagePools {
		a.subpagePools[i] = &subpagePool{head: newSubpageHead()}
	}

	a.qInit = &chunkList{minUsage: 0, maxUsage: 101}
	a.q000 = &chunkList{minUsage: 0, maxUsage: 1}
	a.q025 = &chunkList{minUsage: 1, maxUsage: 25}
	a.q050 = &chunkList{minUsage: 25, maxUsage: 50}
	a.q075 = &chunkList{minUsage: 50, maxUsage: 75}
	a.q100 = &chunkList{minUsage: 75, maxUsage: 101}

	return a
}

// subpagePoolFor returns the size-class head for normCapacity,
// implemented as an O(1) index lookup since normCapacity is guaranteed
// to be a power of two.
func (a *Arena) subpagePoolFor(normCapacity int) *subpagePool {
	return a.subpagePools[a.sizeClasses.indexOf(normCapacity)]
}

// allocateFromSubpagePool tries to satisfy normCapacity from a subpage
// already linked into this size class's free list before falling
// through to claiming a fresh leaf. ok is false when the pool is empty
// (head.next == head) or the head subpage unexpectedly has no free
// cell left, in which case the caller must probe the chunk lists.
func (a *Arena) allocateFromSubpagePool(normCapacity int) (Region, bool) {
	pool := a.subpagePoolFor(normCapacity)
	pool.mu.Lock()
	defer pool.mu.Unlock()

	head := pool.head
	if head.next == head {
		return Region{}, false
	}
	sp := head.next
	bitmapIdx, ok := sp.allocate()
	if !ok {
		return Region{}, false
	}
	h := encodeSubpageHandle(bitmapIdx, sp.memoryMapIdx)
	off, length := sp.chunk.Offset(h)
	return Region{Chunk: sp.chunk, Handle: h, Offset: off, Length: length, MaxLength: length}, true
}

// normalize rounds reqCapacity up to a supported power-of-two class.
func (a *Arena) normalize(reqCapacity int) (int, error) {
	if reqCapacity <= 0 {
		return 0, ErrInvalidCapacity
	}
	norm := reqCapacity
	if norm < a.minSubpage {
		norm = a.minSubpage
	}
	norm = nextPowerOfTwo(norm)
	if norm > a.chunkSize {
		return 0, ErrCapacityTooLarge
	}
	return norm, nil
}

// Allocate normalizes reqCapacity and reserves it from the
// least-full-first candidate chunk list, growing the arena with a
// fresh chunk if none of the existing ones can satisfy the request.
func (a *Arena) Allocate(reqCapacity int) (Region, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	normCapacity, err := a.normalize(reqCapacity)
	if err != nil {
		return Region{}, err
	}

	a.stats.AllocCalls++
	isSubpageReq := normCapacity < a.pageSize

	if isSubpageReq {
		if r, ok := a.allocateFromSubpagePool(normCapacity); ok {
			a.stats.SubpageAllocs++
			a.log.Debug("allocate", "normCapacity", normCapacity, "reused", true, "chunk.usage", r.Chunk.Usage())
			return r, nil
		}
	}

	var candidates []*chunkList
	if isSubpageReq {
		candidates = []*chunkList{a.q050, a.q025, a.q000, a.qInit, a.q075}
	} else {
		candidates = []*chunkList{a.q000, a.q050, a.q025, a.q075}
	}

	for _, list := range candidates {
		for _, c := range list.chunks {
			if h, err := c.Allocate(normCapacity); err == nil {
				a.rebucket(c)
				if isSubpageReq {
					a.stats.SubpageAllocs++
				} else {
					a.stats.RunAllocs++
				}
				off, length := c.Offset(h)
				a.log.Debug("allocate", "normCapacity", normCapacity, "chunk.usage", c.Usage())
				return Region{Chunk: c, Handle: h, Offset: off, Length: length, MaxLength: length}, nil
			}
		}
	}

	c, err := a.growLocked()
	if err != nil {
		return Region{}, err
	}
	h, err := c.Allocate(normCapacity)
	if err != nil {
		// Cannot happen: a fresh chunk can always satisfy any
		// normCapacity <= chunkSize, which normalize already enforced.
		return Region{}, fmt.Errorf("pool: fresh chunk rejected normalized request: %w", err)
	}
	a.rebucket(c)
	if isSubpageReq {
		a.stats.SubpageAllocs++
	} else {
		a.stats.RunAllocs++
	}
	off, length := c.Offset(h)
	return Region{Chunk: c, Handle: h, Offset: off, Length: length, MaxLength: length}, nil
}

// Free releases r's allocation and re-buckets its chunk by usage.
func (a *Arena) Free(r Region) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.FreeCalls++
	if err := r.Chunk.Free(r.Handle); err != nil {
		return err
	}
	a.rebucket(r.Chunk)
	a.log.Debug("free", "chunk.usage", r.Chunk.Usage())
	a.evictExcessFreeChunksLocked()
	return nil
}

// evictExcessFreeChunksLocked releases wholly-free chunks beyond
// maxCachedChunks back to the memory source, oldest first. Callers
// must hold a.mu.
func (a *Arena) evictExcessFreeChunksLocked() {
	for len(a.q000.chunks) > a.maxCachedChunks {
		c := a.q000.chunks[0]
		a.q000.chunks = a.q000.chunks[1:]
		if c.release != nil {
			if err := c.release(); err != nil {
				a.log.Warn("evict: release failed", "err", err)
			}
		}
		a.stats.Chunks--
	}
}

// growLocked allocates a fresh chunk from the memory source and adds
// it to qInit. Callers must hold a.mu.
func (a *Arena) growLocked() (*Chunk, error) {
	mem, release, err := a.src.NewChunk(a.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("pool: grow: %w", err)
	}
	c := newChunk(a, mem, release, a.pageSize, a.maxOrder, a.minSubpage)
	a.qInit.chunks = append(a.qInit.chunks, c)
	a.stats.Chunks++
	a.stats.GrowCalls++
	a.log.Info("grow", "chunkSize", a.chunkSize, "totalChunks", a.stats.Chunks)
	return c, nil
}

// rebucket moves c between fullness lists if its usage percentage has
// crossed a bucket boundary. Callers must hold a.mu.
func (a *Arena) rebucket(c *Chunk) {
	target := a.listFor(c.Usage())
	if cur := a.removeFrom(c); cur == target {
		a.append(cur, c)
		return
	}
	a.append(target, c)
}

// listFor returns the bucket whose [minUsage, maxUsage) range contains
// usage, checked in ascending order. q100's maxUsage covers the
// inclusive upper bound of 100.
func (a *Arena) listFor(usage int) *chunkList {
	for _, list := range []*chunkList{a.q000, a.q025, a.q050, a.q075, a.q100} {
		if usage >= list.minUsage && usage < list.maxUsage {
			return list
		}
	}
	return a.q100
}

// removeFrom deletes c from whichever list currently holds it (qInit
// included) and returns that list, or nil if c was not found.
func (a *Arena) removeFrom(c *Chunk) *chunkList {
	for _, list := range []*chunkList{a.qInit, a.q000, a.q025, a.q050, a.q075, a.q100} {
		for i, cand := range list.chunks {
			if cand == c {
				list.chunks = append(list.chunks[:i], list.chunks[i+1:]...)
				return list
			}
		}
	}
	return nil
}

func (a *Arena) append(list *chunkList, c *Chunk) {
	list.chunks = append(list.chunks, c)
}

// Stats returns a snapshot of cumulative allocator counters.
func (a *Arena) Stats() ArenaStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// Close releases every chunk's backing memory back to the arena's
// memory source. The arena must not be used afterward.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for _, list := range []*chunkList{a.qInit, a.q000, a.q025, a.q050, a.q075, a.q100} {
		for _, c := range list.chunks {
			if c.release == nil {
				continue
			}
			if err := c.release(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("pool: close: %w", err)
			}
		}
		list.chunks = nil
	}
	return firstErr
}

// ChunkSize returns the arena's configured chunk size.
func (a *Arena) ChunkSize() int { return a.chunkSize }

// PageSize returns the arena's configured page size.
func (a *Arena) PageSize() int { return a.pageSize }

// SizeClasses returns the arena's supported subpage size classes, in
// ascending order.
func (a *Arena) SizeClasses() []int {
	classes := make([]int, a.sizeClasses.numClasses)
	for i := range classes {
		classes[i] = a.minSubpage << i
	}
	return classes
}

// NumPages returns the number of pages per chunk (2^maxOrder).
func (a *Arena) NumPages() int { return 1 << a.maxOrder }

// discardLogger returns a *slog.Logger that drops all output, used as
// the default so logging calls never need a nil check. Matches the
// teacher's cmd/hiveexplorer/logger convention of initializing to a
// discarding slog.TextHandler until a caller opts in.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
