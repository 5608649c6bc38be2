// Package memsrc abstracts where a chunk's backing bytes come from, the
// same role Netty's choice between a heap byte[] and a direct ByteBuffer
// plays for PoolChunk. An Arena is constructed over exactly one Source
// and asks it for fresh chunk-sized regions as it grows.
package memsrc

// Source allocates fixed-size backing regions for pool chunks and
// reclaims them on release. NewChunk must return a slice of exactly
// size bytes; the returned release func returns that region to the
// source and must be safe to call at most once.
type Source interface {
	NewChunk(size int) (mem []byte, release func() error, err error)
}

// Heap is the zero-configuration Source: each chunk is a plain Go byte
// slice managed by the garbage collector. release is a no-op, mirroring
// Netty's heap-arena mode where chunks are reclaimed by the GC rather
// than an explicit unmap.
type Heap struct{}

// NewChunk allocates a zeroed size-byte slice.
func (Heap) NewChunk(size int) (mem []byte, release func() error, err error) {
	return make([]byte, size), func() error { return nil }, nil
}
