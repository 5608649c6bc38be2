package pool

import "errors"

var (
	// ErrChunkFull indicates a chunk cannot satisfy a request; the arena
	// should try another chunk or grow. Non-fatal.
	ErrChunkFull = errors.New("pool: chunk cannot satisfy request")

	// ErrCapacityTooLarge indicates a normalized capacity exceeds the
	// chunk size and can never be satisfied by any chunk in this arena.
	ErrCapacityTooLarge = errors.New("pool: normalized capacity exceeds chunk size")

	// ErrInvalidCapacity indicates a requested capacity is zero, negative,
	// or otherwise cannot be normalized to a supported power-of-two class.
	ErrInvalidCapacity = errors.New("pool: capacity must be positive")

	// ErrDoubleFree indicates a handle was freed whose target node is
	// already free.
	ErrDoubleFree = errors.New("pool: handle already free")

	// ErrForeignHandle indicates a handle was presented to a chunk that
	// did not allocate it.
	ErrForeignHandle = errors.New("pool: handle does not belong to this chunk")
)
