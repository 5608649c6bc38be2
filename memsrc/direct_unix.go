//go:build linux || darwin || freebsd

package memsrc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Direct backs chunks with anonymous mmap regions instead of the Go
// heap, mirroring Netty's direct-ByteBuffer arena mode. It is useful
// when chunks should bypass the garbage collector or be eligible for
// page-level tricks (madvise, huge pages) the heap allocator does not
// expose.
type Direct struct{}

// NewChunk mmaps a private, anonymous, zero-filled region of size
// bytes. release munmaps it; calling release more than once is not
// safe, matching the single-use contract documented on Source.
func (Direct) NewChunk(size int) (mem []byte, release func() error, err error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, nil, fmt.Errorf("memsrc: mmap: %w", err)
	}
	release = func() error {
		return unix.Munmap(data)
	}
	return data, release, nil
}
