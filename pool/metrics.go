package pool

import "fmt"

// formatChunkUsage renders a chunk's usage as a short diagnostic
// string: percentage plus raw used/total byte counts.
func formatChunkUsage(usage, used, total int) string {
	return fmt.Sprintf("Chunk(%d%%, %d/%d)", usage, used, total)
}

// String renders a subpage for diagnostics: active subpages show
// utilization, offset, length and element size; inactive slots (never
// allocated, or allocated then fully freed and unlinked) render as
// "not in use".
func (sp *subpage) String() string {
	if sp == nil || !sp.doNotDestroy {
		return fmt.Sprintf("(memoryMapIdx: %d: not in use)", sp.safeMemoryMapIdx())
	}
	return fmt.Sprintf("(memoryMapIdx: %d: %d/%d, offset: %d, length: %d, elemSize: %d)",
		sp.memoryMapIdx, sp.maxNumElems-sp.numAvail, sp.maxNumElems,
		sp.runOffset, sp.pageSize, sp.elemSize)
}

func (sp *subpage) safeMemoryMapIdx() int {
	if sp == nil {
		return -1
	}
	return sp.memoryMapIdx
}

// MaxNumElements returns the subpage's cell count for its current size
// class, or 0 if the subpage has never been initialized.
func (sp *subpage) MaxNumElements() int { return sp.maxNumElems }

// NumAvailable returns the subpage's free cell count.
func (sp *subpage) NumAvailable() int { return sp.numAvail }

// ElementSize returns the subpage's current size class.
func (sp *subpage) ElementSize() int { return sp.elemSize }

// PageSize returns the page size shared by all subpages in the chunk.
func (sp *subpage) PageSize() int { return sp.pageSize }
