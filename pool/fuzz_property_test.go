package pool

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elayo/pagepool/memsrc"
)

// TestFuzzRandomAllocFreeGuardInvariants drives a fixed-seed sequence of
// random allocate/free operations and checks that live regions never
// overlap and that every allocation call is matched by a free call.
func TestFuzzRandomAllocFreeGuardInvariants(t *testing.T) {
	a := NewArena(8192, 11, memsrc.Heap{})
	rng := rand.New(rand.NewSource(42))

	var liveSlice []Region

	overlaps := func(chunk *Chunk, off, length int) bool {
		for _, r := range liveSlice {
			if r.Chunk != chunk {
				continue
			}
			if off < r.Offset+r.Length && r.Offset < off+length {
				return true
			}
		}
		return false
	}

	for i := 0; i < 500; i++ {
		if len(liveSlice) > 0 && rng.Intn(3) == 0 {
			idx := rng.Intn(len(liveSlice))
			r := liveSlice[idx]
			require.NoError(t, a.Free(r))
			liveSlice = append(liveSlice[:idx], liveSlice[idx+1:]...)
			continue
		}

		size := 16 + rng.Intn(20000)
		r, err := a.Allocate(size)
		if err != nil {
			continue
		}
		require.False(t, overlaps(r.Chunk, r.Offset, r.Length), "step %d: new region overlaps a live one", i)
		liveSlice = append(liveSlice, r)
	}

	for _, r := range liveSlice {
		require.NoError(t, a.Free(r))
	}

	stats := a.Stats()
	assert.Equal(t, stats.AllocCalls, stats.FreeCalls, "every successful allocation must eventually be freed")
}
