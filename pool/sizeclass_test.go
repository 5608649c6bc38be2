package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSizeClassIndexOfRoundTrip verifies every power-of-two class in
// [minSubpage, pageSize) maps to a distinct, increasing index.
func TestSizeClassIndexOfRoundTrip(t *testing.T) {
	table := newSizeClassTable(8192, 16)
	require.Equal(t, 9, table.numClasses) // 16,32,...,4096

	prev := -1
	for shift := 4; shift < 13; shift++ { // 16 .. 4096
		size := 1 << shift
		idx := table.indexOf(size)
		assert.Greater(t, idx, prev)
		prev = idx
	}
}

// TestLog2PanicsOnNonPositive confirms log2 rejects inputs that could
// never be a valid normalized capacity.
func TestLog2PanicsOnNonPositive(t *testing.T) {
	assert.Panics(t, func() { log2(0) })
	assert.Panics(t, func() { log2(-1) })
}

// TestNextPowerOfTwo checks boundary behavior around exact powers.
func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{
		1:   1,
		2:   2,
		3:   4,
		16:  16,
		17:  32,
		512: 512,
		513: 1024,
	}
	for in, want := range cases {
		assert.Equal(t, want, nextPowerOfTwo(in), "nextPowerOfTwo(%d)", in)
	}
}

// TestIsPowerOfTwo checks a handful of true/false boundary cases.
func TestIsPowerOfTwo(t *testing.T) {
	assert.True(t, isPowerOfTwo(1))
	assert.True(t, isPowerOfTwo(8192))
	assert.False(t, isPowerOfTwo(0))
	assert.False(t, isPowerOfTwo(-4))
	assert.False(t, isPowerOfTwo(6))
}
