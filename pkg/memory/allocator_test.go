package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPUAllocatorGetExactMatch(t *testing.T) {
	a := NewCPUAllocator(64, 0)

	addr1, err := a.Get(16)
	require.NoError(t, err)
	assert.Equal(t, 0, addr1.Offset)

	require.NoError(t, a.Put(addr1))

	addr2, err := a.Get(16)
	require.NoError(t, err)
	assert.Equal(t, addr1, addr2, "freeing and re-requesting the same size should match the freed block exactly")
}

func TestCPUAllocatorSplitsBestFit(t *testing.T) {
	a := NewCPUAllocator(64, 0)

	addr, err := a.Get(16)
	require.NoError(t, err)
	assert.Equal(t, 16, addr.Size)

	second, err := a.Get(8)
	require.NoError(t, err)
	assert.Equal(t, 16, second.Offset, "second allocation should come from the remainder of the first block")
}

func TestCPUAllocatorGrowsNewBlock(t *testing.T) {
	a := NewCPUAllocator(16, 0)

	first, err := a.Get(16)
	require.NoError(t, err)

	second, err := a.Get(16)
	require.NoError(t, err)
	assert.NotEqual(t, first.BlockID, second.BlockID, "exhausting a block should allocate a new one")
}

func TestCPUAllocatorCoalescesOnPut(t *testing.T) {
	a := NewCPUAllocator(64, 0)

	first, err := a.Get(16)
	require.NoError(t, err)
	second, err := a.Get(16)
	require.NoError(t, err)

	require.NoError(t, a.Put(first))
	require.NoError(t, a.Put(second))

	// the whole 64-byte block should be free and contiguous again, so a
	// single 48-byte request (16+16+16 remainder) should satisfy without
	// growing a new block.
	third, err := a.Get(48)
	require.NoError(t, err)
	assert.Equal(t, first.BlockID, third.BlockID)
	assert.Equal(t, 0, third.Offset)
}

func TestCPUAllocatorMaxAllocateExceeded(t *testing.T) {
	a := NewCPUAllocator(16, 16)

	_, err := a.Get(16)
	require.NoError(t, err)

	_, err = a.Get(16)
	assert.Error(t, err)
}

func TestCPUAllocatorPutUnknownAddress(t *testing.T) {
	a := NewCPUAllocator(16, 0)
	err := a.Put(Address{BlockID: 99, Offset: 0})
	assert.Error(t, err)
}

func TestPoolGetPutRoundTrip(t *testing.T) {
	p := NewPool()

	kind, addr, err := p.Get([]Kind{Cpu}, 32)
	require.NoError(t, err)
	assert.Equal(t, Cpu, kind)

	buf := p.Bytes(kind, addr)
	require.Len(t, buf, 32)
	buf[0] = 0xAB

	require.NoError(t, p.Put(kind, addr))
}
