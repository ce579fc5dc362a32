package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpAllocatorAlignsAndAdvances(t *testing.T) {
	a := NewBumpAllocator(make([]byte, 64))

	b1, err := a.Allocate(3, 1)
	require.NoError(t, err)
	assert.Len(t, b1, 3)

	b2, err := a.Allocate(8, 8)
	require.NoError(t, err)
	assert.Len(t, b2, 8)
	assert.Equal(t, 16, a.Used())
}

func TestBumpAllocatorExhaustion(t *testing.T) {
	a := NewBumpAllocator(make([]byte, 4))
	_, err := a.Allocate(5, 1)
	assert.Error(t, err)
}

func TestBumpAllocatorResetReclaims(t *testing.T) {
	a := NewBumpAllocator(make([]byte, 8))
	_, err := a.Allocate(8, 1)
	require.NoError(t, err)
	_, err = a.Allocate(1, 1)
	assert.Error(t, err)

	a.Reset()
	_, err = a.Allocate(8, 1)
	assert.NoError(t, err)
}

func TestBumpAllocatorRejectsBadAlignment(t *testing.T) {
	a := NewBumpAllocator(make([]byte, 8))
	_, err := a.Allocate(1, 3)
	assert.Error(t, err)
}

func TestMallocAllocatorNeverExhausts(t *testing.T) {
	a := NewMallocAllocator()
	for i := 0; i < 100; i++ {
		_, err := a.Allocate(1024, 8)
		require.NoError(t, err)
	}
	assert.Equal(t, 100, a.Count())
	a.Reset()
	assert.Equal(t, 0, a.Count())
}

func TestHierarchicalAllocatorPlacesByOffset(t *testing.T) {
	h := NewHierarchicalAllocator([][]byte{make([]byte, 16), make([]byte, 8)})
	assert.Equal(t, 2, h.NumArenas())

	b, err := h.GetOffsetAddress(0, 4, 4)
	require.NoError(t, err)
	assert.Len(t, b, 4)

	_, err = h.GetOffsetAddress(0, 14, 4)
	assert.Error(t, err)

	_, err = h.GetOffsetAddress(5, 0, 1)
	assert.Error(t, err)
}

func TestAllocateArrayAndPinned(t *testing.T) {
	a := NewBumpAllocator(make([]byte, 128))

	arr, err := AllocateArray[int32](a, 4)
	require.NoError(t, err)
	arr[0] = 7
	assert.Equal(t, int32(7), arr[0])

	p, err := AllocatePinned[int64](a)
	require.NoError(t, err)
	*p = 42
	assert.Equal(t, int64(42), *p)
}

func TestManagerResetTemp(t *testing.T) {
	temp := NewBumpAllocator(make([]byte, 8))
	m := NewManager(nil, nil, temp)
	_, err := temp.Allocate(8, 1)
	require.NoError(t, err)

	m.ResetTemp()
	_, err = temp.Allocate(8, 1)
	assert.NoError(t, err)
}
