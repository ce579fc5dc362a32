package datamap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/storage"
)

func TestBuilderAndLoadRoundTrip(t *testing.T) {
	weightA := []byte{1, 2, 3, 4}
	weightB := []byte{5, 6, 7, 8, 9, 10}

	raw := NewBuilder().
		Put("w1", TensorLayout{ScalarType: dtype.Float, Sizes: []int{2, 2}, DimOrder: []int{0, 1}}, weightA).
		Put("w2", TensorLayout{ScalarType: dtype.Double, Sizes: []int{6}, DimOrder: []int{0}}, weightB).
		Build()

	m, err := Load(storage.NewBufferLoader(raw))
	require.NoError(t, err)

	assert.True(t, m.Has("w1"))
	assert.False(t, m.Has("missing"))
	assert.ElementsMatch(t, []string{"w1", "w2"}, m.Keys())

	layout, data, err := m.Get("w1")
	require.NoError(t, err)
	assert.Equal(t, dtype.Float, layout.ScalarType)
	assert.Equal(t, []int{2, 2}, layout.Sizes)
	assert.Equal(t, weightA, data)

	_, _, err = m.Get("w2")
	require.NoError(t, err)
}

func TestGetMissingKeyIsInvalidExternalData(t *testing.T) {
	raw := NewBuilder().Put("only", TensorLayout{ScalarType: dtype.Int, Sizes: []int{1}}, []byte{1}).Build()
	m, err := Load(storage.NewBufferLoader(raw))
	require.NoError(t, err)

	_, _, err = m.Get("absent")
	assert.Error(t, err)
}

func TestContentKeyIsStableAndContentAddressed(t *testing.T) {
	a := ContentKey([]byte("hello"))
	b := ContentKey([]byte("hello"))
	c := ContentKey([]byte("world"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
