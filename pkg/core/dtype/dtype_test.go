package dtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementSizePacked(t *testing.T) {
	assert.Equal(t, 1, QUInt4x2.ElementSize())
	assert.Equal(t, 1, QUInt2x4.ElementSize())
	assert.Equal(t, 2, Half.ElementSize())
	assert.Equal(t, 0, Undefined.ElementSize())
}

func TestUndefinedNeverValid(t *testing.T) {
	assert.False(t, Undefined.Valid())
	assert.True(t, Float.Valid())
	assert.False(t, ScalarType(255).Valid())
}

func TestRoundTripFloat(t *testing.T) {
	data := NewSlice(Float, 4)
	require.True(t, SetFloat64(Float, data, 2, 3.5))
	v, ok := AsFloat64(Float, data, 2)
	require.True(t, ok)
	assert.Equal(t, 3.5, v)
	assert.Equal(t, 4, Len(Float, data))
}

func TestWrongAccessorFails(t *testing.T) {
	data := NewSlice(Float, 2)
	_, ok := AsFloat64(Double, data, 0)
	assert.False(t, ok)
	assert.Equal(t, -1, Len(Double, data))
}

func TestOutOfRange(t *testing.T) {
	data := NewSlice(Int, 2)
	_, ok := AsFloat64(Int, data, 5)
	assert.False(t, ok)
	assert.False(t, SetFloat64(Int, data, -1, 1))
}
