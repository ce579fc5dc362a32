package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/tensor"
)

func makeTensor(t *testing.T) tensor.Tensor {
	impl, err := tensor.NewImpl(dtype.Float, []int{2}, []int{0}, []int{1}, dtype.NewSlice(dtype.Float, 2), tensor.Static)
	require.NoError(t, err)
	return tensor.NewTensor(impl, tensor.ImmutableView)
}

func TestScalarRoundTrips(t *testing.T) {
	iv := NewInt(42)
	got, err := iv.AsInt()
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	dv := NewDouble(3.5)
	d, err := dv.AsDouble()
	require.NoError(t, err)
	assert.Equal(t, 3.5, d)

	bv := NewBool(true)
	b, err := bv.AsBool()
	require.NoError(t, err)
	assert.True(t, b)

	sv := NewString("hi")
	s, err := sv.AsString()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
}

func TestWrongAccessorReturnsInvalidType(t *testing.T) {
	iv := NewInt(1)
	_, err := iv.AsDouble()
	assert.ErrorIs(t, err, nnerr.ErrInvalidType)
	_, err = iv.AsBool()
	assert.ErrorIs(t, err, nnerr.ErrInvalidType)
}

func TestListDoubleAndListBoolAreBorrowedNotBoxed(t *testing.T) {
	lv := NewListDouble([]float64{1, 2, 3})
	got, err := lv.AsListDouble()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	bv := NewListBool([]bool{true, false})
	bgot, err := bv.AsListBool()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, bgot)
}

func TestBoxedListIntResolvesFromValueTable(t *testing.T) {
	a := NewInt(10)
	b := NewInt(20)
	bl, err := NewBoxedList([]*Value{&a, &b}, ResolveInt64, false)
	require.NoError(t, err)
	v := NewListInt(bl)

	got, err := v.AsListInt()
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20}, got)

	// Rebinding the slot changes the next read.
	a = NewInt(99)
	got, err = v.AsListInt()
	require.NoError(t, err)
	assert.Equal(t, []int64{99, 20}, got)
}

func TestBoxedListNonOptionalRejectsNilAtConstruction(t *testing.T) {
	a := NewInt(1)
	_, err := NewBoxedList([]*Value{&a, nil}, ResolveInt64, false)
	assert.Error(t, err)
}

func TestBoxedListTagMismatchIsInvalidType(t *testing.T) {
	a := NewDouble(1.5)
	bl, err := NewBoxedList([]*Value{&a}, ResolveInt64, false)
	require.NoError(t, err)
	v := NewListInt(bl)

	_, err = v.AsListInt()
	assert.ErrorIs(t, err, nnerr.ErrInvalidType)
}

func TestBoxedListOptionalTensorNilEncodesNone(t *testing.T) {
	ten := NewTensor(makeTensor(t))
	bl, err := NewBoxedList([]*Value{&ten, nil}, ResolveOptionalTensor, true)
	require.NoError(t, err)
	v := NewListOptionalTensor(bl)

	got, err := v.AsListOptionalTensor()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Present)
	assert.False(t, got[1].Present)
}

func TestBoxedListTensorRoundTrip(t *testing.T) {
	ten := NewTensor(makeTensor(t))
	bl, err := NewBoxedList([]*Value{&ten}, ResolveTensor, false)
	require.NoError(t, err)
	v := NewListTensor(bl)

	got, err := v.AsListTensor()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tensor.ImmutableView, got[0].Kind())
}
