package arith

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/kernel"
	"github.com/itohio/nnrt/pkg/core/tensor"
	"github.com/itohio/nnrt/pkg/core/value"
)

func floatTensor(sizes []int, data []float32) tensor.Tensor {
	dimOrder := make([]int, len(sizes))
	strides := make([]int, len(sizes))
	stride := 1
	for i := len(sizes) - 1; i >= 0; i-- {
		dimOrder[i] = i
		strides[i] = stride
		stride *= sizes[i]
	}
	impl, err := tensor.NewImpl(dtype.Float, sizes, dimOrder, strides, append([]float32(nil), data...), tensor.Static)
	if err != nil {
		panic(err)
	}
	return tensor.NewTensor(impl, tensor.MutableView)
}

func TestAddOut(t *testing.T) {
	r := kernel.NewRegistry()
	require.NoError(t, Register(r))

	fn, err := r.Resolve("aten::add.out", []value.Tag{value.TensorTag, value.TensorTag, value.TensorTag})
	require.NoError(t, err)

	a := value.NewTensor(floatTensor([]int{3}, []float32{1, 2, 3}))
	b := value.NewTensor(floatTensor([]int{3}, []float32{10, 20, 30}))
	out := value.NewTensor(floatTensor([]int{3}, []float32{0, 0, 0}))

	require.NoError(t, fn([]*value.Value{&a, &b, &out}))

	outTensor, err := out.AsTensor()
	require.NoError(t, err)
	for i, want := range []float64{11, 22, 33} {
		v, ok := outTensor.Impl().At(i)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestMulOut(t *testing.T) {
	r := kernel.NewRegistry()
	require.NoError(t, Register(r))

	fn, err := r.Resolve("aten::mul.out", []value.Tag{value.TensorTag, value.TensorTag, value.TensorTag})
	require.NoError(t, err)

	a := value.NewTensor(floatTensor([]int{2}, []float32{2, 3}))
	b := value.NewTensor(floatTensor([]int{2}, []float32{4, 5}))
	out := value.NewTensor(floatTensor([]int{2}, []float32{0, 0}))

	require.NoError(t, fn([]*value.Value{&a, &b, &out}))

	outTensor, err := out.AsTensor()
	require.NoError(t, err)
	v0, _ := outTensor.Impl().At(0)
	v1, _ := outTensor.Impl().At(1)
	assert.Equal(t, float64(8), v0)
	assert.Equal(t, float64(15), v1)
}

func TestReluOutClampsNegatives(t *testing.T) {
	r := kernel.NewRegistry()
	require.NoError(t, Register(r))

	fn, err := r.Resolve("aten::relu.out", []value.Tag{value.TensorTag, value.TensorTag})
	require.NoError(t, err)

	in := value.NewTensor(floatTensor([]int{3}, []float32{-1, 0, 2}))
	out := value.NewTensor(floatTensor([]int{3}, []float32{0, 0, 0}))

	require.NoError(t, fn([]*value.Value{&in, &out}))

	outTensor, err := out.AsTensor()
	require.NoError(t, err)
	for i, want := range []float64{0, 0, 2} {
		v, ok := outTensor.Impl().At(i)
		require.True(t, ok)
		assert.Equal(t, want, v)
	}
}

func TestAddOutRejectsNonTensorArgs(t *testing.T) {
	r := kernel.NewRegistry()
	require.NoError(t, Register(r))

	fn, err := r.Resolve("aten::add.out", []value.Tag{value.TensorTag, value.TensorTag, value.TensorTag})
	require.NoError(t, err)

	a := value.NewInt(1)
	b := value.NewTensor(floatTensor([]int{1}, []float32{1}))
	out := value.NewTensor(floatTensor([]int{1}, []float32{0}))
	err = fn([]*value.Value{&a, &b, &out})
	assert.Error(t, err)
}
