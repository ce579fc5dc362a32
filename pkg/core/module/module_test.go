package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/kernel"
	"github.com/itohio/nnrt/pkg/core/program"
	"github.com/itohio/nnrt/pkg/core/storage"
	"github.com/itohio/nnrt/pkg/core/tensor"
	"github.com/itohio/nnrt/pkg/core/value"
)

func buildAddProgram() []byte {
	return program.NewBuilder(1).
		AddMethod(program.MethodSpec{
			Name:                    "forward",
			NumMemoryPlannedBuffers: 1,
			PlannedBufferSizes:      []int{64},
			Backends:                []string{"cpu"},
			InputTags:               []value.Tag{value.TensorTag, value.TensorTag},
			OutputTags:              []value.Tag{value.TensorTag},
			InputTensorInfo: []program.TensorInfo{
				{ScalarType: dtype.Float, Sizes: []int{1}},
				{ScalarType: dtype.Float, Sizes: []int{1}},
			},
			OutputTensorInfo: []program.TensorInfo{
				{ScalarType: dtype.Float, Sizes: []int{1}},
			},
			OutputPlacements: []program.Placement{
				{ArenaID: 0, Offset: 0, Planned: true},
			},
			Instructions: []program.InstructionSpec{
				{OpOrBackend: "aten::add.out", ArgSlots: []int{0, 1, 2}, IsDelegate: false},
			},
		}).
		Build()
}

func addKernelRegistry() *kernel.Registry {
	r := kernel.NewRegistry()
	sig := []value.Tag{value.TensorTag, value.TensorTag, value.TensorTag}
	r.Register("aten::add.out", sig, func(args []*value.Value) error {
		a, _ := args[0].AsTensor()
		b, _ := args[1].AsTensor()
		out, _ := args[2].AsTensor()
		av, _ := a.Impl().At(0)
		bv, _ := b.Impl().At(0)
		out.Impl().SetAt(av+bv, 0)
		return nil
	})
	return r
}

func scalarFloatTensor(v float32) tensor.Tensor {
	impl, _ := tensor.NewImpl(dtype.Float, []int{1}, []int{0}, []int{1}, []float32{v}, tensor.Static)
	return tensor.NewTensor(impl, tensor.ImmutableView)
}

func TestModuleForwardReturnsOwnedOutput(t *testing.T) {
	buf := buildAddProgram()
	mod := New(storage.NewBufferLoader(buf), addKernelRegistry())

	outputs, err := mod.Forward([]value.Value{
		value.NewTensor(scalarFloatTensor(2)),
		value.NewTensor(scalarFloatTensor(3)),
	})
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	outTensor, err := outputs[0].AsTensor()
	require.NoError(t, err)
	v, ok := outTensor.Impl().At(0)
	require.True(t, ok)
	assert.Equal(t, float64(5), v)
}

func TestModuleExecuteOutputSurvivesNextExecution(t *testing.T) {
	buf := buildAddProgram()
	mod := New(storage.NewBufferLoader(buf), addKernelRegistry())

	first, err := mod.Execute("forward", []value.Value{
		value.NewTensor(scalarFloatTensor(1)),
		value.NewTensor(scalarFloatTensor(1)),
	})
	require.NoError(t, err)

	_, err = mod.Execute("forward", []value.Value{
		value.NewTensor(scalarFloatTensor(10)),
		value.NewTensor(scalarFloatTensor(20)),
	})
	require.NoError(t, err)

	firstTensor, err := first[0].AsTensor()
	require.NoError(t, err)
	v, ok := firstTensor.Impl().At(0)
	require.True(t, ok)
	assert.Equal(t, float64(2), v, "first execution's output copy must be unaffected by the second execution")
}

func TestModuleMethodNamesAndMeta(t *testing.T) {
	buf := buildAddProgram()
	mod := New(storage.NewBufferLoader(buf), addKernelRegistry())

	names, err := mod.MethodNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"forward"}, names)

	n, err := mod.NumMethods()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	meta, err := mod.MethodMeta("forward")
	require.NoError(t, err)
	assert.Equal(t, 2, meta.NumInputs())
}

func TestModuleLoadMethodIsIdempotent(t *testing.T) {
	buf := buildAddProgram()
	mod := New(storage.NewBufferLoader(buf), addKernelRegistry())

	e1, err := mod.LoadMethod("forward", nil, nil)
	require.NoError(t, err)
	e2, err := mod.LoadMethod("forward", nil, nil)
	require.NoError(t, err)
	assert.Same(t, e1, e2)
}

func TestModuleExecuteUnknownMethodErrors(t *testing.T) {
	buf := buildAddProgram()
	mod := New(storage.NewBufferLoader(buf), addKernelRegistry())

	_, err := mod.Execute("missing", nil)
	assert.Error(t, err)
}
