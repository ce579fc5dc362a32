package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/kernel"
	"github.com/itohio/nnrt/pkg/core/memory"
	"github.com/itohio/nnrt/pkg/core/method"
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

func loadTestMethod(t *testing.T) *method.Method {
	buf := buildAddProgram()
	prog, err := program.Load(storage.NewBufferLoader(buf), program.InternalConsistency)
	require.NoError(t, err)

	methodAlloc := memory.NewBumpAllocator(make([]byte, 4096))
	planned := memory.NewHierarchicalAllocator([][]byte{make([]byte, 64)})
	manager := memory.NewManager(methodAlloc, planned, nil)

	m, err := method.Load(prog, "forward", manager, addKernelRegistry(), kernel.NewDelegateRegistry(), nil)
	require.NoError(t, err)
	return m
}

func TestFullCycleTransitionsThroughStates(t *testing.T) {
	m := loadTestMethod(t)
	e := New(m, nil)
	assert.Equal(t, Ready, e.State())

	require.NoError(t, e.StartExecution())
	assert.Equal(t, InputsPartial, e.State())

	require.NoError(t, e.SetInput(0, value.NewTensor(scalarFloatTensor(2))))
	assert.Equal(t, InputsPartial, e.State())

	require.NoError(t, e.SetInput(1, value.NewTensor(scalarFloatTensor(3))))
	assert.Equal(t, InputsFull, e.State())

	require.NoError(t, e.Execute())
	assert.Equal(t, Executed, e.State())

	out, err := e.GetOutput(0)
	require.NoError(t, err)
	outTensor, err := out.AsTensor()
	require.NoError(t, err)
	v, ok := outTensor.Impl().At(0)
	require.True(t, ok)
	assert.Equal(t, float64(5), v)
}

func TestZeroInputMethodGoesStraightToInputsFull(t *testing.T) {
	buf := program.NewBuilder(1).
		AddMethod(program.MethodSpec{
			Name:       "noop",
			OutputTags: []value.Tag{value.TensorTag},
			OutputTensorInfo: []program.TensorInfo{
				{ScalarType: dtype.Float, Sizes: []int{1}},
			},
		}).
		Build()
	prog, err := program.Load(storage.NewBufferLoader(buf), program.Minimal)
	require.NoError(t, err)

	manager := memory.NewManager(memory.NewBumpAllocator(make([]byte, 4096)), nil, nil)
	m, err := method.Load(prog, "noop", manager, kernel.NewRegistry(), kernel.NewDelegateRegistry(), nil)
	require.NoError(t, err)

	e := New(m, nil)
	require.NoError(t, e.StartExecution())
	assert.Equal(t, InputsFull, e.State())
}

func TestExecuteBeforeInputsFullIsInvalidArgument(t *testing.T) {
	m := loadTestMethod(t)
	e := New(m, nil)
	err := e.Execute()
	assert.Error(t, err)
}

func TestSetInputBeforeStartExecutionIsInvalidState(t *testing.T) {
	m := loadTestMethod(t)
	e := New(m, nil)
	err := e.SetInput(0, value.NewTensor(scalarFloatTensor(1)))
	assert.Error(t, err)
}

func TestGetOutputBeforeExecutedIsInvalidState(t *testing.T) {
	m := loadTestMethod(t)
	e := New(m, nil)
	_, err := e.GetOutput(0)
	assert.Error(t, err)
}

func TestKernelFailureAbortsAndReturnsToReady(t *testing.T) {
	buf := buildAddProgram()
	prog, err := program.Load(storage.NewBufferLoader(buf), program.InternalConsistency)
	require.NoError(t, err)

	manager := memory.NewManager(memory.NewBumpAllocator(make([]byte, 4096)), memory.NewHierarchicalAllocator([][]byte{make([]byte, 64)}), nil)
	kernels := kernel.NewRegistry()
	sig := []value.Tag{value.TensorTag, value.TensorTag, value.TensorTag}
	failErr := assert.AnError
	require.NoError(t, kernels.Register("aten::add.out", sig, func(args []*value.Value) error { return failErr }))

	m, err := method.Load(prog, "forward", manager, kernels, kernel.NewDelegateRegistry(), nil)
	require.NoError(t, err)

	e := New(m, nil)
	require.NoError(t, e.StartExecution())
	require.NoError(t, e.SetInput(0, value.NewTensor(scalarFloatTensor(1))))
	require.NoError(t, e.SetInput(1, value.NewTensor(scalarFloatTensor(1))))
	require.Equal(t, InputsFull, e.State())

	err = e.Execute()
	assert.Error(t, err)
	assert.Equal(t, Ready, e.State())
}

func TestStartExecutionAgainAfterExecutedBeginsNextCycle(t *testing.T) {
	m := loadTestMethod(t)
	e := New(m, nil)
	require.NoError(t, e.StartExecution())
	require.NoError(t, e.SetInput(0, value.NewTensor(scalarFloatTensor(1))))
	require.NoError(t, e.SetInput(1, value.NewTensor(scalarFloatTensor(1))))
	require.NoError(t, e.Execute())
	require.Equal(t, Executed, e.State())

	require.NoError(t, e.StartExecution())
	assert.Equal(t, InputsPartial, e.State())
}
