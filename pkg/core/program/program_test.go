package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/storage"
	"github.com/itohio/nnrt/pkg/core/value"
)

func TestCheckHeaderBoundaryBehaviors(t *testing.T) {
	assert.Equal(t, ShortData, CheckHeader(nil))
	assert.Equal(t, ShortData, CheckHeader([]byte{0, 0, 0}))
	assert.Equal(t, NotPresent, CheckHeader(make([]byte, 40)))

	valid := NewBuilder(1).Build()
	assert.Equal(t, CompatibleVersion, CheckHeader(valid[:32]))
}

func TestCheckHeaderIncompatibleVersion(t *testing.T) {
	h := writeHeader(99)
	assert.Equal(t, IncompatibleVersion, CheckHeader(h))
}

func buildSampleProgram() []byte {
	return NewBuilder(1).
		AddMethod(MethodSpec{
			Name:                    "forward",
			NumMemoryPlannedBuffers: 1,
			PlannedBufferSizes:      []int{64},
			Backends:                []string{"cpu"},
			InputTags:               []value.Tag{value.TensorTag, value.TensorTag},
			OutputTags:              []value.Tag{value.TensorTag},
			InputTensorInfo: []TensorInfo{
				{ScalarType: dtype.Float, Sizes: []int{1}},
				{ScalarType: dtype.Float, Sizes: []int{1}},
			},
			OutputTensorInfo: []TensorInfo{
				{ScalarType: dtype.Float, Sizes: []int{1}},
			},
			Instructions: []InstructionSpec{
				{OpOrBackend: "aten::add.out", ArgSlots: []int{0, 1, 2}, IsDelegate: false},
			},
			OutputPlacements: []Placement{
				{ArenaID: 0, Offset: 0, Planned: true},
			},
		}).
		Build()
}

func TestLoadMinimalSucceedsOnValidHeader(t *testing.T) {
	buf := buildSampleProgram()
	loader := storage.NewBufferLoader(buf)

	prog, err := Load(loader, Minimal)
	require.NoError(t, err)
	assert.Equal(t, 1, prog.NumMethods())
	assert.Equal(t, []string{"forward"}, prog.MethodNames())
}

func TestLoadInternalConsistencySucceedsOnWellFormedProgram(t *testing.T) {
	buf := buildSampleProgram()
	loader := storage.NewBufferLoader(buf)

	prog, err := Load(loader, InternalConsistency)
	require.NoError(t, err)
	assert.False(t, prog.HasNamedDataMap())
}

func TestLoadRejectsBadHeader(t *testing.T) {
	loader := storage.NewBufferLoader(make([]byte, 40))
	_, err := Load(loader, Minimal)
	assert.Error(t, err)
}

func TestMethodMetaFields(t *testing.T) {
	buf := buildSampleProgram()
	prog, err := Load(storage.NewBufferLoader(buf), Minimal)
	require.NoError(t, err)

	meta, err := prog.MethodMetaByName("forward")
	require.NoError(t, err)
	assert.Equal(t, "forward", meta.Name())
	assert.Equal(t, 2, meta.NumInputs())
	assert.Equal(t, 1, meta.NumOutputs())
	assert.Equal(t, 1, meta.NumMemoryPlannedBuffers())
	assert.Equal(t, []string{"cpu"}, meta.Backends())

	size, err := meta.PlannedBufferSize(0)
	require.NoError(t, err)
	assert.Equal(t, 64, size)

	tag, err := meta.InputTag(0)
	require.NoError(t, err)
	assert.Equal(t, value.TensorTag, tag)

	info, ok := meta.OutputTensorInfo(0)
	require.True(t, ok)
	assert.Equal(t, dtype.Float, info.ScalarType)
	assert.Equal(t, []int{1}, info.Sizes)
}

func TestMethodMetaInstructions(t *testing.T) {
	buf := buildSampleProgram()
	prog, err := Load(storage.NewBufferLoader(buf), InternalConsistency)
	require.NoError(t, err)

	meta, err := prog.MethodMetaByName("forward")
	require.NoError(t, err)
	require.Equal(t, 1, meta.NumInstructions())

	ins, err := meta.Instruction(0)
	require.NoError(t, err)
	assert.Equal(t, "aten::add.out", ins.OpOrBackend())
	assert.Equal(t, []int{0, 1, 2}, ins.ArgSlots())
	assert.False(t, ins.IsDelegate())

	_, err = meta.Instruction(1)
	assert.Error(t, err)
}

func TestMethodMetaPlacements(t *testing.T) {
	buf := buildSampleProgram()
	prog, err := Load(storage.NewBufferLoader(buf), InternalConsistency)
	require.NoError(t, err)

	meta, err := prog.MethodMetaByName("forward")
	require.NoError(t, err)

	out, err := meta.OutputPlacement(0)
	require.NoError(t, err)
	assert.True(t, out.Planned)
	assert.Equal(t, 0, out.ArenaID)
	assert.Equal(t, 0, out.Offset)

	in, err := meta.InputPlacement(0)
	require.NoError(t, err)
	assert.False(t, in.Planned)
}

func TestMethodMetaAttributes(t *testing.T) {
	buf := NewBuilder(1).
		AddMethod(MethodSpec{
			Name:       "forward",
			InputTags:  []value.Tag{value.TensorTag},
			OutputTags: []value.Tag{value.TensorTag},
			Attributes: []AttributeSpec{
				{Name: "forward.w", ScalarType: dtype.Float, Sizes: []int{2, 2}},
			},
		}).
		Build()
	prog, err := Load(storage.NewBufferLoader(buf), InternalConsistency)
	require.NoError(t, err)

	meta, err := prog.MethodMetaByName("forward")
	require.NoError(t, err)
	require.Equal(t, 1, meta.NumAttributes())

	attr, err := meta.Attribute(0)
	require.NoError(t, err)
	assert.Equal(t, "forward.w", attr.Name)
	assert.Equal(t, dtype.Float, attr.ScalarType)
	assert.Equal(t, []int{2, 2}, attr.Sizes)

	_, err = meta.Attribute(1)
	assert.Error(t, err)
}

func TestMethodMetaByNameNotFound(t *testing.T) {
	buf := buildSampleProgram()
	prog, err := Load(storage.NewBufferLoader(buf), Minimal)
	require.NoError(t, err)

	_, err = prog.MethodMetaByName("missing")
	assert.Error(t, err)
}
