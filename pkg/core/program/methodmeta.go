package program

import (
	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/value"
)

// TensorInfo is the optional per-slot tensor metadata a MethodMeta
// reports for Tensor-tagged inputs/outputs: scalar type plus extents.
// Non-Tensor slots, and slots whose tensor metadata was not recorded
// at export time, have no TensorInfo.
type TensorInfo struct {
	ScalarType dtype.ScalarType
	Sizes      []int
}

// MethodMeta is read-only metadata for one method, resolved without
// loading the method itself.
type MethodMeta struct {
	mt fbTable
}

func newMethodMeta(mt fbTable) *MethodMeta {
	return &MethodMeta{mt: mt}
}

// Name returns the method's declared name.
func (m *MethodMeta) Name() string { return m.mt.stringField(methodFieldName) }

// NumInputs returns the method's input count.
func (m *MethodMeta) NumInputs() int { return int(m.mt.uint32Field(methodFieldNumInputs, 0)) }

// NumOutputs returns the method's output count.
func (m *MethodMeta) NumOutputs() int { return int(m.mt.uint32Field(methodFieldNumOutputs, 0)) }

// NumMemoryPlannedBuffers returns the number of memory arenas the
// memory planner allocated for this method.
func (m *MethodMeta) NumMemoryPlannedBuffers() int {
	return int(m.mt.uint32Field(methodFieldNumMemoryPlannedBuffers, 0))
}

// PlannedBufferSize returns the size in bytes of planned arena i, or
// NotFound if i is out of range.
func (m *MethodMeta) PlannedBufferSize(i int) (int, error) {
	sizes := m.mt.uint32Vector(methodFieldPlannedBufferSizes)
	if i < 0 || i >= len(sizes) {
		return 0, nnerr.New(nnerr.NotFound, "planned buffer index out of range")
	}
	return int(sizes[i]), nil
}

// Backends returns the declared backend names this method's delegate
// calls resolve against.
func (m *MethodMeta) Backends() []string {
	return m.mt.stringVector(methodFieldBackends)
}

// InputTag returns the declared Value tag of input i, or an error if
// i is out of range.
func (m *MethodMeta) InputTag(i int) (value.Tag, error) {
	tags := m.mt.uint8Vector(methodFieldInputTags)
	if i < 0 || i >= len(tags) {
		return value.None, nnerr.New(nnerr.NotFound, "input index out of range")
	}
	return value.Tag(tags[i]), nil
}

// OutputTag returns the declared Value tag of output i, or an error if
// i is out of range.
func (m *MethodMeta) OutputTag(i int) (value.Tag, error) {
	tags := m.mt.uint8Vector(methodFieldOutputTags)
	if i < 0 || i >= len(tags) {
		return value.None, nnerr.New(nnerr.NotFound, "output index out of range")
	}
	return value.Tag(tags[i]), nil
}

// InputTensorInfo returns the optional tensor metadata for input i. ok
// is false when i is out of range or no valid scalar type was recorded
// for the input; a zero-length sizes run with a valid scalar type is
// reported as a 0-dim tensor.
func (m *MethodMeta) InputTensorInfo(i int) (info TensorInfo, ok bool) {
	return tensorInfoAt(m.mt, methodFieldInputScalarTypes, methodFieldInputSizesFlat, methodFieldInputSizesOffsets, i)
}

// OutputTensorInfo returns the optional tensor metadata for output i.
func (m *MethodMeta) OutputTensorInfo(i int) (info TensorInfo, ok bool) {
	return tensorInfoAt(m.mt, methodFieldOutputScalarTypes, methodFieldOutputSizesFlat, methodFieldOutputSizesOffsets, i)
}

// Placement is where the memory planner fixed a tensor slot: arena id
// plus byte offset within that arena. Planned reports false for a
// slot the plan left for the caller to supply (an unplanned input).
type Placement struct {
	ArenaID int
	Offset  int
	Planned bool
}

func placementAt(mt fbTable, arenaSlot, offsetSlot, i int) (Placement, error) {
	arenas := mt.uint32Vector(arenaSlot)
	offsets := mt.uint32Vector(offsetSlot)
	if i < 0 || i >= len(arenas) || i >= len(offsets) {
		return Placement{}, nnerr.New(nnerr.NotFound, "slot index out of range")
	}
	if arenas[i] == unplannedArena {
		return Placement{Planned: false}, nil
	}
	return Placement{ArenaID: int(arenas[i]), Offset: int(offsets[i]), Planned: true}, nil
}

// InputPlacement returns where input i's tensor data is memory-planned,
// or Planned=false if the plan left it for the caller to supply.
func (m *MethodMeta) InputPlacement(i int) (Placement, error) {
	return placementAt(m.mt, methodFieldInputArenaIDs, methodFieldInputOffsets, i)
}

// OutputPlacement returns where output i's tensor data is memory-planned.
func (m *MethodMeta) OutputPlacement(i int) (Placement, error) {
	return placementAt(m.mt, methodFieldOutputArenaIDs, methodFieldOutputOffsets, i)
}

// AttributeInfo describes one external constant tensor: its
// fully-qualified name in the named data map, and the layout the
// method expects it to have.
type AttributeInfo struct {
	Name       string
	ScalarType dtype.ScalarType
	Sizes      []int
}

// NumAttributes returns the number of external constant tensors this
// method declares.
func (m *MethodMeta) NumAttributes() int { return m.mt.tableVectorLen(methodFieldAttributes) }

// Attribute returns attribute i, or NotFound if i is out of range.
func (m *MethodMeta) Attribute(i int) (AttributeInfo, error) {
	if i < 0 || i >= m.NumAttributes() {
		return AttributeInfo{}, nnerr.New(nnerr.NotFound, "attribute index out of range")
	}
	at := m.mt.tableVectorAt(methodFieldAttributes, i)
	sizes := at.uint32Vector(attributeFieldSizes)
	out := make([]int, len(sizes))
	for j, s := range sizes {
		out[j] = int(s)
	}
	return AttributeInfo{
		Name:       at.stringField(attributeFieldName),
		ScalarType: dtype.ScalarType(at.uint8Field(attributeFieldScalarType, 0)),
		Sizes:      out,
	}, nil
}

// Instruction is one step of a method's execution plan: either a
// kernel call (IsDelegate false, OpOrBackend the operator name) or a
// delegate call (IsDelegate true, OpOrBackend the backend name).
// ArgSlots indexes the method's combined input||output||attribute
// slot space.
type Instruction struct {
	mt fbTable
}

// OpOrBackend returns the operator name for a kernel instruction, or
// the backend name for a delegate instruction.
func (ins Instruction) OpOrBackend() string { return ins.mt.stringField(instructionFieldOpOrBackend) }

// ArgSlots returns the argument slot indices in declaration order.
func (ins Instruction) ArgSlots() []int {
	raw := ins.mt.uint32Vector(instructionFieldArgSlots)
	out := make([]int, len(raw))
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}

// IsDelegate reports whether this instruction is a delegate call
// rather than a kernel call.
func (ins Instruction) IsDelegate() bool { return ins.mt.boolField(instructionFieldIsDelegate, false) }

// NumInstructions returns the number of instructions in this method's
// execution plan.
func (m *MethodMeta) NumInstructions() int { return m.mt.tableVectorLen(methodFieldInstructions) }

// Instruction returns instruction i, or NotFound if i is out of range.
func (m *MethodMeta) Instruction(i int) (Instruction, error) {
	if i < 0 || i >= m.NumInstructions() {
		return Instruction{}, nnerr.New(nnerr.NotFound, "instruction index out of range")
	}
	return Instruction{mt: m.mt.tableVectorAt(methodFieldInstructions, i)}, nil
}

func tensorInfoAt(mt fbTable, typesSlot, flatSlot, offsetsSlot, i int) (TensorInfo, bool) {
	types := mt.uint8Vector(typesSlot)
	offsets := mt.uint32Vector(offsetsSlot)
	if i < 0 || i >= len(types) || i+1 >= len(offsets) {
		return TensorInfo{}, false
	}
	st := dtype.ScalarType(types[i])
	if !st.Valid() {
		return TensorInfo{}, false
	}
	flat := mt.uint32Vector(flatSlot)
	start, end := offsets[i], offsets[i+1]
	if start > end || int(end) > len(flat) {
		return TensorInfo{}, false
	}
	sizes := make([]int, end-start)
	for j := range sizes {
		sizes[j] = int(flat[start+uint32(j)])
	}
	return TensorInfo{ScalarType: st, Sizes: sizes}, true
}
