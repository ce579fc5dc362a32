package program

import (
	flatbuffers "github.com/google/flatbuffers/go"
)

// The wire format is a fixed header (see header.go) followed by one
// flatbuffer root table, written and read through the flatbuffers
// runtime directly rather than through flatc-generated bindings, since
// the schema is small enough to hand-maintain.
//
// programTable field slots:
//
//	0  version                  uint32
//	1  methods                  [methodTable]
//	2  hasNamedDataMap          bool
//
// methodTable field slots:
//
//	0  name                     string
//	1  numInputs                uint32
//	2  numOutputs               uint32
//	3  numMemoryPlannedBuffers  uint32
//	4  plannedBufferSizes       [uint32]
//	5  backends                 [string]
//	6  inputTags                [uint8]
//	7  outputTags               [uint8]
//	8  inputScalarTypes         [uint8]
//	9  outputScalarTypes        [uint8]
//	10 inputSizesFlat           [uint32]
//	11 inputSizesOffsets        [uint32]  (CSR, length numInputs+1)
//	12 outputSizesFlat          [uint32]
//	13 outputSizesOffsets       [uint32]  (CSR, length numOutputs+1)
//	14 instructions             [instructionTable]
//	15 inputArenaIDs            [uint32]  (planned arena id per input; sentinel unplannedArena means "not memory-planned")
//	16 inputOffsets             [uint32]  (byte offset within the arena; paired with inputArenaIDs)
//	17 outputArenaIDs           [uint32]
//	18 outputOffsets            [uint32]
//	19 attributes               [attributeTable] (external constant tensors, resolved from the named data map by name)
//
// instructionTable field slots:
//
//	0  opOrBackend              string   (operator name, or backend name for a delegate call)
//	1  argSlots                 [uint32] (indices into the combined input||output||attribute slot space)
//	2  isDelegate               bool
//
// attributeTable field slots:
//
//	0  name                     string   (fully-qualified external data map key)
//	1  scalarType               uint8
//	2  sizes                    [uint32]
//
// unplannedArena is the sentinel arena id marking a slot that the
// memory planner did not fix an arena/offset for (an unplanned input
// the caller supplies data for, rather than a tensor the plan placed
// in one of the method's arenas).
const unplannedArena = 0xFFFFFFFF

const (
	programFieldVersion         = 0
	programFieldMethods         = 1
	programFieldHasNamedDataMap = 2
	programNumFields            = 3

	methodFieldName                    = 0
	methodFieldNumInputs                = 1
	methodFieldNumOutputs               = 2
	methodFieldNumMemoryPlannedBuffers  = 3
	methodFieldPlannedBufferSizes       = 4
	methodFieldBackends                 = 5
	methodFieldInputTags                = 6
	methodFieldOutputTags               = 7
	methodFieldInputScalarTypes         = 8
	methodFieldOutputScalarTypes        = 9
	methodFieldInputSizesFlat           = 10
	methodFieldInputSizesOffsets        = 11
	methodFieldOutputSizesFlat          = 12
	methodFieldOutputSizesOffsets       = 13
	methodFieldInstructions             = 14
	methodFieldInputArenaIDs            = 15
	methodFieldInputOffsets             = 16
	methodFieldOutputArenaIDs           = 17
	methodFieldOutputOffsets            = 18
	methodFieldAttributes               = 19
	methodNumFields                     = 20

	instructionFieldOpOrBackend = 0
	instructionFieldArgSlots    = 1
	instructionFieldIsDelegate  = 2
	instructionNumFields        = 3

	attributeFieldName       = 0
	attributeFieldScalarType = 1
	attributeFieldSizes      = 2
	attributeNumFields       = 3
)

// methodSpec is the in-memory description of one method used to build
// a program's flatbuffer, mirroring the fields methodMeta exposes.
type methodSpec struct {
	name                    string
	numInputs               uint32
	numOutputs              uint32
	numMemoryPlannedBuffers uint32
	plannedBufferSizes      []uint32
	backends                []string
	inputTags               []uint8
	outputTags              []uint8
	inputScalarTypes        []uint8
	outputScalarTypes       []uint8
	inputSizesFlat          []uint32
	inputSizesOffsets       []uint32
	outputSizesFlat         []uint32
	outputSizesOffsets      []uint32
	instructions            []instructionSpec
	inputArenaIDs           []uint32
	inputOffsets            []uint32
	outputArenaIDs          []uint32
	outputOffsets           []uint32
	attributes              []attributeSpec
}

// instructionSpec describes one instruction: either a kernel call
// (isDelegate=false, opOrBackend is the operator name) or a delegate
// call (isDelegate=true, opOrBackend is the backend name). argSlots
// indexes the combined input||output||attribute slot space.
type instructionSpec struct {
	opOrBackend string
	argSlots    []uint32
	isDelegate  bool
}

// attributeSpec describes one external constant tensor: its fully
// qualified name in the named data map, and the layout the method
// expects it to have.
type attributeSpec struct {
	name       string
	scalarType uint8
	sizes      []uint32
}

func buildUint32Vector(b *flatbuffers.Builder, vals []uint32) flatbuffers.UOffsetT {
	b.StartVector(4, len(vals), 4)
	for i := len(vals) - 1; i >= 0; i-- {
		b.PrependUint32(vals[i])
	}
	return b.EndVector(len(vals))
}

func buildUint8Vector(b *flatbuffers.Builder, vals []uint8) flatbuffers.UOffsetT {
	b.StartVector(1, len(vals), 1)
	for i := len(vals) - 1; i >= 0; i-- {
		b.PrependByte(vals[i])
	}
	return b.EndVector(len(vals))
}

func buildStringVector(b *flatbuffers.Builder, vals []string) flatbuffers.UOffsetT {
	offsets := make([]flatbuffers.UOffsetT, len(vals))
	for i, s := range vals {
		offsets[i] = b.CreateString(s)
	}
	b.StartVector(4, len(vals), 4)
	for i := len(vals) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	return b.EndVector(len(vals))
}

func buildInstruction(b *flatbuffers.Builder, ins instructionSpec) flatbuffers.UOffsetT {
	name := b.CreateString(ins.opOrBackend)
	args := buildUint32Vector(b, ins.argSlots)

	b.StartObject(instructionNumFields)
	b.PrependUOffsetTSlot(instructionFieldOpOrBackend, name, 0)
	b.PrependUOffsetTSlot(instructionFieldArgSlots, args, 0)
	b.PrependBoolSlot(instructionFieldIsDelegate, ins.isDelegate, false)
	return b.EndObject()
}

func buildAttribute(b *flatbuffers.Builder, a attributeSpec) flatbuffers.UOffsetT {
	name := b.CreateString(a.name)
	sizes := buildUint32Vector(b, a.sizes)

	b.StartObject(attributeNumFields)
	b.PrependUOffsetTSlot(attributeFieldName, name, 0)
	b.PrependByteSlot(attributeFieldScalarType, a.scalarType, 0)
	b.PrependUOffsetTSlot(attributeFieldSizes, sizes, 0)
	return b.EndObject()
}

func buildMethod(b *flatbuffers.Builder, m methodSpec) flatbuffers.UOffsetT {
	name := b.CreateString(m.name)
	planned := buildUint32Vector(b, m.plannedBufferSizes)
	backends := buildStringVector(b, m.backends)
	inTags := buildUint8Vector(b, m.inputTags)
	outTags := buildUint8Vector(b, m.outputTags)
	inTypes := buildUint8Vector(b, m.inputScalarTypes)
	outTypes := buildUint8Vector(b, m.outputScalarTypes)
	inSizesFlat := buildUint32Vector(b, m.inputSizesFlat)
	inSizesOff := buildUint32Vector(b, m.inputSizesOffsets)
	outSizesFlat := buildUint32Vector(b, m.outputSizesFlat)
	outSizesOff := buildUint32Vector(b, m.outputSizesOffsets)

	insOffsets := make([]flatbuffers.UOffsetT, len(m.instructions))
	for i, ins := range m.instructions {
		insOffsets[i] = buildInstruction(b, ins)
	}
	b.StartVector(4, len(insOffsets), 4)
	for i := len(insOffsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(insOffsets[i])
	}
	instructions := b.EndVector(len(insOffsets))

	inArenaIDs := buildUint32Vector(b, m.inputArenaIDs)
	inOffsetsVec := buildUint32Vector(b, m.inputOffsets)
	outArenaIDs := buildUint32Vector(b, m.outputArenaIDs)
	outOffsetsVec := buildUint32Vector(b, m.outputOffsets)

	attrOffsets := make([]flatbuffers.UOffsetT, len(m.attributes))
	for i, a := range m.attributes {
		attrOffsets[i] = buildAttribute(b, a)
	}
	b.StartVector(4, len(attrOffsets), 4)
	for i := len(attrOffsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(attrOffsets[i])
	}
	attributes := b.EndVector(len(attrOffsets))

	b.StartObject(methodNumFields)
	b.PrependUOffsetTSlot(methodFieldName, name, 0)
	b.PrependUint32Slot(methodFieldNumInputs, m.numInputs, 0)
	b.PrependUint32Slot(methodFieldNumOutputs, m.numOutputs, 0)
	b.PrependUint32Slot(methodFieldNumMemoryPlannedBuffers, m.numMemoryPlannedBuffers, 0)
	b.PrependUOffsetTSlot(methodFieldPlannedBufferSizes, planned, 0)
	b.PrependUOffsetTSlot(methodFieldBackends, backends, 0)
	b.PrependUOffsetTSlot(methodFieldInputTags, inTags, 0)
	b.PrependUOffsetTSlot(methodFieldOutputTags, outTags, 0)
	b.PrependUOffsetTSlot(methodFieldInputScalarTypes, inTypes, 0)
	b.PrependUOffsetTSlot(methodFieldOutputScalarTypes, outTypes, 0)
	b.PrependUOffsetTSlot(methodFieldInputSizesFlat, inSizesFlat, 0)
	b.PrependUOffsetTSlot(methodFieldInputSizesOffsets, inSizesOff, 0)
	b.PrependUOffsetTSlot(methodFieldOutputSizesFlat, outSizesFlat, 0)
	b.PrependUOffsetTSlot(methodFieldOutputSizesOffsets, outSizesOff, 0)
	b.PrependUOffsetTSlot(methodFieldInstructions, instructions, 0)
	b.PrependUOffsetTSlot(methodFieldInputArenaIDs, inArenaIDs, 0)
	b.PrependUOffsetTSlot(methodFieldInputOffsets, inOffsetsVec, 0)
	b.PrependUOffsetTSlot(methodFieldOutputArenaIDs, outArenaIDs, 0)
	b.PrependUOffsetTSlot(methodFieldOutputOffsets, outOffsetsVec, 0)
	b.PrependUOffsetTSlot(methodFieldAttributes, attributes, 0)
	return b.EndObject()
}

// buildProgram serializes version and methods into a flatbuffer and
// returns the finished bytes (without the fixed header prepended).
func buildProgram(version uint32, hasNamedDataMap bool, methods []methodSpec) []byte {
	b := flatbuffers.NewBuilder(1024)

	methodOffsets := make([]flatbuffers.UOffsetT, len(methods))
	for i, m := range methods {
		methodOffsets[i] = buildMethod(b, m)
	}
	b.StartVector(4, len(methodOffsets), 4)
	for i := len(methodOffsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(methodOffsets[i])
	}
	methodsVec := b.EndVector(len(methodOffsets))

	b.StartObject(programNumFields)
	b.PrependUint32Slot(programFieldVersion, version, 0)
	b.PrependUOffsetTSlot(programFieldMethods, methodsVec, 0)
	b.PrependBoolSlot(programFieldHasNamedDataMap, hasNamedDataMap, false)
	root := b.EndObject()

	b.Finish(root)
	return b.FinishedBytes()
}

// fbTable is a minimal read-side wrapper over flatbuffers.Table,
// exposing only the scalar/vector accessors this package needs.
type fbTable struct {
	t flatbuffers.Table
}

func rootTable(buf []byte) fbTable {
	n := flatbuffers.GetUOffsetT(buf)
	var t flatbuffers.Table
	t.Bytes = buf
	t.Pos = n
	return fbTable{t: t}
}

func (f fbTable) uint32Field(slot int, def uint32) uint32 {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	if o == 0 {
		return def
	}
	return f.t.GetUint32(o + f.t.Pos)
}

func (f fbTable) uint8Field(slot int, def uint8) uint8 {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	if o == 0 {
		return def
	}
	return f.t.GetByte(o + f.t.Pos)
}

func (f fbTable) boolField(slot int, def bool) bool {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	if o == 0 {
		return def
	}
	return f.t.GetBool(o + f.t.Pos)
}

func (f fbTable) stringField(slot int) string {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	if o == 0 {
		return ""
	}
	return string(f.t.ByteVector(o + f.t.Pos))
}

// tableVectorLen returns the length of the vector-of-tables field at
// slot; tableVectorAt returns the fbTable for its element j.
func (f fbTable) tableVectorLen(slot int) int {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	if o == 0 {
		return 0
	}
	return f.t.VectorLen(o)
}

func (f fbTable) tableVectorAt(slot int, j int) fbTable {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	a := f.t.Vector(o)
	a += flatbuffers.UOffsetT(j) * 4
	start := f.t.Indirect(a)
	var t flatbuffers.Table
	t.Bytes = f.t.Bytes
	t.Pos = start
	return fbTable{t: t}
}

func (f fbTable) uint32VectorLen(slot int) int {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	if o == 0 {
		return 0
	}
	return f.t.VectorLen(o)
}

func (f fbTable) uint32VectorAt(slot int, j int) uint32 {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	a := f.t.Vector(o)
	return f.t.GetUint32(a + flatbuffers.UOffsetT(j)*4)
}

func (f fbTable) uint32Vector(slot int) []uint32 {
	n := f.uint32VectorLen(slot)
	out := make([]uint32, n)
	for i := range out {
		out[i] = f.uint32VectorAt(slot, i)
	}
	return out
}

func (f fbTable) uint8VectorLen(slot int) int {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	if o == 0 {
		return 0
	}
	return f.t.VectorLen(o)
}

func (f fbTable) uint8VectorAt(slot int, j int) uint8 {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	a := f.t.Vector(o)
	return f.t.GetByte(a + flatbuffers.UOffsetT(j))
}

func (f fbTable) uint8Vector(slot int) []uint8 {
	n := f.uint8VectorLen(slot)
	out := make([]uint8, n)
	for i := range out {
		out[i] = f.uint8VectorAt(slot, i)
	}
	return out
}

func (f fbTable) stringVectorLen(slot int) int {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	if o == 0 {
		return 0
	}
	return f.t.VectorLen(o)
}

func (f fbTable) stringVectorAt(slot int, j int) string {
	o := f.t.Offset(flatbuffers.VOffsetT((slot + 2) * 2))
	a := f.t.Vector(o)
	a += flatbuffers.UOffsetT(j) * 4
	return f.t.String(f.t.Indirect(a))
}

func (f fbTable) stringVector(slot int) []string {
	n := f.stringVectorLen(slot)
	out := make([]string, n)
	for i := range out {
		out[i] = f.stringVectorAt(slot, i)
	}
	return out
}
