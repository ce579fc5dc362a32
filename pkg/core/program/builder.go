package program

import (
	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/value"
)

// MethodSpec describes one method to be serialized by Builder. It
// mirrors the fields MethodMeta reports and exists so tests (in this
// package and in pkg/core/method/runtime/module) can construct program
// bytes without a real export pipeline.
type MethodSpec struct {
	Name                    string
	NumMemoryPlannedBuffers int
	PlannedBufferSizes      []int
	Backends                []string
	InputTags               []value.Tag
	OutputTags              []value.Tag
	InputTensorInfo         []TensorInfo // parallel to InputTags; zero value means "no info"
	OutputTensorInfo        []TensorInfo // parallel to OutputTags
	Instructions            []InstructionSpec
	InputPlacements         []Placement // parallel to InputTags; zero value means unplanned
	OutputPlacements        []Placement // parallel to OutputTags
	Attributes              []AttributeSpec
}

// AttributeSpec describes one external constant tensor for Builder's
// use, mirroring AttributeInfo's read-side shape.
type AttributeSpec struct {
	Name       string
	ScalarType dtype.ScalarType
	Sizes      []int
}

// InstructionSpec describes one step of a method's execution plan for
// Builder's use, mirroring Instruction's read-side shape.
type InstructionSpec struct {
	OpOrBackend string
	ArgSlots    []int
	IsDelegate  bool
}

// Builder assembles an in-memory program binary (header + flatbuffer)
// for tests.
type Builder struct {
	version         uint16
	hasNamedDataMap bool
	methods         []MethodSpec
}

// NewBuilder returns a Builder targeting the given format version.
func NewBuilder(version uint16) *Builder {
	return &Builder{version: version}
}

// WithNamedDataMap marks the program as referencing an external named
// data map.
func (b *Builder) WithNamedDataMap() *Builder {
	b.hasNamedDataMap = true
	return b
}

// AddMethod appends a method to the program.
func (b *Builder) AddMethod(m MethodSpec) *Builder {
	b.methods = append(b.methods, m)
	return b
}

// Build serializes the header and flatbuffer into one byte slice
// suitable for storage.NewBufferLoader or a file written to disk.
func (b *Builder) Build() []byte {
	specs := make([]methodSpec, len(b.methods))
	for i, m := range b.methods {
		specs[i] = toInternalSpec(m)
	}
	fb := buildProgram(uint32(b.version), b.hasNamedDataMap, specs)
	out := make([]byte, 0, MinHeaderBytes+len(fb))
	out = append(out, writeHeader(b.version)...)
	out = append(out, fb...)
	return out
}

func toInternalSpec(m MethodSpec) methodSpec {
	inTags := make([]uint8, len(m.InputTags))
	for i, t := range m.InputTags {
		inTags[i] = uint8(t)
	}
	outTags := make([]uint8, len(m.OutputTags))
	for i, t := range m.OutputTags {
		outTags[i] = uint8(t)
	}
	plannedSizes := make([]uint32, len(m.PlannedBufferSizes))
	for i, s := range m.PlannedBufferSizes {
		plannedSizes[i] = uint32(s)
	}

	inTypes, inFlat, inOffsets := flattenTensorInfo(m.InputTensorInfo, len(m.InputTags))
	outTypes, outFlat, outOffsets := flattenTensorInfo(m.OutputTensorInfo, len(m.OutputTags))

	instructions := make([]instructionSpec, len(m.Instructions))
	for i, ins := range m.Instructions {
		slots := make([]uint32, len(ins.ArgSlots))
		for j, s := range ins.ArgSlots {
			slots[j] = uint32(s)
		}
		instructions[i] = instructionSpec{
			opOrBackend: ins.OpOrBackend,
			argSlots:    slots,
			isDelegate:  ins.IsDelegate,
		}
	}

	inArenaIDs, inPlacedOffsets := flattenPlacements(m.InputPlacements, len(m.InputTags))
	outArenaIDs, outPlacedOffsets := flattenPlacements(m.OutputPlacements, len(m.OutputTags))

	attributes := make([]attributeSpec, len(m.Attributes))
	for i, a := range m.Attributes {
		sizes := make([]uint32, len(a.Sizes))
		for j, s := range a.Sizes {
			sizes[j] = uint32(s)
		}
		attributes[i] = attributeSpec{name: a.Name, scalarType: uint8(a.ScalarType), sizes: sizes}
	}

	return methodSpec{
		name:                    m.Name,
		numInputs:               uint32(len(m.InputTags)),
		numOutputs:              uint32(len(m.OutputTags)),
		numMemoryPlannedBuffers: uint32(m.NumMemoryPlannedBuffers),
		plannedBufferSizes:      plannedSizes,
		backends:                m.Backends,
		inputTags:               inTags,
		outputTags:              outTags,
		inputScalarTypes:        inTypes,
		outputScalarTypes:       outTypes,
		inputSizesFlat:          inFlat,
		inputSizesOffsets:       inOffsets,
		outputSizesFlat:         outFlat,
		outputSizesOffsets:      outOffsets,
		instructions:            instructions,
		inputArenaIDs:           inArenaIDs,
		inputOffsets:            inPlacedOffsets,
		outputArenaIDs:          outArenaIDs,
		outputOffsets:           outPlacedOffsets,
		attributes:              attributes,
	}
}

func flattenPlacements(placements []Placement, n int) (arenaIDs, offsets []uint32) {
	arenaIDs = make([]uint32, n)
	offsets = make([]uint32, n)
	for i := 0; i < n; i++ {
		if i < len(placements) && placements[i].Planned {
			arenaIDs[i] = uint32(placements[i].ArenaID)
			offsets[i] = uint32(placements[i].Offset)
		} else {
			arenaIDs[i] = unplannedArena
		}
	}
	return arenaIDs, offsets
}

func flattenTensorInfo(infos []TensorInfo, n int) (types []uint8, flat []uint32, offsets []uint32) {
	types = make([]uint8, n)
	offsets = make([]uint32, n+1)
	for i := 0; i < n; i++ {
		if i < len(infos) {
			types[i] = uint8(infos[i].ScalarType)
			for _, s := range infos[i].Sizes {
				flat = append(flat, uint32(s))
			}
		}
		offsets[i+1] = uint32(len(flat))
	}
	return types, flat, offsets
}
