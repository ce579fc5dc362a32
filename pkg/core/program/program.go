// Package program implements the program container: header
// classification, flatbuffer loading under a chosen verification
// depth, and read-only per-method metadata.
package program

import (
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/storage"
)

// Verification selects how much of a program is validated at Load time.
type Verification uint8

const (
	// Minimal checks only the fixed header prefix.
	Minimal Verification = iota
	// InternalConsistency additionally walks the full flatbuffer
	// structurally before exposing any method metadata.
	InternalConsistency
)

// Program is an opaque handle over a parsed program's bytes. Its
// public projection is iteration of method names, per-method
// MethodMeta, and whether the program references an external data map.
type Program struct {
	loader  storage.Loader
	buf     []byte
	root    fbTable
	version uint32
}

// HasNamedDataMap reports whether the program was built with a
// reference to an external named-data map, resolved separately by
// pkg/core/datamap.
func (p *Program) HasNamedDataMap() bool {
	return p.root.boolField(programFieldHasNamedDataMap, false)
}

// Version returns the program's format version word.
func (p *Program) Version() uint32 { return p.version }

// NumMethods returns the number of methods the program declares.
func (p *Program) NumMethods() int {
	return p.root.tableVectorLen(programFieldMethods)
}

// MethodNames returns every method's name, in declaration order.
func (p *Program) MethodNames() []string {
	n := p.NumMethods()
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = methodNameAt(p.root, i)
	}
	return names
}

func methodNameAt(root fbTable, i int) string {
	return root.tableVectorAt(programFieldMethods, i).stringField(methodFieldName)
}

// MethodMetaByName returns the metadata for the named method, or
// NotFound if no method by that name is declared. Lookup is a linear
// scan, matching spec.md §4.3.
func (p *Program) MethodMetaByName(name string) (*MethodMeta, error) {
	n := p.NumMethods()
	for i := 0; i < n; i++ {
		mt := p.root.tableVectorAt(programFieldMethods, i)
		if mt.stringField(methodFieldName) == name {
			return newMethodMeta(mt), nil
		}
	}
	return nil, nnerr.New(nnerr.NotFound, "no method named "+name)
}

// Load reads the header via loader.Load(0, MinHeaderBytes). Under
// Minimal verification only CheckHeader must pass. The whole program
// is then fetched in either mode; under InternalConsistency it is
// additionally walked structurally before any pointers are exposed.
func Load(loader storage.Loader, verification Verification) (*Program, error) {
	headerBuf, err := loader.Load(0, MinHeaderBytes)
	if err != nil {
		return nil, err
	}
	status := CheckHeader(headerBuf.Bytes())
	if status != CompatibleVersion {
		return nil, nnerr.New(nnerr.InvalidProgram, "program header is "+status.String())
	}

	total, err := loader.Size()
	if err != nil {
		return nil, err
	}
	full, err := loader.Load(0, total)
	if err != nil {
		return nil, err
	}
	buf := full.Bytes()
	fbBytes := buf[MinHeaderBytes:]

	if verification == InternalConsistency {
		if err := verifyStructure(fbBytes); err != nil {
			return nil, nnerr.New(nnerr.InvalidProgram, "verifier: "+err.Error())
		}
	}

	root := rootTable(fbBytes)
	return &Program{
		loader:  loader,
		buf:     buf,
		root:    root,
		version: root.uint32Field(programFieldVersion, 0),
	}, nil
}

// verifyStructure walks every method table, its vector fields and its
// instruction and attribute tables, confirming offsets stay within the
// buffer. This stands in for a flatbuffers schema verifier: the
// fbTable accessors do not check offsets themselves, so a bad offset
// surfaces as a slice-bounds panic, and visiting every field here
// catches a truncated-but-header-valid buffer before Load returns
// rather than on first use.
func verifyStructure(fbBytes []byte) (err error) {
	if len(fbBytes) < 4 {
		return nnerr.New(nnerr.InvalidProgram, "flatbuffer too short")
	}
	defer func() {
		// A malformed vtable/offset triggers an out-of-range slice
		// access inside the flatbuffers runtime; recover so Load can
		// return InvalidProgram instead of panicking the caller.
		if r := recover(); r != nil {
			err = nnerr.New(nnerr.InvalidProgram, "malformed flatbuffer structure")
		}
	}()
	root := rootTable(fbBytes)
	n := root.tableVectorLen(programFieldMethods)
	for i := 0; i < n; i++ {
		mt := root.tableVectorAt(programFieldMethods, i)
		_ = mt.stringField(methodFieldName)
		_ = mt.uint32Vector(methodFieldPlannedBufferSizes)
		_ = mt.stringVector(methodFieldBackends)
		for _, slot := range []int{methodFieldInputTags, methodFieldOutputTags, methodFieldInputScalarTypes, methodFieldOutputScalarTypes} {
			_ = mt.uint8Vector(slot)
		}
		for _, slot := range []int{methodFieldInputSizesFlat, methodFieldInputSizesOffsets, methodFieldOutputSizesFlat, methodFieldOutputSizesOffsets,
			methodFieldInputArenaIDs, methodFieldInputOffsets, methodFieldOutputArenaIDs, methodFieldOutputOffsets} {
			_ = mt.uint32Vector(slot)
		}
		for j := 0; j < mt.tableVectorLen(methodFieldInstructions); j++ {
			ins := mt.tableVectorAt(methodFieldInstructions, j)
			_ = ins.stringField(instructionFieldOpOrBackend)
			_ = ins.uint32Vector(instructionFieldArgSlots)
		}
		for j := 0; j < mt.tableVectorLen(methodFieldAttributes); j++ {
			at := mt.tableVectorAt(methodFieldAttributes, j)
			_ = at.stringField(attributeFieldName)
			_ = at.uint32Vector(attributeFieldSizes)
		}
	}
	return nil
}
