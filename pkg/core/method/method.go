// Package method implements the method loader: given a program and a
// method name it resolves kernels and delegates, places memory-planned
// tensors, and assembles a Method ready to be driven by the execution
// engine in pkg/core/runtime.
package method

import (
	"unsafe"

	"github.com/itohio/nnrt/pkg/core/datamap"
	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/kernel"
	"github.com/itohio/nnrt/pkg/core/memory"
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/program"
	"github.com/itohio/nnrt/pkg/core/tensor"
	"github.com/itohio/nnrt/pkg/core/trace"
	"github.com/itohio/nnrt/pkg/core/value"
)

// resolvedInstruction is one instruction with its kernel or delegate
// already resolved against the static registries, so execute() never
// does a name lookup.
type resolvedInstruction struct {
	opOrBackend string
	argSlots    []int
	isDelegate  bool

	kernelFn kernel.Func

	delegate kernel.Delegate
	handle   kernel.Handle
}

// Method is the loaded, executable form of one program method. It owns
// the value table and every resolved kernel/delegate handle; it is not
// itself a state machine (see pkg/core/runtime for that). A Method is
// not safe for concurrent use.
type Method struct {
	meta    *program.MethodMeta
	manager *memory.Manager

	numInputs     int
	numOutputs    int
	numAttributes int

	// values is the combined input||output||attribute slot space, sized
	// numInputs+numOutputs+numAttributes. Instructions index into it
	// directly; this schema has no separate temporary-value slots beyond
	// the attribute region.
	values []*value.Value

	// inputPlanned[i] is true when input i's tensor slot was placed by
	// the memory planner into a fixed arena (set_input then copies into
	// that arena); false means the slot is unplanned (set_input rebinds
	// the slot to alias the caller's tensor).
	inputPlanned []bool

	instructions []resolvedInstruction
}

// Load resolves method name against prog, allocating its value table
// and planned tensors from manager and its kernels/delegates from the
// given registries. dataMap, if non-nil, backs external constant
// lookups and supplies delegate init blobs keyed by backend name.
func Load(prog *program.Program, name string, manager *memory.Manager, kernels *kernel.Registry, delegates *kernel.DelegateRegistry, dataMap *datamap.NamedDataMap) (*Method, error) {
	meta, err := prog.MethodMetaByName(name)
	if err != nil {
		return nil, err
	}

	numInputs := meta.NumInputs()
	numOutputs := meta.NumOutputs()
	numAttributes := meta.NumAttributes()
	total := numInputs + numOutputs + numAttributes

	backing, err := memory.AllocateArray[value.Value](manager.MethodAllocator, total)
	if err != nil {
		return nil, err
	}
	values := make([]*value.Value, total)
	for i := range backing {
		values[i] = &backing[i]
	}

	m := &Method{
		meta:          meta,
		manager:       manager,
		numInputs:     numInputs,
		numOutputs:    numOutputs,
		numAttributes: numAttributes,
		values:        values,
	}

	if err := m.placeInputs(); err != nil {
		return nil, err
	}
	if err := m.placeOutputs(); err != nil {
		return nil, err
	}
	if err := m.placeAttributes(dataMap); err != nil {
		return nil, err
	}
	if err := m.resolveInstructions(kernels, delegates, dataMap); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Method) placeInputs() error {
	m.inputPlanned = make([]bool, m.numInputs)
	for i := 0; i < m.numInputs; i++ {
		tag, err := m.meta.InputTag(i)
		if err != nil {
			return err
		}
		if tag != value.TensorTag {
			*m.values[i] = value.NewNone()
			continue
		}
		placement, err := m.meta.InputPlacement(i)
		if err != nil {
			return err
		}
		m.inputPlanned[i] = placement.Planned
		info, ok := m.meta.InputTensorInfo(i)
		if !ok {
			// No recorded shape: the caller must fully describe this
			// slot via set_input before it is usable.
			*m.values[i] = value.NewNone()
			continue
		}
		impl, err := m.buildImpl(info, placement)
		if err != nil {
			return err
		}
		*m.values[i] = value.NewTensor(tensor.NewTensor(impl, tensor.MutableView))
	}
	return nil
}

func (m *Method) placeOutputs() error {
	for i := 0; i < m.numOutputs; i++ {
		tag, err := m.meta.OutputTag(i)
		if err != nil {
			return err
		}
		slot := m.numInputs + i
		if tag != value.TensorTag {
			*m.values[slot] = value.NewNone()
			continue
		}
		placement, err := m.meta.OutputPlacement(i)
		if err != nil {
			return err
		}
		info, ok := m.meta.OutputTensorInfo(i)
		if !ok {
			*m.values[slot] = value.NewNone()
			continue
		}
		impl, err := m.buildImpl(info, placement)
		if err != nil {
			return err
		}
		*m.values[slot] = value.NewTensor(tensor.NewTensor(impl, tensor.MutableView))
	}
	return nil
}

// placeAttributes resolves every external constant tensor the method
// declares by its fully-qualified name in dataMap, binding it into the
// attribute region of the value table (the slots following
// numInputs+numOutputs). A name absent from dataMap, or present with a
// scalar type or shape that doesn't match what the method declared,
// fails with InvalidExternalData.
func (m *Method) placeAttributes(dataMap *datamap.NamedDataMap) error {
	for i := 0; i < m.numAttributes; i++ {
		attr, err := m.meta.Attribute(i)
		if err != nil {
			return err
		}
		slot := m.numInputs + m.numOutputs + i

		if dataMap == nil || !dataMap.Has(attr.Name) {
			return nnerr.New(nnerr.InvalidExternalData, "external attribute tensor not found: "+attr.Name)
		}
		layout, buf, err := dataMap.Get(attr.Name)
		if err != nil {
			return err
		}
		if layout.ScalarType != attr.ScalarType || !sameSizes(layout.Sizes, attr.Sizes) {
			return nnerr.New(nnerr.InvalidExternalData, "external attribute tensor layout mismatch: "+attr.Name)
		}

		n := tensor.Numel(attr.Sizes)
		data, err := bindTypedSlice(buf, attr.ScalarType, n)
		if err != nil {
			return err
		}
		impl, err := tensor.NewImpl(attr.ScalarType, attr.Sizes, identityOrder(len(attr.Sizes)), rowMajorStrides(attr.Sizes), data, tensor.Static)
		if err != nil {
			return err
		}
		*m.values[slot] = value.NewTensor(tensor.NewTensor(impl, tensor.ImmutableView))
	}
	return nil
}

func (m *Method) buildImpl(info program.TensorInfo, placement program.Placement) (*tensor.Impl, error) {
	dimOrder := identityOrder(len(info.Sizes))
	strides := rowMajorStrides(info.Sizes)

	if !placement.Planned {
		return tensor.NewImpl(info.ScalarType, info.Sizes, dimOrder, strides, nil, tensor.Static)
	}
	if m.manager.PlannedMemory == nil {
		return nil, nnerr.New(nnerr.MemoryAllocationFailed, "method has a planned tensor but no planned memory was supplied")
	}
	nbytes := tensor.Numel(info.Sizes) * info.ScalarType.ElementSize()
	buf, err := m.manager.PlannedMemory.GetOffsetAddress(placement.ArenaID, placement.Offset, nbytes)
	if err != nil {
		return nil, err
	}
	data, err := bindTypedSlice(buf, info.ScalarType, tensor.Numel(info.Sizes))
	if err != nil {
		return nil, err
	}
	return tensor.NewImpl(info.ScalarType, info.Sizes, dimOrder, strides, data, tensor.Static)
}

func (m *Method) resolveInstructions(kernels *kernel.Registry, delegates *kernel.DelegateRegistry, dataMap *datamap.NamedDataMap) error {
	n := m.meta.NumInstructions()
	m.instructions = make([]resolvedInstruction, n)
	for i := 0; i < n; i++ {
		ins, err := m.meta.Instruction(i)
		if err != nil {
			return err
		}
		argSlots := ins.ArgSlots()

		if !ins.IsDelegate() {
			argTags := make([]value.Tag, len(argSlots))
			for j, slot := range argSlots {
				if slot < 0 || slot >= len(m.values) {
					return nnerr.New(nnerr.InvalidProgram, "instruction argument slot out of range")
				}
				argTags[j] = m.values[slot].Tag()
			}
			fn, err := kernels.Resolve(ins.OpOrBackend(), argTags)
			if err != nil {
				return err
			}
			m.instructions[i] = resolvedInstruction{opOrBackend: ins.OpOrBackend(), argSlots: argSlots, kernelFn: fn}
			continue
		}

		delegate, err := delegates.Resolve(ins.OpOrBackend())
		if err != nil {
			return err
		}
		var blob []byte
		if dataMap != nil && dataMap.Has(ins.OpOrBackend()) {
			_, b, err := dataMap.Get(ins.OpOrBackend())
			if err != nil {
				return err
			}
			blob = b
		}
		handle, err := delegate.Init(kernel.InitContext{Blob: blob, MethodAllocator: m.manager.MethodAllocator})
		if err != nil {
			return nnerr.New(nnerr.DelegateMemoryAllocationFailed, err.Error())
		}
		m.instructions[i] = resolvedInstruction{opOrBackend: ins.OpOrBackend(), argSlots: argSlots, isDelegate: true, delegate: delegate, handle: handle}
	}
	return nil
}

// NumInputs returns the method's declared input count.
func (m *Method) NumInputs() int { return m.numInputs }

// NumOutputs returns the method's declared output count.
func (m *Method) NumOutputs() int { return m.numOutputs }

// InputTag returns the declared tag of input i.
func (m *Method) InputTag(i int) (value.Tag, error) { return m.meta.InputTag(i) }

// OutputTag returns the declared tag of output i.
func (m *Method) OutputTag(i int) (value.Tag, error) { return m.meta.OutputTag(i) }

// InputPlanned reports whether input i's tensor slot is memory-planned
// (set_input copies) rather than unplanned (set_input aliases).
func (m *Method) InputPlanned(i int) bool {
	if i < 0 || i >= len(m.inputPlanned) {
		return false
	}
	return m.inputPlanned[i]
}

// SetInputSlot applies v to input slot i: copying into the planned
// arena for a planned Tensor input, rebinding (aliasing) for an
// unplanned one, or storing directly for non-Tensor tags.
func (m *Method) SetInputSlot(i int, v value.Value) error {
	if i < 0 || i >= m.numInputs {
		return nnerr.New(nnerr.InvalidArgument, "input index out of range")
	}
	wantTag, err := m.meta.InputTag(i)
	if err != nil {
		return err
	}
	if v.Tag() != wantTag {
		return nnerr.New(nnerr.InvalidType, "set_input tag does not match declared input tag")
	}

	if wantTag != value.TensorTag {
		*m.values[i] = v
		return nil
	}

	in, err := v.AsTensor()
	if err != nil {
		return err
	}
	if m.InputPlanned(i) {
		cur, err := m.values[i].AsTensor()
		if err != nil {
			return err
		}
		return copyTensorInto(cur, in)
	}
	*m.values[i] = value.NewTensor(in)
	return nil
}

// OutputSlot returns a borrowed Value for output i.
func (m *Method) OutputSlot(i int) (*value.Value, error) {
	if i < 0 || i >= m.numOutputs {
		return nil, nnerr.New(nnerr.InvalidArgument, "output index out of range")
	}
	return m.values[m.numInputs+i], nil
}

// RunInstructions executes every resolved instruction in order,
// bracketing each with tracer.Enter/Exit and rewinding the temp
// allocator after each one. It aborts and returns the first
// instruction error.
func (m *Method) RunInstructions(tracer trace.EventTracer) error {
	if tracer == nil {
		tracer = trace.Nop{}
	}
	for _, ins := range m.instructions {
		token := tracer.Enter(ins.OpLabel())
		err := m.runOne(ins)
		tracer.Exit(token)
		if m.manager != nil {
			m.manager.ResetTemp()
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Method) runOne(ins resolvedInstruction) error {
	if !ins.isDelegate {
		args := make([]*value.Value, len(ins.argSlots))
		for i, slot := range ins.argSlots {
			args[i] = m.values[slot]
		}
		return ins.kernelFn(args)
	}

	inputs, outputs, err := m.splitDelegateArgs(ins.argSlots)
	if err != nil {
		return err
	}
	return ins.delegate.Execute(ins.handle, inputs, outputs)
}

// splitDelegateArgs partitions an instruction's argument slots into
// input and output tensors using the method's own input/output slot
// boundary: a slot in [numInputs, numInputs+numOutputs) is a method
// output, every other slot (a method input, or an attribute slot past
// the output region) feeds the delegate as an input.
func (m *Method) splitDelegateArgs(argSlots []int) (inputs, outputs []tensor.Tensor, err error) {
	outputStart := m.numInputs
	outputEnd := m.numInputs + m.numOutputs
	for _, slot := range argSlots {
		if slot < 0 || slot >= len(m.values) {
			return nil, nil, nnerr.New(nnerr.InvalidProgram, "delegate argument slot out of range")
		}
		t, terr := m.values[slot].AsTensor()
		if terr != nil {
			return nil, nil, terr
		}
		if slot >= outputStart && slot < outputEnd {
			outputs = append(outputs, t)
		} else {
			inputs = append(inputs, t)
		}
	}
	return inputs, outputs, nil
}

// OpLabel names the instruction for tracing purposes.
func (ins resolvedInstruction) OpLabel() string {
	if ins.isDelegate {
		return "delegate:" + ins.opOrBackend
	}
	return ins.opOrBackend
}

func copyTensorInto(dst, src tensor.Tensor) error {
	dstImpl, srcImpl := dst.Impl(), src.Impl()
	if dstImpl.ScalarType() != srcImpl.ScalarType() {
		return nnerr.New(nnerr.InvalidArgument, "set_input tensor scalar type mismatch")
	}
	if !sameSizes(dstImpl.Sizes(), srcImpl.Sizes()) {
		return nnerr.New(nnerr.InvalidArgument, "set_input tensor shape mismatch")
	}
	n := dstImpl.Numel()
	for i := 0; i < n; i++ {
		v, ok := srcImpl.At(flatCoords(srcImpl.Sizes(), i)...)
		if !ok {
			return nnerr.New(nnerr.InvalidArgument, "set_input source tensor unreadable")
		}
		if !dstImpl.SetAt(v, flatCoords(dstImpl.Sizes(), i)...) {
			return nnerr.New(nnerr.InvalidArgument, "set_input destination tensor unwritable")
		}
	}
	return nil
}

func sameSizes(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// flatCoords maps a linear index back to row-major coordinates for
// sizes. Used only by the small, non-performance-critical copy path in
// set_input.
func flatCoords(sizes []int, idx int) []int {
	coords := make([]int, len(sizes))
	for i := len(sizes) - 1; i >= 0; i-- {
		if sizes[i] == 0 {
			continue
		}
		coords[i] = idx % sizes[i]
		idx /= sizes[i]
	}
	return coords
}

func identityOrder(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func rowMajorStrides(sizes []int) []int {
	strides := make([]int, len(sizes))
	stride := 1
	for i := len(sizes) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= sizes[i]
	}
	return strides
}

// bindTypedSlice reinterprets buf as a Go slice of the concrete type
// backing scalar type st, mirroring dtype.NewSlice's closed switch but
// binding already-allocated bytes instead of allocating fresh ones, so
// planned tensor data aliases the arena rather than copying out of it.
func bindTypedSlice(buf []byte, st dtype.ScalarType, n int) (any, error) {
	if n == 0 {
		return dtype.NewSlice(st, 0), nil
	}
	elemSize := st.ElementSize()
	if elemSize == 0 {
		return nil, nnerr.New(nnerr.InvalidArgument, "scalar type has no fixed element size")
	}
	if n*elemSize > len(buf) {
		return nil, nnerr.New(nnerr.MemoryAllocationFailed, "arena region too small for tensor data")
	}
	ptr := unsafe.Pointer(&buf[0])
	switch st {
	case dtype.Byte:
		return unsafe.Slice((*int8)(ptr), n), nil
	case dtype.Char, dtype.UInt8:
		return unsafe.Slice((*uint8)(ptr), n), nil
	case dtype.Short:
		return unsafe.Slice((*int16)(ptr), n), nil
	case dtype.UInt16:
		return unsafe.Slice((*uint16)(ptr), n), nil
	case dtype.Int:
		return unsafe.Slice((*int32)(ptr), n), nil
	case dtype.UInt32:
		return unsafe.Slice((*uint32)(ptr), n), nil
	case dtype.Long:
		return unsafe.Slice((*int64)(ptr), n), nil
	case dtype.UInt64:
		return unsafe.Slice((*uint64)(ptr), n), nil
	case dtype.Float:
		return unsafe.Slice((*float32)(ptr), n), nil
	case dtype.Double:
		return unsafe.Slice((*float64)(ptr), n), nil
	case dtype.Bool:
		return unsafe.Slice((*bool)(ptr), n), nil
	default:
		return nil, nnerr.New(nnerr.NotSupported, "scalar type is not a live-dispatchable element type")
	}
}
