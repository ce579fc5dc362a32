// Package module implements the high-level facade spec.md §4.8
// describes: a data loader, a parsed program, a memory manager, and a
// method cache, wired together behind Load/LoadMethod/Execute/Forward.
package module

import (
	"sync"

	"github.com/itohio/nnrt/pkg/core/datamap"
	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/kernel"
	"github.com/itohio/nnrt/pkg/core/memory"
	"github.com/itohio/nnrt/pkg/core/method"
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/program"
	"github.com/itohio/nnrt/pkg/core/runtime"
	"github.com/itohio/nnrt/pkg/core/storage"
	"github.com/itohio/nnrt/pkg/core/tensor"
	"github.com/itohio/nnrt/pkg/core/trace"
	"github.com/itohio/nnrt/pkg/core/value"
)

// Default sizes for the per-method method and temp allocators
// LoadMethod builds; WithAllocatorSizes overrides them.
const (
	defaultMethodAllocatorBytes = 1 << 20
	defaultTempAllocatorBytes   = 1 << 16
)

// Option configures a Module at construction.
type Option func(*Module)

// WithDelegates installs the backend registry delegate calls resolve
// against. The default Module has an empty registry: any delegate
// instruction fails to load.
func WithDelegates(d *kernel.DelegateRegistry) Option {
	return func(m *Module) { m.delegates = d }
}

// WithExternalData installs the named data map external constants and
// delegate init blobs resolve against.
func WithExternalData(dm *datamap.NamedDataMap) Option {
	return func(m *Module) { m.dataMap = dm }
}

// WithAllocatorSizes overrides the default method/temp allocator
// buffer sizes used by LoadMethod.
func WithAllocatorSizes(methodBytes, tempBytes int) Option {
	return func(m *Module) {
		m.methodAllocatorBytes = methodBytes
		m.tempAllocatorBytes = tempBytes
	}
}

type loadedMethod struct {
	m    *method.Method
	exec *runtime.Execution
}

// Module wraps one program's data loader, parsed program, kernel and
// delegate registries, and a cache of loaded methods keyed by name.
type Module struct {
	mu sync.Mutex

	loader storage.Loader
	kernels *kernel.Registry
	delegates *kernel.DelegateRegistry
	dataMap *datamap.NamedDataMap

	methodAllocatorBytes int
	tempAllocatorBytes   int

	prog    *program.Program
	methods map[string]*loadedMethod
}

// New constructs a Module over loader, resolving kernel calls against
// kernels. The program itself is not read until Load or the first
// LoadMethod/Execute call.
func New(loader storage.Loader, kernels *kernel.Registry, opts ...Option) *Module {
	m := &Module{
		loader:               loader,
		kernels:              kernels,
		delegates:            kernel.NewDelegateRegistry(),
		methodAllocatorBytes: defaultMethodAllocatorBytes,
		tempAllocatorBytes:   defaultTempAllocatorBytes,
		methods:              make(map[string]*loadedMethod),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load parses the program if it hasn't been already. Idempotent.
func (mod *Module) Load(verification program.Verification) error {
	mod.mu.Lock()
	defer mod.mu.Unlock()
	return mod.loadLocked(verification)
}

func (mod *Module) loadLocked(verification program.Verification) error {
	if mod.prog != nil {
		return nil
	}
	p, err := program.Load(mod.loader, verification)
	if err != nil {
		return err
	}
	mod.prog = p
	return nil
}

// MethodNames returns the program's declared method names. Loads the
// program with Minimal verification if not already loaded.
func (mod *Module) MethodNames() ([]string, error) {
	mod.mu.Lock()
	defer mod.mu.Unlock()
	if err := mod.loadLocked(program.Minimal); err != nil {
		return nil, err
	}
	return mod.prog.MethodNames(), nil
}

// NumMethods returns the program's declared method count.
func (mod *Module) NumMethods() (int, error) {
	mod.mu.Lock()
	defer mod.mu.Unlock()
	if err := mod.loadLocked(program.Minimal); err != nil {
		return 0, err
	}
	return mod.prog.NumMethods(), nil
}

// MethodMeta returns read-only metadata for name.
func (mod *Module) MethodMeta(name string) (*program.MethodMeta, error) {
	mod.mu.Lock()
	defer mod.mu.Unlock()
	if err := mod.loadLocked(program.Minimal); err != nil {
		return nil, err
	}
	return mod.prog.MethodMetaByName(name)
}

// LoadMethod loads (or returns the cached) Execution for name. If
// planned is nil, a default HierarchicalAllocator is built from the
// method's own planned-buffer-size metadata, per spec.md §4.8.
func (mod *Module) LoadMethod(name string, planned *memory.HierarchicalAllocator, tracer trace.EventTracer) (*runtime.Execution, error) {
	mod.mu.Lock()
	defer mod.mu.Unlock()

	if err := mod.loadLocked(program.Minimal); err != nil {
		return nil, err
	}
	if cached, ok := mod.methods[name]; ok {
		return cached.exec, nil
	}

	meta, err := mod.prog.MethodMetaByName(name)
	if err != nil {
		return nil, err
	}

	if planned == nil {
		planned, err = defaultPlannedMemory(meta)
		if err != nil {
			return nil, err
		}
	}

	methodAllocator := memory.NewBumpAllocator(make([]byte, mod.methodAllocatorBytes))
	var tempAllocator memory.Allocator
	if mod.tempAllocatorBytes > 0 {
		tempAllocator = memory.NewBumpAllocator(make([]byte, mod.tempAllocatorBytes))
	}
	manager := memory.NewManager(methodAllocator, planned, tempAllocator)

	m, err := method.Load(mod.prog, name, manager, mod.kernels, mod.delegates, mod.dataMap)
	if err != nil {
		return nil, err
	}
	exec := runtime.New(m, tracer)
	mod.methods[name] = &loadedMethod{m: m, exec: exec}
	return exec, nil
}

func defaultPlannedMemory(meta *program.MethodMeta) (*memory.HierarchicalAllocator, error) {
	n := meta.NumMemoryPlannedBuffers()
	arenas := make([][]byte, n)
	for i := 0; i < n; i++ {
		size, err := meta.PlannedBufferSize(i)
		if err != nil {
			return nil, err
		}
		arenas[i] = make([]byte, size)
	}
	return memory.NewHierarchicalAllocator(arenas), nil
}

// Execute loads method name if needed, drives it through the
// execution state machine with inputs in order, and returns
// caller-owned copies of its outputs (so they outlive the method's
// next execution).
func (mod *Module) Execute(name string, inputs []value.Value) ([]value.Value, error) {
	exec, err := mod.LoadMethod(name, nil, nil)
	if err != nil {
		return nil, err
	}

	if err := exec.StartExecution(); err != nil {
		return nil, err
	}
	for i, in := range inputs {
		if err := exec.SetInput(i, in); err != nil {
			return nil, err
		}
	}
	if err := exec.Execute(); err != nil {
		return nil, err
	}

	mod.mu.Lock()
	numOutputs := mod.methods[name].m.NumOutputs()
	mod.mu.Unlock()

	outputs := make([]value.Value, numOutputs)
	for i := 0; i < numOutputs; i++ {
		out, err := exec.GetOutput(i)
		if err != nil {
			return nil, err
		}
		owned, err := cloneOutput(*out)
		if err != nil {
			return nil, err
		}
		outputs[i] = owned
	}
	return outputs, nil
}

// Forward is Execute("forward", inputs).
func (mod *Module) Forward(inputs []value.Value) ([]value.Value, error) {
	return mod.Execute("forward", inputs)
}

// cloneOutput returns a deep copy of a Tensor-tagged output so its
// bytes survive the method's next execute() overwriting the planned
// arena. Scalar-tagged values are returned as-is: their payload is a
// plain Go value already copied by Go's assignment semantics.
//
// The clone's data buffer is filled by enumerating the source's
// logical coordinates in row-major order, so the clone is always built
// with an identity dim_order and canonical row-major strides over
// those coordinates regardless of how the source was physically laid
// out. Reusing the source's own dim_order/strides here would pair a
// row-major-populated buffer with a possibly permuted stride table and
// silently scramble reads back through At().
func cloneOutput(v value.Value) (value.Value, error) {
	if v.Tag() != value.TensorTag {
		return v, nil
	}
	t, err := v.AsTensor()
	if err != nil {
		return value.Value{}, err
	}
	impl := t.Impl()
	st := impl.ScalarType()
	sizes := impl.Sizes()
	n := impl.Numel()
	data := dtype.NewSlice(st, n)
	for i := 0; i < n; i++ {
		fv, ok := impl.At(flatCoords(sizes, i)...)
		if !ok {
			return value.Value{}, nnerr.New(nnerr.InvalidState, "output tensor element unreadable")
		}
		if !dtype.SetFloat64(st, data, i, fv) {
			return value.Value{}, nnerr.New(nnerr.InvalidState, "output tensor element unwritable")
		}
	}
	newImpl, err := tensor.NewImpl(st, sizes, identityOrder(len(sizes)), rowMajorStrides(sizes), data, tensor.Static)
	if err != nil {
		return value.Value{}, err
	}
	return value.NewTensor(tensor.NewTensor(newImpl, tensor.ImmutableView)), nil
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
