package kernel

import (
	"sync"

	"github.com/itohio/nnrt/pkg/core/memory"
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/tensor"
)

// Handle is an opaque token a Delegate hands back from Init and
// receives back in Execute/Destroy. The core never inspects it.
type Handle any

// InitContext carries what a delegate needs to initialize: the
// sub-graph blob resolved from the program's delegate section, and the
// method allocator it may draw bookkeeping memory from.
type InitContext struct {
	Blob            []byte
	MethodAllocator memory.Allocator
}

// Delegate bridges a resolved sub-graph to a backend runtime. Init may
// allocate from ctx.MethodAllocator; Execute is called once per
// instruction during execute() with the instruction's bound tensors.
type Delegate interface {
	Init(ctx InitContext) (Handle, error)
	Execute(handle Handle, inputs, outputs []tensor.Tensor) error
	Destroy(handle Handle) error
}

// DelegateRegistry maps backend names to Delegate implementations.
type DelegateRegistry struct {
	mu  sync.RWMutex
	reg map[string]Delegate
}

// NewDelegateRegistry returns an empty delegate registry.
func NewDelegateRegistry() *DelegateRegistry {
	return &DelegateRegistry{reg: make(map[string]Delegate)}
}

// Register associates backend name with d. Re-registering the same
// name replaces the previous entry.
func (r *DelegateRegistry) Register(name string, d Delegate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reg[name] = d
}

// Resolve looks up the delegate backing name. DelegateInvalidCompatibility
// if no backend by that name is registered, matching spec.md §4.4's
// method-loader error mapping for an unresolvable backend name.
func (r *DelegateRegistry) Resolve(name string) (Delegate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.reg[name]
	if !ok {
		return nil, nnerr.New(nnerr.DelegateInvalidCompatibility, "no delegate registered for backend "+name)
	}
	return d, nil
}
