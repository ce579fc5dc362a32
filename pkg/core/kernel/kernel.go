// Package kernel implements the static kernel and delegate registries
// the method loader resolves operator names and backend names against.
package kernel

import (
	"sync"

	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/value"
)

// Func is a kernel's executable body. It receives the argument Value
// slots (inputs followed by outputs, in the order the method's
// instruction declares them) and writes results in place; a non-nil
// return aborts the enclosing execute() call.
type Func func(args []*value.Value) error

// Overload is one registered signature of a named operator.
type Overload struct {
	ArgTags []value.Tag
	Fn      Func
}

// Registry holds every known operator name, each with one or more
// overloads distinguished by argument tag signature, mirroring
// pkg/core/plugin.Registry's name-to-builder map generalized to
// multiple entries per name.
type Registry struct {
	mu    sync.RWMutex
	byName map[string][]Overload
}

// NewRegistry returns an empty kernel registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string][]Overload)}
}

// Register adds one overload of name. It is an error to register the
// exact same (name, ArgTags) signature twice.
func (r *Registry) Register(name string, sig []value.Tag, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.byName[name] {
		if tagsEqual(o.ArgTags, sig) {
			return nnerr.New(nnerr.Internal, "kernel overload already registered: "+name)
		}
	}
	r.byName[name] = append(r.byName[name], Overload{ArgTags: append([]value.Tag(nil), sig...), Fn: fn})
	return nil
}

// Resolve finds the overload of name whose ArgTags exactly match
// argTags. OperatorMissing if name is unknown or no overload matches.
func (r *Registry) Resolve(name string, argTags []value.Tag) (Func, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	overloads, ok := r.byName[name]
	if !ok {
		return nil, nnerr.New(nnerr.OperatorMissing, "no kernel registered for "+name)
	}
	for _, o := range overloads {
		if tagsEqual(o.ArgTags, argTags) {
			return o.Fn, nil
		}
	}
	return nil, nnerr.New(nnerr.OperatorMissing, "no overload of "+name+" matches argument signature")
}

func tagsEqual(a, b []value.Tag) bool {
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
