// Package tensor implements the strided, dim-order-validated tensor
// shape descriptor (TensorImpl) and the lightweight Tensor handle that
// wraps it, per spec.md §3/§4.6.
package tensor

import (
	"github.com/itohio/nnrt/pkg/core/dtype"
	"github.com/itohio/nnrt/pkg/core/nnerr"
)

// Dynamism describes how a tensor's extents may change across
// executions of the same method.
type Dynamism uint8

const (
	// Static extents never change.
	Static Dynamism = iota
	// DynamicBound extents may shrink within a fixed capacity.
	DynamicBound
	// DynamicUnbound extents are unconstrained.
	DynamicUnbound
)

// Impl is the shape descriptor for a tensor. It owns none of its
// pointers: Data is a borrowed slice, and an Impl never outlives the
// buffer it points into.
type Impl struct {
	scalarType dtype.ScalarType
	sizes      []int
	dimOrder   []int
	strides    []int
	data       any // nil, or a Go slice of the concrete element type
	dynamism   Dynamism
}

// NewImpl constructs a TensorImpl, validating sizes/dim_order/strides
// per spec.md §3's four construction invariants. data may be nil only
// when the Impl is for metadata inspection and will never be
// dereferenced.
func NewImpl(st dtype.ScalarType, sizes, dimOrder, strides []int, data any, dyn Dynamism) (*Impl, error) {
	if !st.Valid() {
		return nil, nnerr.New(nnerr.InvalidArgument, "scalar type is Undefined")
	}
	if err := validateShape(sizes, dimOrder, strides); err != nil {
		return nil, err
	}
	if data != nil {
		if n := dtype.Len(st, data); n >= 0 && n != Numel(sizes) {
			return nil, nnerr.New(nnerr.InvalidArgument, "data length does not match numel(sizes)")
		}
	}
	return &Impl{
		scalarType: st,
		sizes:      append([]int(nil), sizes...),
		dimOrder:   append([]int(nil), dimOrder...),
		strides:    append([]int(nil), strides...),
		data:       data,
		dynamism:   dyn,
	}, nil
}

// ScalarType returns the tensor's element type.
func (t *Impl) ScalarType() dtype.ScalarType { return t.scalarType }

// Ndim returns the number of dimensions (0 for a scalar).
func (t *Impl) Ndim() int { return len(t.sizes) }

// Sizes returns a copy of the per-dimension extents.
func (t *Impl) Sizes() []int { return append([]int(nil), t.sizes...) }

// DimOrder returns a copy of the physical axis permutation.
func (t *Impl) DimOrder() []int { return append([]int(nil), t.dimOrder...) }

// Strides returns a copy of the element-unit strides.
func (t *Impl) Strides() []int { return append([]int(nil), t.strides...) }

// Dynamism returns the tensor's dynamism class.
func (t *Impl) Dynamism() Dynamism { return t.dynamism }

// Data returns the raw backing slice as any. May be nil for a
// metadata-only Impl.
func (t *Impl) Data() any { return t.data }

// SetData rebinds the backing slice. The new data's element count must
// match Numel(sizes).
func (t *Impl) SetData(data any) error {
	if n := dtype.Len(t.scalarType, data); n >= 0 && n != t.Numel() {
		return nnerr.New(nnerr.InvalidArgument, "data length does not match numel(sizes)")
	}
	t.data = data
	return nil
}

// Numel returns the total element count (1 for a 0-dim scalar).
func (t *Impl) Numel() int { return Numel(t.sizes) }

// Nbytes returns numel * element size.
func (t *Impl) Nbytes() int { return t.Numel() * t.scalarType.ElementSize() }

// offset maps multi-dimensional coordinates to a linear element offset
// using the tensor's strides. Returns ok=false if coords' length or
// any coordinate is out of bounds.
func (t *Impl) offset(coords []int) (int, bool) {
	if len(coords) != len(t.sizes) {
		return 0, false
	}
	off := 0
	for i, c := range coords {
		if c < 0 || c >= t.sizes[i] {
			return 0, false
		}
		off += c * t.strides[i]
	}
	return off, true
}

// At reads the element at coords as a float64. Returns ok=false on an
// out-of-range index, a nil backing buffer, or a non-numeric scalar
// type (quantized/complex types are not readable through At).
func (t *Impl) At(coords ...int) (float64, bool) {
	off, ok := t.offset(coords)
	if !ok || t.data == nil {
		return 0, false
	}
	return dtype.AsFloat64(t.scalarType, t.data, off)
}

// SetAt writes v into the element at coords. Returns ok=false on an
// out-of-range index, a nil backing buffer, or a non-numeric scalar
// type.
func (t *Impl) SetAt(v float64, coords ...int) bool {
	off, ok := t.offset(coords)
	if !ok || t.data == nil {
		return false
	}
	return dtype.SetFloat64(t.scalarType, t.data, off, v)
}

// Kind is the ownership-flavor marker a Tensor handle carries. These
// are purely documentary/compile-time distinctions: the runtime Impl
// behind every Kind is identical, per spec.md §3.
type Kind uint8

const (
	ImmutableView Kind = iota
	MutableView
	TypeErased
	Typed
)

// Tensor is a lightweight handle over a shared *Impl.
type Tensor struct {
	impl *Impl
	kind Kind
}

// NewTensor wraps impl with the given ownership-flavor marker.
func NewTensor(impl *Impl, kind Kind) Tensor { return Tensor{impl: impl, kind: kind} }

// Impl returns the underlying shape descriptor.
func (t Tensor) Impl() *Impl { return t.impl }

// Kind returns the ownership-flavor marker this handle carries.
func (t Tensor) Kind() Kind { return t.kind }

// IsNil reports whether this handle wraps no Impl.
func (t Tensor) IsNil() bool { return t.impl == nil }

// AsTyped succeeds iff impl's scalar type equals st; no data
// reinterpretation occurs, only a scalar-type check, and the returned
// handle carries the Typed marker, per spec.md §4.6.
func (t Tensor) AsTyped(st dtype.ScalarType) (Tensor, error) {
	if t.impl == nil {
		return Tensor{}, nnerr.New(nnerr.InvalidArgument, "nil tensor")
	}
	if t.impl.scalarType != st {
		return Tensor{}, nnerr.New(nnerr.InvalidType, "tensor scalar type mismatch")
	}
	return Tensor{impl: t.impl, kind: Typed}, nil
}
