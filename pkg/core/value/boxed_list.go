package value

import (
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/tensor"
)

// BoxedList is a list whose elements live in the value table of a
// loaded method rather than inline in the Value itself. It stores two
// parallel spans: wrapped, pointers to Value slots in the table, and
// unwrapped, a writable scratch span of T reused across reads.
//
// This indirection exists because constant list entries (for example
// the tensor list bound to a variadic op's input) reference slots
// whose underlying tensors may be rebound between executions: the
// list itself is fixed at load time, but what each wrapped pointer
// currently resolves to is not.
type BoxedList[T any] struct {
	wrapped   []*Value
	unwrapped []T
	resolve   func(*Value) (T, bool)
	nilIsNone bool
}

// NewBoxedList constructs a BoxedList over wrapped, which must already
// be populated with pointers into a method's value table. resolve
// extracts a T from a Value of the expected element tag, returning
// ok=false on a tag mismatch. nilIsNone selects the ListOptionalTensor
// behavior where a nil wrapped pointer encodes None instead of being a
// construction error; every other list kind must reject nil entries at
// construction.
func NewBoxedList[T any](wrapped []*Value, resolve func(*Value) (T, bool), nilIsNone bool) (*BoxedList[T], error) {
	if !nilIsNone {
		for _, w := range wrapped {
			if w == nil {
				return nil, nnerr.New(nnerr.InvalidArgument, "nil wrapped pointer in non-optional BoxedList")
			}
		}
	}
	return &BoxedList[T]{
		wrapped:   wrapped,
		unwrapped: make([]T, len(wrapped)),
		resolve:   resolve,
		nilIsNone: nilIsNone,
	}, nil
}

// Len returns the number of elements, resolved or not.
func (l *BoxedList[T]) Len() int { return len(l.wrapped) }

// Read evaluates every wrapped pointer, checks its tag against the
// list's declared element type via resolve, writes the result into
// unwrapped, and returns a view of unwrapped. Resolution is eager:
// every call re-walks wrapped, since entries may have been rebound
// since the previous read. If any non-nil wrapped entry's tag
// disagrees with the declared element tag, the read fails with
// InvalidType and the returned view is nil.
func (l *BoxedList[T]) Read() ([]T, error) {
	for i, w := range l.wrapped {
		if w == nil {
			if !l.nilIsNone {
				return nil, nnerr.New(nnerr.InvalidArgument, "nil wrapped pointer in non-optional BoxedList")
			}
			var zero T
			l.unwrapped[i] = zero
			continue
		}
		elem, ok := l.resolve(w)
		if !ok {
			return nil, nnerr.New(nnerr.InvalidType, "boxed list element tag mismatch")
		}
		l.unwrapped[i] = elem
	}
	return l.unwrapped, nil
}

// ResolveInt64 is the resolve function for BoxedList[int64]: it
// accepts only Int-tagged Values.
func ResolveInt64(v *Value) (int64, bool) {
	if v.tag != Int {
		return 0, false
	}
	return v.i, true
}

// ResolveTensor is the resolve function for BoxedList[tensor.Tensor]:
// it accepts only Tensor-tagged Values.
func ResolveTensor(v *Value) (tensor.Tensor, bool) {
	if v.tag != TensorTag {
		return tensor.Tensor{}, false
	}
	return v.ten, true
}

// ResolveOptionalTensor is the resolve function for
// BoxedList[OptionalTensor]: a Tensor-tagged Value resolves to a
// present OptionalTensor; a None-tagged Value resolves to an absent
// one. Any other tag is a mismatch. A nil wrapped pointer (handled by
// BoxedList.Read before this is called) also encodes an absent value.
func ResolveOptionalTensor(v *Value) (OptionalTensor, bool) {
	switch v.tag {
	case TensorTag:
		return OptionalTensor{Tensor: v.ten, Present: true}, true
	case None:
		return OptionalTensor{}, true
	default:
		return OptionalTensor{}, false
	}
}
