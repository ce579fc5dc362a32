// Package value implements the typed container (Value) that flows
// through a loaded method's value table: a closed tagged union over
// scalars, tensors, and list variants, plus the deferred-resolution
// BoxedList used by list variants whose elements live elsewhere in the
// value table.
package value

import (
	"github.com/itohio/nnrt/pkg/core/nnerr"
	"github.com/itohio/nnrt/pkg/core/tensor"
)

// Tag identifies which variant of Value is active. Exactly one is
// active at a time; reading through the wrong accessor fails with
// nnerr.InvalidType rather than returning a corrupted payload.
type Tag uint8

const (
	None Tag = iota
	Int
	Double
	Bool
	String
	TensorTag
	ListInt
	ListDouble
	ListBool
	ListTensor
	ListOptionalTensor
	// ListScalar is reserved. The core never constructs a Value with
	// this tag; it exists so a future list-of-mixed-scalar variant has
	// a stable tag number.
	ListScalar
)

func (t Tag) String() string {
	switch t {
	case None:
		return "None"
	case Int:
		return "Int"
	case Double:
		return "Double"
	case Bool:
		return "Bool"
	case String:
		return "String"
	case TensorTag:
		return "Tensor"
	case ListInt:
		return "ListInt"
	case ListDouble:
		return "ListDouble"
	case ListBool:
		return "ListBool"
	case ListTensor:
		return "ListTensor"
	case ListOptionalTensor:
		return "ListOptionalTensor"
	case ListScalar:
		return "ListScalar"
	default:
		return "Unknown"
	}
}

// OptionalTensor is the element type of a ListOptionalTensor: either a
// present Tensor or an absent one (None).
type OptionalTensor struct {
	Tensor  tensor.Tensor
	Present bool
}

// Value is a discriminated union. Only the field matching Tag is
// meaningful; construct one through the New* functions below rather
// than populating fields directly.
type Value struct {
	tag Tag

	i   int64
	d   float64
	b   bool
	str string
	ten tensor.Tensor

	listInt       *BoxedList[int64]
	listDouble    []float64
	listBool      []bool
	listTensor    *BoxedList[tensor.Tensor]
	listOptTensor *BoxedList[OptionalTensor]
}

// Tag reports which variant is active.
func (v *Value) Tag() Tag { return v.tag }

// IsNone reports whether this Value holds no payload.
func (v *Value) IsNone() bool { return v.tag == None }

// NewNone returns an empty Value.
func NewNone() Value { return Value{tag: None} }

// NewInt returns an Int-tagged Value.
func NewInt(i int64) Value { return Value{tag: Int, i: i} }

// NewDouble returns a Double-tagged Value.
func NewDouble(d float64) Value { return Value{tag: Double, d: d} }

// NewBool returns a Bool-tagged Value.
func NewBool(b bool) Value { return Value{tag: Bool, b: b} }

// NewString returns a String-tagged Value.
func NewString(s string) Value { return Value{tag: String, str: s} }

// NewTensor returns a Tensor-tagged Value.
func NewTensor(t tensor.Tensor) Value { return Value{tag: TensorTag, ten: t} }

// NewListDouble returns a ListDouble-tagged Value over a borrowed
// slice; unlike ListInt/ListTensor/ListOptionalTensor this variant is
// not boxed, since its elements are plain f64s stored contiguously
// rather than references into the value table.
func NewListDouble(data []float64) Value { return Value{tag: ListDouble, listDouble: data} }

// NewListBool returns a ListBool-tagged Value over a borrowed slice.
func NewListBool(data []bool) Value { return Value{tag: ListBool, listBool: data} }

// NewListInt returns a ListInt-tagged Value wrapping a BoxedList.
func NewListInt(l *BoxedList[int64]) Value { return Value{tag: ListInt, listInt: l} }

// NewListTensor returns a ListTensor-tagged Value wrapping a BoxedList.
func NewListTensor(l *BoxedList[tensor.Tensor]) Value {
	return Value{tag: ListTensor, listTensor: l}
}

// NewListOptionalTensor returns a ListOptionalTensor-tagged Value
// wrapping a BoxedList whose elements may be absent.
func NewListOptionalTensor(l *BoxedList[OptionalTensor]) Value {
	return Value{tag: ListOptionalTensor, listOptTensor: l}
}

func wrongTag(want Tag, got Tag) error {
	return nnerr.New(nnerr.InvalidType, "value accessor expected "+want.String()+" but tag is "+got.String())
}

// AsInt returns the Int payload, or InvalidType if the tag doesn't match.
func (v *Value) AsInt() (int64, error) {
	if v.tag != Int {
		return 0, wrongTag(Int, v.tag)
	}
	return v.i, nil
}

// AsDouble returns the Double payload, or InvalidType if the tag doesn't match.
func (v *Value) AsDouble() (float64, error) {
	if v.tag != Double {
		return 0, wrongTag(Double, v.tag)
	}
	return v.d, nil
}

// AsBool returns the Bool payload, or InvalidType if the tag doesn't match.
func (v *Value) AsBool() (bool, error) {
	if v.tag != Bool {
		return false, wrongTag(Bool, v.tag)
	}
	return v.b, nil
}

// AsString returns the String payload, or InvalidType if the tag doesn't match.
func (v *Value) AsString() (string, error) {
	if v.tag != String {
		return "", wrongTag(String, v.tag)
	}
	return v.str, nil
}

// AsTensor returns the Tensor payload, or InvalidType if the tag doesn't match.
func (v *Value) AsTensor() (tensor.Tensor, error) {
	if v.tag != TensorTag {
		return tensor.Tensor{}, wrongTag(TensorTag, v.tag)
	}
	return v.ten, nil
}

// AsListDouble returns the borrowed f64 slice, or InvalidType if the
// tag doesn't match.
func (v *Value) AsListDouble() ([]float64, error) {
	if v.tag != ListDouble {
		return nil, wrongTag(ListDouble, v.tag)
	}
	return v.listDouble, nil
}

// AsListBool returns the borrowed bool slice, or InvalidType if the
// tag doesn't match.
func (v *Value) AsListBool() ([]bool, error) {
	if v.tag != ListBool {
		return nil, wrongTag(ListBool, v.tag)
	}
	return v.listBool, nil
}

// AsListInt resolves and returns a view over the ListInt's elements,
// or InvalidType if the tag doesn't match or resolution fails.
func (v *Value) AsListInt() ([]int64, error) {
	if v.tag != ListInt {
		return nil, wrongTag(ListInt, v.tag)
	}
	return v.listInt.Read()
}

// AsListTensor resolves and returns a view over the ListTensor's
// elements, or InvalidType if the tag doesn't match or resolution
// fails.
func (v *Value) AsListTensor() ([]tensor.Tensor, error) {
	if v.tag != ListTensor {
		return nil, wrongTag(ListTensor, v.tag)
	}
	return v.listTensor.Read()
}

// AsListOptionalTensor resolves and returns a view over the
// ListOptionalTensor's elements, or InvalidType if the tag doesn't
// match or resolution fails.
func (v *Value) AsListOptionalTensor() ([]OptionalTensor, error) {
	if v.tag != ListOptionalTensor {
		return nil, wrongTag(ListOptionalTensor, v.tag)
	}
	return v.listOptTensor.Read()
}
