package dtype

import "math"

// Elements is the subset of scalar types this runtime actually
// materializes as Go slices and can dispatch numeric operations over.
// Quantized/packed/complex types are represented (ElementSize, String)
// but carried as opaque []byte by the tensor layer — no kernel in this
// repo operates on them directly, matching spec.md §1's "does not own
// kernel correctness".
//
// NewSlice mirrors pkg/core/math/tensor/types/dtype.go's
// MakeTensorData: a closed switch over the live types, returning a
// freshly allocated slice of the right Go type as `any`.
func NewSlice(t ScalarType, n int) any {
	switch t {
	case Byte:
		return make([]int8, n)
	case Char, UInt8:
		return make([]uint8, n)
	case Short:
		return make([]int16, n)
	case UInt16:
		return make([]uint16, n)
	case Int:
		return make([]int32, n)
	case UInt32:
		return make([]uint32, n)
	case Long:
		return make([]int64, n)
	case UInt64:
		return make([]uint64, n)
	case Float:
		return make([]float32, n)
	case Double:
		return make([]float64, n)
	case Bool:
		return make([]bool, n)
	default:
		return nil
	}
}

// AsFloat64 reads element i of a live-typed slice as a float64,
// widening as needed. It is the scalar-dispatch primitive At() in the
// tensor package builds on. ok is false for Undefined/packed/complex
// types or an out-of-range index.
func AsFloat64(t ScalarType, data any, i int) (v float64, ok bool) {
	switch t {
	case Byte:
		s, k := data.([]int8)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return float64(s[i]), true
	case Char, UInt8:
		s, k := data.([]uint8)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return float64(s[i]), true
	case Short:
		s, k := data.([]int16)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return float64(s[i]), true
	case UInt16:
		s, k := data.([]uint16)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return float64(s[i]), true
	case Int:
		s, k := data.([]int32)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return float64(s[i]), true
	case UInt32:
		s, k := data.([]uint32)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return float64(s[i]), true
	case Long:
		s, k := data.([]int64)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return float64(s[i]), true
	case UInt64:
		s, k := data.([]uint64)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return float64(s[i]), true
	case Float:
		s, k := data.([]float32)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return float64(s[i]), true
	case Double:
		s, k := data.([]float64)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		return s[i], true
	case Bool:
		s, k := data.([]bool)
		if !k || i < 0 || i >= len(s) {
			return 0, false
		}
		if s[i] {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// SetFloat64 writes v into element i of a live-typed slice, narrowing
// as needed. ok is false on type/index mismatch.
func SetFloat64(t ScalarType, data any, i int, v float64) (ok bool) {
	switch t {
	case Byte:
		s, k := data.([]int8)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = int8(v)
	case Char, UInt8:
		s, k := data.([]uint8)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = uint8(v)
	case Short:
		s, k := data.([]int16)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = int16(v)
	case UInt16:
		s, k := data.([]uint16)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = uint16(v)
	case Int:
		s, k := data.([]int32)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = int32(v)
	case UInt32:
		s, k := data.([]uint32)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = uint32(v)
	case Long:
		s, k := data.([]int64)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = int64(v)
	case UInt64:
		s, k := data.([]uint64)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = uint64(v)
	case Float:
		s, k := data.([]float32)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = float32(v)
	case Double:
		s, k := data.([]float64)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = v
	case Bool:
		s, k := data.([]bool)
		if !k || i < 0 || i >= len(s) {
			return false
		}
		s[i] = v != 0 && !math.IsNaN(v)
	default:
		return false
	}
	return true
}

// Len reports the element count of a live-typed slice, or -1 if data's
// concrete type doesn't match t.
func Len(t ScalarType, data any) int {
	switch t {
	case Byte:
		s, k := data.([]int8)
		if !k {
			return -1
		}
		return len(s)
	case Char, UInt8:
		s, k := data.([]uint8)
		if !k {
			return -1
		}
		return len(s)
	case Short:
		s, k := data.([]int16)
		if !k {
			return -1
		}
		return len(s)
	case UInt16:
		s, k := data.([]uint16)
		if !k {
			return -1
		}
		return len(s)
	case Int:
		s, k := data.([]int32)
		if !k {
			return -1
		}
		return len(s)
	case UInt32:
		s, k := data.([]uint32)
		if !k {
			return -1
		}
		return len(s)
	case Long:
		s, k := data.([]int64)
		if !k {
			return -1
		}
		return len(s)
	case UInt64:
		s, k := data.([]uint64)
		if !k {
			return -1
		}
		return len(s)
	case Float:
		s, k := data.([]float32)
		if !k {
			return -1
		}
		return len(s)
	case Double:
		s, k := data.([]float64)
		if !k {
			return -1
		}
		return len(s)
	case Bool:
		s, k := data.([]bool)
		if !k {
			return -1
		}
		return len(s)
	default:
		return -1
	}
}
