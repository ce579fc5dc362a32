// Package dtype enumerates the scalar element types a tensor may hold
// and provides type-erased dispatch over them. The enumeration is
// closed: new variants are never added by a downstream user, only by
// this package.
package dtype

// ScalarType is a closed enumeration of tensor element types.
// Undefined is the zero value and is never valid for a live tensor.
type ScalarType uint8

const (
	Undefined ScalarType = iota

	Byte  // int8
	Char  // uint8
	Short // int16
	Int   // int32
	Long  // int64

	UInt8
	UInt16
	UInt32
	UInt64

	Half     // IEEE binary16
	BFloat16 // bfloat16
	Float    // float32
	Double   // float64

	Bool

	ComplexHalf
	ComplexFloat
	ComplexDouble

	// Packed / sub-byte quantized types. ElementSize reports the byte
	// width of the storage container, not the logical sub-byte width.
	QInt8
	QUInt8
	QInt32
	QUInt4x2
	QUInt2x4
	Bits1x8
	Bits2x4
	Bits4x2
	Bits8
	Bits16
)

var elementSizes = [...]int{
	Undefined: 0,

	Byte:  1,
	Char:  1,
	Short: 2,
	Int:   4,
	Long:  8,

	UInt8:  1,
	UInt16: 2,
	UInt32: 4,
	UInt64: 8,

	Half:     2,
	BFloat16: 2,
	Float:    4,
	Double:   8,

	Bool: 1,

	ComplexHalf:   4,
	ComplexFloat:  8,
	ComplexDouble: 16,

	QInt8:    1,
	QUInt8:   1,
	QInt32:   4,
	QUInt4x2: 1,
	QUInt2x4: 1,
	Bits1x8:  1,
	Bits2x4:  1,
	Bits4x2:  1,
	Bits8:    1,
	Bits16:   2,
}

var names = [...]string{
	Undefined:     "undefined",
	Byte:          "byte",
	Char:          "char",
	Short:         "short",
	Int:           "int",
	Long:          "long",
	UInt8:         "uint8",
	UInt16:        "uint16",
	UInt32:        "uint32",
	UInt64:        "uint64",
	Half:          "half",
	BFloat16:      "bfloat16",
	Float:         "float",
	Double:        "double",
	Bool:          "bool",
	ComplexHalf:   "complex_half",
	ComplexFloat:  "complex_float",
	ComplexDouble: "complex_double",
	QInt8:         "qint8",
	QUInt8:        "quint8",
	QInt32:        "qint32",
	QUInt4x2:      "quint4x2",
	QUInt2x4:      "quint2x4",
	Bits1x8:       "bits1x8",
	Bits2x4:       "bits2x4",
	Bits4x2:       "bits4x2",
	Bits8:         "bits8",
	Bits16:        "bits16",
}

// Valid reports whether t is a recognized, non-Undefined scalar type.
func (t ScalarType) Valid() bool {
	return t > Undefined && int(t) < len(names)
}

// ElementSize returns the byte width of one element's storage
// container. Packed types return their container's width (e.g.
// QUInt4x2 is 1, holding two 4-bit values).
func (t ScalarType) ElementSize() int {
	if int(t) >= len(elementSizes) {
		return 0
	}
	return elementSizes[t]
}

// String implements fmt.Stringer.
func (t ScalarType) String() string {
	if int(t) < len(names) && names[t] != "" {
		return names[t]
	}
	return "unknown"
}
