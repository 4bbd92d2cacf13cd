// Package tensor provides the tensor containers shared by the model readers,
// the quantizer and the artifact encoder.
package tensor

import "fmt"

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
//
// Float16 and BFloat16 sources are widened to Float32 by the readers,
// so they never appear as a RawTensor dtype.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Int8
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool, Int8:
		return 1
	default:
		panic(fmt.Sprintf("unknown data type %d", int(dt)))
	}
}

// IsFloat reports whether the type holds floating-point values.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Int8:
		return "int8"
	default:
		return "unknown"
	}
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, bool) {
	switch s {
	case "float32":
		return Float32, true
	case "float64":
		return Float64, true
	case "int32":
		return Int32, true
	case "int64":
		return Int64, true
	case "uint8":
		return Uint8, true
	case "bool":
		return Bool, true
	case "int8":
		return Int8, true
	default:
		return 0, false
	}
}
