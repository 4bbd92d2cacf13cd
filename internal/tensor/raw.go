package tensor

import (
	"fmt"
	"unsafe"
)

// RawTensor is a dense row-major tensor backed by a little-endian byte buffer.
type RawTensor struct {
	data  []byte
	shape Shape
	dtype DataType
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:  make([]byte, shape.NumElements()*dtype.Size()),
		shape: shape.Clone(),
		dtype: dtype,
	}, nil
}

// FromBytes creates a RawTensor holding a copy of data.
// The length of data must match shape and dtype exactly.
func FromBytes(shape Shape, dtype DataType, data []byte) (*RawTensor, error) {
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		return nil, err
	}
	if len(data) != len(raw.data) {
		return nil, fmt.Errorf("data size mismatch for shape %s %s: got %d bytes, want %d",
			shape, dtype, len(data), len(raw.data))
	}
	copy(raw.data, data)
	return raw, nil
}

// FromFloat32 creates a Float32 tensor from values.
func FromFloat32(shape Shape, values []float32) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	if len(values) != raw.NumElements() {
		return nil, fmt.Errorf("got %d values for shape %s", len(values), shape)
	}
	copy(raw.AsFloat32(), values)
	return raw, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	r.mustBe(Float32)
	if len(r.data) == 0 {
		return []float32{}
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	r.mustBe(Float64)
	if len(r.data) == 0 {
		return []float64{}
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt8 interprets the data as []int8.
// Panics if the tensor's dtype is not Int8.
func (r *RawTensor) AsInt8() []int8 {
	r.mustBe(Int8)
	if len(r.data) == 0 {
		return []int8{}
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*int8)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// Float32Values returns a float32 copy of a floating-point tensor.
func (r *RawTensor) Float32Values() ([]float32, error) {
	switch r.dtype {
	case Float32:
		out := make([]float32, r.NumElements())
		copy(out, r.AsFloat32())
		return out, nil
	case Float64:
		src := r.AsFloat64()
		out := make([]float32, len(src))
		for i, v := range src {
			out[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tensor dtype is %s, not a floating-point type", r.dtype)
	}
}

func (r *RawTensor) mustBe(dt DataType) {
	if r.dtype != dt {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, dt))
	}
}
