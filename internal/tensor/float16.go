package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float16ToFloat32 converts an IEEE 754 half-precision value to float32.
func Float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := int32(h>>10) & 0x1F
	mant := uint32(h) & 0x3FF

	var bits uint32
	switch exp {
	case 0:
		if mant == 0 {
			bits = sign << 31
			break
		}
		// Subnormal: shift the mantissa until the implicit bit appears.
		e := int32(1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3FF
		bits = sign<<31 | uint32(e+127-15)<<23 | mant<<13
	case 0x1F:
		// Inf or NaN.
		bits = sign<<31 | 0x7F800000 | mant<<13
	default:
		bits = sign<<31 | uint32(exp+127-15)<<23 | mant<<13
	}
	return math.Float32frombits(bits)
}

// BFloat16ToFloat32 converts a bfloat16 value to float32.
func BFloat16ToFloat32(b uint16) float32 {
	return math.Float32frombits(uint32(b) << 16)
}

// WidenHalf decodes little-endian float16 or bfloat16 data into a Float32 tensor.
func WidenHalf(shape Shape, data []byte, brain bool) (*RawTensor, error) {
	raw, err := NewRaw(shape, Float32)
	if err != nil {
		return nil, err
	}
	n := raw.NumElements()
	if len(data) != n*2 {
		return nil, fmt.Errorf("half-precision data size mismatch: got %d bytes, want %d", len(data), n*2)
	}

	out := raw.AsFloat32()
	for i := range n {
		h := binary.LittleEndian.Uint16(data[i*2:])
		if brain {
			out[i] = BFloat16ToFloat32(h)
		} else {
			out[i] = Float16ToFloat32(h)
		}
	}
	return raw, nil
}
