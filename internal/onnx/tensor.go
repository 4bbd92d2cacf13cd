package onnx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/born-convert/internal/tensor"
)

// Errors returned when converting initializers.
var (
	ErrExternalData        = errors.New("tensor data stored outside the model file is not supported")
	ErrUnsupportedDataType = errors.New("unsupported ONNX data type")
)

// ToRawTensor converts an initializer to a RawTensor.
//
// Float16 and BFloat16 initializers are widened to float32. Scalars keep
// an empty shape; zero-sized dims give an empty tensor.
func ToRawTensor(tp *TensorProto) (*tensor.RawTensor, error) {
	if tp.DataLocation == DataLocationExternal || len(tp.ExternalData) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrExternalData, tp.Name)
	}

	shape := tensor.FromInt64(tp.Dims)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("initializer %s: %w", tp.Name, err)
	}
	n := shape.NumElements()

	switch tp.DataType {
	case TensorProtoFloat16, TensorProtoBfloat16:
		data := tp.RawData
		if len(data) == 0 {
			data = make([]byte, 2*len(tp.Int32Data))
			for i, v := range tp.Int32Data {
				binary.LittleEndian.PutUint16(data[2*i:], uint16(v)) //nolint:gosec // G115: int32_data holds 16-bit patterns
			}
		}
		return tensor.WidenHalf(shape, data, tp.DataType == TensorProtoBfloat16)
	}

	dtype, err := mapDataType(tp.DataType)
	if err != nil {
		return nil, fmt.Errorf("initializer %s: %w", tp.Name, err)
	}

	if len(tp.RawData) > 0 {
		return tensor.FromBytes(shape, dtype, tp.RawData)
	}

	var count int
	switch dtype {
	case tensor.Float32:
		count = len(tp.FloatData)
	case tensor.Float64:
		count = len(tp.DoubleData)
	case tensor.Int64:
		count = len(tp.Int64Data)
	default: // int32, int8, uint8 and bool all travel in int32_data
		count = len(tp.Int32Data)
	}
	if count != n {
		return nil, fmt.Errorf("initializer %s: expected %d values, got %d", tp.Name, n, count)
	}

	data := make([]byte, n*dtype.Size())
	switch dtype {
	case tensor.Float32:
		for i, v := range tp.FloatData {
			binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
		}
	case tensor.Float64:
		for i, v := range tp.DoubleData {
			binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(v))
		}
	case tensor.Int64:
		for i, v := range tp.Int64Data {
			binary.LittleEndian.PutUint64(data[8*i:], uint64(v)) //nolint:gosec // G115: bit reinterpretation
		}
	case tensor.Int32:
		for i, v := range tp.Int32Data {
			binary.LittleEndian.PutUint32(data[4*i:], uint32(v)) //nolint:gosec // G115: bit reinterpretation
		}
	default:
		for i, v := range tp.Int32Data {
			data[i] = byte(v) //nolint:gosec // G115: value fits the 8-bit element type
		}
	}
	return tensor.FromBytes(shape, dtype, data)
}

func mapDataType(dt int32) (tensor.DataType, error) {
	switch dt {
	case TensorProtoFloat:
		return tensor.Float32, nil
	case TensorProtoDouble:
		return tensor.Float64, nil
	case TensorProtoInt32:
		return tensor.Int32, nil
	case TensorProtoInt64:
		return tensor.Int64, nil
	case TensorProtoUint8:
		return tensor.Uint8, nil
	case TensorProtoInt8:
		return tensor.Int8, nil
	case TensorProtoBool:
		return tensor.Bool, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedDataType, DataTypeName(dt))
	}
}
