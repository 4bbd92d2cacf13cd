package lite

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/born-ml/born-convert/internal/lite/litefb"
	"github.com/born-ml/born-convert/internal/tensor"
)

const (
	// Identifier is the flatbuffer file identifier stored at bytes 4..8.
	Identifier = "BLIT"

	// Extension is the conventional artifact file extension.
	Extension = ".blite"

	// SchemaVersion is the version written by Encode and accepted by Decode.
	SchemaVersion uint32 = 1
)

// Well-known metadata keys.
const (
	MetaConversionID = "conversion_id"
	MetaSourceFile   = "source_file"
	MetaLabels       = "labels"
	MetaConverter    = "converter"
)

var (
	// ErrInvalidIdentifier is returned when the buffer is not a .blite artifact.
	ErrInvalidIdentifier = errors.New("invalid artifact identifier")

	// ErrUnsupportedVersion is returned for artifacts with an unknown schema version.
	ErrUnsupportedVersion = errors.New("unsupported artifact version")

	// ErrCorrupt is returned when the flatbuffer tables cannot be read.
	ErrCorrupt = errors.New("corrupt artifact")
)

// Artifact is the in-memory form of a converted model.
type Artifact struct {
	Version      uint32 // set by Decode; Encode always writes SchemaVersion
	SourceFormat string
	Optimization string
	Description  string

	Tensors   []Tensor
	Operators []Operator
	Inputs    []string
	Outputs   []string

	// Metadata is written in sorted key order.
	Metadata map[string]string
}

// Tensor is a named constant stored in the artifact.
type Tensor struct {
	Name         string
	Data         *tensor.RawTensor
	Quantization *Quantization
}

// Quantization holds per-channel affine parameters:
// real = Scales[c] * (q - ZeroPoints[c]) for channel c along Axis.
type Quantization struct {
	Scales     []float32
	ZeroPoints []int64
	Axis       int
}

// Operator is a graph node carried over from the source model.
type Operator struct {
	Name    string
	OpType  string
	Inputs  []string
	Outputs []string
}

// TensorBytes returns the total payload size of all tensors. Tensors
// without data count as zero.
func (a *Artifact) TensorBytes() int64 {
	var n int64
	for _, t := range a.Tensors {
		if t.Data == nil {
			continue
		}
		n += int64(t.Data.ByteSize())
	}
	return n
}

// Encode serializes a into a finished flatbuffer.
func Encode(a *Artifact) ([]byte, error) {
	if a == nil {
		return nil, errors.New("nil artifact")
	}

	b := flatbuffers.NewBuilder(int(a.TensorBytes()) + 1024) //nolint:gosec // G115: payload size fits in int

	// Buffer 0 is the empty sentinel; tensor i uses buffer i+1.
	buffers := make([]flatbuffers.UOffsetT, 0, len(a.Tensors)+1)
	litefb.BufferStart(b)
	buffers = append(buffers, litefb.BufferEnd(b))

	tensors := make([]flatbuffers.UOffsetT, len(a.Tensors))
	seen := make(map[string]bool, len(a.Tensors))
	for i, t := range a.Tensors {
		if t.Name == "" {
			return nil, fmt.Errorf("tensor %d has no name", i)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("duplicate tensor %q", t.Name)
		}
		seen[t.Name] = true
		if t.Data == nil {
			return nil, fmt.Errorf("tensor %q has no data", t.Name)
		}

		typ, err := toTensorType(t.Data.DType())
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", t.Name, err)
		}

		buffers = append(buffers, encodeBuffer(b, t.Data.Data()))

		var quant flatbuffers.UOffsetT
		if t.Quantization != nil {
			quant, err = encodeQuantization(b, t)
			if err != nil {
				return nil, err
			}
		}

		name := b.CreateString(t.Name)
		shape := t.Data.Shape()
		litefb.TensorStartShapeVector(b, len(shape))
		for j := len(shape) - 1; j >= 0; j-- {
			b.PrependInt32(int32(shape[j])) //nolint:gosec // G115: dims validated by tensor.Shape
		}
		shapeVec := b.EndVector(len(shape))

		litefb.TensorStart(b)
		litefb.TensorAddShape(b, shapeVec)
		litefb.TensorAddType(b, typ)
		litefb.TensorAddBuffer(b, uint32(i+1)) //nolint:gosec // G115: index bounded by tensor count
		litefb.TensorAddName(b, name)
		if quant != 0 {
			litefb.TensorAddQuantization(b, quant)
		}
		tensors[i] = litefb.TensorEnd(b)
	}

	operators := make([]flatbuffers.UOffsetT, len(a.Operators))
	for i, op := range a.Operators {
		opType := b.CreateString(op.OpType)
		name := b.CreateString(op.Name)
		inputs := stringVector(b, op.Inputs, litefb.OperatorStartInputsVector)
		outputs := stringVector(b, op.Outputs, litefb.OperatorStartOutputsVector)

		litefb.OperatorStart(b)
		litefb.OperatorAddOpType(b, opType)
		litefb.OperatorAddName(b, name)
		litefb.OperatorAddInputs(b, inputs)
		litefb.OperatorAddOutputs(b, outputs)
		operators[i] = litefb.OperatorEnd(b)
	}

	keys := slices.Sorted(maps.Keys(a.Metadata))
	metadata := make([]flatbuffers.UOffsetT, len(keys))
	for i, k := range keys {
		name := b.CreateString(k)
		value := b.CreateString(a.Metadata[k])
		litefb.MetadataStart(b)
		litefb.MetadataAddName(b, name)
		litefb.MetadataAddValue(b, value)
		metadata[i] = litefb.MetadataEnd(b)
	}

	tensorVec := offsetVector(b, tensors, litefb.ModelStartTensorsVector)
	bufferVec := offsetVector(b, buffers, litefb.ModelStartBuffersVector)
	operatorVec := offsetVector(b, operators, litefb.ModelStartOperatorsVector)
	metadataVec := offsetVector(b, metadata, litefb.ModelStartMetadataVector)
	inputVec := stringVector(b, a.Inputs, litefb.ModelStartInputsVector)
	outputVec := stringVector(b, a.Outputs, litefb.ModelStartOutputsVector)
	sourceFormat := b.CreateString(a.SourceFormat)
	optimization := b.CreateString(a.Optimization)
	description := b.CreateString(a.Description)

	litefb.ModelStart(b)
	litefb.ModelAddVersion(b, SchemaVersion)
	litefb.ModelAddSourceFormat(b, sourceFormat)
	litefb.ModelAddOptimization(b, optimization)
	litefb.ModelAddDescription(b, description)
	litefb.ModelAddTensors(b, tensorVec)
	litefb.ModelAddBuffers(b, bufferVec)
	litefb.ModelAddOperators(b, operatorVec)
	litefb.ModelAddInputs(b, inputVec)
	litefb.ModelAddOutputs(b, outputVec)
	litefb.ModelAddMetadata(b, metadataVec)
	root := litefb.ModelEnd(b)

	b.FinishWithFileIdentifier(root, []byte(Identifier))
	return b.FinishedBytes(), nil
}

// encodeBuffer writes data as a 16-byte aligned vector so runtimes can map
// tensor payloads in place.
func encodeBuffer(b *flatbuffers.Builder, data []byte) flatbuffers.UOffsetT {
	b.Prep(16, len(data))
	vec := b.CreateByteVector(data)
	litefb.BufferStart(b)
	litefb.BufferAddData(b, vec)
	return litefb.BufferEnd(b)
}

func encodeQuantization(b *flatbuffers.Builder, t Tensor) (flatbuffers.UOffsetT, error) {
	q := t.Quantization
	shape := t.Data.Shape()
	if q.Axis < 0 || q.Axis >= len(shape) {
		return 0, fmt.Errorf("tensor %q: quantization axis %d out of range for shape %s", t.Name, q.Axis, shape)
	}
	if len(q.Scales) != shape[q.Axis] || len(q.ZeroPoints) != len(q.Scales) {
		return 0, fmt.Errorf("tensor %q: %d scales and %d zero points for %d channels",
			t.Name, len(q.Scales), len(q.ZeroPoints), shape[q.Axis])
	}

	litefb.QuantizationParametersStartScaleVector(b, len(q.Scales))
	for i := len(q.Scales) - 1; i >= 0; i-- {
		b.PrependFloat32(q.Scales[i])
	}
	scales := b.EndVector(len(q.Scales))

	litefb.QuantizationParametersStartZeroPointVector(b, len(q.ZeroPoints))
	for i := len(q.ZeroPoints) - 1; i >= 0; i-- {
		b.PrependInt64(q.ZeroPoints[i])
	}
	zeroPoints := b.EndVector(len(q.ZeroPoints))

	litefb.QuantizationParametersStart(b)
	litefb.QuantizationParametersAddScale(b, scales)
	litefb.QuantizationParametersAddZeroPoint(b, zeroPoints)
	litefb.QuantizationParametersAddQuantizedDimension(b, int32(q.Axis)) //nolint:gosec // G115: checked against rank
	return litefb.QuantizationParametersEnd(b), nil
}

type vectorStart func(*flatbuffers.Builder, int) flatbuffers.UOffsetT

func offsetVector(b *flatbuffers.Builder, offsets []flatbuffers.UOffsetT, start vectorStart) flatbuffers.UOffsetT {
	start(b, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	return b.EndVector(len(offsets))
}

func stringVector(b *flatbuffers.Builder, values []string, start vectorStart) flatbuffers.UOffsetT {
	offsets := make([]flatbuffers.UOffsetT, len(values))
	for i, v := range values {
		offsets[i] = b.CreateString(v)
	}
	return offsetVector(b, offsets, start)
}

func toTensorType(dt tensor.DataType) (litefb.TensorType, error) {
	switch dt {
	case tensor.Float32:
		return litefb.TensorTypeFLOAT32, nil
	case tensor.Float64:
		return litefb.TensorTypeFLOAT64, nil
	case tensor.Int32:
		return litefb.TensorTypeINT32, nil
	case tensor.Int64:
		return litefb.TensorTypeINT64, nil
	case tensor.Uint8:
		return litefb.TensorTypeUINT8, nil
	case tensor.Bool:
		return litefb.TensorTypeBOOL, nil
	case tensor.Int8:
		return litefb.TensorTypeINT8, nil
	default:
		return 0, fmt.Errorf("unsupported data type %s", dt)
	}
}

func fromTensorType(tt litefb.TensorType) (tensor.DataType, error) {
	switch tt {
	case litefb.TensorTypeFLOAT32:
		return tensor.Float32, nil
	case litefb.TensorTypeFLOAT64:
		return tensor.Float64, nil
	case litefb.TensorTypeINT32:
		return tensor.Int32, nil
	case litefb.TensorTypeINT64:
		return tensor.Int64, nil
	case litefb.TensorTypeUINT8:
		return tensor.Uint8, nil
	case litefb.TensorTypeBOOL:
		return tensor.Bool, nil
	case litefb.TensorTypeINT8:
		return tensor.Int8, nil
	default:
		return 0, fmt.Errorf("unsupported tensor type %s", tt)
	}
}
