package lite

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-convert/internal/lite/litefb"
	"github.com/born-ml/born-convert/internal/tensor"
)

func sampleArtifact(t *testing.T) *Artifact {
	t.Helper()

	weight, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Int8)
	require.NoError(t, err)
	copy(weight.AsInt8(), []int8{127, -64, 0, 1, -127, 5})

	bias, err := tensor.FromFloat32(tensor.Shape{2}, []float32{0.5, -0.25})
	require.NoError(t, err)

	shape, err := tensor.NewRaw(tensor.Shape{2}, tensor.Int64)
	require.NoError(t, err)
	copy(shape.Data(), []byte{1, 0, 0, 0, 0, 0, 0, 0, 255, 255, 255, 255, 255, 255, 255, 255})

	return &Artifact{
		SourceFormat: "ONNX",
		Optimization: "default",
		Description:  "test model",
		Tensors: []Tensor{
			{
				Name: "fc.weight",
				Data: weight,
				Quantization: &Quantization{
					Scales:     []float32{0.01, 0.02},
					ZeroPoints: []int64{0, 0},
				},
			},
			{Name: "fc.bias", Data: bias},
			{Name: "reshape.shape", Data: shape},
		},
		Operators: []Operator{
			{Name: "fc", OpType: "Gemm", Inputs: []string{"x", "fc.weight", "fc.bias"}, Outputs: []string{"y"}},
			{Name: "act", OpType: "Relu", Inputs: []string{"y"}, Outputs: []string{"z"}},
		},
		Inputs:  []string{"x"},
		Outputs: []string{"z"},
		Metadata: map[string]string{
			MetaLabels:     "a,b",
			MetaSourceFile: "model.onnx",
		},
	}
}

func TestEncodeDecode(t *testing.T) {
	in := sampleArtifact(t)

	buf, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, Identifier, string(buf[4:8]))
	assert.True(t, HasIdentifier(buf))

	out, err := Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, out.Version)
	assert.Equal(t, "ONNX", out.SourceFormat)
	assert.Equal(t, "default", out.Optimization)
	assert.Equal(t, "test model", out.Description)
	assert.Equal(t, []string{"x"}, out.Inputs)
	assert.Equal(t, []string{"z"}, out.Outputs)
	assert.Equal(t, in.Operators, out.Operators)
	assert.Equal(t, in.Metadata, out.Metadata)

	require.Len(t, out.Tensors, 3)
	for i, want := range in.Tensors {
		got := out.Tensors[i]
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.Data.Shape(), got.Data.Shape())
		assert.Equal(t, want.Data.DType(), got.Data.DType())
		assert.Equal(t, want.Data.Data(), got.Data.Data())
		assert.Equal(t, want.Quantization, got.Quantization)
	}
	assert.Equal(t, in.TensorBytes(), out.TensorBytes())
}

func TestEncodeAlignsBuffers(t *testing.T) {
	buf, err := Encode(sampleArtifact(t))
	require.NoError(t, err)

	m := litefb.GetRootAsModel(buf, 0)
	require.Equal(t, 4, m.BuffersLength())

	var b litefb.Buffer
	require.True(t, m.Buffers(&b, 0))
	assert.Zero(t, b.DataLength())

	for i := 1; i < m.BuffersLength(); i++ {
		require.True(t, m.Buffers(&b, i))
		data := b.DataBytes()
		require.NotEmpty(t, data)
		start := cap(buf) - cap(data)
		assert.Zero(t, start%16, "buffer %d starts at %d", i, start)
	}
}

func TestEncodeMetadataSorted(t *testing.T) {
	a := &Artifact{Metadata: map[string]string{"z": "1", "a": "2", "m": "3"}}
	buf, err := Encode(a)
	require.NoError(t, err)

	m := litefb.GetRootAsModel(buf, 0)
	var md litefb.Metadata
	var keys []string
	for i := range m.MetadataLength() {
		m.Metadata(&md, i)
		keys = append(keys, string(md.Name()))
	}
	assert.Equal(t, []string{"a", "m", "z"}, keys)

	// Same input, same bytes.
	again, err := Encode(a)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(buf, again))
}

func TestEncodeRejects(t *testing.T) {
	w, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Int8)
	require.NoError(t, err)

	tests := []struct {
		name    string
		tensors []Tensor
		wantErr string
	}{
		{"empty name", []Tensor{{Data: w}}, "no name"},
		{"nil data", []Tensor{{Name: "w"}}, "no data"},
		{"duplicate", []Tensor{{Name: "w", Data: w}, {Name: "w", Data: w}}, "duplicate"},
		{"bad axis", []Tensor{{Name: "w", Data: w, Quantization: &Quantization{Axis: 2}}}, "axis"},
		{"scale count", []Tensor{{Name: "w", Data: w, Quantization: &Quantization{
			Scales: []float32{1}, ZeroPoints: []int64{0},
		}}}, "scales"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(&Artifact{Tensors: tt.tensors})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err = Encode(nil)
	assert.Error(t, err)
}

func TestTensorBytesSkipsMissingData(t *testing.T) {
	bias, err := tensor.FromFloat32(tensor.Shape{2}, []float32{1, 2})
	require.NoError(t, err)

	a := &Artifact{Tensors: []Tensor{{Name: "w"}, {Name: "b", Data: bias}}}
	assert.Equal(t, int64(8), a.TensorBytes())

	_, err = Encode(a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `tensor "w" has no data`)
}

func TestEncodeEmptyAndScalarTensors(t *testing.T) {
	empty, err := tensor.NewRaw(tensor.Shape{0}, tensor.Float32)
	require.NoError(t, err)
	scalar, err := tensor.FromFloat32(tensor.Shape{}, []float32{0.5})
	require.NoError(t, err)

	buf, err := Encode(&Artifact{Tensors: []Tensor{
		{Name: "roi", Data: empty},
		{Name: "alpha", Data: scalar},
	}})
	require.NoError(t, err)

	out, err := Decode(buf)
	require.NoError(t, err)
	require.Len(t, out.Tensors, 2)

	assert.Equal(t, tensor.Shape{0}, out.Tensors[0].Data.Shape())
	assert.Zero(t, out.Tensors[0].Data.ByteSize())
	assert.Empty(t, out.Tensors[0].Data.AsFloat32())

	assert.Empty(t, out.Tensors[1].Data.Shape())
	assert.Equal(t, []float32{0.5}, out.Tensors[1].Data.AsFloat32())
}

func TestDecodeRejects(t *testing.T) {
	valid, err := Encode(sampleArtifact(t))
	require.NoError(t, err)

	t.Run("identifier", func(t *testing.T) {
		bad := bytes.Clone(valid)
		copy(bad[4:8], "ONNX")
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	})

	t.Run("short", func(t *testing.T) {
		_, err := Decode([]byte("BLIT"))
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	})

	t.Run("version", func(t *testing.T) {
		b := flatbuffers.NewBuilder(64)
		litefb.ModelStart(b)
		litefb.ModelAddVersion(b, 99)
		b.FinishWithFileIdentifier(litefb.ModelEnd(b), []byte(Identifier))
		_, err := Decode(b.FinishedBytes())
		assert.ErrorIs(t, err, ErrUnsupportedVersion)
	})

	t.Run("truncated", func(t *testing.T) {
		bad := bytes.Clone(valid[:len(valid)/3])
		_, err := Decode(bad)
		assert.Error(t, err)
	})

	t.Run("root offset out of range", func(t *testing.T) {
		bad := bytes.Clone(valid)
		binary.LittleEndian.PutUint32(bad, uint32(len(bad)+100)) //nolint:gosec // G115: test buffer is small
		_, err := Decode(bad)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestSummarize(t *testing.T) {
	s := sampleArtifact(t).Summarize()

	assert.Equal(t, map[string]int{"Gemm": 1, "Relu": 1}, s.Operators)
	assert.Equal(t, 1, s.Quantized)
	require.Len(t, s.Tensors, 3)
	assert.Equal(t, TensorSummary{Name: "fc.weight", Shape: []int{2, 3}, Type: "int8", Bytes: 6, Quantized: true}, s.Tensors[0])
	assert.Equal(t, int64(6+8+16), s.TensorBytes)

	var out strings.Builder
	require.NoError(t, s.WriteText(&out))
	text := out.String()
	assert.Contains(t, text, "Artifact: v0 from ONNX (optimization default)")
	assert.Contains(t, text, "labels = a,b")
	assert.Contains(t, text, "int8 (per-channel)")
	assert.Contains(t, text, "Tensors: 3 (1 quantized)")
}
