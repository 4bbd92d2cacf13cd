package quantize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-convert/internal/tensor"
)

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%23-11) * 0.05
	}
	return out
}

func TestDefaultPolicy(t *testing.T) {
	p := Default()
	assert.Equal(t, "default", p.Name)
	assert.Equal(t, 1024, p.MinElements)
	assert.Equal(t, 2, p.MinRank)
}

func TestEligible(t *testing.T) {
	p := Default()

	tests := []struct {
		name  string
		shape tensor.Shape
		dtype tensor.DataType
		want  bool
	}{
		{"large matrix", tensor.Shape{64, 32}, tensor.Float32, true},
		{"large float64 matrix", tensor.Shape{32, 32}, tensor.Float64, true},
		{"conv kernel", tensor.Shape{16, 3, 3, 3}, tensor.Float32, false}, // 432 elements
		{"small matrix", tensor.Shape{6, 64}, tensor.Float32, false},
		{"large vector", tensor.Shape{4096}, tensor.Float32, false},
		{"int64 matrix", tensor.Shape{64, 32}, tensor.Int64, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tensor.NewRaw(tt.shape, tt.dtype)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Eligible(raw))
		})
	}
}

func TestApplyQuantizesLargeWeights(t *testing.T) {
	values := ramp(64 * 32)
	raw, err := tensor.FromFloat32(tensor.Shape{64, 32}, values)
	require.NoError(t, err)

	q, err := Default().Apply("fc.weight", raw)
	require.NoError(t, err)

	assert.True(t, q.Quantized)
	assert.Equal(t, tensor.Int8, q.Data.DType())
	assert.Equal(t, tensor.Shape{64, 32}, q.Data.Shape())
	assert.Equal(t, 0, q.Axis)
	assert.Len(t, q.Scales, 64)
	assert.Equal(t, make([]int64, 64), q.ZeroPoints)
	assert.Equal(t, raw.ByteSize()/4, q.Data.ByteSize())

	restored, err := Dequantize(q)
	require.NoError(t, err)
	for i, v := range values {
		c := i / 32
		// Rounding error is at most half a quantization step.
		assert.InDelta(t, v, restored[i], float64(q.Scales[c])/2+1e-6, "element %d", i)
	}
}

func TestApplyKeepsSmallTensorsFloat32(t *testing.T) {
	raw, err := tensor.FromFloat32(tensor.Shape{6}, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	q, err := Default().Apply("fc.bias", raw)
	require.NoError(t, err)
	assert.False(t, q.Quantized)
	assert.Equal(t, tensor.Float32, q.Data.DType())
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, q.Data.AsFloat32())
}

func TestApplyNarrowsFloat64(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float64)
	require.NoError(t, err)
	copy(raw.AsFloat64(), []float64{0.5, -1.5, 2})

	q, err := Default().Apply("scale", raw)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, q.Data.DType())
	assert.Equal(t, []float32{0.5, -1.5, 2}, q.Data.AsFloat32())
}

func TestApplyPassesThroughIntegers(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{64, 32}, tensor.Int64)
	require.NoError(t, err)

	q, err := Default().Apply("shape_const", raw)
	require.NoError(t, err)
	assert.False(t, q.Quantized)
	assert.Same(t, raw, q.Data)
}

func TestPerChannel(t *testing.T) {
	values := []float32{
		1, -0.6, 0.25, // channel 0: max 1
		0, 0, 0, // channel 1: all zero
		-254, 127, 0, // channel 2: max 254
	}
	q, scales, err := PerChannel(tensor.Shape{3, 3}, values)
	require.NoError(t, err)

	assert.InDelta(t, 1.0/127, scales[0], 1e-9)
	assert.Equal(t, float32(1), scales[1])
	assert.InDelta(t, 2.0, scales[2], 1e-6)

	assert.Equal(t, []int8{127, -76, 32, 0, 0, 0, -127, 64, 0}, q.AsInt8())
}

func TestPerChannelRejectsNonFinite(t *testing.T) {
	values := []float32{1, float32(math.NaN()), 0, 0}
	_, _, err := PerChannel(tensor.Shape{2, 2}, values)
	assert.Error(t, err)

	values = []float32{1, 0, float32(math.Inf(1)), 0}
	_, _, err = PerChannel(tensor.Shape{2, 2}, values)
	assert.Error(t, err)
}

func TestPerChannelEmpty(t *testing.T) {
	q, scales, err := PerChannel(tensor.Shape{0, 32}, nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{0, 32}, q.Shape())
	assert.Empty(t, q.AsInt8())
	assert.Empty(t, scales)

	q, scales, err = PerChannel(tensor.Shape{4, 0}, nil)
	require.NoError(t, err)
	assert.Empty(t, q.AsInt8())
	assert.Equal(t, []float32{1, 1, 1, 1}, scales)
}

func TestApplyEmptyTensors(t *testing.T) {
	for _, dtype := range []tensor.DataType{tensor.Float32, tensor.Float64} {
		raw, err := tensor.NewRaw(tensor.Shape{0}, dtype)
		require.NoError(t, err)

		q, err := Default().Apply("roi", raw)
		require.NoError(t, err, dtype.String())
		assert.False(t, q.Quantized)
		assert.Equal(t, tensor.Float32, q.Data.DType())
		assert.Equal(t, tensor.Shape{0}, q.Data.Shape())
		assert.Zero(t, q.Data.ByteSize())
	}
}

func TestStats(t *testing.T) {
	p := Default()
	var s Stats

	big, err := tensor.FromFloat32(tensor.Shape{64, 32}, ramp(64*32))
	require.NoError(t, err)
	small, err := tensor.FromFloat32(tensor.Shape{64}, ramp(64))
	require.NoError(t, err)

	for name, raw := range map[string]*tensor.RawTensor{"w": big, "b": small} {
		q, err := p.Apply(name, raw)
		require.NoError(t, err)
		s.Add(raw, q)
	}

	assert.Equal(t, 2, s.Tensors)
	assert.Equal(t, 1, s.Quantized)
	assert.Equal(t, int64(64*32*4+64*4), s.BytesBefore)
	assert.Equal(t, int64(64*32+64*4), s.BytesAfter)
}
