// Package quantize implements the size-reduction policy applied to every
// converted model: dynamic-range int8 quantization of large weight tensors.
package quantize

import (
	"fmt"
	"math"

	"github.com/born-ml/born-convert/internal/parallel"
	"github.com/born-ml/born-convert/internal/tensor"
)

// Policy selects which tensors are quantized.
type Policy struct {
	Name        string // recorded in the artifact
	MinElements int    // smaller tensors stay float32
	MinRank     int    // vectors (biases, norms) stay float32
}

// Default returns the default optimization policy.
func Default() Policy {
	return Policy{
		Name:        "default",
		MinElements: 1024,
		MinRank:     2,
	}
}

// qmax is the symmetric int8 range limit. -128 is never produced.
const qmax = 127

// Tensor is a tensor after the policy has been applied.
type Tensor struct {
	Name string
	Data *tensor.RawTensor

	// Quantization parameters, set when Quantized is true.
	// Real value = Scales[c] * (q - ZeroPoints[c]) for channel c along Axis.
	Quantized  bool
	Axis       int
	Scales     []float32
	ZeroPoints []int64
}

// Stats summarizes one conversion pass.
type Stats struct {
	Tensors     int
	Quantized   int
	BytesBefore int64
	BytesAfter  int64
}

// Add accumulates one tensor into the stats.
func (s *Stats) Add(before *tensor.RawTensor, after *Tensor) {
	s.Tensors++
	if after.Quantized {
		s.Quantized++
	}
	s.BytesBefore += int64(before.ByteSize())
	s.BytesAfter += int64(after.Data.ByteSize())
}

// Eligible reports whether raw would be quantized under p.
func (p Policy) Eligible(raw *tensor.RawTensor) bool {
	return raw.DType().IsFloat() &&
		len(raw.Shape()) >= p.MinRank &&
		raw.NumElements() >= p.MinElements
}

// Apply quantizes raw if it is eligible. Other float tensors are narrowed
// to float32; non-float tensors pass through unchanged.
func (p Policy) Apply(name string, raw *tensor.RawTensor) (*Tensor, error) {
	if !raw.DType().IsFloat() {
		return &Tensor{Name: name, Data: raw}, nil
	}

	values, err := raw.Float32Values()
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	if !p.Eligible(raw) {
		narrowed, err := tensor.FromFloat32(raw.Shape(), values)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		return &Tensor{Name: name, Data: narrowed}, nil
	}

	q, scales, err := PerChannel(raw.Shape(), values)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return &Tensor{
		Name:       name,
		Data:       q,
		Quantized:  true,
		Axis:       0,
		Scales:     scales,
		ZeroPoints: make([]int64, len(scales)),
	}, nil
}

// PerChannel quantizes values symmetrically per slice along axis 0.
//
// Each channel c gets scale max|w_c|/127, or 1 when the channel is all
// zeros, and q = round(w/scale) clamped to [-127, 127]. Large tensors are
// split across CPUs by channel; the output does not depend on scheduling.
func PerChannel(shape tensor.Shape, values []float32) (*tensor.RawTensor, []float32, error) {
	if len(shape) == 0 {
		return nil, nil, fmt.Errorf("cannot quantize a scalar per channel")
	}
	out, err := tensor.NewRaw(shape, tensor.Int8)
	if err != nil {
		return nil, nil, err
	}
	if len(values) != out.NumElements() {
		return nil, nil, fmt.Errorf("got %d values for shape %s", len(values), shape)
	}

	channels := shape[0]
	if channels == 0 {
		return out, []float32{}, nil
	}
	per := len(values) / channels
	scales := make([]float32, channels)
	q := out.AsInt8()

	// Channels write disjoint slices of q and scales.
	err = parallel.ForErr(channels, func(c int) error {
		chunk := values[c*per : (c+1)*per]

		var maxAbs float64
		for _, v := range chunk {
			a := math.Abs(float64(v))
			if math.IsInf(a, 0) || math.IsNaN(a) {
				return fmt.Errorf("channel %d contains non-finite values", c)
			}
			maxAbs = max(maxAbs, a)
		}

		scale := float32(maxAbs / qmax)
		if scale == 0 {
			scale = 1
		}
		scales[c] = scale

		for i, v := range chunk {
			r := math.Round(float64(v / scale))
			q[c*per+i] = int8(max(-qmax, min(qmax, r)))
		}
		return nil
	}, parallel.DefaultConfig())
	if err != nil {
		return nil, nil, err
	}
	return out, scales, nil
}

// Dequantize reconstructs float32 values from a quantized tensor.
func Dequantize(t *Tensor) ([]float32, error) {
	if !t.Quantized {
		return t.Data.Float32Values()
	}
	q := t.Data.AsInt8()
	per := len(q) / len(t.Scales)
	out := make([]float32, len(q))
	for i, v := range q {
		c := i / per
		out[i] = t.Scales[c] * float32(int64(v)-t.ZeroPoints[c])
	}
	return out, nil
}
