package lite

import (
	"fmt"

	"github.com/born-ml/born-convert/internal/lite/litefb"
	"github.com/born-ml/born-convert/internal/tensor"
)

// HasIdentifier reports whether buf carries the .blite file identifier.
func HasIdentifier(buf []byte) bool {
	return len(buf) >= 8 && string(buf[4:8]) == Identifier
}

// Decode parses an encoded artifact. Tensor payloads are copied out of buf.
func Decode(buf []byte) (a *Artifact, err error) {
	if !HasIdentifier(buf) {
		return nil, ErrInvalidIdentifier
	}

	// Generated accessors index the buffer directly and panic on
	// out-of-range offsets.
	defer func() {
		if r := recover(); r != nil {
			a = nil
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()

	m := litefb.GetRootAsModel(buf, 0)
	if v := m.Version(); v != SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	a = &Artifact{
		Version:      m.Version(),
		SourceFormat: string(m.SourceFormat()),
		Optimization: string(m.Optimization()),
		Description:  string(m.Description()),
		Inputs:       stringsOf(m.InputsLength(), m.Inputs),
		Outputs:      stringsOf(m.OutputsLength(), m.Outputs),
		Metadata:     make(map[string]string, m.MetadataLength()),
	}

	var buffer litefb.Buffer
	var ft litefb.Tensor
	for i := range m.TensorsLength() {
		m.Tensors(&ft, i)
		t, err := decodeTensor(m, &ft, &buffer)
		if err != nil {
			return nil, err
		}
		a.Tensors = append(a.Tensors, t)
	}

	var op litefb.Operator
	for i := range m.OperatorsLength() {
		m.Operators(&op, i)
		a.Operators = append(a.Operators, Operator{
			Name:    string(op.Name()),
			OpType:  string(op.OpType()),
			Inputs:  stringsOf(op.InputsLength(), op.Inputs),
			Outputs: stringsOf(op.OutputsLength(), op.Outputs),
		})
	}

	var md litefb.Metadata
	for i := range m.MetadataLength() {
		m.Metadata(&md, i)
		a.Metadata[string(md.Name())] = string(md.Value())
	}
	return a, nil
}

func decodeTensor(m *litefb.Model, ft *litefb.Tensor, buffer *litefb.Buffer) (Tensor, error) {
	name := string(ft.Name())

	dtype, err := fromTensorType(ft.Type())
	if err != nil {
		return Tensor{}, fmt.Errorf("tensor %q: %w", name, err)
	}

	shape := make(tensor.Shape, ft.ShapeLength())
	for i := range shape {
		shape[i] = int(ft.Shape(i))
	}

	idx := int(ft.Buffer())
	if idx <= 0 || idx >= m.BuffersLength() {
		return Tensor{}, fmt.Errorf("%w: tensor %q references buffer %d of %d", ErrCorrupt, name, idx, m.BuffersLength())
	}
	m.Buffers(buffer, idx)

	raw, err := tensor.FromBytes(shape, dtype, buffer.DataBytes())
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: tensor %q: %v", ErrCorrupt, name, err)
	}

	t := Tensor{Name: name, Data: raw}
	if fq := ft.Quantization(nil); fq != nil {
		q := &Quantization{
			Scales:     make([]float32, fq.ScaleLength()),
			ZeroPoints: make([]int64, fq.ZeroPointLength()),
			Axis:       int(fq.QuantizedDimension()),
		}
		for i := range q.Scales {
			q.Scales[i] = fq.Scale(i)
		}
		for i := range q.ZeroPoints {
			q.ZeroPoints[i] = fq.ZeroPoint(i)
		}
		t.Quantization = q
	}
	return t, nil
}

func stringsOf(n int, at func(int) []byte) []string {
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = string(at(i))
	}
	return out
}
