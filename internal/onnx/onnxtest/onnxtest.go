// Package onnxtest builds small ONNX models in memory for tests.
package onnxtest

import (
	"encoding/binary"
	"math"
)

// Wire types used by the builder.
const (
	wireVarint = 0
	wireBytes  = 2
	wire32Bit  = 5
)

// Message is a protobuf message under construction.
type Message struct {
	buf []byte
}

// Encoded returns the serialized message.
func (m *Message) Encoded() []byte {
	return m.buf
}

func (m *Message) tag(field, wt int) {
	m.varint(uint64(field<<3 | wt)) //nolint:gosec // G115: small positive field numbers
}

func (m *Message) varint(v uint64) {
	m.buf = binary.AppendUvarint(m.buf, v)
}

// Varint appends a varint field.
func (m *Message) Varint(field int, v int64) *Message {
	m.tag(field, wireVarint)
	m.varint(uint64(v)) //nolint:gosec // G115: two's complement encoding
	return m
}

// Bytes appends a length-delimited field.
func (m *Message) Bytes(field int, b []byte) *Message {
	m.tag(field, wireBytes)
	m.varint(uint64(len(b)))
	m.buf = append(m.buf, b...)
	return m
}

// Text appends a string field.
func (m *Message) Text(field int, s string) *Message {
	return m.Bytes(field, []byte(s))
}

// Embed appends an embedded message.
func (m *Message) Embed(field int, sub *Message) *Message {
	return m.Bytes(field, sub.buf)
}

// Float appends a fixed32 float field.
func (m *Message) Float(field int, v float32) *Message {
	m.tag(field, wire32Bit)
	m.buf = binary.LittleEndian.AppendUint32(m.buf, math.Float32bits(v))
	return m
}

// PackedVarints appends a packed repeated varint field.
func (m *Message) PackedVarints(field int, vs ...int64) *Message {
	var packed []byte
	for _, v := range vs {
		packed = binary.AppendUvarint(packed, uint64(v)) //nolint:gosec // G115: two's complement encoding
	}
	return m.Bytes(field, packed)
}

// PackedFloats appends a packed repeated float field.
func (m *Message) PackedFloats(field int, vs ...float32) *Message {
	packed := make([]byte, 0, 4*len(vs))
	for _, v := range vs {
		packed = binary.LittleEndian.AppendUint32(packed, math.Float32bits(v))
	}
	return m.Bytes(field, packed)
}

// FloatInitializer builds a float32 TensorProto with raw_data.
func FloatInitializer(name string, dims []int64, values []float32) *Message {
	raw := make([]byte, 0, 4*len(values))
	for _, v := range values {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
	}
	t := &Message{}
	t.PackedVarints(1, dims...)
	t.Varint(2, 1) // FLOAT
	t.Text(8, name)
	t.Bytes(9, raw)
	return t
}

// Node builds a NodeProto.
func Node(name, opType string, inputs, outputs []string) *Message {
	n := &Message{}
	for _, in := range inputs {
		n.Text(1, in)
	}
	for _, out := range outputs {
		n.Text(2, out)
	}
	n.Text(3, name)
	n.Text(4, opType)
	return n
}

// ValueInfo builds a float ValueInfoProto. Dimensions <= 0 become the
// symbolic dimension "batch".
func ValueInfo(name string, dims ...int64) *Message {
	shape := &Message{}
	for _, d := range dims {
		dim := &Message{}
		if d > 0 {
			dim.Varint(1, d)
		} else {
			dim.Text(2, "batch")
		}
		shape.Embed(1, dim)
	}
	tensorType := (&Message{}).Varint(1, 1).Embed(2, shape)
	typ := (&Message{}).Embed(1, tensorType)
	return (&Message{}).Text(1, name).Embed(2, typ)
}

// Model wraps a graph in a ModelProto with IR version 8 and opset 13.
func Model(graph *Message) *Message {
	opset := (&Message{}).Text(1, "").Varint(2, 13)
	m := &Message{}
	m.Varint(1, 8)
	m.Text(2, "onnxtest")
	m.Text(3, "1.0")
	m.Embed(7, graph)
	m.Embed(8, opset)
	return m
}

// Labels are the class names matching the Classifier outputs.
var Labels = []string{"cardboard", "glass", "metal", "paper", "plastic", "trash"}

// Classifier builds a two-layer dense image classifier:
// Flatten -> Gemm(32->64) -> Relu -> Gemm(64->6) -> Softmax.
//
// fc1.weight has 2048 elements; fc2.weight has 384.
func Classifier() []byte {
	return ClassifierWith()
}

// ClassifierWith is Classifier with extra initializers appended to the graph.
func ClassifierWith(initializers ...*Message) []byte {
	graph := &Message{}
	graph.Text(2, "waste_classifier")

	graph.Embed(1, Node("flatten", "Flatten", []string{"image"}, []string{"flat"}))
	graph.Embed(1, Node("fc1", "Gemm", []string{"flat", "fc1.weight", "fc1.bias"}, []string{"h"}))
	graph.Embed(1, Node("relu", "Relu", []string{"h"}, []string{"h_relu"}))
	graph.Embed(1, Node("fc2", "Gemm", []string{"h_relu", "fc2.weight", "fc2.bias"}, []string{"logits"}))
	graph.Embed(1, Node("softmax", "Softmax", []string{"logits"}, []string{"probs"}))

	graph.Embed(5, FloatInitializer("fc1.weight", []int64{64, 32}, Ramp(64*32, 0.01)))
	graph.Embed(5, FloatInitializer("fc1.bias", []int64{64}, Ramp(64, 0.1)))
	graph.Embed(5, FloatInitializer("fc2.weight", []int64{6, 64}, Ramp(6*64, 0.02)))
	graph.Embed(5, FloatInitializer("fc2.bias", []int64{6}, Ramp(6, 0.5)))
	for _, m := range initializers {
		graph.Embed(5, m)
	}

	graph.Embed(11, ValueInfo("image", 0, 32))
	graph.Embed(12, ValueInfo("probs", 0, 6))

	return Model(graph).Encoded()
}

// Ramp returns n values alternating in sign with a repeating magnitude pattern.
func Ramp(n int, step float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		v := float32(i%17+1) * step
		if i%2 == 1 {
			v = -v
		}
		out[i] = v
	}
	return out
}
