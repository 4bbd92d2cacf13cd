package loader

import (
	"fmt"

	"github.com/born-ml/born-convert/internal/onnx"
	"github.com/born-ml/born-convert/internal/tensor"
)

// onnxModel adapts a parsed ONNX model to Model.
type onnxModel struct {
	proto   *onnx.ModelProto
	weights map[string]*onnx.TensorProto
	names   []string // initializer order as stored in the graph
}

func openONNX(path string) (Model, error) {
	proto, err := onnx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ONNX file: %w", err)
	}
	if proto.Graph == nil {
		return nil, fmt.Errorf("failed to parse ONNX file: model has no graph")
	}

	m := &onnxModel{
		proto:   proto,
		weights: make(map[string]*onnx.TensorProto, len(proto.Graph.Initializers)),
	}
	for i := range proto.Graph.Initializers {
		tp := &proto.Graph.Initializers[i]
		if _, dup := m.weights[tp.Name]; dup {
			return nil, fmt.Errorf("duplicate initializer %q", tp.Name)
		}
		m.weights[tp.Name] = tp
		m.names = append(m.names, tp.Name)
	}
	return m, nil
}

func (m *onnxModel) Format() Format { return FormatONNX }

func (m *onnxModel) Info() Info {
	summary := onnx.Info(m.proto)
	info := Info{
		Producer:  summary.ProducerName,
		GraphName: summary.GraphName,
		Opset:     summary.OpsetVersion,
		OpCounts:  summary.OpCounts,
	}
	if summary.ProducerVersion != "" {
		info.Producer += " " + summary.ProducerVersion
	}

	g := m.proto.Graph
	for i := range g.Inputs {
		if _, isWeight := m.weights[g.Inputs[i].Name]; isWeight {
			continue
		}
		info.Inputs = append(info.Inputs, ValueInfo{Name: g.Inputs[i].Name, Shape: onnx.ShapeString(&g.Inputs[i])})
	}
	for i := range g.Outputs {
		info.Outputs = append(info.Outputs, ValueInfo{Name: g.Outputs[i].Name, Shape: onnx.ShapeString(&g.Outputs[i])})
	}
	return info
}

func (m *onnxModel) TensorNames() []string {
	return append([]string(nil), m.names...)
}

func (m *onnxModel) TensorInfo(name string) (TensorInfo, error) {
	tp, ok := m.weights[name]
	if !ok {
		return TensorInfo{}, fmt.Errorf("tensor %s not found", name)
	}
	shape := tensor.FromInt64(tp.Dims)
	return TensorInfo{Name: name, Shape: shape, SourceDType: onnx.DataTypeName(tp.DataType)}, nil
}

func (m *onnxModel) LoadTensor(name string) (*tensor.RawTensor, error) {
	tp, ok := m.weights[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return onnx.ToRawTensor(tp)
}

func (m *onnxModel) Nodes() []Node {
	nodes := make([]Node, len(m.proto.Graph.Nodes))
	for i, n := range m.proto.Graph.Nodes {
		nodes[i] = Node{Name: n.Name, OpType: n.OpType, Inputs: n.Inputs, Outputs: n.Outputs}
	}
	return nodes
}

func (m *onnxModel) Metadata() map[string]string {
	meta := make(map[string]string, len(m.proto.MetadataProps))
	for _, e := range m.proto.MetadataProps {
		meta[e.Key] = e.Value
	}
	if m.proto.DocString != "" {
		meta["doc_string"] = m.proto.DocString
	}
	return meta
}

func (m *onnxModel) Close() error { return nil }
