package onnx

import "fmt"

// ModelInfo contains basic information about an ONNX model.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	GraphName       string
	InputNames      []string // Graph inputs that are not initializers
	OutputNames     []string
	NodeCount       int
	WeightCount     int
	OpCounts        map[string]int // Nodes per op type
}

// Info extracts summary information from a parsed model.
func Info(m *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       m.IRVersion,
		ProducerName:    m.ProducerName,
		ProducerVersion: m.ProducerVersion,
		OpCounts:        make(map[string]int),
	}

	for _, opset := range m.OpsetImport {
		if opset.Domain == "" || opset.Domain == "ai.onnx" {
			info.OpsetVersion = opset.Version
			break
		}
	}

	g := m.Graph
	if g == nil {
		return info
	}

	info.GraphName = g.Name
	weights := make(map[string]bool, len(g.Initializers))
	for i := range g.Initializers {
		weights[g.Initializers[i].Name] = true
	}
	for i := range g.Inputs {
		if !weights[g.Inputs[i].Name] {
			info.InputNames = append(info.InputNames, g.Inputs[i].Name)
		}
	}
	for i := range g.Outputs {
		info.OutputNames = append(info.OutputNames, g.Outputs[i].Name)
	}
	for i := range g.Nodes {
		info.OpCounts[g.Nodes[i].OpType]++
	}
	info.NodeCount = len(g.Nodes)
	info.WeightCount = len(g.Initializers)
	return info
}

// ShapeString formats a value's declared shape, using the symbolic name
// for dynamic dimensions and "?" when neither is known.
func ShapeString(v *ValueInfoProto) string {
	if v.Type == nil || v.Type.TensorType == nil || v.Type.TensorType.Shape == nil {
		return "?"
	}
	s := "["
	for i, d := range v.Type.TensorType.Shape.Dims {
		if i > 0 {
			s += ","
		}
		switch {
		case d.DimParam != "":
			s += d.DimParam
		case d.DimValue > 0:
			s += fmt.Sprint(d.DimValue)
		default:
			s += "?"
		}
	}
	return s + "]"
}
