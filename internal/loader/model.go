package loader

import (
	"fmt"

	"github.com/born-ml/born-convert/internal/tensor"
)

// Model is a decoded network ready for conversion.
//
// Implementations read tensors lazily; Close releases the underlying file.
type Model interface {
	// Format returns the file format the model was decoded from.
	Format() Format

	// Info returns graph-level information.
	Info() Info

	// TensorNames returns all tensor names in a stable order.
	TensorNames() []string

	// TensorInfo describes a tensor without reading its data.
	TensorInfo(name string) (TensorInfo, error)

	// LoadTensor reads a tensor. Half-precision data is widened to float32.
	LoadTensor(name string) (*tensor.RawTensor, error)

	// Nodes returns the graph operators, or nil for weight-only formats.
	Nodes() []Node

	// Metadata returns string metadata stored in the file.
	Metadata() map[string]string

	// Close closes the underlying file.
	Close() error
}

// Info holds graph-level information about a model.
type Info struct {
	Producer  string
	GraphName string
	Inputs    []ValueInfo
	Outputs   []ValueInfo
	Opset     int64
	OpCounts  map[string]int
}

// ValueInfo names a graph input or output and its declared shape.
type ValueInfo struct {
	Name  string
	Shape string
}

// TensorInfo describes a stored tensor.
type TensorInfo struct {
	Name        string
	Shape       tensor.Shape
	SourceDType string // dtype as stored in the file (e.g. "F16", "FLOAT")
}

// Node is a graph operator.
type Node struct {
	Name    string
	OpType  string
	Inputs  []string
	Outputs []string
}

// Open opens a model file and auto-detects its format.
//
// Example:
//
//	model, err := loader.Open("model/classifier.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
func Open(path string) (Model, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatONNX:
		return openONNX(path)
	case FormatSafeTensors:
		return openSafeTensors(path)
	case FormatBorn:
		return openBorn(path)
	case FormatGGUF:
		return openGGUF(path)
	case FormatKeras:
		return nil, fmt.Errorf("%w: Keras model %s cannot be read directly; %s", ErrUnsupportedFormat, path, kerasHint)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// ParamCount returns the number of scalar parameters in the model.
func ParamCount(m Model) (int, error) {
	total := 0
	for _, name := range m.TensorNames() {
		info, err := m.TensorInfo(name)
		if err != nil {
			return 0, err
		}
		total += info.Shape.NumElements()
	}
	return total, nil
}
