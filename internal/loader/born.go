package loader

import (
	"fmt"
	"slices"

	"github.com/born-ml/born-convert/internal/serialization"
	"github.com/born-ml/born-convert/internal/tensor"
)

// bornModel adapts a .born reader to Model.
type bornModel struct {
	*serialization.Reader
	names []string
}

func openBorn(path string) (Model, error) {
	r, err := serialization.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open .born file: %w", err)
	}
	names := r.TensorNames()
	slices.Sort(names)
	return &bornModel{Reader: r, names: names}, nil
}

func (m *bornModel) Format() Format { return FormatBorn }

func (m *bornModel) Info() Info {
	h := m.Header()
	return Info{Producer: "born " + h.BornVersion, GraphName: h.ModelType}
}

func (m *bornModel) TensorNames() []string {
	return slices.Clone(m.names)
}

func (m *bornModel) TensorInfo(name string) (TensorInfo, error) {
	meta, err := m.Reader.TensorInfo(name)
	if err != nil {
		return TensorInfo{}, err
	}
	return TensorInfo{Name: name, Shape: tensor.Shape(meta.Shape).Clone(), SourceDType: meta.DType}, nil
}

func (m *bornModel) Nodes() []Node { return nil }

func (m *bornModel) Metadata() map[string]string {
	meta := make(map[string]string, len(m.Reader.Metadata()))
	for k, v := range m.Reader.Metadata() {
		meta[k] = v
	}
	return meta
}
