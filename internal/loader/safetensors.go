package loader

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/born-ml/born-convert/internal/tensor"
)

// SafeTensors format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]

const maxSafeTensorsHeader = 100 * 1024 * 1024

// SafeTensorsDType represents supported SafeTensors data types.
type SafeTensorsDType string

// Supported SafeTensors dtypes.
const (
	SafeTensorsF16  SafeTensorsDType = "F16"
	SafeTensorsBF16 SafeTensorsDType = "BF16"
	SafeTensorsF32  SafeTensorsDType = "F32"
	SafeTensorsF64  SafeTensorsDType = "F64"
	SafeTensorsI8   SafeTensorsDType = "I8"
	SafeTensorsI32  SafeTensorsDType = "I32"
	SafeTensorsI64  SafeTensorsDType = "I64"
	SafeTensorsU8   SafeTensorsDType = "U8"
	SafeTensorsBool SafeTensorsDType = "BOOL"
)

// elementSize returns the stored byte width, or 0 for unknown dtypes.
func (d SafeTensorsDType) elementSize() int {
	switch d {
	case SafeTensorsF16, SafeTensorsBF16:
		return 2
	case SafeTensorsF32, SafeTensorsI32:
		return 4
	case SafeTensorsF64, SafeTensorsI64:
		return 8
	case SafeTensorsI8, SafeTensorsU8, SafeTensorsBool:
		return 1
	default:
		return 0
	}
}

// SafeTensorInfo describes a tensor in SafeTensors format.
type SafeTensorInfo struct {
	DType       SafeTensorsDType `json:"dtype"`
	Shape       []int            `json:"shape"`
	DataOffsets [2]int64         `json:"data_offsets"` // [start, end)
}

// SafeTensorsHeader is the JSON header in SafeTensors format.
type SafeTensorsHeader struct {
	Metadata map[string]string         `json:"__metadata__"`
	Tensors  map[string]SafeTensorInfo `json:"-"`
}

// UnmarshalJSON splits the flat header object into metadata and tensors.
func (h *SafeTensorsHeader) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	if metadataRaw, ok := rawMap["__metadata__"]; ok {
		if err := json.Unmarshal(metadataRaw, &h.Metadata); err != nil {
			return fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
		delete(rawMap, "__metadata__")
	}

	h.Tensors = make(map[string]SafeTensorInfo, len(rawMap))
	for key, value := range rawMap {
		var info SafeTensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("failed to unmarshal tensor %s: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// SafeTensorsReader reads SafeTensors format files.
type SafeTensorsReader struct {
	file       *os.File
	header     SafeTensorsHeader
	names      []string
	dataOffset int64 // Offset where tensor data starts
}

// NewSafeTensorsReader opens a SafeTensors file and validates its header
// against the file size.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &SafeTensorsReader{file: file}
	if err := r.init(); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func (r *SafeTensorsReader) init() error {
	stat, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(r.file, binary.LittleEndian, &headerSize); err != nil {
		return fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxSafeTensorsHeader || int64(headerSize) > stat.Size()-8 { //nolint:gosec // G115: bounded above
		return fmt.Errorf("invalid header size: %d", headerSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r.dataOffset = 8 + int64(headerSize) //nolint:gosec // G115: headerSize bounded by file size
	dataSize := stat.Size() - r.dataOffset

	for name, info := range r.header.Tensors {
		if err := validateSafeTensor(name, info, dataSize); err != nil {
			return err
		}
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)
	return nil
}

func validateSafeTensor(name string, info SafeTensorInfo, dataSize int64) error {
	size := info.DType.elementSize()
	if size == 0 {
		return fmt.Errorf("tensor %s: unsupported dtype %s", name, info.DType)
	}
	shape := tensor.Shape(info.Shape)
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("invalid shape for tensor %s: %w", name, err)
	}

	start, end := info.DataOffsets[0], info.DataOffsets[1]
	if start < 0 || end < start || end > dataSize {
		return fmt.Errorf("invalid data offsets for tensor %s: [%d, %d] (data section %d bytes)", name, start, end, dataSize)
	}
	if want := int64(shape.NumElements() * size); end-start != want {
		return fmt.Errorf("tensor %s: %d bytes stored, shape %v %s needs %d", name, end-start, info.Shape, info.DType, want)
	}
	return nil
}

// Close closes the SafeTensors file.
func (r *SafeTensorsReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the metadata map from the header.
func (r *SafeTensorsReader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns all tensor names in sorted order.
func (r *SafeTensorsReader) TensorNames() []string {
	return slices.Clone(r.names)
}

// TensorInfo returns information about a specific tensor.
func (r *SafeTensorsReader) TensorInfo(name string) (*SafeTensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// ReadTensorData reads raw tensor bytes.
func (r *SafeTensorsReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := r.file.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// LoadTensor reads a tensor, widening F16 and BF16 to float32.
func (r *SafeTensorsReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	shape := tensor.Shape(info.Shape)

	var dtype tensor.DataType
	switch info.DType {
	case SafeTensorsF16, SafeTensorsBF16:
		return tensor.WidenHalf(shape, data, info.DType == SafeTensorsBF16)
	case SafeTensorsF32:
		dtype = tensor.Float32
	case SafeTensorsF64:
		dtype = tensor.Float64
	case SafeTensorsI8:
		dtype = tensor.Int8
	case SafeTensorsI32:
		dtype = tensor.Int32
	case SafeTensorsI64:
		dtype = tensor.Int64
	case SafeTensorsU8:
		dtype = tensor.Uint8
	case SafeTensorsBool:
		dtype = tensor.Bool
	default:
		return nil, fmt.Errorf("tensor %s: unsupported dtype %s", name, info.DType)
	}
	return tensor.FromBytes(shape, dtype, data)
}

// safeTensorsModel adapts SafeTensorsReader to Model.
type safeTensorsModel struct {
	*SafeTensorsReader
}

func openSafeTensors(path string) (Model, error) {
	r, err := NewSafeTensorsReader(path)
	if err != nil {
		return nil, err
	}
	return &safeTensorsModel{r}, nil
}

func (m *safeTensorsModel) Format() Format { return FormatSafeTensors }

func (m *safeTensorsModel) Info() Info {
	return Info{Producer: m.header.Metadata["format"]}
}

func (m *safeTensorsModel) TensorInfo(name string) (TensorInfo, error) {
	info, err := m.SafeTensorsReader.TensorInfo(name)
	if err != nil {
		return TensorInfo{}, err
	}
	shape := tensor.Shape(info.Shape).Clone()
	return TensorInfo{Name: name, Shape: shape, SourceDType: string(info.DType)}, nil
}

func (m *safeTensorsModel) Nodes() []Node { return nil }

func (m *safeTensorsModel) Metadata() map[string]string {
	meta := make(map[string]string, len(m.header.Metadata))
	for k, v := range m.header.Metadata {
		meta[k] = v
	}
	return meta
}
