package loader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/born-ml/born-convert/internal/tensor"
)

// GGUF format (v2/v3):
// [4 bytes: "GGUF" magic]
// [4 bytes: version]
// [8 bytes: tensor_count]
// [8 bytes: metadata_kv_count]
// [metadata key-value pairs]
// [tensor infos]
// [alignment padding]
// [tensor data (aligned)]

const (
	ggufMagic            = 0x46554747 // "GGUF" in little-endian
	ggufDefaultAlignment = 32
	ggufMaxString        = 1024 * 1024
	ggufMaxArray         = 1 << 24
	ggufQ8BlockSize      = 32
)

// GGUFType represents GGUF metadata value types.
type GGUFType uint32

// GGUF value types.
const (
	GGUFTypeUint8   GGUFType = 0
	GGUFTypeInt8    GGUFType = 1
	GGUFTypeUint16  GGUFType = 2
	GGUFTypeInt16   GGUFType = 3
	GGUFTypeUint32  GGUFType = 4
	GGUFTypeInt32   GGUFType = 5
	GGUFTypeFloat32 GGUFType = 6
	GGUFTypeBool    GGUFType = 7
	GGUFTypeString  GGUFType = 8
	GGUFTypeArray   GGUFType = 9
	GGUFTypeUint64  GGUFType = 10
	GGUFTypeInt64   GGUFType = 11
	GGUFTypeFloat64 GGUFType = 12
)

// GGUFDType represents GGUF tensor data types.
type GGUFDType uint32

// GGUF tensor dtypes.
const (
	GGUFDTypeF32  GGUFDType = 0
	GGUFDTypeF16  GGUFDType = 1
	GGUFDTypeQ4_0 GGUFDType = 2
	GGUFDTypeQ4_1 GGUFDType = 3
	GGUFDTypeQ8_0 GGUFDType = 8
)

// String returns the ggml name of the dtype.
func (d GGUFDType) String() string {
	switch d {
	case GGUFDTypeF32:
		return "F32"
	case GGUFDTypeF16:
		return "F16"
	case GGUFDTypeQ4_0:
		return "Q4_0"
	case GGUFDTypeQ4_1:
		return "Q4_1"
	case GGUFDTypeQ8_0:
		return "Q8_0"
	default:
		return fmt.Sprintf("GGML_TYPE_%d", uint32(d))
	}
}

// GGUFTensorInfo describes a tensor in GGUF format.
type GGUFTensorInfo struct {
	Name   string
	Dims   []uint64 // innermost dimension first
	DType  GGUFDType
	Offset uint64 // Offset in data section
}

// Shape returns the dimensions in row-major (outermost first) order.
func (i *GGUFTensorInfo) Shape() tensor.Shape {
	shape := make(tensor.Shape, len(i.Dims))
	for j, d := range i.Dims {
		shape[len(shape)-1-j] = int(d) //nolint:gosec // G115: dimension sizes fit in int
	}
	if len(shape) == 0 {
		shape = tensor.Shape{1}
	}
	return shape
}

// GGUFReader reads GGUF format files.
type GGUFReader struct {
	file       *os.File
	version    uint32
	metadata   map[string]any
	tensors    map[string]GGUFTensorInfo
	names      []string
	dataOffset uint64
}

// NewGGUFReader opens a GGUF file and parses its header.
func NewGGUFReader(path string) (*GGUFReader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &GGUFReader{
		file:     file,
		metadata: make(map[string]any),
		tensors:  make(map[string]GGUFTensorInfo),
	}
	if err := r.parseHeader(); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, fmt.Errorf("failed to parse GGUF header: %w", err)
	}
	return r, nil
}

// ggufDecoder reads little-endian header fields and tracks the position.
type ggufDecoder struct {
	r   *bufio.Reader
	pos uint64
}

func (d *ggufDecoder) read(v any) error {
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		return err
	}
	d.pos += uint64(binary.Size(v)) //nolint:gosec // G115: sizes of fixed-width values
	return nil
}

func (d *ggufDecoder) readString() (string, error) {
	var length uint64
	if err := d.read(&length); err != nil {
		return "", err
	}
	if length > ggufMaxString {
		return "", fmt.Errorf("string length too large: %d", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return "", err
	}
	d.pos += length
	return string(buf), nil
}

func (r *GGUFReader) parseHeader() error {
	d := &ggufDecoder{r: bufio.NewReader(r.file)}

	var magic uint32
	if err := d.read(&magic); err != nil {
		return fmt.Errorf("failed to read magic: %w", err)
	}
	if magic != ggufMagic {
		return fmt.Errorf("invalid GGUF magic: 0x%X (expected 0x%X)", magic, ggufMagic)
	}
	if err := d.read(&r.version); err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	if r.version != 2 && r.version != 3 {
		return fmt.Errorf("unsupported GGUF version: %d (v2 and v3 supported)", r.version)
	}

	var tensorCount, metadataCount uint64
	if err := d.read(&tensorCount); err != nil {
		return fmt.Errorf("failed to read tensor count: %w", err)
	}
	if err := d.read(&metadataCount); err != nil {
		return fmt.Errorf("failed to read metadata count: %w", err)
	}

	for i := uint64(0); i < metadataCount; i++ {
		key, err := d.readString()
		if err != nil {
			return fmt.Errorf("failed to read metadata[%d] key: %w", i, err)
		}
		var valueType GGUFType
		if err := d.read(&valueType); err != nil {
			return fmt.Errorf("failed to read metadata %s type: %w", key, err)
		}
		value, err := d.readValue(valueType)
		if err != nil {
			return fmt.Errorf("failed to read metadata %s: %w", key, err)
		}
		r.metadata[key] = value
	}

	for i := uint64(0); i < tensorCount; i++ {
		info, err := d.readTensorInfo()
		if err != nil {
			return fmt.Errorf("failed to read tensor info[%d]: %w", i, err)
		}
		if _, dup := r.tensors[info.Name]; dup {
			return fmt.Errorf("duplicate tensor %q", info.Name)
		}
		r.tensors[info.Name] = info
		r.names = append(r.names, info.Name)
	}
	slices.Sort(r.names)

	alignment := uint64(ggufDefaultAlignment)
	if v, ok := r.metadata["general.alignment"].(uint32); ok && v > 0 {
		alignment = uint64(v)
	}
	r.dataOffset = alignOffset(d.pos, alignment)
	return nil
}

// readValue reads a metadata value. Arrays are returned as []any.
func (d *ggufDecoder) readValue(valueType GGUFType) (any, error) {
	switch valueType {
	case GGUFTypeUint8:
		return readScalar[uint8](d)
	case GGUFTypeInt8:
		return readScalar[int8](d)
	case GGUFTypeUint16:
		return readScalar[uint16](d)
	case GGUFTypeInt16:
		return readScalar[int16](d)
	case GGUFTypeUint32:
		return readScalar[uint32](d)
	case GGUFTypeInt32:
		return readScalar[int32](d)
	case GGUFTypeFloat32:
		return readScalar[float32](d)
	case GGUFTypeBool:
		return readScalar[bool](d)
	case GGUFTypeUint64:
		return readScalar[uint64](d)
	case GGUFTypeInt64:
		return readScalar[int64](d)
	case GGUFTypeFloat64:
		return readScalar[float64](d)
	case GGUFTypeString:
		return d.readString()
	case GGUFTypeArray:
		return d.readArray()
	default:
		return nil, fmt.Errorf("unknown value type: %d", valueType)
	}
}

func readScalar[T any](d *ggufDecoder) (any, error) {
	var v T
	if err := d.read(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (d *ggufDecoder) readArray() ([]any, error) {
	var elemType GGUFType
	if err := d.read(&elemType); err != nil {
		return nil, err
	}
	var n uint64
	if err := d.read(&n); err != nil {
		return nil, err
	}
	if n > ggufMaxArray {
		return nil, fmt.Errorf("array length too large: %d", n)
	}
	out := make([]any, 0, min(n, 4096))
	for i := uint64(0); i < n; i++ {
		v, err := d.readValue(elemType)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *ggufDecoder) readTensorInfo() (GGUFTensorInfo, error) {
	var info GGUFTensorInfo

	name, err := d.readString()
	if err != nil {
		return info, fmt.Errorf("failed to read tensor name: %w", err)
	}
	info.Name = name

	var nDims uint32
	if err := d.read(&nDims); err != nil {
		return info, fmt.Errorf("failed to read n_dims: %w", err)
	}
	if nDims > 8 {
		return info, fmt.Errorf("tensor %s: too many dimensions: %d", name, nDims)
	}
	info.Dims = make([]uint64, nDims)
	if err := d.read(info.Dims); err != nil {
		return info, fmt.Errorf("failed to read dims: %w", err)
	}
	if err := d.read(&info.DType); err != nil {
		return info, fmt.Errorf("failed to read dtype: %w", err)
	}
	if err := d.read(&info.Offset); err != nil {
		return info, fmt.Errorf("failed to read offset: %w", err)
	}
	return info, nil
}

// Close closes the GGUF file.
func (r *GGUFReader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Version returns the GGUF version.
func (r *GGUFReader) Version() uint32 {
	return r.version
}

// RawMetadata returns the decoded metadata values.
func (r *GGUFReader) RawMetadata() map[string]any {
	return r.metadata
}

// TensorNames returns all tensor names in sorted order.
func (r *GGUFReader) TensorNames() []string {
	return slices.Clone(r.names)
}

// GGUFTensor returns information about a specific tensor.
func (r *GGUFReader) GGUFTensor(name string) (*GGUFTensorInfo, error) {
	info, ok := r.tensors[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}
	return &info, nil
}

// ReadTensorData reads raw tensor bytes.
func (r *GGUFReader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.GGUFTensor(name)
	if err != nil {
		return nil, err
	}
	size, err := ggufTensorSize(info)
	if err != nil {
		return nil, err
	}

	data := make([]byte, size)
	offset := int64(r.dataOffset + info.Offset) //nolint:gosec // G115: offsets within file size
	if _, err := r.file.ReadAt(data, offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	return data, nil
}

// LoadTensor reads a tensor as float32. F16 is widened and Q8_0 is
// dequantized; other quantized types are rejected.
func (r *GGUFReader) LoadTensor(name string) (*tensor.RawTensor, error) {
	info, err := r.GGUFTensor(name)
	if err != nil {
		return nil, err
	}
	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	shape := info.Shape()
	switch info.DType {
	case GGUFDTypeF32:
		return tensor.FromBytes(shape, tensor.Float32, data)
	case GGUFDTypeF16:
		return tensor.WidenHalf(shape, data, false)
	case GGUFDTypeQ8_0:
		return dequantizeQ8(shape, data)
	default:
		return nil, fmt.Errorf("tensor %s: unsupported GGUF dtype %s", name, info.DType)
	}
}

// dequantizeQ8 expands Q8_0 blocks: an fp16 scale followed by 32 int8 values.
func dequantizeQ8(shape tensor.Shape, data []byte) (*tensor.RawTensor, error) {
	out, err := tensor.NewRaw(shape, tensor.Float32)
	if err != nil {
		return nil, err
	}
	values := out.AsFloat32()
	const blockBytes = 2 + ggufQ8BlockSize
	for i := range values {
		block := data[(i/ggufQ8BlockSize)*blockBytes:]
		scale := tensor.Float16ToFloat32(binary.LittleEndian.Uint16(block))
		values[i] = scale * float32(int8(block[2+i%ggufQ8BlockSize]))
	}
	return out, nil
}

func ggufTensorSize(info *GGUFTensorInfo) (uint64, error) {
	n := uint64(1)
	for _, dim := range info.Dims {
		n *= dim
	}
	blocks := (n + 31) / 32

	switch info.DType {
	case GGUFDTypeF32:
		return n * 4, nil
	case GGUFDTypeF16:
		return n * 2, nil
	case GGUFDTypeQ4_0:
		// 32 values per block: fp16 scale + 16 bytes of 4-bit values
		return blocks * 18, nil
	case GGUFDTypeQ4_1:
		// fp16 scale + fp16 min + 16 bytes of 4-bit values
		return blocks * 20, nil
	case GGUFDTypeQ8_0:
		return blocks * (2 + ggufQ8BlockSize), nil
	default:
		return 0, fmt.Errorf("tensor %s: unsupported GGUF dtype %s", info.Name, info.DType)
	}
}

// alignOffset aligns an offset to the specified alignment.
func alignOffset(offset, alignment uint64) uint64 {
	if offset%alignment == 0 {
		return offset
	}
	return offset + (alignment - offset%alignment)
}

// ggufModel adapts GGUFReader to Model.
type ggufModel struct {
	*GGUFReader
}

func openGGUF(path string) (Model, error) {
	r, err := NewGGUFReader(path)
	if err != nil {
		return nil, err
	}
	return &ggufModel{r}, nil
}

func (m *ggufModel) Format() Format { return FormatGGUF }

func (m *ggufModel) Info() Info {
	info := Info{}
	if name, ok := m.metadata["general.name"].(string); ok {
		info.GraphName = name
	}
	if arch, ok := m.metadata["general.architecture"].(string); ok {
		info.Producer = arch
	}
	return info
}

func (m *ggufModel) TensorInfo(name string) (TensorInfo, error) {
	info, err := m.GGUFTensor(name)
	if err != nil {
		return TensorInfo{}, err
	}
	return TensorInfo{Name: name, Shape: info.Shape(), SourceDType: info.DType.String()}, nil
}

func (m *ggufModel) Nodes() []Node { return nil }

// Metadata returns scalar metadata formatted as strings. Arrays are omitted.
func (m *ggufModel) Metadata() map[string]string {
	meta := make(map[string]string, len(m.metadata))
	for k, v := range m.metadata {
		if _, isArray := v.([]any); isArray {
			continue
		}
		meta[k] = fmt.Sprint(v)
	}
	return meta
}
