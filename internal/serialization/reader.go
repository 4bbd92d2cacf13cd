package serialization

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/born-ml/born-convert/internal/tensor"
)

// Reader reads tensors from a .born file.
type Reader struct {
	file       *os.File
	header     Header
	flags      uint32
	version    uint32
	dataOffset int64 // Offset where tensor data starts
	dataSize   int64 // Size of the data section
	checksum   [ChecksumSize]byte
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// Open opens a .born file with strict validation.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// OpenWithOptions opens a .born file with custom options.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &Reader{file: file, opts: opts}
	if err := r.init(); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func (r *Reader) init() error {
	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	prefix := make([]byte, 8)
	if _, err := io.ReadFull(r.file, prefix); err != nil {
		return fmt.Errorf("failed to read magic bytes: %w", err)
	}
	if string(prefix[:4]) != MagicBytes {
		return ErrInvalidMagic
	}
	r.version = binary.LittleEndian.Uint32(prefix[4:8])

	var headerSize uint64
	switch r.version {
	case FormatVersion:
		rest := make([]byte, FixedHeaderSizeV1-8)
		if _, err := io.ReadFull(r.file, rest); err != nil {
			return fmt.Errorf("failed to read fixed header: %w", err)
		}
		r.flags = binary.LittleEndian.Uint32(rest[0:4])
		headerSize = binary.LittleEndian.Uint64(rest[4:12])
	case FormatVersionV2:
		rest := make([]byte, FixedHeaderSizeV2-8)
		if _, err := io.ReadFull(r.file, rest); err != nil {
			return fmt.Errorf("failed to read fixed header: %w", err)
		}
		r.flags = binary.LittleEndian.Uint32(rest[0:4])
		headerSize = binary.LittleEndian.Uint64(rest[8:16])
		r.dataSize = int64(binary.LittleEndian.Uint64(rest[16:24])) //nolint:gosec // G115: checked against file size below
		copy(r.checksum[:], rest[ChecksumOffsetV2-8:ChecksumOffsetV2-8+ChecksumSize])
	default:
		return fmt.Errorf("%w: got %d, expected %d or %d", ErrUnsupportedVersion, r.version, FormatVersion, FormatVersionV2)
	}

	if r.flags&FlagCompressed != 0 {
		return ErrCompressed
	}
	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	fixedSize := int64(FixedHeaderSizeV1)
	if r.version == FormatVersionV2 {
		fixedSize = FixedHeaderSizeV2
	}
	r.dataOffset = alignedDataOffset(fixedSize + int64(headerSize)) //nolint:gosec // G115: headerSize <= MaxHeaderSize

	available := info.Size() - r.dataOffset
	if r.version == FormatVersion {
		r.dataSize = available
	} else if r.dataSize < 0 || r.dataSize > available {
		return fmt.Errorf("%w: data section declares %d bytes, file holds %d", io.ErrUnexpectedEOF, r.dataSize, available)
	}

	if err := ValidateHeader(&r.header, r.dataSize, r.opts.ValidationLevel); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if r.version == FormatVersionV2 && !r.opts.SkipChecksumValidation {
		return r.verifyChecksum()
	}
	return nil
}

// verifyChecksum hashes the data section and compares it with the fixed header.
func (r *Reader) verifyChecksum() error {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(r.file, r.dataOffset, r.dataSize)); err != nil {
		return fmt.Errorf("failed to read tensor data for checksum: %w", err)
	}
	var computed [ChecksumSize]byte
	copy(computed[:], h.Sum(nil))
	if computed != r.checksum {
		return ErrChecksumMismatch
	}
	return nil
}

// Version returns the format version of the file.
func (r *Reader) Version() int {
	return int(r.version)
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Metadata returns the metadata map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames returns tensor names in header order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns information about a specific tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// LoadTensor reads a single tensor from the file.
func (r *Reader) LoadTensor(name string) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, fmt.Errorf("reader is closed")
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return nil, fmt.Errorf("unsupported dtype: %s", meta.DType)
	}

	data := make([]byte, meta.Size)
	if _, err := r.file.ReadAt(data, r.dataOffset+meta.Offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}

	raw, err := tensor.FromBytes(tensor.Shape(meta.Shape), dtype, data)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// ReadStateDict reads all tensors into a state dictionary.
func (r *Reader) ReadStateDict() (map[string]*tensor.RawTensor, error) {
	stateDict := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name)
		if err != nil {
			return nil, err
		}
		stateDict[meta.Name] = raw
	}
	return stateDict, nil
}

// Close closes the reader and the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
