package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format represents a model file format.
type Format int

// Model formats.
const (
	FormatUnknown Format = iota
	FormatONNX
	FormatSafeTensors
	FormatBorn
	FormatGGUF
	FormatKeras // recognized so it can be rejected with a useful message
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatONNX:
		return "ONNX"
	case FormatSafeTensors:
		return "SafeTensors"
	case FormatBorn:
		return "Born"
	case FormatGGUF:
		return "GGUF"
	case FormatKeras:
		return "Keras"
	default:
		return "Unknown"
	}
}

// ErrUnsupportedFormat is returned for files no reader can decode.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// kerasHint is appended when a Keras/HDF5 model is given directly.
const kerasHint = "export it to ONNX first (for example with tf2onnx) and convert the .onnx file"

var (
	hdf5Signature = []byte("\x89HDF\r\n\x1a\n")
	zipSignature  = []byte("PK\x03\x04")
)

// DetectFormat determines the format of a model file from its extension,
// falling back to the leading magic bytes for unknown extensions.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		return FormatONNX, nil
	case ".safetensors":
		return FormatSafeTensors, nil
	case ".born":
		return FormatBorn, nil
	case ".gguf":
		return FormatGGUF, nil
	case ".keras", ".h5", ".hdf5":
		return FormatKeras, nil
	}
	return sniffFormat(path)
}

func sniffFormat(path string) (Format, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	head := make([]byte, 8)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return FormatUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	head = head[:n]

	switch {
	case bytes.HasPrefix(head, []byte("BORN")):
		return FormatBorn, nil
	case bytes.HasPrefix(head, []byte("GGUF")):
		return FormatGGUF, nil
	case bytes.HasPrefix(head, hdf5Signature), bytes.HasPrefix(head, zipSignature):
		return FormatKeras, nil
	}
	return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}
