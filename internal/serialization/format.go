package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersion     = 1    // v1: Basic format without checksum
	FormatVersionV2   = 2    // v2: With SHA-256 checksum
	HeaderAlignment   = 64   // Tensor data starts on a 64-byte boundary
	FixedHeaderSizeV1 = 20   // magic + version + flags + header size
	FixedHeaderSizeV2 = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffsetV2  = 0x20 // Checksum offset in v2 fixed header
)

// Flags for the .born format.
const (
	FlagCompressed   uint32 = 1 << 0 // bit 0: gzip compression (never produced, rejected on read)
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"` // Version of the .born format
	BornVersion   string            `json:"born_version"`   // Version of Born that created this file
	ModelType     string            `json:"model_type"`     // Type of model (e.g., "Sequential", "Linear")
	CreatedAt     time.Time         `json:"created_at"`     // When the file was created
	Tensors       []TensorMeta      `json:"tensors"`        // Tensor metadata
	Metadata      map[string]string `json:"metadata"`       // Custom metadata
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "layer.0.weight")
	DType  string `json:"dtype"`  // Data type (e.g., "float32", "float64")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// alignedDataOffset returns where tensor data begins for a file whose
// fixed header and JSON header together occupy pos bytes.
func alignedDataOffset(pos int64) int64 {
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
