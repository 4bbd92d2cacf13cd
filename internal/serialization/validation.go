package serialization

import (
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/born-convert/internal/tensor"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict performs all validation checks (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names, counts and per-tensor sizes but not offsets.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateHeader checks a parsed header against the data section size.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Kind:    KindTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	for i := range h.Tensors {
		meta := &h.Tensors[i]
		if err := ValidateTensorName(meta.Name); err != nil {
			return err
		}
		if err := validateTensorSize(meta); err != nil {
			return err
		}
	}

	if level == ValidationStrict {
		return ValidateTensorOffsets(h.Tensors, dataSize)
	}
	return nil
}

// ValidateTensorName rejects names that could escape a directory or hide bytes.
func ValidateTensorName(name string) error {
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Kind:    KindNameTooLong,
			Tensor:  name[:64] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}

	var reason string
	switch {
	case name == "":
		reason = "empty name"
	case strings.Contains(name, ".."):
		reason = "contains '..'"
	case strings.ContainsAny(name, `/\`):
		reason = "contains path separator"
	case strings.ContainsRune(name, 0):
		reason = "contains null byte"
	default:
		return nil
	}
	return &ValidationError{Kind: KindInvalidName, Tensor: name, Details: reason}
}

// ValidateTensorOffsets checks for overlapping tensor regions and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	sorted := slices.Clone(tensors)
	slices.SortFunc(sorted, func(a, b TensorMeta) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		default:
			return 0
		}
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Kind:    KindNegativeOffset,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}

		end := t.Offset + t.Size
		if end > dataSize {
			return &ValidationError{
				Kind:    KindOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}

		if i+1 < len(sorted) && end > sorted[i+1].Offset {
			next := sorted[i+1]
			return &ValidationError{
				Kind:    KindOffsetOverlap,
				Tensor:  t.Name,
				Tensor2: next.Name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
					t.Offset, end, next.Offset, next.Offset+next.Size),
			}
		}
	}

	return nil
}

// validateTensorSize checks that the declared byte size agrees with shape and dtype.
func validateTensorSize(meta *TensorMeta) error {
	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return &ValidationError{Kind: KindSizeMismatch, Tensor: meta.Name, Details: "unsupported dtype " + meta.DType}
	}
	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return &ValidationError{Kind: KindSizeMismatch, Tensor: meta.Name, Details: err.Error()}
	}
	if want := int64(shape.NumElements() * dtype.Size()); want != meta.Size {
		return &ValidationError{
			Kind:    KindSizeMismatch,
			Tensor:  meta.Name,
			Details: fmt.Sprintf("shape %s %s needs %d bytes, header says %d", shape, dtype, want, meta.Size),
		}
	}
	return nil
}
