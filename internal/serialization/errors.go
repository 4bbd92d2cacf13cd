package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: file may be corrupted")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrCompressed         = errors.New("compressed .born files are not supported")
	ErrTensorNotFound     = errors.New("tensor not found")
)

// ValidationKind classifies header validation failures.
type ValidationKind string

// Validation failure kinds.
const (
	KindTooManyTensors ValidationKind = "too_many_tensors"
	KindNameTooLong    ValidationKind = "name_too_long"
	KindInvalidName    ValidationKind = "invalid_name"
	KindNegativeOffset ValidationKind = "negative_offset"
	KindOutOfBounds    ValidationKind = "out_of_bounds"
	KindOffsetOverlap  ValidationKind = "offset_overlap"
	KindSizeMismatch   ValidationKind = "size_mismatch"
)

// ValidationError provides detailed information about validation failures.
type ValidationError struct {
	Kind    ValidationKind
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch {
	case e.Tensor2 != "":
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Kind, e.Tensor, e.Tensor2, e.Details)
	case e.Tensor != "":
		return fmt.Sprintf("%s: tensor %q: %s", e.Kind, e.Tensor, e.Details)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Details)
	}
}
