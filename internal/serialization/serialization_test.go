package serialization

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/born-ml/born-convert/internal/tensor"
)

func testStateDict(t *testing.T) map[string]*tensor.RawTensor {
	t.Helper()

	weight, err := tensor.FromFloat32(tensor.Shape{2, 4}, []float32{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("Failed to create weight: %v", err)
	}
	bias, err := tensor.FromFloat32(tensor.Shape{2}, []float32{0.5, -0.5})
	if err != nil {
		t.Fatalf("Failed to create bias: %v", err)
	}
	return map[string]*tensor.RawTensor{"fc.weight": weight, "fc.bias": bias}
}

// TestRoundTrip verifies v1 and v2 write and read.
func TestRoundTrip(t *testing.T) {
	for _, version := range []int{FormatVersion, FormatVersionV2} {
		path := filepath.Join(t.TempDir(), "model.born")

		err := WriteFile(path, testStateDict(t), WriteOptions{
			Version:   version,
			ModelType: "Sequential",
			Metadata:  map[string]string{"task": "waste"},
		})
		if err != nil {
			t.Fatalf("v%d: WriteFile failed: %v", version, err)
		}

		r, err := Open(path)
		if err != nil {
			t.Fatalf("v%d: Open failed: %v", version, err)
		}

		if r.Version() != version {
			t.Errorf("Expected version %d, got %d", version, r.Version())
		}
		if r.Header().ModelType != "Sequential" {
			t.Errorf("Expected model type Sequential, got %q", r.Header().ModelType)
		}
		if r.Metadata()["task"] != "waste" {
			t.Errorf("Metadata not preserved: %v", r.Metadata())
		}

		// Sorted name order.
		names := r.TensorNames()
		if len(names) != 2 || names[0] != "fc.bias" || names[1] != "fc.weight" {
			t.Errorf("Unexpected tensor order: %v", names)
		}

		dict, err := r.ReadStateDict()
		if err != nil {
			t.Fatalf("ReadStateDict failed: %v", err)
		}
		got := dict["fc.weight"].AsFloat32()
		for i, want := range []float32{1, 2, 3, 4, 5, 6, 7, 8} {
			if got[i] != want {
				t.Errorf("v%d: element %d: expected %f, got %f", version, i, want, got[i])
			}
		}
		if !dict["fc.bias"].Shape().Equal(tensor.Shape{2}) {
			t.Errorf("Unexpected bias shape %s", dict["fc.bias"].Shape())
		}

		if err := r.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if _, err := r.LoadTensor("fc.bias"); err == nil {
			t.Error("Expected error reading from closed reader")
		}
	}
}

// TestChecksumCorruption verifies that a flipped data byte is detected in v2 files.
func TestChecksumCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.born")
	if err := WriteFile(path, testStateDict(t), WriteOptions{}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err = Open(path)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Expected ErrChecksumMismatch, got: %v", err)
	}

	r, err := OpenWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	if err != nil {
		t.Fatalf("Expected skip-checksum open to succeed, got: %v", err)
	}
	_ = r.Close()
}

// TestOpenRejectsGarbage verifies magic and version checks.
func TestOpenRejectsGarbage(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content []byte
		wantErr error
	}{
		{"bad magic", []byte("NOPE\x01\x00\x00\x00aaaaaaaaaaaa"), ErrInvalidMagic},
		{"bad version", []byte("BORN\x09\x00\x00\x00aaaaaaaaaaaa"), ErrUnsupportedVersion},
		{"compressed", append([]byte("BORN\x01\x00\x00\x00\x01\x00\x00\x00"), make([]byte, 8)...), ErrCompressed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".born")
			if err := os.WriteFile(path, tt.content, 0o644); err != nil {
				t.Fatalf("WriteFile failed: %v", err)
			}
			_, err := Open(path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := Open(filepath.Join(dir, "missing.born")); err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestValidateTensorOffsets detects overlap and out-of-bounds regions.
func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantKind ValidationKind
	}{
		{
			name: "exact boundary",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 100, Size: 100},
			},
			dataSize: 200,
		},
		{
			name: "overlap",
			tensors: []TensorMeta{
				{Name: "b", Offset: 99, Size: 100},
				{Name: "a", Offset: 0, Size: 100},
			},
			dataSize: 200,
			wantKind: KindOffsetOverlap,
		},
		{
			name:     "out of bounds",
			tensors:  []TensorMeta{{Name: "a", Offset: 50, Size: 100}},
			dataSize: 120,
			wantKind: KindOutOfBounds,
		},
		{
			name:     "negative",
			tensors:  []TensorMeta{{Name: "a", Offset: -1, Size: 4}},
			dataSize: 120,
			wantKind: KindNegativeOffset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %T (%v)", err, err)
			}
			if verr.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, verr.Kind)
			}
		})
	}
}

// TestValidateTensorName rejects traversal, separators and null bytes.
func TestValidateTensorName(t *testing.T) {
	valid := []string{"fc.weight", "layer_0.bias", "conv1"}
	for _, name := range valid {
		if err := ValidateTensorName(name); err != nil {
			t.Errorf("Expected %q to be valid, got %v", name, err)
		}
	}

	invalid := []string{"", "../etc/passwd", "a/b", `a\b`, "a\x00b"}
	for _, name := range invalid {
		if err := ValidateTensorName(name); err == nil {
			t.Errorf("Expected %q to be rejected", name)
		}
	}
}

// TestValidateHeaderSizeMismatch rejects headers whose size disagrees with shape.
func TestValidateHeaderSizeMismatch(t *testing.T) {
	h := &Header{Tensors: []TensorMeta{{Name: "w", DType: "float32", Shape: []int{2, 2}, Offset: 0, Size: 8}}}

	err := ValidateHeader(h, 64, ValidationNormal)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Kind != KindSizeMismatch {
		t.Fatalf("Expected size_mismatch, got %v", err)
	}

	if err := ValidateHeader(h, 64, ValidationNone); err != nil {
		t.Errorf("ValidationNone should skip checks, got %v", err)
	}
}
