package serialization

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/born-ml/born-convert/internal/tensor"
)

const bornVersion = "0.5.4" // Born release whose layout this writer produces

// WriteOptions configures a .born write.
type WriteOptions struct {
	Version   int               // FormatVersion or FormatVersionV2; zero means v2
	ModelType string            // Free-form model type recorded in the header
	Metadata  map[string]string // Custom metadata
}

// WriteFile writes a state dictionary to path in .born format.
func WriteFile(path string, stateDict map[string]*tensor.RawTensor, opts WriteOptions) error {
	var buf bytes.Buffer
	if err := Write(&buf, stateDict, opts); err != nil {
		return err
	}
	//nolint:gosec // G306: model files are not secrets
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Write encodes a state dictionary in .born format.
//
// Tensors are laid out in sorted name order so identical inputs produce
// identical data sections.
func Write(w io.Writer, stateDict map[string]*tensor.RawTensor, opts WriteOptions) error {
	version := opts.Version
	if version == 0 {
		version = FormatVersionV2
	}
	if version != FormatVersion && version != FormatVersionV2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	header := Header{
		FormatVersion: version,
		BornVersion:   bornVersion,
		ModelType:     opts.ModelType,
		CreatedAt:     time.Now().UTC(),
		Tensors:       make([]TensorMeta, 0, len(stateDict)),
		Metadata:      opts.Metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		names = append(names, name)
	}
	slices.Sort(names)

	// Calculate tensor offsets and collect the data section
	var data []byte
	for _, name := range names {
		raw := stateDict[name]
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  []int(raw.Shape().Clone()),
			Offset: int64(len(data)),
			Size:   int64(raw.ByteSize()),
		})
		data = append(data, raw.Data()...)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	flags := uint32(0)
	if len(opts.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	var fixed []byte
	if version == FormatVersion {
		fixed = make([]byte, FixedHeaderSizeV1)
		copy(fixed[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
		binary.LittleEndian.PutUint32(fixed[8:12], flags)
		binary.LittleEndian.PutUint64(fixed[12:20], uint64(len(headerJSON)))
	} else {
		fixed = make([]byte, FixedHeaderSizeV2)
		// 0x00 magic, 0x04 version, 0x08 flags, 0x0C reserved,
		// 0x10 header size, 0x18 data size, 0x20 SHA-256 of data.
		copy(fixed[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(fixed[4:8], FormatVersionV2)
		binary.LittleEndian.PutUint32(fixed[8:12], flags)
		binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
		binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
		sum := sha256.Sum256(data)
		copy(fixed[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], sum[:])
	}

	pos := int64(len(fixed) + len(headerJSON))
	padding := make([]byte, alignedDataOffset(pos)-pos)

	for _, chunk := range [][]byte{fixed, headerJSON, padding, data} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write .born data: %w", err)
		}
	}
	return nil
}
