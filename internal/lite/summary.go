package lite

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// Summary is the printable view of an artifact used by inspect.
type Summary struct {
	Version      uint32            `json:"version" yaml:"version"`
	SourceFormat string            `json:"source_format" yaml:"source_format"`
	Optimization string            `json:"optimization" yaml:"optimization"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs       []string          `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs      []string          `json:"outputs,omitempty" yaml:"outputs,omitempty"`
	Operators    map[string]int    `json:"operators,omitempty" yaml:"operators,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Tensors      []TensorSummary   `json:"tensors" yaml:"tensors"`
	TensorBytes  int64             `json:"tensor_bytes" yaml:"tensor_bytes"`
	Quantized    int               `json:"quantized" yaml:"quantized"`
}

// TensorSummary describes one stored tensor.
type TensorSummary struct {
	Name      string `json:"name" yaml:"name"`
	Shape     []int  `json:"shape" yaml:"shape,flow"`
	Type      string `json:"type" yaml:"type"`
	Bytes     int    `json:"bytes" yaml:"bytes"`
	Quantized bool   `json:"quantized,omitempty" yaml:"quantized,omitempty"`
}

// Summarize builds the printable view of a.
func (a *Artifact) Summarize() Summary {
	s := Summary{
		Version:      a.Version,
		SourceFormat: a.SourceFormat,
		Optimization: a.Optimization,
		Description:  a.Description,
		Inputs:       a.Inputs,
		Outputs:      a.Outputs,
		Metadata:     a.Metadata,
		Tensors:      make([]TensorSummary, len(a.Tensors)),
		TensorBytes:  a.TensorBytes(),
	}
	if len(a.Operators) > 0 {
		s.Operators = make(map[string]int)
		for _, op := range a.Operators {
			s.Operators[op.OpType]++
		}
	}
	for i, t := range a.Tensors {
		s.Tensors[i] = TensorSummary{
			Name:      t.Name,
			Shape:     t.Data.Shape().Clone(),
			Type:      t.Data.DType().String(),
			Bytes:     t.Data.ByteSize(),
			Quantized: t.Quantization != nil,
		}
		if t.Quantization != nil {
			s.Quantized++
		}
	}
	return s
}

// WriteText prints s in the same layout as the model summary.
func (s Summary) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Artifact: v%d from %s (optimization %s)\n", s.Version, s.SourceFormat, s.Optimization)
	if s.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", s.Description)
	}
	if len(s.Inputs) > 0 {
		fmt.Fprintf(w, "Inputs:  %s\n", strings.Join(s.Inputs, ", "))
	}
	if len(s.Outputs) > 0 {
		fmt.Fprintf(w, "Outputs: %s\n", strings.Join(s.Outputs, ", "))
	}
	for _, k := range slices.Sorted(maps.Keys(s.Metadata)) {
		fmt.Fprintf(w, "  %s = %s\n", k, s.Metadata[k])
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSHAPE\tTYPE\tSIZE")
	for _, t := range s.Tensors {
		typ := t.Type
		if t.Quantized {
			typ += " (per-channel)"
		}
		fmt.Fprintf(tw, "%s\t%v\t%s\t%s\n", t.Name, t.Shape, typ, humanize.Bytes(uint64(t.Bytes))) //nolint:gosec // G115: non-negative size
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	_, err := fmt.Fprintf(w, "\nTensors: %d (%d quantized), %s\n",
		len(s.Tensors), s.Quantized, humanize.Bytes(uint64(s.TensorBytes))) //nolint:gosec // G115: non-negative size
	return err
}
