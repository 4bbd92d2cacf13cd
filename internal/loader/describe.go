package loader

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// Describe writes a human-readable summary of m to w: graph information
// for formats that carry a graph, then one row per tensor and the totals.
func Describe(w io.Writer, m Model) error {
	info := m.Info()

	header := fmt.Sprintf("Model: %s", m.Format())
	if info.Producer != "" {
		header += fmt.Sprintf(" (%s)", info.Producer)
	}
	fmt.Fprintln(w, header)
	if info.GraphName != "" {
		if info.Opset > 0 {
			fmt.Fprintf(w, "Graph: %s (opset %d)\n", info.GraphName, info.Opset)
		} else {
			fmt.Fprintf(w, "Graph: %s\n", info.GraphName)
		}
	}
	if len(info.Inputs) > 0 {
		fmt.Fprintf(w, "Inputs:  %s\n", joinValues(info.Inputs))
	}
	if len(info.Outputs) > 0 {
		fmt.Fprintf(w, "Outputs: %s\n", joinValues(info.Outputs))
	}
	if len(info.OpCounts) > 0 {
		fmt.Fprintf(w, "Operators: %d (%s)\n", len(m.Nodes()), joinCounts(info.OpCounts))
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSHAPE\tDTYPE\tPARAMS")
	total := 0
	for _, name := range m.TensorNames() {
		ti, err := m.TensorInfo(name)
		if err != nil {
			return err
		}
		n := ti.Shape.NumElements()
		total += n
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, ti.Shape, ti.SourceDType, humanize.Comma(int64(n)))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	_, err := fmt.Fprintf(w, "\nTensors: %d\nTotal params: %s (%s as float32)\n",
		len(m.TensorNames()), humanize.Comma(int64(total)), humanize.Bytes(uint64(total)*4)) //nolint:gosec // G115: non-negative count
	return err
}

func joinValues(values []ValueInfo) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = v.Name + " " + v.Shape
	}
	return strings.Join(parts, ", ")
}

func joinCounts(counts map[string]int) string {
	ops := make([]string, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = fmt.Sprintf("%s %d", op, counts[op])
	}
	return strings.Join(parts, ", ")
}
