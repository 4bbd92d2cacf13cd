package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/born-convert/internal/lite"
)

func newInspectCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "inspect <file.blite>",
		Short:   "Print the contents of a converted artifact",
		Example: "born-convert inspect app/src/main/assets/waste_classifier.blite --format yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectArtifact(cmd.OutOrStdout(), args[0], format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or yaml")
	return cmd
}

func inspectArtifact(w io.Writer, path, format string) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for artifact inspection
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read artifact: %w", err)
	}

	a, err := lite.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	summary := a.Summarize()

	switch format {
	case "text":
		return summary.WriteText(w)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summary); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}
