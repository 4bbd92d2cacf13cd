package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/born-convert/internal/lite"
	"github.com/born-ml/born-convert/internal/onnx/onnxtest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func convertClassifier(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "classifier.onnx")
	require.NoError(t, os.WriteFile(input, onnxtest.Classifier(), 0o600))

	outputDir := filepath.Join(dir, "assets")
	out, err := execute(t, "--input", input, "--output-dir", outputDir, "--no-spinner", "--labels", "a,b,c,d,e,f")
	require.NoError(t, err, out)
	return filepath.Join(outputDir, "waste_classifier.blite")
}

func TestRootConverts(t *testing.T) {
	path := convertClassifier(t)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	a, err := lite.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "a,b,c,d,e,f", a.Metadata[lite.MetaLabels])
	assert.Equal(t, "born-convert "+Version, a.Metadata[lite.MetaConverter])
}

func TestRootMissingInputExitsCleanly(t *testing.T) {
	outputDir := filepath.Join(t.TempDir(), "assets")
	out, err := execute(t, "--input", filepath.Join(t.TempDir(), "missing.onnx"), "--output-dir", outputDir, "--no-spinner")

	require.NoError(t, err)
	assert.Contains(t, out, "File not found")
	assert.NoDirExists(t, outputDir)
}

func TestRootEnvConfig(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "classifier.onnx")
	require.NoError(t, os.WriteFile(input, onnxtest.Classifier(), 0o600))

	t.Setenv("BORN_CONVERT_INPUT", input)
	t.Setenv("BORN_CONVERT_OUTPUT_DIR", dir)
	t.Setenv("BORN_CONVERT_OUTPUT_NAME", "env.blite")

	out, err := execute(t, "--no-spinner")
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(dir, "env.blite"))
}

func TestRootRejectsBadConfig(t *testing.T) {
	_, err := execute(t, "--log-format", "xml", "--no-spinner")
	assert.Error(t, err)

	_, err = execute(t, "--output-name", "../escape.blite", "--no-spinner")
	assert.Error(t, err)
}

func TestInspectFormats(t *testing.T) {
	path := convertClassifier(t)

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "inspect", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Artifact: v1 from ONNX (optimization default)")
		assert.Contains(t, out, "fc1.weight")
		assert.Contains(t, out, "int8 (per-channel)")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "inspect", path, "--format", "json")
		require.NoError(t, err)

		var s lite.Summary
		require.NoError(t, json.Unmarshal([]byte(out), &s))
		assert.Equal(t, uint32(1), s.Version)
		assert.Equal(t, 1, s.Quantized)
		assert.Equal(t, 2, s.Operators["Gemm"])
		assert.Len(t, s.Tensors, 4)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, "inspect", path, "--format", "yaml")
		require.NoError(t, err)

		var s lite.Summary
		require.NoError(t, yaml.Unmarshal([]byte(out), &s))
		assert.Equal(t, "default", s.Optimization)
		assert.Equal(t, []string{"image"}, s.Inputs)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := execute(t, "inspect", path, "--format", "xml")
		assert.Error(t, err)
	})
}

func TestInspectRejectsNonArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, onnxtest.Classifier(), 0o600))

	_, err := execute(t, "inspect", path)
	assert.ErrorIs(t, err, lite.ErrInvalidIdentifier)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "born-convert "+Version+"\n", out)
}
