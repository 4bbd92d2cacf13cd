package converter

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/born-convert/internal/config"
	"github.com/born-ml/born-convert/internal/lite"
	"github.com/born-ml/born-convert/internal/loader"
	"github.com/born-ml/born-convert/internal/logging"
	"github.com/born-ml/born-convert/internal/onnx/onnxtest"
	"github.com/born-ml/born-convert/internal/tensor"
)

const outputName = "waste_classifier.blite"

type recordingProgress struct {
	started []string
	stopped int
}

func (p *recordingProgress) Start(msg string) { p.started = append(p.started, msg) }
func (p *recordingProgress) Stop()            { p.stopped++ }

func newTestConverter(out *bytes.Buffer) *Converter {
	return New(Options{
		OutputName: outputName,
		Labels:     onnxtest.Labels,
		Producer:   "born-convert test",
	}, out, logging.Discard())
}

func writeClassifier(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classifier.onnx")
	require.NoError(t, os.WriteFile(path, onnxtest.Classifier(), 0o600))
	return path
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestRunMissingInput(t *testing.T) {
	var out bytes.Buffer
	outputDir := filepath.Join(t.TempDir(), "assets")
	progress := &recordingProgress{}

	ok := newTestConverter(&out).WithProgress(progress).Run(filepath.Join(t.TempDir(), "missing.onnx"), outputDir)

	assert.False(t, ok)
	assert.Contains(t, out.String(), "File not found")
	assert.NotContains(t, out.String(), "Loading model")
	assert.Empty(t, progress.started)
	assert.NoDirExists(t, outputDir)
}

func TestRunInputNotAccessible(t *testing.T) {
	// A regular file used as a directory fails with ENOTDIR, not ENOENT.
	parent := filepath.Join(t.TempDir(), "model")
	require.NoError(t, os.WriteFile(parent, nil, 0o600))
	outputDir := filepath.Join(t.TempDir(), "assets")

	var out bytes.Buffer
	ok := newTestConverter(&out).Run(filepath.Join(parent, "classifier.onnx"), outputDir)

	assert.False(t, ok)
	assert.NotContains(t, out.String(), "File not found")
	assert.Contains(t, out.String(), "Error loading model")
	assert.NoDirExists(t, outputDir)

	_, err := newTestConverter(&bytes.Buffer{}).ConvertModel(filepath.Join(parent, "classifier.onnx"), outputDir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInputNotFound)
	assert.Equal(t, StageLoad, StageOf(err))
}

func TestConvertInvalidModel(t *testing.T) {
	input := filepath.Join(t.TempDir(), "broken.onnx")
	require.NoError(t, os.WriteFile(input, []byte("\x89HDF\r\n\x1a\nnot a model"), 0o600))
	outputDir := filepath.Join(t.TempDir(), "assets")

	var out bytes.Buffer
	ok := newTestConverter(&out).Convert(input, outputDir)

	assert.False(t, ok)
	assert.Contains(t, out.String(), "Error loading model")
	assert.NoFileExists(t, filepath.Join(outputDir, outputName))
}

func TestConvertValidModel(t *testing.T) {
	input := writeClassifier(t)
	outputDir := filepath.Join(t.TempDir(), "app", "src", "main", "assets")

	var out bytes.Buffer
	progress := &recordingProgress{}
	ok := newTestConverter(&out).WithProgress(progress).Run(input, outputDir)
	require.True(t, ok, out.String())

	assert.Equal(t, []string{outputName}, dirEntries(t, outputDir))
	assert.Len(t, progress.started, 1)
	assert.Equal(t, 1, progress.stopped)

	text := out.String()
	assert.Contains(t, text, "Model architecture:")
	assert.Contains(t, text, "Graph: waste_classifier (opset 13)")
	assert.Contains(t, text, "Conversion finished successfully")
}

func TestConvertOverwrites(t *testing.T) {
	input := writeClassifier(t)
	outputDir := t.TempDir()
	target := filepath.Join(outputDir, outputName)
	require.NoError(t, os.WriteFile(target, bytes.Repeat([]byte("stale"), 100000), 0o600))

	c := newTestConverter(&bytes.Buffer{})
	first, err := c.ConvertModel(input, outputDir)
	require.NoError(t, err)
	second, err := c.ConvertModel(input, outputDir)
	require.NoError(t, err)

	assert.Equal(t, []string{outputName}, dirEntries(t, outputDir))
	assert.NotEqual(t, first.ConversionID, second.ConversionID)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, second.Size, int64(len(data)))
	assert.True(t, lite.HasIdentifier(data))
}

func TestConvertReportsExactSize(t *testing.T) {
	input := writeClassifier(t)
	outputDir := t.TempDir()

	var out bytes.Buffer
	require.True(t, newTestConverter(&out).Convert(input, outputDir))

	m := regexp.MustCompile(`File size: .* \((\d+) bytes\)`).FindStringSubmatch(out.String())
	require.Len(t, m, 2, out.String())
	reported, err := strconv.Atoi(m[1])
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(outputDir, outputName))
	require.NoError(t, err)
	assert.Equal(t, len(data), reported)
	assert.Contains(t, out.String(), "Saved to: "+filepath.Join(outputDir, outputName))
}

func TestConvertAlwaysQuantizes(t *testing.T) {
	input := writeClassifier(t)
	outputDir := t.TempDir()

	res, err := newTestConverter(&bytes.Buffer{}).ConvertModel(input, outputDir)
	require.NoError(t, err)
	assert.Equal(t, "default", res.Optimization)
	assert.Equal(t, 4, res.Stats.Tensors)
	assert.Equal(t, 1, res.Stats.Quantized)
	assert.Less(t, res.Stats.BytesAfter, res.Stats.BytesBefore)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	a, err := lite.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "default", a.Optimization)
	assert.Equal(t, "ONNX", a.SourceFormat)
	assert.Equal(t, []string{"image"}, a.Inputs)
	assert.Equal(t, []string{"probs"}, a.Outputs)
	assert.Len(t, a.Operators, 5)

	byName := make(map[string]lite.Tensor)
	for _, tt := range a.Tensors {
		byName[tt.Name] = tt
	}
	require.Len(t, byName, 4)

	w := byName["fc1.weight"]
	assert.Equal(t, tensor.Int8, w.Data.DType())
	assert.Equal(t, tensor.Shape{64, 32}, w.Data.Shape())
	require.NotNil(t, w.Quantization)
	assert.Len(t, w.Quantization.Scales, 64)

	for _, name := range []string{"fc1.bias", "fc2.weight", "fc2.bias"} {
		assert.Equal(t, tensor.Float32, byName[name].Data.DType(), name)
		assert.Nil(t, byName[name].Quantization, name)
	}

	assert.Equal(t, res.ConversionID, a.Metadata[lite.MetaConversionID])
	assert.Equal(t, "classifier.onnx", a.Metadata[lite.MetaSourceFile])
	assert.Equal(t, "cardboard,glass,metal,paper,plastic,trash", a.Metadata[lite.MetaLabels])
	assert.Equal(t, "born-convert test", a.Metadata[lite.MetaConverter])
}

func TestConvertEmptyAndScalarInitializers(t *testing.T) {
	input := filepath.Join(t.TempDir(), "detector.onnx")
	require.NoError(t, os.WriteFile(input, onnxtest.ClassifierWith(
		onnxtest.FloatInitializer("roi", []int64{0}, nil),
		onnxtest.FloatInitializer("temperature", nil, []float32{0.5}),
	), 0o600))

	res, err := newTestConverter(&bytes.Buffer{}).ConvertModel(input, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Stats.Tensors)
	assert.Equal(t, 1, res.Stats.Quantized)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	a, err := lite.Decode(data)
	require.NoError(t, err)

	byName := make(map[string]lite.Tensor)
	for _, tt := range a.Tensors {
		byName[tt.Name] = tt
	}

	roi := byName["roi"]
	require.NotNil(t, roi.Data)
	assert.Equal(t, tensor.Shape{0}, roi.Data.Shape())
	assert.Zero(t, roi.Data.ByteSize())
	assert.Nil(t, roi.Quantization)

	temp := byName["temperature"]
	require.NotNil(t, temp.Data)
	assert.Empty(t, temp.Data.Shape())
	assert.Equal(t, []float32{0.5}, temp.Data.AsFloat32())
}

func TestConvertDefaultOutputName(t *testing.T) {
	outputDir := t.TempDir()
	c := New(Options{}, &bytes.Buffer{}, logging.Discard())

	res, err := c.ConvertModel(writeClassifier(t), outputDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, config.DefaultOutputName), res.OutputPath)
	assert.Equal(t, []string{config.DefaultOutputName}, dirEntries(t, outputDir))
}

func TestConvertModelErrors(t *testing.T) {
	c := newTestConverter(&bytes.Buffer{})

	t.Run("missing", func(t *testing.T) {
		_, err := c.ConvertModel(filepath.Join(t.TempDir(), "nope.onnx"), t.TempDir())
		assert.ErrorIs(t, err, ErrInputNotFound)
		assert.Equal(t, StageLoad, StageOf(err))
	})

	t.Run("keras", func(t *testing.T) {
		input := filepath.Join(t.TempDir(), "best_model.keras")
		require.NoError(t, os.WriteFile(input, []byte("PK\x03\x04"), 0o600))
		_, err := c.ConvertModel(input, t.TempDir())
		assert.ErrorIs(t, err, loader.ErrUnsupportedFormat)
		assert.Equal(t, StageLoad, StageOf(err))
	})

	t.Run("output dir is a file", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "assets")
		require.NoError(t, os.WriteFile(blocker, nil, 0o600))
		_, err := c.ConvertModel(writeClassifier(t), blocker)
		require.Error(t, err)
		assert.Equal(t, StageWrite, StageOf(err))

		var convErr *Error
		require.ErrorAs(t, err, &convErr)
		assert.Equal(t, blocker, convErr.Path)
	})
}

func TestErrorFormatting(t *testing.T) {
	err := &Error{Stage: StageConvert, Path: "m.onnx", Err: assert.AnError}
	assert.Equal(t, "convert m.onnx: "+assert.AnError.Error(), err.Error())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, Stage(""), StageOf(assert.AnError))
}
