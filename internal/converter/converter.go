// Package converter turns a trained model file into a quantized .blite
// artifact for the mobile runtime.
package converter

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/born-ml/born-convert/internal/config"
	"github.com/born-ml/born-convert/internal/lite"
	"github.com/born-ml/born-convert/internal/loader"
	"github.com/born-ml/born-convert/internal/quantize"
)

const banner = "============================================================"

// Options control what goes into the artifact. The optimization policy is
// not configurable: quantize.Default is always applied.
type Options struct {
	OutputName  string   // file name inside the output directory
	Labels      []string // class labels stored as metadata
	Description string
	Producer    string // e.g. "born-convert v0.1.0"
}

// Progress is notified around the conversion pass.
type Progress interface {
	Start(msg string)
	Stop()
}

type noProgress struct{}

func (noProgress) Start(string) {}
func (noProgress) Stop()        {}

// Result describes a written artifact.
type Result struct {
	ConversionID string
	OutputPath   string
	Size         int64
	Optimization string
	Stats        quantize.Stats
}

// Converter runs the load, convert and write pipeline.
type Converter struct {
	opts     Options
	out      io.Writer
	log      log.FieldLogger
	progress Progress
}

// New returns a Converter printing human-readable output to out.
func New(opts Options, out io.Writer, logger log.FieldLogger) *Converter {
	return &Converter{
		opts:     opts,
		out:      out,
		log:      logger,
		progress: noProgress{},
	}
}

// WithProgress sets the progress indicator shown during conversion.
func (c *Converter) WithProgress(p Progress) *Converter {
	c.progress = p
	return c
}

// Run is the full command flow: banner, input check, conversion and the
// final status line. The result is reported only as text and the return
// value; nothing is written when the input cannot be read.
func (c *Converter) Run(inputPath, outputDir string) bool {
	fmt.Fprintln(c.out, banner)
	fmt.Fprintln(c.out, "Model converter -> born lite (.blite)")
	fmt.Fprintln(c.out, banner)

	if _, err := os.Stat(inputPath); err != nil {
		logger := c.log.WithError(err).WithField("path", inputPath)
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(c.out, "✗ File not found: %s\n", inputPath)
			fmt.Fprintln(c.out, "Check the path to the source model.")
			logger.Error("input model missing")
		} else {
			fmt.Fprintf(c.out, "Error loading model: %v\n", err)
			logger.Error("input model not accessible")
		}
		return false
	}

	if !c.Convert(inputPath, outputDir) {
		fmt.Fprintln(c.out, "\n✗ Conversion failed. See the errors above.")
		return false
	}

	fmt.Fprintln(c.out, "\n"+banner)
	fmt.Fprintln(c.out, "✓ Conversion finished successfully!")
	fmt.Fprintln(c.out, "The model can now be bundled with the mobile app.")
	fmt.Fprintln(c.out, banner)
	return true
}

// Convert loads inputPath, applies the default optimization policy and
// writes the artifact into outputDir. Every failure is reported and
// collapses to false.
func (c *Converter) Convert(inputPath, outputDir string) bool {
	res, err := c.ConvertModel(inputPath, outputDir)
	if err != nil {
		switch StageOf(err) {
		case StageLoad:
			fmt.Fprintf(c.out, "Error loading model: %v\n", errors.Unwrap(err))
		default:
			fmt.Fprintf(c.out, "Error converting model: %v\n", errors.Unwrap(err))
		}
		c.log.WithError(err).WithField("stage", StageOf(err)).Error("conversion failed")
		return false
	}

	fmt.Fprintln(c.out, "✓ Model converted successfully!")
	fmt.Fprintf(c.out, "  File size: %s (%d bytes)\n", humanize.IBytes(uint64(res.Size)), res.Size) //nolint:gosec // G115: file sizes are non-negative
	fmt.Fprintf(c.out, "  Weights: %d tensors, %d quantized to int8 (%s -> %s)\n",
		res.Stats.Tensors, res.Stats.Quantized,
		humanize.IBytes(uint64(res.Stats.BytesBefore)), humanize.IBytes(uint64(res.Stats.BytesAfter))) //nolint:gosec // G115: byte counts are non-negative
	fmt.Fprintf(c.out, "  Saved to: %s\n", res.OutputPath)
	return true
}

// ConvertModel is the typed form of Convert.
func (c *Converter) ConvertModel(inputPath, outputDir string) (*Result, error) {
	id := uuid.NewString()
	logger := c.log.WithFields(log.Fields{"conversion_id": id, "input": inputPath})

	if _, err := os.Stat(inputPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrInputNotFound
		}
		return nil, stageError(StageLoad, inputPath, err)
	}

	fmt.Fprintln(c.out, "Loading model...")
	model, err := loader.Open(inputPath)
	if err != nil {
		return nil, stageError(StageLoad, inputPath, err)
	}
	defer func() { _ = model.Close() }()

	fmt.Fprintln(c.out, "Model loaded successfully!")
	fmt.Fprintln(c.out, "Model architecture:")
	if err := loader.Describe(c.out, model); err != nil {
		logger.WithError(err).Warn("failed to describe model")
	}
	logger = logger.WithField("format", model.Format())
	if params, err := loader.ParamCount(model); err == nil {
		logger = logger.WithField("params", params)
	}
	logger.Debug("model loaded")

	fmt.Fprintln(c.out, "\nConverting to born lite...")
	c.progress.Start("Quantizing weights ")
	artifact, stats, err := c.build(model, inputPath, id)
	var encoded []byte
	if err == nil {
		encoded, err = lite.Encode(artifact)
	}
	c.progress.Stop()
	if err != nil {
		return nil, stageError(StageConvert, inputPath, err)
	}
	logger.WithFields(log.Fields{
		"tensors":   stats.Tensors,
		"quantized": stats.Quantized,
		"bytes":     len(encoded),
	}).Debug("artifact encoded")

	outputPath := filepath.Join(outputDir, c.outputName())
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return nil, stageError(StageWrite, outputDir, fmt.Errorf("failed to create output directory: %w", err))
	}
	if err := os.WriteFile(outputPath, encoded, 0o644); err != nil { //nolint:gosec // G306: the artifact is bundled into an app, not secret
		return nil, stageError(StageWrite, outputPath, fmt.Errorf("failed to write artifact: %w", err))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, stageError(StageWrite, outputPath, err)
	}
	logger.WithFields(log.Fields{"output": outputPath, "size": info.Size()}).Info("artifact written")

	return &Result{
		ConversionID: id,
		OutputPath:   outputPath,
		Size:         info.Size(),
		Optimization: artifact.Optimization,
		Stats:        stats,
	}, nil
}

func (c *Converter) outputName() string {
	if c.opts.OutputName == "" {
		return config.DefaultOutputName
	}
	return c.opts.OutputName
}

// build reads every tensor and applies the default policy.
func (c *Converter) build(model loader.Model, inputPath, id string) (*lite.Artifact, quantize.Stats, error) {
	policy := quantize.Default()
	var stats quantize.Stats

	names := model.TensorNames()
	tensors := make([]lite.Tensor, 0, len(names))
	for _, name := range names {
		raw, err := model.LoadTensor(name)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to load tensor %s: %w", name, err)
		}
		q, err := policy.Apply(name, raw)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to quantize: %w", err)
		}
		stats.Add(raw, q)

		t := lite.Tensor{Name: name, Data: q.Data}
		if q.Quantized {
			t.Quantization = &lite.Quantization{Scales: q.Scales, ZeroPoints: q.ZeroPoints, Axis: q.Axis}
		}
		tensors = append(tensors, t)
	}

	nodes := model.Nodes()
	operators := make([]lite.Operator, len(nodes))
	for i, n := range nodes {
		operators[i] = lite.Operator{Name: n.Name, OpType: n.OpType, Inputs: n.Inputs, Outputs: n.Outputs}
	}

	info := model.Info()
	metadata := make(map[string]string)
	for k, v := range model.Metadata() {
		metadata["source."+k] = v
	}
	metadata[lite.MetaConversionID] = id
	metadata[lite.MetaSourceFile] = filepath.Base(inputPath)
	if len(c.opts.Labels) > 0 {
		metadata[lite.MetaLabels] = strings.Join(c.opts.Labels, ",")
	}
	if c.opts.Producer != "" {
		metadata[lite.MetaConverter] = c.opts.Producer
	}

	return &lite.Artifact{
		SourceFormat: model.Format().String(),
		Optimization: policy.Name,
		Description:  c.opts.Description,
		Tensors:      tensors,
		Operators:    operators,
		Inputs:       valueNames(info.Inputs),
		Outputs:      valueNames(info.Outputs),
		Metadata:     metadata,
	}, stats, nil
}

func valueNames(values []loader.ValueInfo) []string {
	if len(values) == 0 {
		return nil
	}
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = v.Name
	}
	return names
}
