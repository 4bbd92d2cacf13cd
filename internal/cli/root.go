// Package cli wires the born-convert commands.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/born-ml/born-convert/internal/config"
	"github.com/born-ml/born-convert/internal/converter"
	"github.com/born-ml/born-convert/internal/logging"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=...".
var Version = "v0.1.0-dev"

// Execute runs the root command. Conversion failures still exit 0; only
// usage and configuration errors exit 1.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOpts struct {
	configFile string
	noSpinner  bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	v := config.New()
	opts := rootOpts{}

	cmd := &cobra.Command{
		Use:          "born-convert",
		Short:        "Convert a trained model into a quantized .blite artifact for the mobile app",
		Example:      "born-convert --input model/classifier.onnx --output-dir app/src/main/assets",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, opts.configFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			logger := logging.New(cfg.Logger.Level, cfg.Logger.Format, out)

			c := converter.New(converter.Options{
				OutputName:  cfg.OutputName,
				Labels:      cfg.Labels,
				Description: cfg.Description,
				Producer:    "born-convert " + Version,
			}, out, logger)
			if !opts.noSpinner {
				c.WithProgress(newSpinnerProgress())
			}

			// The outcome is reported on the console only.
			c.Run(cfg.InputPath, cfg.OutputDir)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("input", config.DefaultInputPath, "Model file to convert (.onnx, .safetensors, .born, .gguf)")
	flags.String("output-dir", config.DefaultOutputDir, "Directory the artifact is written to, created if missing")
	flags.String("output-name", config.DefaultOutputName, "Artifact file name inside the output directory")
	flags.StringSlice("labels", config.DefaultLabels, "Class labels stored in the artifact metadata, in model output order")
	flags.String("description", "", "Free-form description stored in the artifact")
	flags.BoolVar(&opts.noSpinner, "no-spinner", false, "Disable the progress spinner")

	persistent := cmd.PersistentFlags()
	persistent.StringVar(&opts.configFile, "config", "", "Config file (yaml, json or toml)")
	persistent.String("log-level", "info", "Log level: debug, info, warn, error")
	persistent.String("log-format", "text", "Log format: text or json")

	bindFlags(v, map[string]*pflag.Flag{
		config.KeyInput:       flags.Lookup("input"),
		config.KeyOutputDir:   flags.Lookup("output-dir"),
		config.KeyOutputName:  flags.Lookup("output-name"),
		config.KeyLabels:      flags.Lookup("labels"),
		config.KeyDescription: flags.Lookup("description"),
		config.KeyLogLevel:    persistent.Lookup("log-level"),
		config.KeyLogFormat:   persistent.Lookup("log-format"),
	})

	cmd.AddCommand(newInspectCommand(), newVersionCommand())
	return cmd
}

func bindFlags(v *viper.Viper, flags map[string]*pflag.Flag) {
	for key, flag := range flags {
		if err := v.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag.Name, err))
		}
	}
}

type spinnerProgress struct {
	s *spinner.Spinner
}

func newSpinnerProgress() *spinnerProgress {
	return &spinnerProgress{s: spinner.New(spinner.CharSets[4], 100*time.Millisecond, spinner.WithWriter(os.Stderr))}
}

func (p *spinnerProgress) Start(msg string) {
	p.s.Prefix = msg
	p.s.Start()
}

func (p *spinnerProgress) Stop() {
	p.s.Stop()
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "born-convert %s\n", Version)
		},
	}
}
