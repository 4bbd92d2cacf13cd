// Package config resolves born-convert settings from defaults, an optional
// config file, BORN_CONVERT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. BORN_CONVERT_INPUT.
const EnvPrefix = "BORN_CONVERT"

// Default locations used when nothing else is configured.
const (
	DefaultInputPath  = "model/waste_classifier.onnx"
	DefaultOutputDir  = "app/src/main/assets"
	DefaultOutputName = "waste_classifier.blite"
)

// Configuration keys. Flags with dashes bind to the underscored key.
const (
	KeyInput       = "input"
	KeyOutputDir   = "output_dir"
	KeyOutputName  = "output_name"
	KeyLabels      = "labels"
	KeyDescription = "description"
	KeyLogLevel    = "log.level"
	KeyLogFormat   = "log.format"
)

// DefaultLabels are the classifier outputs in model order.
var DefaultLabels = []string{"cardboard", "glass", "metal", "paper", "plastic", "trash"}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the resolved born-convert configuration.
type Config struct {
	InputPath   string
	OutputDir   string
	OutputName  string
	Labels      []string
	Description string
	Logger      LoggerConfig
}

// LoggerConfig selects the log level and output format.
type LoggerConfig struct {
	Level  string
	Format string
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyInput, DefaultInputPath)
	v.SetDefault(KeyOutputDir, DefaultOutputDir)
	v.SetDefault(KeyOutputName, DefaultOutputName)
	v.SetDefault(KeyLabels, DefaultLabels)
	v.SetDefault(KeyDescription, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the optional config file into v and returns the resolved,
// validated configuration.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		InputPath:   v.GetString(KeyInput),
		OutputDir:   v.GetString(KeyOutputDir),
		OutputName:  v.GetString(KeyOutputName),
		Labels:      splitLabels(v.GetStringSlice(KeyLabels)),
		Description: v.GetString(KeyDescription),
		Logger: LoggerConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be fixed up silently.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("%w: input path is empty", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory is empty", ErrInvalidConfig)
	}
	if c.OutputName == "" || c.OutputName != filepath.Base(c.OutputName) || c.OutputName == "." || c.OutputName == ".." {
		return fmt.Errorf("%w: output name %q must be a plain file name", ErrInvalidConfig, c.OutputName)
	}
	switch c.Logger.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q (want text or json)", ErrInvalidConfig, c.Logger.Format)
	}
	return nil
}

// OutputPath is the artifact destination.
func (c *Config) OutputPath() string {
	return filepath.Join(c.OutputDir, c.OutputName)
}

// splitLabels accepts both list values and a single comma-separated string,
// which is how labels arrive from the environment.
func splitLabels(values []string) []string {
	var out []string
	for _, v := range values {
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
	}
	return out
}
