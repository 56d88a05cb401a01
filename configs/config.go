package configs

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-embed/pkg/audio"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding"
	embconfig "github.com/RyanBlaney/sonido-embed/pkg/embedding/config"
)

// Inference engines
const (
	EngineONNX   = "onnx"
	EngineLinear = "linear"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose" yaml:"verbose"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`

	// Feature extraction parameters
	Embedding embconfig.Config `mapstructure:"embedding" yaml:"embedding"`

	// Model and runtime
	Inference InferenceConfig `mapstructure:"inference" yaml:"inference"`

	// Audio decoding
	Decoder DecoderConfig `mapstructure:"decoder" yaml:"decoder"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output"`

	// Batch processing
	Batch BatchConfig `mapstructure:"batch" yaml:"batch"`

	// Embedding comparison
	Similarity SimilarityConfig `mapstructure:"similarity" yaml:"similarity"`
}

// InferenceConfig selects the inference engine and model
type InferenceConfig struct {
	Engine            string               `mapstructure:"engine" yaml:"engine"`
	ModelPath         string               `mapstructure:"model_path" yaml:"model_path"`
	SharedLibraryPath string               `mapstructure:"shared_library_path" yaml:"shared_library_path"`
	IntraOpThreads    int                  `mapstructure:"intra_op_threads" yaml:"intra_op_threads"`
	InputNames        embedding.InputNames `mapstructure:"input_names" yaml:"input_names"`
	OutputName        string               `mapstructure:"output_name" yaml:"output_name"`
}

// DecoderConfig selects the audio decoder
type DecoderConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"`
	FFmpegPath string `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Precision       int  `mapstructure:"precision" yaml:"precision"`
	IncludeMetadata bool `mapstructure:"include_metadata" yaml:"include_metadata"`
}

// BatchConfig contains batch embedding settings
type BatchConfig struct {
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`
}

// SimilarityConfig contains comparison settings
type SimilarityConfig struct {
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
}

// LoadConfig loads configuration from the global viper instance
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(viper.GetViper())
}

// LoadConfigFrom loads configuration from v, filling unset keys with defaults
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if !slices.Contains([]string{"", "debug", "info", "warn", "warning", "error"}, strings.ToLower(config.LogLevel)) {
		return fmt.Errorf("unknown log level %q", config.LogLevel)
	}

	if !slices.Contains([]string{"json", "yaml", "yml", "csv", "table"}, strings.ToLower(config.OutputFormat)) {
		return fmt.Errorf("unsupported output format %q", config.OutputFormat)
	}

	if err := config.Embedding.Validate(); err != nil {
		return fmt.Errorf("invalid embedding configuration: %w", err)
	}

	switch config.Inference.Engine {
	case EngineONNX, EngineLinear:
	default:
		return fmt.Errorf("unknown inference engine %q", config.Inference.Engine)
	}

	if config.Inference.IntraOpThreads < 0 {
		return fmt.Errorf("intra-op threads cannot be negative")
	}

	names := config.Inference.InputNames
	if names.Mel == "" || names.Chroma == "" || names.Tempo == "" {
		return fmt.Errorf("input names for mel, chroma and tempo are required")
	}
	if names.Mel == names.Chroma || names.Mel == names.Tempo || names.Chroma == names.Tempo {
		return fmt.Errorf("input names must be distinct")
	}

	switch config.Decoder.Backend {
	case audio.BackendAuto, audio.BackendWAV, audio.BackendMP3, audio.BackendFFmpeg:
	default:
		return fmt.Errorf("unknown decoder backend %q", config.Decoder.Backend)
	}

	if config.Output.Precision < 0 {
		return fmt.Errorf("output precision cannot be negative")
	}

	if config.Batch.MaxConcurrency <= 0 {
		return fmt.Errorf("batch max concurrency must be positive")
	}

	if config.Similarity.Threshold < -1 || config.Similarity.Threshold > 1 {
		return fmt.Errorf("similarity threshold must be between -1 and 1")
	}

	return nil
}
