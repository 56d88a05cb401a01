package app

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/latency-benchmark-common/output"
	"github.com/RyanBlaney/sonido-embed/configs"
	"github.com/RyanBlaney/sonido-embed/internal/metrics"
	"github.com/RyanBlaney/sonido-embed/pkg/audio"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference/linear"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference/onnx"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	OutputFile   string
	OutputFormat string
	Verbose      bool
	Quiet        bool

	// Runtime context
	Logger logging.Logger
	Config *configs.Config
}

// App wires configuration into decoders, inference engines and pipelines
type App struct {
	ctx      *Context
	config   *configs.Config
	recorder *metrics.Recorder
	logger   logging.Logger
}

// NewApp creates a new application
func NewApp(ctx *Context) (*App, error) {
	config, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	logger := setupLogging(ctx, config)
	ctx.Logger = logger

	logger.Debug("Application initialized", logging.Fields{
		"output_format": ctx.OutputFormat,
		"engine":        config.Inference.Engine,
		"model":         config.Inference.ModelPath,
		"decoder":       config.Decoder.Backend,
		"sample_rate":   config.Embedding.SampleRate,
	})

	return &App{
		ctx:      ctx,
		config:   config,
		recorder: metrics.Default(),
		logger:   logger,
	}, nil
}

// Config returns the merged configuration
func (app *App) Config() *configs.Config {
	return app.config
}

// setupLogging sets the process-wide log level from the CLI flags and config
func setupLogging(ctx *Context, config *configs.Config) logging.Logger {
	switch {
	case ctx.Quiet:
		logging.SetLevel(logging.ErrorLevel)
	case ctx.Verbose || config.Verbose:
		logging.SetLevel(logging.DebugLevel)
	default:
		switch strings.ToLower(config.LogLevel) {
		case "debug":
			logging.SetLevel(logging.DebugLevel)
		case "warn", "warning":
			logging.SetLevel(logging.WarnLevel)
		case "error":
			logging.SetLevel(logging.ErrorLevel)
		default:
			logging.SetLevel(logging.InfoLevel)
		}
	}

	return logging.WithFields(logging.Fields{
		"component": "app",
	})
}

// loadAndMergeConfig loads configuration and applies CLI overrides
func loadAndMergeConfig(ctx *Context) (*configs.Config, error) {
	config, err := configs.LoadConfig()
	if err != nil {
		return nil, err
	}

	if ctx.OutputFormat != "" {
		config.OutputFormat = ctx.OutputFormat
	}
	ctx.OutputFormat = config.OutputFormat

	if err := configs.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// NewDecoder returns the configured audio decoder
func (app *App) NewDecoder() (audio.Decoder, error) {
	return audio.NewDecoder(app.config.Decoder.Backend, app.config.Decoder.FFmpegPath)
}

// NewEngine returns the configured inference engine
func (app *App) NewEngine() (inference.Engine, error) {
	switch app.config.Inference.Engine {
	case configs.EngineONNX:
		return onnx.NewEngine(onnx.Options{
			SharedLibraryPath: app.config.Inference.SharedLibraryPath,
			IntraOpThreads:    app.config.Inference.IntraOpThreads,
		}), nil
	case configs.EngineLinear:
		return linear.NewEngine(), nil
	default:
		return nil, fmt.Errorf("unknown inference engine %q", app.config.Inference.Engine)
	}
}

// NewPipeline creates a pipeline bound to session, which may be nil when
// only features are needed
func (app *App) NewPipeline(session *inference.SessionHandle) (*embedding.Pipeline, error) {
	decoder, err := app.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return embedding.NewPipeline(app.config.Embedding, decoder, embedding.Options{
		Session:    session,
		InputNames: app.config.Inference.InputNames,
		OutputName: app.config.Inference.OutputName,
		Recorder:   app.recorder,
	})
}

// WithSession loads the configured model for the duration of fn
func (app *App) WithSession(fn func(*inference.SessionHandle) error) error {
	if app.config.Inference.ModelPath == "" {
		return fmt.Errorf("a model path is required (--model or inference.model_path)")
	}

	engine, err := app.NewEngine()
	if err != nil {
		return err
	}

	return inference.WithSession(engine, app.config.Inference.ModelPath, fn)
}

// outputResults formats data and writes it to the output file or stdout.
// Report values are made finite when the reports are built, so every
// formatter accepts them.
func (app *App) outputResults(data any) error {
	var formatter output.Formatter
	switch strings.ToLower(app.ctx.OutputFormat) {
	case "json":
		formatter = &output.JSONFormatter{}
	case "yaml", "yml":
		formatter = &output.YAMLFormatter{}
	case "csv":
		formatter = &output.CSVFormatter{}
	case "table":
		formatter = &output.TableFormatter{}
	default:
		formatter = &output.JSONFormatter{}
	}

	formattedData, err := formatter.Format(data, true)
	if err != nil {
		return fmt.Errorf("failed to format output data: %w", err)
	}

	if app.ctx.OutputFile != "" {
		return app.writeToFile(formattedData)
	}

	_, err = os.Stdout.Write(formattedData)
	return err
}

// writeToFile writes data to the specified output file
func (app *App) writeToFile(data []byte) error {
	dir := filepath.Dir(app.ctx.OutputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(app.ctx.OutputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": app.ctx.OutputFile,
		"size_bytes":  len(data),
	})

	return nil
}

// roundVector rounds v to the configured output precision. NaN and Inf
// are written as 0.
func (app *App) roundVector(v []float32) []float64 {
	scale := math.Pow(10, float64(app.config.Output.Precision))
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = finite(math.Round(float64(x)*scale) / scale)
	}
	return out
}

func finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
