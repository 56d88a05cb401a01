package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-embed/configs"
	"github.com/RyanBlaney/sonido-embed/internal/app"
)

const envPrefix = "SONIDO_EMBED"

var (
	configFile string
	verbose    bool
	quiet      bool
	outputFile string
)

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"verbose":     "verbose",
	"log-level":   "log_level",
	"output":      "output_format",
	"model":       "inference.model_path",
	"engine":      "inference.engine",
	"shared-lib":  "inference.shared_library_path",
	"threads":     "inference.intra_op_threads",
	"decoder":     "decoder.backend",
	"ffmpeg":      "decoder.ffmpeg_path",
	"precision":   "output.precision",
	"concurrency": "batch.max_concurrency",
	"threshold":   "similarity.threshold",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sonido-embed",
	Short: "Audio embedding extraction",
	Long: `Compute fixed-length audio embeddings from log-mel, chroma and tempo
features with a pre-trained model.

Audio is decoded and resampled, split into overlapping segments, and each
segment is turned into three feature tensors. The model embeds every segment,
and the segment embeddings are averaged and L2-normalized into one vector
per file.

Key features:
- WAV and MP3 decoding, ffmpeg for everything else
- ONNX Runtime inference or a YAML linear model for testing
- Raw feature export for debugging and parity checks
- Concurrent batch embedding with per-file error reporting`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/sonido-embed/sonido-embed.yaml)")

	// Output and logging flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"only log errors")
	rootCmd.PersistentFlags().String("log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("output", "o", "json",
		"output format (json, yaml, csv, table)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output-file", "f", "",
		"write results to a file instead of stdout")

	// Model flags
	rootCmd.PersistentFlags().StringP("model", "m", "",
		"path to the embedding model")
	rootCmd.PersistentFlags().String("engine", configs.EngineONNX,
		"inference engine (onnx, linear)")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "sonido-embed"))
		viper.AddConfigPath("/etc/sonido-embed")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("sonido-embed")
		viper.SetConfigType("yaml")
	}

	// SONIDO_EMBED_INFERENCE_MODEL_PATH sets inference.model_path
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	configs.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	} else if configFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", configFile, err)
		os.Exit(1)
	}
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	return bindFlags(cmd, viper.GetViper())
}

// bindFlags binds each known cobra flag to its configuration key
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return
		}

		if err := v.BindPFlag(key, f); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

// newApp creates the application from the parsed flags and configuration
func newApp() (*app.App, error) {
	return app.NewApp(&app.Context{
		OutputFile: outputFile,
		Verbose:    verbose,
		Quiet:      quiet,
	})
}
