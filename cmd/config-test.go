package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-embed/configs"
	"github.com/RyanBlaney/sonido-embed/internal/app"
)

var (
	generateConfig string
	validateConfig string
)

// configTestCmd represents the config test command
var configTestCmd = &cobra.Command{
	Use:   "config-test",
	Short: "Test and display all configuration values",
	Long: `Test configuration loading and display all values to verify proper parsing.

Examples:
  # Show the merged configuration
  sonido-embed config-test

  # Test with a specific config file
  sonido-embed --config /path/to/config.yaml config-test

  # Write an example config file
  sonido-embed config-test --generate configs/sonido-embed.yaml

  # Validate a config file without using it
  sonido-embed config-test --validate my-config.yaml`,
	RunE: runConfigTest,
}

func init() {
	rootCmd.AddCommand(configTestCmd)

	configTestCmd.Flags().StringVar(&generateConfig, "generate", "",
		"write an example configuration to this path")
	configTestCmd.Flags().StringVar(&validateConfig, "validate", "",
		"validate this configuration file")
}

func runConfigTest(cmd *cobra.Command, args []string) error {
	if generateConfig != "" {
		if err := app.GenerateExampleConfig(generateConfig); err != nil {
			return err
		}
		fmt.Printf("Example configuration written to: %s\n", generateConfig)
		return nil
	}

	var (
		config *configs.Config
		err    error
	)
	if validateConfig != "" {
		config, err = app.LoadConfigFile(validateConfig)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration is valid: %s\n", validateConfig)
	} else {
		config, err = configs.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	fmt.Println("SONIDO EMBED CONFIGURATION TEST")
	fmt.Println(strings.Repeat("=", 80))

	source := viper.ConfigFileUsed()
	if validateConfig != "" {
		source = validateConfig
	}
	if source == "" {
		source = "(defaults only)"
	}
	printKeyValue("Config File", source)

	printSection("APPLICATION SETTINGS")
	printKeyValue("Verbose", fmt.Sprintf("%t", config.Verbose))
	printKeyValue("Log Level", config.LogLevel)
	printKeyValue("Output Format", config.OutputFormat)

	e := config.Embedding
	printSection("EMBEDDING CONFIGURATION")
	printKeyValue("Sample Rate", fmt.Sprintf("%d Hz", e.SampleRate))
	printKeyValue("Mono", fmt.Sprintf("%t", e.Mono))
	printKeyValue("Mel Bands", fmt.Sprintf("%d", e.MelBands))
	printKeyValue("Mel Hop", fmt.Sprintf("%.1f ms", e.MelHopMs))
	printKeyValue("Chroma Bins", fmt.Sprintf("%d", e.ChromaBins))
	printKeyValue("Tempo Window", fmt.Sprintf("%d", e.TempoWin))
	printKeyValue("Use HPSS", fmt.Sprintf("%t", e.UseHPSS))
	printKeyValue("Onset Method", e.OnsetMethod)

	printSubsection("Segmentation")
	printKeyValue("  Segment Length", fmt.Sprintf("%.2fs", e.SegmentSeconds))
	printKeyValue("  Segment Hop", fmt.Sprintf("%.2fs", e.HopSeconds))
	printKeyValue("  Segments Per Song", fmt.Sprintf("%d", e.SegmentsPerSong))

	inf := config.Inference
	printSection("INFERENCE CONFIGURATION")
	printKeyValue("Engine", inf.Engine)
	printKeyValue("Model Path", valueOr(inf.ModelPath, "(not set)"))
	printKeyValue("Shared Library", valueOr(inf.SharedLibraryPath, "(platform default)"))
	printKeyValue("Intra-op Threads", fmt.Sprintf("%d", inf.IntraOpThreads))
	printSubsection("Input Names")
	printKeyValue("  Mel", inf.InputNames.Mel)
	printKeyValue("  Chroma", inf.InputNames.Chroma)
	printKeyValue("  Tempo", inf.InputNames.Tempo)
	printKeyValue("Output Name", valueOr(inf.OutputName, "(single output)"))

	printSection("DECODER CONFIGURATION")
	printKeyValue("Backend", config.Decoder.Backend)
	printKeyValue("FFmpeg Path", config.Decoder.FFmpegPath)

	printSection("OUTPUT CONFIGURATION")
	printKeyValue("Precision", fmt.Sprintf("%d", config.Output.Precision))
	printKeyValue("Include Metadata", fmt.Sprintf("%t", config.Output.IncludeMetadata))

	printSection("BATCH AND COMPARISON")
	printKeyValue("Max Concurrency", fmt.Sprintf("%d", config.Batch.MaxConcurrency))
	printKeyValue("Similarity Threshold", fmt.Sprintf("%.3f", config.Similarity.Threshold))

	printSection("VALIDATION")
	if err := configs.ValidateConfig(config); err != nil {
		printKeyValue("Status", "INVALID")
		printKeyValue("Error", err.Error())
		return nil
	}
	printKeyValue("Status", "OK")

	return nil
}

func printSection(title string) {
	fmt.Printf("\n%s\n", title)
	fmt.Println(strings.Repeat("-", len(title)))
}

func printSubsection(title string) {
	fmt.Printf("\n  %s\n", title)
}

func printKeyValue(key, value string) {
	if value == "" {
		fmt.Printf("%-35s\n", key)
	} else {
		fmt.Printf("%-35s %s\n", key+":", value)
	}
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
