package cmd

import (
	"github.com/spf13/cobra"
)

var featureType string

// featuresCmd represents the features command
var featuresCmd = &cobra.Command{
	Use:   "features <audio-file>",
	Short: "Extract one raw feature type without running the model",
	Long: `Extract log-mel, chroma or tempo features from every segment of an audio
file and print them flattened in segment order.

The data length is always a multiple of per_segment, and shape gives the
per-segment layout.

Examples:
  sonido-embed features --feature mel song.wav
  sonido-embed features -t tempo -o yaml song.mp3`,
	Args: cobra.ExactArgs(1),
	RunE: runFeatures,
}

func init() {
	rootCmd.AddCommand(featuresCmd)

	featuresCmd.Flags().StringVarP(&featureType, "feature", "t", "mel",
		"feature type (mel, chroma, tempo)")
	featuresCmd.Flags().String("decoder", "auto", "audio decoder (auto, wav, mp3, ffmpeg)")
	featuresCmd.Flags().String("ffmpeg", "ffmpeg", "path to the ffmpeg binary")
	featuresCmd.Flags().Int("precision", 6, "decimal places in the output")
}

func runFeatures(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	return application.Features(cmd.Context(), args[0], featureType)
}
