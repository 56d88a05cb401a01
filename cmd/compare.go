package cmd

import (
	"github.com/spf13/cobra"
)

var compareFeature string

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare <audio-file> <audio-file>",
	Short: "Compare two audio files by cosine similarity",
	Long: `Compare two audio files by the cosine similarity of their embeddings,
or of one raw feature type when --feature is set.

Examples:
  sonido-embed compare -m model.onnx original.wav reupload.mp3
  sonido-embed compare --feature chroma --threshold 0.9 a.wav b.wav`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVarP(&compareFeature, "feature", "t", "",
		"compare a raw feature type (mel, chroma, tempo) instead of embeddings")
	compareCmd.Flags().Float64("threshold", 0.85, "similarity treated as a match")
	compareCmd.Flags().String("shared-lib", "", "path to the ONNX Runtime shared library")
	compareCmd.Flags().String("decoder", "auto", "audio decoder (auto, wav, mp3, ffmpeg)")
	compareCmd.Flags().String("ffmpeg", "ffmpeg", "path to the ffmpeg binary")
}

func runCompare(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	return application.Compare(cmd.Context(), args[0], args[1], compareFeature)
}
