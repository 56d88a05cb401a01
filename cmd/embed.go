package cmd

import (
	"github.com/spf13/cobra"
)

// embedCmd represents the embed command
var embedCmd = &cobra.Command{
	Use:   "embed <audio-file>...",
	Short: "Compute the embedding of one or more audio files",
	Long: `Compute a unit-length embedding for each audio file.

Files are processed in order and the command stops at the first failure.
Use "batch" to keep going past failed files.

Examples:
  # Embed a file with an ONNX model
  sonido-embed embed --model model.onnx song.mp3

  # Embed several files as YAML without timing details
  sonido-embed embed -m model.onnx -o yaml a.wav b.wav`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().String("shared-lib", "", "path to the ONNX Runtime shared library")
	embedCmd.Flags().Int("threads", 1, "intra-op threads for ONNX Runtime")
	embedCmd.Flags().String("decoder", "auto", "audio decoder (auto, wav, mp3, ffmpeg)")
	embedCmd.Flags().String("ffmpeg", "ffmpeg", "path to the ffmpeg binary")
	embedCmd.Flags().Int("precision", 6, "decimal places in the output")
}

func runEmbed(cmd *cobra.Command, args []string) error {
	application, err := newApp()
	if err != nil {
		return err
	}
	return application.Embed(cmd.Context(), args)
}
