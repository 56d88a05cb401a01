package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var fileList string

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [audio-file]...",
	Short: "Embed many audio files concurrently",
	Long: `Embed many audio files with a pool of workers. Failed files are reported
next to the successful ones, followed by a summary with timing percentiles
and an error breakdown.

Examples:
  sonido-embed batch -m model.onnx --concurrency 8 music/*.mp3
  sonido-embed batch -m model.onnx --list files.txt -f embeddings.json`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&fileList, "list", "l", "",
		"file with one audio path per line")
	batchCmd.Flags().Int("concurrency", 4, "number of files processed at once")
	batchCmd.Flags().String("shared-lib", "", "path to the ONNX Runtime shared library")
	batchCmd.Flags().Int("threads", 1, "intra-op threads for ONNX Runtime")
	batchCmd.Flags().String("decoder", "auto", "audio decoder (auto, wav, mp3, ffmpeg)")
	batchCmd.Flags().String("ffmpeg", "ffmpeg", "path to the ffmpeg binary")
	batchCmd.Flags().Int("precision", 6, "decimal places in the output")
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths := args
	if fileList != "" {
		listed, err := readFileList(fileList)
		if err != nil {
			return err
		}
		paths = append(paths, listed...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no audio files given")
	}

	application, err := newApp()
	if err != nil {
		return err
	}
	return application.Batch(cmd.Context(), paths)
}

// readFileList reads one path per line, skipping blanks and # comments
func readFileList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file list: %w", err)
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file list: %w", err)
	}

	return paths, nil
}
