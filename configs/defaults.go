package configs

import (
	"github.com/spf13/viper"

	"github.com/RyanBlaney/sonido-embed/pkg/audio"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding"
	embconfig "github.com/RyanBlaney/sonido-embed/pkg/embedding/config"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/similarity"
)

// SetDefaults sets default configuration values for every key that is not
// already set
func SetDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	// Application defaults
	setDefault(v, "verbose", d.Verbose)
	setDefault(v, "log_level", d.LogLevel)
	setDefault(v, "output_format", d.OutputFormat)

	// Embedding defaults
	e := d.Embedding
	setDefault(v, "embedding.sample_rate", e.SampleRate)
	setDefault(v, "embedding.mono", e.Mono)
	setDefault(v, "embedding.mel_n_mels", e.MelBands)
	setDefault(v, "embedding.mel_hop_ms", e.MelHopMs)
	setDefault(v, "embedding.chroma_bins", e.ChromaBins)
	setDefault(v, "embedding.tempo_win", e.TempoWin)
	setDefault(v, "embedding.seg_seconds", e.SegmentSeconds)
	setDefault(v, "embedding.hop_seconds", e.HopSeconds)
	setDefault(v, "embedding.segments_per_song", e.SegmentsPerSong)
	setDefault(v, "embedding.use_hpss", e.UseHPSS)
	setDefault(v, "embedding.onset_method", e.OnsetMethod)

	// Inference defaults
	setDefault(v, "inference.engine", d.Inference.Engine)
	setDefault(v, "inference.model_path", d.Inference.ModelPath)
	setDefault(v, "inference.shared_library_path", d.Inference.SharedLibraryPath)
	setDefault(v, "inference.intra_op_threads", d.Inference.IntraOpThreads)
	setDefault(v, "inference.input_names.mel", d.Inference.InputNames.Mel)
	setDefault(v, "inference.input_names.chroma", d.Inference.InputNames.Chroma)
	setDefault(v, "inference.input_names.tempo", d.Inference.InputNames.Tempo)
	setDefault(v, "inference.output_name", d.Inference.OutputName)

	// Decoder defaults
	setDefault(v, "decoder.backend", d.Decoder.Backend)
	setDefault(v, "decoder.ffmpeg_path", d.Decoder.FFmpegPath)

	// Output defaults
	setDefault(v, "output.precision", d.Output.Precision)
	setDefault(v, "output.include_metadata", d.Output.IncludeMetadata)

	// Batch and comparison defaults
	setDefault(v, "batch.max_concurrency", d.Batch.MaxConcurrency)
	setDefault(v, "similarity.threshold", d.Similarity.Threshold)
}

func setDefault(v *viper.Viper, key string, value any) {
	if !v.IsSet(key) {
		v.SetDefault(key, value)
	}
}

// GetDefaultConfig returns the default application configuration
func GetDefaultConfig() *Config {
	return &Config{
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "json",
		Embedding:    embconfig.DefaultConfig(),
		Inference:    GetDefaultInferenceConfig(),
		Decoder: DecoderConfig{
			Backend:    audio.BackendAuto,
			FFmpegPath: "ffmpeg",
		},
		Output: OutputConfig{
			Precision:       6,
			IncludeMetadata: true,
		},
		Batch: BatchConfig{
			MaxConcurrency: 4,
		},
		Similarity: SimilarityConfig{
			Threshold: similarity.DefaultThreshold,
		},
	}
}

// GetDefaultInferenceConfig returns ONNX Runtime settings for a model with
// mel, chroma and tempo inputs and a single output
func GetDefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		Engine:         EngineONNX,
		ModelPath:      "",
		IntraOpThreads: 1,
		InputNames:     embedding.DefaultInputNames(),
		OutputName:     "",
	}
}
