package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := LoadConfigFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, GetDefaultConfig(), cfg)
	assert.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, 128, cfg.Embedding.MelBands)
	assert.Equal(t, "mel", cfg.Inference.InputNames.Mel)
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonido-embed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
output_format: yaml
embedding:
  mel_n_mels: 96
  use_hpss: true
  onset_method: hfc
inference:
  engine: linear
  model_path: /models/test.yaml
  input_names:
    mel: input_mel
decoder:
  backend: wav
batch:
  max_concurrency: 2
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadConfigFrom(v)
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 96, cfg.Embedding.MelBands)
	assert.True(t, cfg.Embedding.UseHPSS)
	assert.Equal(t, "hfc", cfg.Embedding.OnsetMethod)
	assert.Equal(t, 44100, cfg.Embedding.SampleRate)
	assert.Equal(t, EngineLinear, cfg.Inference.Engine)
	assert.Equal(t, "input_mel", cfg.Inference.InputNames.Mel)
	assert.Equal(t, "chroma", cfg.Inference.InputNames.Chroma)
	assert.Equal(t, 2, cfg.Batch.MaxConcurrency)
}

func TestValidateConfigRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"log level":     func(c *Config) { c.LogLevel = "loud" },
		"output format": func(c *Config) { c.OutputFormat = "xml" },
		"embedding":     func(c *Config) { c.Embedding.TempoWin = 0 },
		"engine":        func(c *Config) { c.Inference.Engine = "tflite" },
		"input names":   func(c *Config) { c.Inference.InputNames.Tempo = c.Inference.InputNames.Mel },
		"decoder":       func(c *Config) { c.Decoder.Backend = "flac" },
		"concurrency":   func(c *Config) { c.Batch.MaxConcurrency = 0 },
		"threshold":     func(c *Config) { c.Similarity.Threshold = 1.5 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			mutate(cfg)
			assert.Error(t, ValidateConfig(cfg))
		})
	}
}
