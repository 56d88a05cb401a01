package app

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/configs"
	"github.com/RyanBlaney/sonido-embed/internal/metrics"
	"github.com/RyanBlaney/sonido-embed/pkg/audio"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference/linear"
)

type fixture struct {
	dir   string
	sine  string
	chirp string
	app   *App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := configs.GetDefaultConfig()
	cfg.Embedding.SampleRate = 16000
	cfg.Embedding.MelBands = 32
	cfg.Embedding.MelHopMs = 40
	cfg.Embedding.SegmentSeconds = 4
	cfg.Embedding.HopSeconds = 2
	cfg.Embedding.SegmentsPerSong = 3
	cfg.Inference.Engine = configs.EngineLinear
	cfg.Inference.ModelPath = filepath.Join(dir, "model.yaml")
	cfg.Decoder.Backend = audio.BackendWAV
	cfg.Batch.MaxConcurrency = 2
	require.NoError(t, configs.ValidateConfig(cfg))

	require.NoError(t, linear.WriteModelFile(cfg.Inference.ModelPath, &linear.Model{
		Name:   "summary-identity",
		Inputs: []string{"mel", "chroma", "tempo"},
		Output: "embedding",
	}))

	f := &fixture{
		dir:   dir,
		sine:  filepath.Join(dir, "a440.wav"),
		chirp: filepath.Join(dir, "a880.wav"),
	}
	require.NoError(t, audio.WriteWAV(f.sine, audio.Sine(440, 0.5, 16000, 10)))
	require.NoError(t, audio.WriteWAV(f.chirp, audio.Sine(880, 0.3, 16000, 9)))

	f.app = &App{
		ctx: &Context{
			OutputFormat: "json",
			OutputFile:   filepath.Join(dir, "out", "result.json"),
		},
		config:   cfg,
		recorder: metrics.Nop(),
		logger:   logging.NewDefaultLogger(),
	}
	return f
}

func TestEmbedWritesResults(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.app.Embed(context.Background(), []string{f.sine, f.chirp}))

	data, err := os.ReadFile(f.app.ctx.OutputFile)
	require.NoError(t, err)

	var report EmbedReport
	require.NoError(t, json.Unmarshal(data, &report))
	require.Len(t, report.Results, 2)
	assert.Equal(t, f.sine, report.Results[0].Path)
	assert.Equal(t, 12, report.Results[0].Dimension)
	assert.Equal(t, 3, report.Results[0].Segments)
	assert.Len(t, report.Results[1].Embedding, 12)
}

func TestEmbedWithoutMetadata(t *testing.T) {
	f := newFixture(t)
	f.app.config.Output.IncludeMetadata = false

	report, err := f.app.embedAll(context.Background(), []string{f.sine})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Zero(t, report.Results[0].Dimension)
	assert.Len(t, report.Results[0].Embedding, 12)
}

func TestEmbedRequiresModel(t *testing.T) {
	f := newFixture(t)
	f.app.config.Inference.ModelPath = ""

	assert.Error(t, f.app.Embed(context.Background(), []string{f.sine}))
}

func TestCompareSameFile(t *testing.T) {
	f := newFixture(t)

	report, err := f.app.compare(context.Background(), f.sine, f.sine, "")
	require.NoError(t, err)
	assert.Equal(t, "embedding", report.Feature)
	assert.InDelta(t, 1.0, report.CosineSimilarity, 1e-6)
	assert.True(t, report.AboveThreshold)
	assert.Equal(t, 12, report.Dimension)
}

func TestCompareRawFeatures(t *testing.T) {
	f := newFixture(t)

	report, err := f.app.compare(context.Background(), f.sine, f.sine, "tempo")
	require.NoError(t, err)
	assert.Equal(t, "tempo", report.Feature)
	assert.Equal(t, 3*f.app.config.Embedding.TempoWin, report.Dimension)

	_, err = f.app.compare(context.Background(), f.sine, f.sine, "mfcc")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestBatchReportsFailuresPerFile(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(f.dir, "missing.wav")

	report, err := f.app.batch(context.Background(), []string{f.sine, missing, f.chirp})
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, f.sine, report.Results[0].Path)
	assert.Len(t, report.Results[0].Embedding, 12)
	assert.Equal(t, common.ErrCodeDecode, report.Results[1].Code)
	assert.Empty(t, report.Results[1].Embedding)
	assert.Len(t, report.Results[2].Embedding, 12)

	assert.Equal(t, 3, report.Summary.Files)
	assert.Equal(t, 2, report.Summary.Succeeded)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, 1, report.Summary.ErrorDistribution[common.ErrCodeDecode])
	assert.Equal(t, 2, report.Summary.Duration.Count)
}

func TestBatchMatchesSequentialEmbeddings(t *testing.T) {
	f := newFixture(t)
	paths := []string{f.sine, f.chirp, f.sine, f.chirp}

	batch, err := f.app.batch(context.Background(), paths)
	require.NoError(t, err)
	sequential, err := f.app.embedAll(context.Background(), paths)
	require.NoError(t, err)

	for i := range paths {
		assert.Equal(t, sequential.Results[i].Embedding, batch.Results[i].Embedding, paths[i])
	}
}

func TestFeaturesOutput(t *testing.T) {
	f := newFixture(t)
	f.app.ctx.OutputFormat = "yaml"
	f.app.ctx.OutputFile = filepath.Join(f.dir, "features.yaml")

	require.NoError(t, f.app.Features(context.Background(), f.sine, "chroma"))

	data, err := os.ReadFile(f.app.ctx.OutputFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "feature: chroma")
	assert.Contains(t, string(data), "per_segment: 1212")
}

func TestRoundVector(t *testing.T) {
	f := newFixture(t)
	f.app.config.Output.Precision = 2

	assert.Equal(t, []float64{0.12, -0.99, 1}, f.app.roundVector([]float32{0.123, -0.987, 1}))
}

func TestRoundVectorDropsNonFinite(t *testing.T) {
	f := newFixture(t)
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	assert.Equal(t, []float64{0, 0, 0.5}, f.app.roundVector([]float32{nan, inf, 0.5}))
}

func TestCompareOutputFormats(t *testing.T) {
	for _, format := range []string{"json", "yaml", "csv", "table"} {
		t.Run(format, func(t *testing.T) {
			f := newFixture(t)
			f.app.ctx.OutputFormat = format
			f.app.ctx.OutputFile = filepath.Join(f.dir, "compare."+format)

			require.NoError(t, f.app.Compare(context.Background(), f.sine, f.chirp, ""))

			data, err := os.ReadFile(f.app.ctx.OutputFile)
			require.NoError(t, err)
			assert.NotEmpty(t, data)
		})
	}
}

func TestGenerateAndLoadExampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sonido-embed.yaml")
	require.NoError(t, GenerateExampleConfig(path))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "models/embedding.onnx", cfg.Inference.ModelPath)
	assert.Equal(t, configs.GetDefaultConfig().Embedding, cfg.Embedding)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
