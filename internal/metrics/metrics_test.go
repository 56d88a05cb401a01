package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
)

func newTestRecorder(t *testing.T) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	r, err := NewRecorder(mp)
	require.NoError(t, err)
	return r, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestStartStageRecordsHistogram(t *testing.T) {
	r, reader := newTestRecorder(t)
	ctx := context.Background()

	stop := r.StartStage(ctx, logging.NewDefaultLogger(), StageExtract)
	stop()
	r.StartStage(ctx, logging.NewDefaultLogger(), StageDecode)()

	m := findMetric(collect(t, reader), "sonido_embed.stage.duration")
	require.NotNil(t, m)

	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 2)

	stages := map[string]uint64{}
	for _, dp := range hist.DataPoints {
		stage, _ := dp.Attributes.Value("stage")
		stages[stage.AsString()] = dp.Count
	}
	assert.Equal(t, map[string]uint64{StageExtract: 1, StageDecode: 1}, stages)
}

func TestRecordFileCountsErrors(t *testing.T) {
	r, reader := newTestRecorder(t)
	ctx := context.Background()

	r.RecordFile(ctx, "embed", nil, "")
	r.RecordFile(ctx, "embed", errors.New("boom"), common.ErrCodeDecode)
	r.RecordSegments(ctx, 3)

	rm := collect(t, reader)

	files := findMetric(rm, "sonido_embed.files")
	require.NotNil(t, files)
	sum, ok := files.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2)

	errs := findMetric(rm, "sonido_embed.errors")
	require.NotNil(t, errs)
	errSum := errs.Data.(metricdata.Sum[int64])
	require.Len(t, errSum.DataPoints, 1)
	code, _ := errSum.DataPoints[0].Attributes.Value("code")
	assert.Equal(t, common.ErrCodeDecode, code.AsString())

	assert.NotNil(t, findMetric(rm, "sonido_embed.segments"))
}

func TestNopRecorder(t *testing.T) {
	r := Nop()
	require.NotNil(t, r)
	r.StartStage(context.Background(), logging.NewDefaultLogger(), StageTotal)()
	r.RecordFile(context.Background(), "embed", errors.New("x"), "")
}

func TestSummarize(t *testing.T) {
	sc := NewSummaryCalculator(logging.NewDefaultLogger())
	summary := sc.Summarize([]FileOutcome{
		{Path: "a", DurationMs: 10, Segments: 3},
		{Path: "b", DurationMs: 20, Segments: 3},
		{Path: "c", DurationMs: 30, Segments: 1},
		{Path: "d", Err: common.NewEmbeddingError(common.ErrCodeDecode, "decode", "bad file", nil)},
		{Path: "e", Err: errors.New("disk full")},
	})

	assert.Equal(t, 5, summary.Files)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.InDelta(t, 0.6, summary.SuccessRate, 1e-12)
	assert.Equal(t, map[string]int{common.ErrCodeDecode: 1, "other": 1}, summary.ErrorDistribution)

	assert.Equal(t, 3, summary.Duration.Count)
	assert.InDelta(t, 20, summary.Duration.Mean, 1e-12)
	assert.InDelta(t, 20, summary.Duration.Median, 1e-12)
	assert.InDelta(t, 29, summary.Duration.P95, 1e-9)
	assert.Equal(t, 10.0, summary.Duration.Min)
	assert.Equal(t, 30.0, summary.Duration.Max)
	assert.InDelta(t, 8.164966, summary.Duration.StdDev, 1e-6)
}

func TestSummarizeEmpty(t *testing.T) {
	summary := NewSummaryCalculator(nil).Summarize(nil)
	assert.Zero(t, summary.Files)
	assert.Zero(t, summary.SuccessRate)
	assert.Zero(t, summary.Duration.Count)
}
