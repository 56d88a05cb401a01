// Package metrics records pipeline stage timings as OpenTelemetry
// instruments and summarises batch runs.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

const meterName = "github.com/RyanBlaney/sonido-embed"

// Stage names
const (
	StageDecode    = "decode"
	StageSegment   = "segment"
	StageExtract   = "extract"
	StageBatch     = "batch"
	StageInference = "inference"
	StagePool      = "pool"
	StageTotal     = "total"
)

// stage latencies range from sub-millisecond pooling to multi-second decodes
var durationBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// Recorder holds the pipeline instruments. Instruments are safe for
// concurrent use.
type Recorder struct {
	StageDuration metric.Float64Histogram
	Segments      metric.Int64Histogram
	Files         metric.Int64Counter
	Errors        metric.Int64Counter
}

// NewRecorder creates instruments on mp
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	m := mp.Meter(meterName)
	var err error
	r := &Recorder{}

	if r.StageDuration, err = m.Float64Histogram("sonido_embed.stage.duration",
		metric.WithDescription("Duration of one embedding pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if r.Segments, err = m.Int64Histogram("sonido_embed.segments",
		metric.WithDescription("Segments extracted per file."),
	); err != nil {
		return nil, err
	}
	if r.Files, err = m.Int64Counter("sonido_embed.files",
		metric.WithDescription("Files processed by operation and status."),
	); err != nil {
		return nil, err
	}
	if r.Errors, err = m.Int64Counter("sonido_embed.errors",
		metric.WithDescription("Pipeline failures by error code."),
	); err != nil {
		return nil, err
	}
	return r, nil
}

// Default returns a recorder on the global meter provider, which is a no-op
// until an SDK provider is installed.
func Default() *Recorder {
	r, err := NewRecorder(otel.GetMeterProvider())
	if err != nil {
		logging.Warn("Failed to create metric instruments, using no-op recorder", logging.Fields{
			"error": err.Error(),
		})
		return Nop()
	}
	return r
}

// Nop returns a recorder whose instruments discard everything
func Nop() *Recorder {
	r, _ := NewRecorder(noop.NewMeterProvider())
	return r
}

// StartStage starts timing stage. The returned func records the elapsed time
// and logs it at debug level; call it once when the stage ends.
func (r *Recorder) StartStage(ctx context.Context, logger logging.Logger, stage string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		r.StageDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
		logger.Debug(stage+" completed", logging.Fields{
			"stage":       stage,
			"duration_ms": float64(elapsed.Microseconds()) / 1000,
		})
	}
}

// RecordFile counts a processed file
func (r *Recorder) RecordFile(ctx context.Context, operation string, err error, code string) {
	status := "ok"
	if err != nil {
		status = "error"
		if code == "" {
			code = "UNKNOWN"
		}
		r.Errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("code", code),
		))
	}
	r.Files.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", status),
	))
}

// RecordSegments records how many segments a file produced
func (r *Recorder) RecordSegments(ctx context.Context, n int) {
	r.Segments.Record(ctx, int64(n))
}
