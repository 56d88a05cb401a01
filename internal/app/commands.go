package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/internal/metrics"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/similarity"
)

// EmbeddingResult is one row of embed or batch output
type EmbeddingResult struct {
	Path       string    `json:"path" yaml:"path"`
	Dimension  int       `json:"dimension,omitempty" yaml:"dimension,omitempty"`
	Segments   int       `json:"segments,omitempty" yaml:"segments,omitempty"`
	DurationMs float64   `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`
	Embedding  []float64 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
	Code       string    `json:"code,omitempty" yaml:"code,omitempty"`
}

// EmbedReport is the output of the embed command
type EmbedReport struct {
	Results []EmbeddingResult `json:"results" yaml:"results"`
}

// FeatureReport is the output of the features command
type FeatureReport struct {
	Path       string    `json:"path" yaml:"path"`
	Feature    string    `json:"feature" yaml:"feature"`
	Segments   int       `json:"segments" yaml:"segments"`
	PerSegment int       `json:"per_segment" yaml:"per_segment"`
	Shape      []int     `json:"shape" yaml:"shape"`
	Data       []float64 `json:"data" yaml:"data"`
}

// CompareReport is the output of the compare command
type CompareReport struct {
	Left             string  `json:"left" yaml:"left"`
	Right            string  `json:"right" yaml:"right"`
	Feature          string  `json:"feature" yaml:"feature"`
	CosineSimilarity float64 `json:"cosine_similarity" yaml:"cosine_similarity"`
	Threshold        float64 `json:"threshold" yaml:"threshold"`
	AboveThreshold   bool    `json:"above_threshold" yaml:"above_threshold"`
	Dimension        int     `json:"dimension" yaml:"dimension"`
}

// BatchReport is the output of the batch command
type BatchReport struct {
	Results []EmbeddingResult     `json:"results" yaml:"results"`
	Summary *metrics.BatchSummary `json:"summary" yaml:"summary"`
}

// Embed computes embeddings for paths in order and stops at the first failure
func (app *App) Embed(ctx context.Context, paths []string) error {
	report, err := app.embedAll(ctx, paths)
	if err != nil {
		return err
	}
	return app.outputResults(report)
}

func (app *App) embedAll(ctx context.Context, paths []string) (*EmbedReport, error) {
	report := &EmbedReport{}

	err := app.WithSession(func(h *inference.SessionHandle) error {
		pipeline, err := app.NewPipeline(h)
		if err != nil {
			return err
		}

		for _, path := range paths {
			e, err := pipeline.Embed(ctx, path)
			if err != nil {
				return err
			}
			report.Results = append(report.Results, app.toResult(e))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}

// Features extracts one raw feature type from path
func (app *App) Features(ctx context.Context, path, featureType string) error {
	pipeline, err := app.NewPipeline(nil)
	if err != nil {
		return err
	}

	raw, err := pipeline.ExtractRawFeatureReport(ctx, path, featureType)
	if err != nil {
		return err
	}

	return app.outputResults(&FeatureReport{
		Path:       raw.Path,
		Feature:    raw.Kind,
		Segments:   raw.Segments,
		PerSegment: raw.PerSegment,
		Shape:      raw.Shape,
		Data:       app.roundVector(raw.Data),
	})
}

// Compare reports the cosine similarity of two files. An empty featureType
// compares embeddings; otherwise the flattened raw features are compared.
func (app *App) Compare(ctx context.Context, left, right, featureType string) error {
	report, err := app.compare(ctx, left, right, featureType)
	if err != nil {
		return err
	}
	return app.outputResults(report)
}

func (app *App) compare(ctx context.Context, left, right, featureType string) (*CompareReport, error) {
	var a, b []float32
	label := "embedding"

	if featureType == "" {
		err := app.WithSession(func(h *inference.SessionHandle) error {
			pipeline, err := app.NewPipeline(h)
			if err != nil {
				return err
			}
			if a, err = pipeline.ComputeEmbedding(ctx, left); err != nil {
				return err
			}
			b, err = pipeline.ComputeEmbedding(ctx, right)
			return err
		})
		if err != nil {
			return nil, err
		}
	} else {
		pipeline, err := app.NewPipeline(nil)
		if err != nil {
			return nil, err
		}
		rawA, err := pipeline.ExtractRawFeatureReport(ctx, left, featureType)
		if err != nil {
			return nil, err
		}
		rawB, err := pipeline.ExtractRawFeatureReport(ctx, right, featureType)
		if err != nil {
			return nil, err
		}
		a, b, label = rawA.Data, rawB.Data, rawA.Kind
	}

	result, err := similarity.Compare(a, b, app.config.Similarity.Threshold)
	if err != nil {
		return nil, err
	}

	app.logger.Info("Comparison complete", logging.Fields{
		"feature":           label,
		"cosine_similarity": result.CosineSimilarity,
		"above_threshold":   result.AboveThreshold,
	})

	return &CompareReport{
		Left:             left,
		Right:            right,
		Feature:          label,
		CosineSimilarity: finite(result.CosineSimilarity),
		Threshold:        result.Threshold,
		AboveThreshold:   result.AboveThreshold,
		Dimension:        result.Dimension,
	}, nil
}

// Batch embeds paths concurrently, reporting failures per file instead of
// aborting the run
func (app *App) Batch(ctx context.Context, paths []string) error {
	report, err := app.batch(ctx, paths)
	if err != nil {
		return err
	}
	return app.outputResults(report)
}

func (app *App) batch(ctx context.Context, paths []string) (*BatchReport, error) {
	logger := app.logger.WithFields(logging.Fields{
		"function": "Batch",
		"files":    len(paths),
	})

	results := make([]EmbeddingResult, len(paths))
	outcomes := make([]metrics.FileOutcome, len(paths))

	err := app.WithSession(func(h *inference.SessionHandle) error {
		workers := max(1, min(app.config.Batch.MaxConcurrency, len(paths)))

		// pipelines hold scratch buffers, so each worker borrows its own
		pool := make(chan *embedding.Pipeline, workers)
		for range workers {
			p, err := app.NewPipeline(h)
			if err != nil {
				return err
			}
			pool <- p
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		for i, path := range paths {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				p := <-pool
				defer func() { pool <- p }()

				e, err := p.Embed(gctx, path)
				if err != nil {
					outcomes[i] = metrics.FileOutcome{Path: path, Err: err}
					results[i] = EmbeddingResult{
						Path:  path,
						Error: err.Error(),
						Code:  common.CodeOf(err),
					}
					return nil
				}

				outcomes[i] = metrics.FileOutcome{
					Path:       path,
					DurationMs: e.DurationMs,
					Segments:   e.Segments,
				}
				results[i] = app.toResult(e)
				return nil
			})
		}

		return g.Wait()
	})
	if err != nil {
		return nil, fmt.Errorf("batch failed: %w", err)
	}

	summary := metrics.NewSummaryCalculator(logger).Summarize(outcomes)
	logger.Info("Batch complete", logging.Fields{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	})

	return &BatchReport{Results: results, Summary: summary}, nil
}

func (app *App) toResult(e *embedding.Embedding) EmbeddingResult {
	result := EmbeddingResult{
		Path:      e.Path,
		Embedding: app.roundVector(e.Vector),
	}
	if app.config.Output.IncludeMetadata {
		result.Dimension = e.Dimension
		result.Segments = e.Segments
		result.DurationMs = finite(e.DurationMs)
	}
	return result
}
