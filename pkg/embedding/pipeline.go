// Package embedding composes decoding, segmentation, feature extraction,
// inference and pooling into a single embedding call.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/internal/metrics"
	"github.com/RyanBlaney/sonido-embed/pkg/audio"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/config"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/extractors"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/postprocess"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/segment"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/tensor"
)

// InputNames maps the three feature tensors to model input names
type InputNames struct {
	Mel    string `mapstructure:"mel" yaml:"mel" json:"mel"`
	Chroma string `mapstructure:"chroma" yaml:"chroma" json:"chroma"`
	Tempo  string `mapstructure:"tempo" yaml:"tempo" json:"tempo"`
}

// DefaultInputNames returns the input names of the reference model
func DefaultInputNames() InputNames {
	return InputNames{Mel: "mel", Chroma: "chroma", Tempo: "tempo"}
}

// Name returns the model input name of kind
func (n InputNames) Name(k extractors.Kind) string {
	switch k {
	case extractors.KindMel:
		return n.Mel
	case extractors.KindChroma:
		return n.Chroma
	case extractors.KindTempo:
		return n.Tempo
	default:
		return ""
	}
}

// Options wire the optional collaborators of a Pipeline
type Options struct {
	// Session runs the model; it may be nil for feature extraction only
	Session    *inference.SessionHandle
	InputNames InputNames
	// OutputName selects the model output; empty means the only output
	OutputName string
	Recorder   *metrics.Recorder
}

// Pipeline computes embeddings for audio files. It owns reusable scratch
// buffers, so one Pipeline must only be used by one goroutine at a time;
// run one Pipeline per worker for concurrency.
type Pipeline struct {
	cfg       config.Config
	decoder   audio.Decoder
	segmenter *segment.Segmenter
	assembler *extractors.FeatureAssembler
	batcher   *tensor.Batcher
	session   *inference.SessionHandle
	inputs    InputNames
	output    string
	recorder  *metrics.Recorder
	logger    logging.Logger
}

// Embedding is an embedding with details about how it was computed
type Embedding struct {
	Path       string    `json:"path" yaml:"path"`
	Vector     []float32 `json:"embedding" yaml:"embedding"`
	Dimension  int       `json:"dimension" yaml:"dimension"`
	Segments   int       `json:"segments" yaml:"segments"`
	DurationMs float64   `json:"duration_ms" yaml:"duration_ms"`
}

// RawFeature is one feature kind flattened across all segments
type RawFeature struct {
	Path       string    `json:"path" yaml:"path"`
	Kind       string    `json:"feature" yaml:"feature"`
	Data       []float32 `json:"data" yaml:"data"`
	Segments   int       `json:"segments" yaml:"segments"`
	PerSegment int       `json:"per_segment" yaml:"per_segment"`
	Shape      []int     `json:"shape" yaml:"shape"`
}

// NewPipeline creates a new pipeline for cfg
func NewPipeline(cfg config.Config, decoder audio.Decoder, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if decoder == nil {
		return nil, common.NewEmbeddingError(common.ErrCodeInvalidArgument, "new pipeline", "decoder is required", nil)
	}

	assembler, err := extractors.NewFeatureAssembler(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create feature assembler: %w", err)
	}

	if opts.InputNames == (InputNames{}) {
		opts.InputNames = DefaultInputNames()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop()
	}

	return &Pipeline{
		cfg:       cfg,
		decoder:   decoder,
		segmenter: segment.NewSegmenter(cfg),
		assembler: assembler,
		batcher:   tensor.NewBatcher(),
		session:   opts.Session,
		inputs:    opts.InputNames,
		output:    opts.OutputName,
		recorder:  opts.Recorder,
		logger: logging.WithFields(logging.Fields{
			"component": "embedding_pipeline",
		}),
	}, nil
}

// Config returns the pipeline parameters
func (p *Pipeline) Config() config.Config {
	return p.cfg
}

// ExtractSegments decodes path, segments it and extracts every feature of
// every segment.
func (p *Pipeline) ExtractSegments(ctx context.Context, path string) ([]*extractors.SegmentFeatures, error) {
	logger := p.logger.WithFields(logging.Fields{
		"function": "ExtractSegments",
		"path":     path,
	})

	stop := p.recorder.StartStage(ctx, logger, metrics.StageDecode)
	waveform, err := p.decoder.Decode(path, p.cfg.SampleRate, p.cfg.Mono)
	stop()
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	// segmentation works on one channel
	waveform = waveform.Mono()

	stop = p.recorder.StartStage(ctx, logger, metrics.StageSegment)
	segments := p.segmenter.Segment(waveform)
	stop()
	if len(segments) == 0 {
		return nil, common.NewEmbeddingError(common.ErrCodeEmptyInput, "segment",
			fmt.Sprintf("no segments produced from %d samples", len(waveform.Samples)), nil)
	}
	p.recorder.RecordSegments(ctx, len(segments))

	stop = p.recorder.StartStage(ctx, logger, metrics.StageExtract)
	features := make([]*extractors.SegmentFeatures, len(segments))
	for i, seg := range segments {
		features[i] = p.assembler.Extract(seg.Samples)
	}
	stop()

	logger.Debug("Segment features extracted", logging.Fields{
		"segments":    len(segments),
		"duration_s":  waveform.Duration(),
		"sample_rate": waveform.SampleRate,
	})

	return features, nil
}

// ComputeEmbedding returns the unit-norm embedding of the audio file at path.
// Any failure is returned as one *common.EmbeddingError and no vector.
func (p *Pipeline) ComputeEmbedding(ctx context.Context, path string) ([]float32, error) {
	e, err := p.Embed(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.Vector, nil
}

// Embed is ComputeEmbedding with timing and segment details
func (p *Pipeline) Embed(ctx context.Context, path string) (*Embedding, error) {
	logger := p.logger.WithFields(logging.Fields{
		"function": "Embed",
		"path":     path,
	})
	start := time.Now()
	stopTotal := p.recorder.StartStage(ctx, logger, metrics.StageTotal)

	vector, segments, err := p.embed(ctx, path, logger)
	stopTotal()
	if err != nil {
		wrapped := common.Wrap("compute embedding", err)
		p.recorder.RecordFile(ctx, "embed", wrapped, wrapped.Code)
		logger.Error(wrapped, "Embedding failed", logging.Fields{
			"code": wrapped.Code,
		})
		return nil, wrapped
	}

	p.recorder.RecordFile(ctx, "embed", nil, "")
	elapsed := time.Since(start)
	logger.Info("Embedding computed", logging.Fields{
		"segments":    segments,
		"dimension":   len(vector),
		"duration_ms": float64(elapsed.Microseconds()) / 1000,
	})

	return &Embedding{
		Path:       path,
		Vector:     vector,
		Dimension:  len(vector),
		Segments:   segments,
		DurationMs: float64(elapsed.Microseconds()) / 1000,
	}, nil
}

func (p *Pipeline) embed(ctx context.Context, path string, logger logging.Logger) ([]float32, int, error) {
	if p.session == nil || !p.session.Initialized() {
		return nil, 0, common.NewEmbeddingError(common.ErrCodeShape, "run", "session not initialized", nil)
	}

	features, err := p.ExtractSegments(ctx, path)
	if err != nil {
		return nil, 0, err
	}

	stop := p.recorder.StartStage(ctx, logger, metrics.StageBatch)
	batch, _, err := p.batcher.Build(features)
	stop()
	if err != nil {
		return nil, 0, fmt.Errorf("build input tensors: %w", err)
	}

	inputs := make(map[string]*tensor.Tensor, len(extractors.Kinds))
	for _, kind := range extractors.Kinds {
		inputs[p.inputs.Name(kind)] = batch.Get(kind)
	}

	stop = p.recorder.StartStage(ctx, logger, metrics.StageInference)
	outputs, err := p.session.Run(inputs)
	stop()
	if err != nil {
		return nil, 0, fmt.Errorf("inference: %w", err)
	}

	rows, err := inference.SelectOutput(outputs, p.output)
	if err != nil {
		return nil, 0, err
	}

	stop = p.recorder.StartStage(ctx, logger, metrics.StagePool)
	vector, err := postprocess.Finalize(rows)
	stop()
	if err != nil {
		return nil, 0, fmt.Errorf("pool embeddings: %w", err)
	}

	return vector, len(features), nil
}

// ExtractRawFeature returns one feature type ("mel", "chroma", "tempo" or
// their aliases) flattened over all segments in [V, ...] order, without
// running the model.
func (p *Pipeline) ExtractRawFeature(ctx context.Context, path, featureType string) ([]float32, error) {
	raw, err := p.ExtractRawFeatureReport(ctx, path, featureType)
	if err != nil {
		return nil, err
	}
	return raw.Data, nil
}

// ExtractRawFeatureReport is ExtractRawFeature with the shape of the result
func (p *Pipeline) ExtractRawFeatureReport(ctx context.Context, path, featureType string) (*RawFeature, error) {
	logger := p.logger.WithFields(logging.Fields{
		"function": "ExtractRawFeatureReport",
		"path":     path,
		"feature":  featureType,
	})

	raw, err := p.extractRaw(ctx, path, featureType)
	if err != nil {
		wrapped := common.Wrap("extract raw feature", err)
		p.recorder.RecordFile(ctx, "features", wrapped, wrapped.Code)
		logger.Error(wrapped, "Feature extraction failed", logging.Fields{
			"code": wrapped.Code,
		})
		return nil, wrapped
	}
	p.recorder.RecordFile(ctx, "features", nil, "")
	return raw, nil
}

func (p *Pipeline) extractRaw(ctx context.Context, path, featureType string) (*RawFeature, error) {
	kind, err := extractors.ParseKind(featureType)
	if err != nil {
		return nil, err
	}

	features, err := p.ExtractSegments(ctx, path)
	if err != nil {
		return nil, err
	}

	data, dims, err := tensor.Flatten(features, kind)
	if err != nil {
		return nil, fmt.Errorf("flatten %s: %w", kind, err)
	}

	return &RawFeature{
		Path:       path,
		Kind:       kind.String(),
		Data:       data,
		Segments:   len(features),
		PerSegment: dims.PerSegment(kind),
		Shape:      dims.Shape(kind),
	}, nil
}
