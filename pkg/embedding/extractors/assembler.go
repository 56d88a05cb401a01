package extractors

import (
	"fmt"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/config"
)

// FeatureAssembler runs every extractor over one segment. Mel is computed on
// the raw segment, chroma on its harmonic part and tempo on its percussive part.
// Extractors keep scratch buffers, so an assembler serves one goroutine.
type FeatureAssembler struct {
	cfg      config.Config
	splitter *HarmonicPercussiveSplitter
	mel      *LogMelExtractor
	chroma   *ChromaExtractor
	tempo    *TempoExtractor
	logger   logging.Logger
}

// NewFeatureAssembler creates a new feature assembler
func NewFeatureAssembler(cfg config.Config) (*FeatureAssembler, error) {
	tempo, err := NewTempoExtractor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tempo extractor: %w", err)
	}

	return &FeatureAssembler{
		cfg:      cfg,
		splitter: NewHarmonicPercussiveSplitter(cfg.UseHPSS),
		mel:      NewLogMelExtractor(cfg),
		chroma:   NewChromaExtractor(cfg),
		tempo:    tempo,
		logger: logging.WithFields(logging.Fields{
			"component": "feature_assembler",
			"use_hpss":  cfg.UseHPSS,
		}),
	}, nil
}

// WithSplitter replaces the harmonic/percussive splitter
func (a *FeatureAssembler) WithSplitter(s *HarmonicPercussiveSplitter) *FeatureAssembler {
	a.splitter = s
	return a
}

// Extract computes all features of segment. Empty results are left out of the
// returned bundle with a warning; extraction itself never fails.
func (a *FeatureAssembler) Extract(segment []float32) *SegmentFeatures {
	logger := a.logger.WithFields(logging.Fields{
		"function": "Extract",
		"samples":  len(segment),
	})

	harmonic, percussive := a.splitter.Split(segment)

	features := &SegmentFeatures{}
	a.store(features, KindMel, a.mel.Extract(segment), logger)
	a.store(features, KindChroma, a.chroma.Extract(harmonic), logger)
	a.store(features, KindTempo, a.tempo.Extract(percussive), logger)

	return features
}

// ExtractKind computes a single feature kind, applying the same source
// routing as Extract.
func (a *FeatureAssembler) ExtractKind(segment []float32, kind Kind) *Matrix {
	switch kind {
	case KindMel:
		return a.mel.Extract(segment)
	case KindChroma:
		harmonic, _ := a.splitter.Split(segment)
		return a.chroma.Extract(harmonic)
	case KindTempo:
		_, percussive := a.splitter.Split(segment)
		return a.tempo.Extract(percussive)
	default:
		return nil
	}
}

func (a *FeatureAssembler) store(features *SegmentFeatures, kind Kind, m *Matrix, logger logging.Logger) {
	if m.Empty() {
		logger.Warn("Feature is empty, omitting", logging.Fields{
			"feature": kind.String(),
		})
		return
	}
	features.Set(kind, m)
}
