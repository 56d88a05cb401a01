package extractors

import (
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/analyzers"
)

// SeparateFunc performs harmonic/percussive separation
type SeparateFunc func(signal []float32) (harmonic, percussive []float32, err error)

// HarmonicPercussiveSplitter wraps source separation with an identity
// fallback: a failed separation yields the input as both components.
type HarmonicPercussiveSplitter struct {
	enabled  bool
	separate SeparateFunc
	logger   logging.Logger
}

// NewHarmonicPercussiveSplitter creates a splitter using median-filter HPSS
func NewHarmonicPercussiveSplitter(enabled bool) *HarmonicPercussiveSplitter {
	opts := analyzers.DefaultHPSSOptions()
	return NewHarmonicPercussiveSplitterWith(enabled, func(signal []float32) ([]float32, []float32, error) {
		return analyzers.SeparateHarmonicPercussive(signal, opts)
	})
}

// NewHarmonicPercussiveSplitterWith creates a splitter around a custom separation
func NewHarmonicPercussiveSplitterWith(enabled bool, separate SeparateFunc) *HarmonicPercussiveSplitter {
	return &HarmonicPercussiveSplitter{
		enabled:  enabled,
		separate: separate,
		logger: logging.WithFields(logging.Fields{
			"component": "hpss_splitter",
		}),
	}
}

// Split returns (harmonic, percussive), both the same length as signal.
// When disabled both are signal itself.
func (s *HarmonicPercussiveSplitter) Split(signal []float32) ([]float32, []float32) {
	if !s.enabled || s.separate == nil {
		return signal, signal
	}

	h, p, err := s.separate(signal)
	if err == nil && (len(h) != len(signal) || len(p) != len(signal)) {
		s.logger.Warn("HPSS output length mismatch, using original signal", logging.Fields{
			"input":      len(signal),
			"harmonic":   len(h),
			"percussive": len(p),
		})
		return signal, signal
	}
	if err != nil {
		s.logger.Warn("HPSS failed, using original signal", logging.Fields{
			"error":   err.Error(),
			"samples": len(signal),
		})
		return signal, signal
	}

	return h, p
}
