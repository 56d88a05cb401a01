package extractors

import (
	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/analyzers"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/config"
)

const (
	melFFTSize = 2048
	melPad     = melFFTSize / 2
)

// LogMelExtractor computes [mel bands x frames] log-power spectrograms
type LogMelExtractor struct {
	cfg      config.Config
	analyzer *analyzers.SpectralAnalyzer
	bank     [][]float64
	hop      int
	power    []float64
	bands    []float64
	logger   logging.Logger
}

// NewLogMelExtractor creates a new log-mel extractor. The filter bank is
// built once for the configured sample rate.
func NewLogMelExtractor(cfg config.Config) *LogMelExtractor {
	return &LogMelExtractor{
		cfg:      cfg,
		analyzer: analyzers.NewSpectralAnalyzer(cfg.SampleRate),
		bank:     analyzers.MelFilterBank(cfg.MelBands, melFFTSize, cfg.SampleRate, 0, float64(cfg.SampleRate)/2),
		hop:      cfg.MelHopLength(cfg.SampleRate),
		logger: logging.WithFields(logging.Fields{
			"component": "logmel_extractor",
			"n_mels":    cfg.MelBands,
		}),
	}
}

// FrameCount returns the number of mel frames produced for n input samples
func (e *LogMelExtractor) FrameCount(n int) int {
	return analyzers.FrameCount(n+2*melPad, melFFTSize, e.hop)
}

// Extract returns a MelBands x T matrix of 10*log10(max(0, v) + 1e-10) values
func (e *LogMelExtractor) Extract(samples []float32) *Matrix {
	padded := analyzers.PadCenter(samples, melPad)
	frames := analyzers.FrameCount(len(padded), melFFTSize, e.hop)
	out := NewMatrix(len(e.bank), frames)

	for t := range frames {
		start := t * e.hop
		spec := e.analyzer.Spectrum(padded[start : start+melFFTSize])
		e.power = analyzers.PowerSpectrum(spec, e.power)
		e.bands = analyzers.ApplyFilterBank(e.power, e.bank, e.bands)
		for m, v := range e.bands {
			out.Set(m, t, float32(analyzers.PowerToDB(v)))
		}
	}

	e.logger.Debug("LogMel features extracted", logging.Fields{
		"function": "Extract",
		"samples":  len(samples),
		"frames":   frames,
		"hop":      e.hop,
	})

	return out
}
