package extractors

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/analyzers"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/config"
)

const (
	onsetFFTSize = 2048
	onsetPad     = onsetFFTSize / 2
	tempogramLag = 384
)

// TempoExtractor computes a fixed-length tempo histogram: the time average of
// a windowed autocorrelation tempogram over the onset novelty curve.
type TempoExtractor struct {
	cfg      config.Config
	analyzer *analyzers.SpectralAnalyzer
	onset    *analyzers.OnsetDetector
	autocorr *analyzers.AutoCorrelator
	hop      int
	mag      []float64
	phase    []float64
	lags     []float64
	logger   logging.Logger
}

// NewTempoExtractor creates a new tempo extractor using the configured onset method
func NewTempoExtractor(cfg config.Config) (*TempoExtractor, error) {
	method, err := analyzers.ParseOnsetMethod(cfg.OnsetMethod)
	if err != nil {
		return nil, err
	}
	onset, err := analyzers.NewOnsetDetector(method, onsetFFTSize, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create onset detector: %w", err)
	}

	return &TempoExtractor{
		cfg:      cfg,
		analyzer: analyzers.NewSpectralAnalyzer(cfg.SampleRate),
		onset:    onset,
		autocorr: analyzers.NewAutoCorrelator(tempogramLag),
		hop:      cfg.MelHopLength(cfg.SampleRate),
		logger: logging.WithFields(logging.Fields{
			"component":    "tempo_extractor",
			"onset_method": string(method),
			"tempo_win":    cfg.TempoWin,
		}),
	}, nil
}

// OnsetCurve returns one novelty value per centred 2048-sample frame
func (e *TempoExtractor) OnsetCurve(samples []float32) []float64 {
	padded := analyzers.PadCenter(samples, onsetPad)
	frames := analyzers.FrameCount(len(padded), onsetFFTSize, e.hop)
	curve := make([]float64, frames)

	e.onset.Reset()
	for t := range frames {
		start := t * e.hop
		spec := e.analyzer.Spectrum(padded[start : start+onsetFFTSize])
		e.mag = analyzers.MagnitudeSpectrum(spec, e.mag)
		e.phase = analyzers.PhaseSpectrum(spec, e.phase)
		curve[t] = e.onset.Compute(e.mag, e.phase)
	}
	return curve
}

// Histogram averages the autocorrelation of every 384-long window of curve
// (hop 1, no padding). It is all zeros when the curve is shorter than one window.
func (e *TempoExtractor) Histogram(curve []float64) []float64 {
	hist := make([]float64, tempogramLag)
	windows := analyzers.FrameCount(len(curve), tempogramLag, 1)
	if windows == 0 {
		return hist
	}

	for t := range windows {
		e.lags = e.autocorr.Compute(curve[t:t+tempogramLag], e.lags)
		floats.Add(hist, e.lags)
	}
	floats.Scale(1/float64(windows), hist)
	return hist
}

// Extract returns a 1 x TempoWin matrix: the first TempoWin histogram lags,
// zero-padded when the histogram is shorter.
func (e *TempoExtractor) Extract(samples []float32) *Matrix {
	out := NewMatrix(1, e.cfg.TempoWin)

	curve := e.OnsetCurve(samples)
	hist := e.Histogram(curve)
	if len(hist) == 0 {
		return out
	}

	n := min(len(hist), e.cfg.TempoWin)
	for l := range n {
		out.Data[l] = float32(hist[l])
	}

	e.logger.Debug("Tempo features extracted", logging.Fields{
		"function":     "Extract",
		"samples":      len(samples),
		"onset_frames": len(curve),
		"windows":      max(0, len(curve)-tempogramLag+1),
	})

	return out
}
