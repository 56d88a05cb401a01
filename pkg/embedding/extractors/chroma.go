package extractors

import (
	"math"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/analyzers"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/config"
)

const (
	chromaFrameSize = 8192
	chromaHopSize   = 512
	chromaMinFreq   = 32.7 // C1
	chromaRefFreq   = 440.0
	chromaWidth     = 1.0
	chromaMinWeight = 0.01
	chromaMaxFloor  = 1e-9
)

// chromaFilter is the sparse row of one pitch class: bin indices and weights
type chromaFilter struct {
	bins    []int
	weights []float64
}

// ChromaExtractor computes [chroma bins x frames] pitch-class energy with a
// Gaussian semitone filter bank and per-frame max normalization.
type ChromaExtractor struct {
	cfg      config.Config
	analyzer *analyzers.SpectralAnalyzer
	filters  []chromaFilter
	mag      []float64
	energy   []float64
	logger   logging.Logger
}

// NewChromaExtractor creates a new chroma extractor
func NewChromaExtractor(cfg config.Config) *ChromaExtractor {
	e := &ChromaExtractor{
		cfg:      cfg,
		analyzer: analyzers.NewSpectralAnalyzer(cfg.SampleRate),
		logger: logging.WithFields(logging.Fields{
			"component":   "chroma_extractor",
			"chroma_bins": cfg.ChromaBins,
		}),
	}
	e.filters = e.buildFilterBank()
	return e
}

// FilterWeight returns the bank weight linking spectrum bin to pitch class,
// zero when below threshold.
func (e *ChromaExtractor) FilterWeight(class, bin int) float64 {
	f := e.filters[class]
	for i, b := range f.bins {
		if b == bin {
			return f.weights[i]
		}
	}
	return 0
}

func (e *ChromaExtractor) buildFilterBank() []chromaFilter {
	filters := make([]chromaFilter, e.cfg.ChromaBins)
	spectrumSize := chromaFrameSize/2 + 1

	for bin := range spectrumSize {
		freq := e.analyzer.BinFrequency(bin, chromaFrameSize)
		if freq < chromaMinFreq {
			continue
		}
		midi := 69 + 12*math.Log2(freq/chromaRefFreq)

		for k := range filters {
			dist := math.Mod(midi-float64(k), 12)
			if dist < -6 {
				dist += 12
			}
			if dist > 6 {
				dist -= 12
			}
			weight := math.Exp(-0.5 * math.Pow(dist/chromaWidth, 2))
			if weight > chromaMinWeight {
				filters[k].bins = append(filters[k].bins, bin)
				filters[k].weights = append(filters[k].weights, weight)
			}
		}
	}

	return filters
}

// FrameCount returns the number of chroma frames produced for n input samples
func (e *ChromaExtractor) FrameCount(n int) int {
	return analyzers.FrameCount(n, chromaFrameSize, chromaHopSize)
}

// Extract returns a ChromaBins x T matrix. Segments shorter than one 8192
// sample frame produce an empty matrix.
func (e *ChromaExtractor) Extract(samples []float32) *Matrix {
	frames := e.FrameCount(len(samples))
	out := NewMatrix(len(e.filters), frames)
	if frames == 0 {
		e.logger.Debug("Segment shorter than one chroma frame", logging.Fields{
			"function": "Extract",
			"samples":  len(samples),
		})
		return out
	}

	signal := analyzers.ToFloat64(samples)
	e.energy = make([]float64, len(e.filters))

	for t := range frames {
		start := t * chromaHopSize
		spec := e.analyzer.Spectrum(signal[start : start+chromaFrameSize])
		e.mag = analyzers.MagnitudeSpectrum(spec, e.mag)

		maxVal := 0.0
		for k, f := range e.filters {
			energy := 0.0
			for i, bin := range f.bins {
				energy += f.weights[i] * e.mag[bin]
			}
			e.energy[k] = energy
			maxVal = math.Max(maxVal, energy)
		}
		if maxVal < chromaMaxFloor {
			maxVal = 1
		}
		for k, v := range e.energy {
			out.Set(k, t, float32(v/maxVal))
		}
	}

	e.logger.Debug("Chroma features extracted", logging.Fields{
		"function": "Extract",
		"samples":  len(samples),
		"frames":   frames,
	})

	return out
}
