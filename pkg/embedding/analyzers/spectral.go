package analyzers

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

// SpectralAnalyzer provides the framing, windowing and FFT primitives shared by
// the feature extractors. Windows and scratch buffers are cached per instance,
// so an analyzer must not be shared between goroutines.
type SpectralAnalyzer struct {
	sampleRate int
	windows    map[int][]float64
	scratch    []float64
	logger     logging.Logger
}

// NewSpectralAnalyzer creates a new spectral analyzer
func NewSpectralAnalyzer(sampleRate int) *SpectralAnalyzer {
	return &SpectralAnalyzer{
		sampleRate: sampleRate,
		windows:    make(map[int][]float64),
		logger: logging.WithFields(logging.Fields{
			"component":   "spectral_analyzer",
			"sample_rate": sampleRate,
		}),
	}
}

func (sa *SpectralAnalyzer) SampleRate() int {
	return sa.sampleRate
}

// BinFrequency returns the centre frequency in Hz of FFT bin k for an fftSize transform
func (sa *SpectralAnalyzer) BinFrequency(k, fftSize int) float64 {
	return float64(k) * float64(sa.sampleRate) / float64(fftSize)
}

// PadCenter widens signal to float64 and adds pad zeros on both ends
func PadCenter(signal []float32, pad int) []float64 {
	out := make([]float64, len(signal)+2*pad)
	for i, v := range signal {
		out[pad+i] = float64(v)
	}
	return out
}

// ToFloat64 widens a sample buffer without padding
func ToFloat64(signal []float32) []float64 {
	return PadCenter(signal, 0)
}

// FrameCount returns how many full frames fit in length samples. Frames that
// would run past the end are never produced.
func FrameCount(length, frameSize, hop int) int {
	if frameSize <= 0 || hop <= 0 || length < frameSize {
		return 0
	}
	return (length-frameSize)/hop + 1
}

// HannWindow returns a symmetric Hann window. When normalized is set the
// coefficients are scaled to sum to 2, which keeps a full-scale sinusoid's
// spectral peak near its amplitude.
func HannWindow(size int, normalized bool) []float64 {
	if size <= 1 {
		return []float64{1}
	}
	w := window.Hann(size)
	if !normalized {
		return w
	}
	if sum := floats.Sum(w); sum > 0 {
		floats.Scale(2/sum, w)
	}
	return w
}

// Window returns the cached normalized Hann window for size
func (sa *SpectralAnalyzer) Window(size int) []float64 {
	if w, ok := sa.windows[size]; ok {
		return w
	}
	w := HannWindow(size, true)
	sa.windows[size] = w
	return w
}

// Spectrum windows frame and returns the positive-frequency half of its FFT
// (len(frame)/2+1 bins). frame is not modified.
func (sa *SpectralAnalyzer) Spectrum(frame []float64) []complex128 {
	n := len(frame)
	if n == 0 {
		return []complex128{}
	}

	w := sa.Window(n)
	if cap(sa.scratch) < n {
		sa.scratch = make([]float64, n)
	}
	buf := sa.scratch[:n]
	for i := range frame {
		buf[i] = frame[i] * w[i]
	}

	full := fft.FFTReal(buf)
	return full[:n/2+1]
}

// PowerSpectrum writes |X|^2 into dst, growing it if needed
func PowerSpectrum(spec []complex128, dst []float64) []float64 {
	dst = resize(dst, len(spec))
	for i, c := range spec {
		re, im := real(c), imag(c)
		dst[i] = re*re + im*im
	}
	return dst
}

// MagnitudeSpectrum writes |X| into dst, growing it if needed
func MagnitudeSpectrum(spec []complex128, dst []float64) []float64 {
	dst = resize(dst, len(spec))
	for i, c := range spec {
		dst[i] = cmplx.Abs(c)
	}
	return dst
}

// PhaseSpectrum writes arg(X) into dst, growing it if needed
func PhaseSpectrum(spec []complex128, dst []float64) []float64 {
	dst = resize(dst, len(spec))
	for i, c := range spec {
		dst[i] = cmplx.Phase(c)
	}
	return dst
}

// PowerToDB converts a non-negative power value to decibels with a 1e-10 floor.
// Negative inputs are clipped to zero first.
func PowerToDB(v float64) float64 {
	return 10 * math.Log10(math.Max(0, v)+1e-10)
}

func resize(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}
