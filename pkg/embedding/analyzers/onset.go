package analyzers

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-sonar/algorithms/spectral"
)

// OnsetMethod selects the novelty function computed per frame
type OnsetMethod string

const (
	OnsetMelFlux OnsetMethod = "melflux"
	OnsetFlux    OnsetMethod = "flux"
	OnsetComplex OnsetMethod = "complex"
	OnsetHFC     OnsetMethod = "hfc"
)

const melFluxBands = 40

// ParseOnsetMethod maps a config string to an OnsetMethod; empty means melflux
func ParseOnsetMethod(s string) (OnsetMethod, error) {
	switch m := OnsetMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return OnsetMelFlux, nil
	case OnsetMelFlux, OnsetFlux, OnsetComplex, OnsetHFC:
		return m, nil
	default:
		return "", fmt.Errorf("unknown onset method %q", s)
	}
}

// OnsetDetector turns consecutive magnitude/phase spectra into one novelty
// value per frame. It keeps the previous frames' state, so call Reset before
// starting a new signal.
type OnsetDetector struct {
	method  OnsetMethod
	melBank [][]float64

	power     []float64
	bands     []float64
	prevBands []float64
	prevMag   []float64
	phase1    []float64
	phase2    []float64
}

// NewOnsetDetector creates a detector for spectra of an fftSize transform
func NewOnsetDetector(method OnsetMethod, fftSize, sampleRate int) (*OnsetDetector, error) {
	od := &OnsetDetector{method: method}

	switch method {
	case OnsetMelFlux:
		ms := spectral.NewMelScale()
		od.melBank = ms.CreateMelFilterBank(melFluxBands, fftSize, sampleRate, 0, float64(sampleRate)/2)
		if len(od.melBank) == 0 {
			return nil, fmt.Errorf("failed to build onset mel filter bank for fft size %d", fftSize)
		}
	case OnsetFlux, OnsetComplex, OnsetHFC:
	default:
		return nil, fmt.Errorf("unknown onset method %q", method)
	}

	return od, nil
}

func (od *OnsetDetector) Method() OnsetMethod {
	return od.method
}

// Reset clears the inter-frame history
func (od *OnsetDetector) Reset() {
	clear(od.prevBands)
	clear(od.prevMag)
	clear(od.phase1)
	clear(od.phase2)
}

// Compute returns the novelty of the current frame given its magnitude and
// phase spectra. The first frame is compared against silence.
func (od *OnsetDetector) Compute(mag, phase []float64) float64 {
	n := len(mag)
	if len(od.prevMag) != n {
		od.prevMag = make([]float64, n)
		od.phase1 = make([]float64, n)
		od.phase2 = make([]float64, n)
	}

	var value float64
	switch od.method {
	case OnsetMelFlux:
		value = od.melFlux(mag)
	case OnsetFlux:
		value = od.flux(mag)
	case OnsetComplex:
		value = od.complexDomain(mag, phase)
	case OnsetHFC:
		value = hfc(mag)
	}

	copy(od.prevMag, mag)
	copy(od.phase2, od.phase1)
	if len(phase) == n {
		copy(od.phase1, phase)
	}

	return value
}

// melFlux compares the first frame against zeroed bands, as Essentia's
// OnsetDetection does.
func (od *OnsetDetector) melFlux(mag []float64) float64 {
	od.power = resize(od.power, len(mag))
	for i, m := range mag {
		od.power[i] = m * m
	}

	od.bands = ApplyFilterBank(od.power, od.melBank, od.bands)
	if len(od.prevBands) != len(od.bands) {
		od.prevBands = make([]float64, len(od.bands))
	}

	sum := 0.0
	for b, v := range od.bands {
		cur := math.Log10(1 + v)
		if d := cur - od.prevBands[b]; d > 0 {
			sum += d
		}
		od.prevBands[b] = cur
	}
	return sum
}

func (od *OnsetDetector) flux(mag []float64) float64 {
	sum := 0.0
	for i, m := range mag {
		if d := m - od.prevMag[i]; d > 0 {
			sum += d
		}
	}
	return sum
}

// complexDomain is the rectified complex-domain distance between the frame and
// its prediction from the two previous frames' phase and the previous magnitude.
func (od *OnsetDetector) complexDomain(mag, phase []float64) float64 {
	if len(phase) != len(mag) {
		return 0
	}

	sum := 0.0
	for i, m := range mag {
		prev := od.prevMag[i]
		if m < prev {
			continue
		}
		target := princarg(2*od.phase1[i] - od.phase2[i])
		dphi := princarg(phase[i] - target)
		d2 := m*m + prev*prev - 2*m*prev*math.Cos(dphi)
		if d2 > 0 {
			sum += math.Sqrt(d2)
		}
	}
	return sum
}

func hfc(mag []float64) float64 {
	sum := 0.0
	for i, m := range mag {
		sum += float64(i) * m * m
	}
	return sum
}

func princarg(phase float64) float64 {
	return phase - 2*math.Pi*math.Round(phase/(2*math.Pi))
}
