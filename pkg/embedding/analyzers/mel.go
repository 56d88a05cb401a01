package analyzers

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	slaneyFSp      = 200.0 / 3
	slaneyMinLogHz = 1000.0
)

var slaneyLogStep = math.Log(6.4) / 27.0

// HzToMelSlaney converts Hz to the Slaney mel scale: linear below 1 kHz,
// logarithmic above.
func HzToMelSlaney(hz float64) float64 {
	if hz < slaneyMinLogHz {
		return hz / slaneyFSp
	}
	return slaneyMinLogHz/slaneyFSp + math.Log(hz/slaneyMinLogHz)/slaneyLogStep
}

// MelToHzSlaney is the inverse of HzToMelSlaney
func MelToHzSlaney(mel float64) float64 {
	minLogMel := slaneyMinLogHz / slaneyFSp
	if mel < minLogMel {
		return mel * slaneyFSp
	}
	return slaneyMinLogHz * math.Exp(slaneyLogStep*(mel-minLogMel))
}

// MelFilterBank builds numBands triangular filters over the fftSize/2+1
// positive-frequency bins. Band edges are equally spaced on the Slaney mel
// scale between lowHz and highHz, triangle slopes are evaluated on the warped
// axis and every filter is scaled to unit sum.
func MelFilterBank(numBands, fftSize, sampleRate int, lowHz, highHz float64) [][]float64 {
	if numBands <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil
	}

	numBins := fftSize/2 + 1
	lowMel := HzToMelSlaney(lowHz)
	highMel := HzToMelSlaney(highHz)

	edges := make([]float64, numBands+2)
	floats.Span(edges, lowMel, highMel)

	binMel := make([]float64, numBins)
	binHz := float64(sampleRate) / float64(fftSize)
	for j := range binMel {
		binMel[j] = HzToMelSlaney(float64(j) * binHz)
	}

	bank := make([][]float64, numBands)
	for b := range bank {
		left, center, right := edges[b], edges[b+1], edges[b+2]
		row := make([]float64, numBins)
		for j, m := range binMel {
			switch {
			case m > left && m <= center:
				row[j] = (m - left) / (center - left)
			case m > center && m < right:
				row[j] = (right - m) / (right - center)
			}
		}
		if sum := floats.Sum(row); sum > 0 {
			floats.Scale(1/sum, row)
		}
		bank[b] = row
	}

	return bank
}

// ApplyFilterBank projects a spectrum onto each filter, writing one value per band into dst
func ApplyFilterBank(spectrum []float64, bank [][]float64, dst []float64) []float64 {
	dst = resize(dst, len(bank))
	for b, filter := range bank {
		n := min(len(filter), len(spectrum))
		dst[b] = floats.Dot(filter[:n], spectrum[:n])
	}
	return dst
}
