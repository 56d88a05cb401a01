package analyzers

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// HPSSOptions parameterizes median-filtering harmonic/percussive separation
type HPSSOptions struct {
	FrameSize        int
	HopSize          int
	HarmonicKernel   int // median length along time
	PercussiveKernel int // median length along frequency
	MaskPower        float64
}

func DefaultHPSSOptions() HPSSOptions {
	return HPSSOptions{
		FrameSize:        2048,
		HopSize:          512,
		HarmonicKernel:   31,
		PercussiveKernel: 31,
		MaskPower:        2,
	}
}

var ErrEmptySignal = errors.New("empty signal")

// SeparateHarmonicPercussive splits signal into harmonic and percussive parts
// of the same length. Median filters run over the STFT magnitude, soft masks
// are applied to the complex STFT, and both parts are resynthesized by
// weighted overlap-add.
func SeparateHarmonicPercussive(signal []float32, opts HPSSOptions) ([]float32, []float32, error) {
	if len(signal) == 0 {
		return nil, nil, ErrEmptySignal
	}
	if opts.FrameSize < 2 || opts.HopSize <= 0 || opts.HopSize > opts.FrameSize {
		return nil, nil, fmt.Errorf("invalid hpss framing %d/%d", opts.FrameSize, opts.HopSize)
	}
	if opts.HarmonicKernel <= 0 || opts.PercussiveKernel <= 0 {
		return nil, nil, fmt.Errorf("invalid hpss kernels %d/%d", opts.HarmonicKernel, opts.PercussiveKernel)
	}

	n := opts.FrameSize
	hop := opts.HopSize
	pad := n / 2

	padded := PadCenter(signal, pad)
	if rem := (len(padded) - n) % hop; len(padded) >= n && rem != 0 {
		padded = append(padded, make([]float64, hop-rem)...)
	}
	frames := FrameCount(len(padded), n, hop)
	if frames == 0 {
		return nil, nil, fmt.Errorf("signal of %d samples too short for hpss", len(signal))
	}

	win := window.Hann(n)
	bins := n/2 + 1

	stft := make([][]complex128, frames)
	mag := make([][]float64, frames)
	buf := make([]float64, n)
	for t := range frames {
		start := t * hop
		for i := range n {
			buf[i] = padded[start+i] * win[i]
		}
		spec := fft.FFTReal(buf)[:bins]
		stft[t] = append([]complex128(nil), spec...)
		mag[t] = MagnitudeSpectrum(spec, nil)
	}

	harmonic := medianAlongTime(mag, opts.HarmonicKernel)
	percussive := medianAlongFrequency(mag, opts.PercussiveKernel)

	hSpec := make([][]complex128, frames)
	pSpec := make([][]complex128, frames)
	for t := range frames {
		hSpec[t] = make([]complex128, bins)
		pSpec[t] = make([]complex128, bins)
		for k := range bins {
			hm, pm := softMasks(harmonic[t][k], percussive[t][k], opts.MaskPower)
			hSpec[t][k] = stft[t][k] * complex(hm, 0)
			pSpec[t][k] = stft[t][k] * complex(pm, 0)
		}
	}

	h, err := overlapAdd(hSpec, win, hop, len(padded), pad, len(signal))
	if err != nil {
		return nil, nil, fmt.Errorf("harmonic resynthesis: %w", err)
	}
	p, err := overlapAdd(pSpec, win, hop, len(padded), pad, len(signal))
	if err != nil {
		return nil, nil, fmt.Errorf("percussive resynthesis: %w", err)
	}

	return h, p, nil
}

func softMasks(h, p, power float64) (float64, float64) {
	hp := math.Pow(h, power)
	pp := math.Pow(p, power)
	total := hp + pp
	if total < 1e-30 {
		return 0.5, 0.5
	}
	return hp / total, pp / total
}

func overlapAdd(spec [][]complex128, win []float64, hop, paddedLen, pad, outLen int) ([]float32, error) {
	n := len(win)
	acc := make([]float64, paddedLen)
	norm := make([]float64, paddedLen)
	full := make([]complex128, n)

	for t, half := range spec {
		copy(full, half)
		for k := 1; k < n-len(half)+1; k++ {
			full[n-k] = cmplx.Conj(half[k])
		}
		frame := fft.IFFT(full)
		start := t * hop
		for i := range n {
			acc[start+i] += real(frame[i]) * win[i]
			norm[start+i] += win[i] * win[i]
		}
	}

	out := make([]float32, outLen)
	for i := range out {
		j := pad + i
		v := acc[j]
		if norm[j] > 1e-10 {
			v /= norm[j]
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite sample at %d", i)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// medianAlongTime filters each frequency bin across frames
func medianAlongTime(mag [][]float64, kernel int) [][]float64 {
	frames := len(mag)
	bins := len(mag[0])
	out := allocMatrix(frames, bins)
	line := make([]float64, frames)
	filtered := make([]float64, frames)
	win := make([]float64, kernel)

	for k := range bins {
		for t := range frames {
			line[t] = mag[t][k]
		}
		medianFilter(line, kernel, filtered, win)
		for t := range frames {
			out[t][k] = filtered[t]
		}
	}
	return out
}

// medianAlongFrequency filters each frame across frequency bins
func medianAlongFrequency(mag [][]float64, kernel int) [][]float64 {
	out := allocMatrix(len(mag), len(mag[0]))
	win := make([]float64, kernel)
	for t, row := range mag {
		medianFilter(row, kernel, out[t], win)
	}
	return out
}

// medianFilter applies a centred running median with reflected borders
// (d c b a | a b c d | d c b a).
func medianFilter(src []float64, kernel int, dst []float64, win []float64) {
	n := len(src)
	half := kernel / 2
	for i := range n {
		for j := range kernel {
			win[j] = src[reflectIndex(i-half+j, n)]
		}
		sort.Float64s(win)
		dst[i] = win[kernel/2]
	}
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

func allocMatrix(rows, cols int) [][]float64 {
	backing := make([]float64, rows*cols)
	out := make([][]float64, rows)
	for r := range out {
		out[r] = backing[r*cols : (r+1)*cols]
	}
	return out
}
