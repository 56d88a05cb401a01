package analyzers

import (
	"gonum.org/v1/gonum/dsp/fourier"
)

// AutoCorrelator computes unnormalized autocorrelations r[k] = sum_n x[n]*x[n+k]
// for k in [0, n) through a zero-padded real FFT. Buffers are reused between
// calls; an AutoCorrelator is not safe for concurrent use.
type AutoCorrelator struct {
	n      int
	size   int
	fft    *fourier.FFT
	padded []float64
	coeff  []complex128
	seq    []float64
}

// NewAutoCorrelator prepares a correlator for inputs of length n
func NewAutoCorrelator(n int) *AutoCorrelator {
	size := 1
	for size < 2*n {
		size <<= 1
	}
	return &AutoCorrelator{
		n:      n,
		size:   size,
		fft:    fourier.NewFFT(size),
		padded: make([]float64, size),
		coeff:  make([]complex128, size/2+1),
		seq:    make([]float64, size),
	}
}

func (ac *AutoCorrelator) Len() int {
	return ac.n
}

// Compute writes the autocorrelation of x (which must have length Len) into dst
func (ac *AutoCorrelator) Compute(x []float64, dst []float64) []float64 {
	dst = resize(dst, ac.n)
	if ac.n == 0 {
		return dst
	}

	m := copy(ac.padded[:ac.n], x)
	clear(ac.padded[m:])

	ac.coeff = ac.fft.Coefficients(ac.coeff, ac.padded)
	for i, c := range ac.coeff {
		re, im := real(c), imag(c)
		ac.coeff[i] = complex(re*re+im*im, 0)
	}
	ac.seq = ac.fft.Sequence(ac.seq, ac.coeff)

	scale := 1 / float64(ac.size)
	for k := range dst {
		dst[k] = ac.seq[k] * scale
	}
	return dst
}

// AutoCorrelationDirect is the O(n^2) reference used to check the FFT path
func AutoCorrelationDirect(x []float64) []float64 {
	out := make([]float64, len(x))
	for k := range x {
		sum := 0.0
		for n := 0; n+k < len(x); n++ {
			sum += x[n] * x[n+k]
		}
		out[k] = sum
	}
	return out
}
