package analyzers

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gonum.org/v1/gonum/floats"
)

type AnalyzersTestSuite struct {
	suite.Suite
	sampleRate int
	sine       []float32
}

func (s *AnalyzersTestSuite) SetupSuite() {
	s.sampleRate = 22050
	s.sine = make([]float32, s.sampleRate/2)
	for i := range s.sine {
		s.sine[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(s.sampleRate)))
	}
}

func TestAnalyzersTestSuite(t *testing.T) {
	suite.Run(t, new(AnalyzersTestSuite))
}

func (s *AnalyzersTestSuite) TestFrameCount() {
	s.Equal(0, FrameCount(100, 2048, 512))
	s.Equal(1, FrameCount(2048, 2048, 512))
	s.Equal(2, FrameCount(2560, 2048, 512))
	s.Equal(2, FrameCount(3000, 2048, 512))
	s.Equal(0, FrameCount(3000, 2048, 0))
}

func (s *AnalyzersTestSuite) TestPadCenter() {
	out := PadCenter([]float32{1, 2}, 3)
	s.Equal([]float64{0, 0, 0, 1, 2, 0, 0, 0}, out)
}

func (s *AnalyzersTestSuite) TestNormalizedHannSumsToTwo() {
	w := HannWindow(2048, true)
	s.InDelta(2.0, floats.Sum(w), 1e-9)
	s.InDelta(0.0, w[0], 1e-12)
	s.InDelta(w[1], w[2046], 1e-12)
}

func (s *AnalyzersTestSuite) TestSpectrumPeakAtSineFrequency() {
	sa := NewSpectralAnalyzer(s.sampleRate)
	frame := ToFloat64(s.sine[:2048])
	spec := sa.Spectrum(frame)
	s.Len(spec, 1025)

	power := PowerSpectrum(spec, nil)
	peak := floats.MaxIdx(power)
	s.InDelta(440.0, sa.BinFrequency(peak, 2048), float64(s.sampleRate)/2048)

	// input untouched by windowing
	s.Equal(float64(s.sine[10]), frame[10])
}

func (s *AnalyzersTestSuite) TestSlaneyMelRoundTrip() {
	for _, hz := range []float64{0, 200, 999, 1000, 4000, 11025} {
		s.InDelta(hz, MelToHzSlaney(HzToMelSlaney(hz)), 1e-6)
	}
	s.InDelta(15.0, HzToMelSlaney(1000), 1e-12)
}

func (s *AnalyzersTestSuite) TestMelFilterBankUnitSum() {
	bank := MelFilterBank(64, 2048, s.sampleRate, 0, float64(s.sampleRate)/2)
	s.Require().Len(bank, 64)
	for b, filter := range bank {
		s.Len(filter, 1025)
		s.InDelta(1.0, floats.Sum(filter), 1e-9, "band %d", b)
		s.GreaterOrEqual(floats.Min(filter), 0.0)
	}
}

func (s *AnalyzersTestSuite) TestApplyFilterBank() {
	bank := [][]float64{{1, 0, 0}, {0, 0.5, 0.5}}
	out := ApplyFilterBank([]float64{2, 4, 6}, bank, nil)
	s.Equal([]float64{2, 5}, out)
}

func (s *AnalyzersTestSuite) TestPowerToDB() {
	s.InDelta(-100.0, PowerToDB(0), 1e-9)
	s.InDelta(-100.0, PowerToDB(-3), 1e-9)
	s.InDelta(0.0, PowerToDB(1), 1e-6)
}

func TestAutoCorrelatorMatchesDirect(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := make([]float64, 384)
	for i := range x {
		x[i] = rng.Float64()
	}

	ac := NewAutoCorrelator(len(x))
	got := ac.Compute(x, nil)
	want := AutoCorrelationDirect(x)

	require.Len(t, got, len(want))
	for k := range want {
		assert.InDelta(t, want[k], got[k], 1e-8, "lag %d", k)
	}

	// buffers are reused across calls
	again := ac.Compute(x, got)
	assert.InDelta(t, want[5], again[5], 1e-8)
}

func TestAutoCorrelatorZeros(t *testing.T) {
	ac := NewAutoCorrelator(16)
	out := ac.Compute(make([]float64, 16), nil)
	for _, v := range out {
		assert.Equal(t, 0.0, v)
	}
}

func TestParseOnsetMethod(t *testing.T) {
	m, err := ParseOnsetMethod("")
	require.NoError(t, err)
	assert.Equal(t, OnsetMelFlux, m)

	m, err = ParseOnsetMethod("HFC")
	require.NoError(t, err)
	assert.Equal(t, OnsetHFC, m)

	_, err = ParseOnsetMethod("energy")
	assert.Error(t, err)
}

func TestOnsetDetectorRespondsToAttack(t *testing.T) {
	for _, method := range []OnsetMethod{OnsetMelFlux, OnsetFlux, OnsetComplex, OnsetHFC} {
		t.Run(string(method), func(t *testing.T) {
			od, err := NewOnsetDetector(method, 2048, 22050)
			require.NoError(t, err)

			silent := make([]float64, 1025)
			loud := make([]float64, 1025)
			phase := make([]float64, 1025)
			for i := range loud {
				loud[i] = 1
			}

			assert.Equal(t, 0.0, od.Compute(silent, phase))
			assert.Greater(t, od.Compute(loud, phase), 0.0)

			od.Reset()
			assert.Equal(t, 0.0, od.Compute(silent, phase))
		})
	}
}

func TestMelFluxFirstFrameMatchesAttackAfterSilence(t *testing.T) {
	od, err := NewOnsetDetector(OnsetMelFlux, 2048, 22050)
	require.NoError(t, err)

	silent := make([]float64, 1025)
	loud := make([]float64, 1025)
	phase := make([]float64, 1025)
	for i := range loud {
		loud[i] = 0.5
	}

	first := od.Compute(loud, phase)

	od.Reset()
	od.Compute(silent, phase)
	assert.InDelta(t, od.Compute(loud, phase), first, 1e-12)
}

func TestHPSSPreservesLength(t *testing.T) {
	signal := make([]float32, 6000)
	for i := range signal {
		signal[i] = float32(math.Sin(2 * math.Pi * 220 * float64(i) / 22050))
	}
	for i := 0; i < len(signal); i += 1500 {
		signal[i] += 1
	}

	h, p, err := SeparateHarmonicPercussive(signal, DefaultHPSSOptions())
	require.NoError(t, err)
	require.Len(t, h, len(signal))
	require.Len(t, p, len(signal))

	// soft masks sum to one, so the parts add back to the input
	for i := 100; i < len(signal)-100; i += 97 {
		assert.InDelta(t, signal[i], h[i]+p[i], 1e-3, "sample %d", i)
	}
}

func TestHPSSRejectsEmpty(t *testing.T) {
	_, _, err := SeparateHarmonicPercussive(nil, DefaultHPSSOptions())
	assert.ErrorIs(t, err, ErrEmptySignal)
}

func TestReflectIndex(t *testing.T) {
	assert.Equal(t, 0, reflectIndex(-1, 4))
	assert.Equal(t, 1, reflectIndex(-2, 4))
	assert.Equal(t, 3, reflectIndex(4, 4))
	assert.Equal(t, 2, reflectIndex(5, 4))
	assert.Equal(t, 0, reflectIndex(7, 1))
}
