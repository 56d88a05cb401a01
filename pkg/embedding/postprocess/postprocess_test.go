package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
)

func TestL2NormalizeUnitLength(t *testing.T) {
	for _, v := range [][]float64{
		{3, 4},
		{1e-3, -2e-3, 5e-4},
		{100, 200, -300, 400},
		{0, 0, 7},
	} {
		out := L2Normalize(v)
		assert.InDelta(t, 1.0, floats.Norm(out, 2), 1e-5)
	}

	in := []float64{3, 4}
	_ = L2Normalize(in)
	assert.Equal(t, []float64{3, 4}, in)
}

func TestL2NormalizeZeroVector(t *testing.T) {
	out := L2Normalize([]float64{0, 0, 0})
	assert.Equal(t, []float64{0, 0, 0}, out)
	assert.Empty(t, L2Normalize(nil))
}

func TestMeanPool(t *testing.T) {
	single, err := MeanPool([][]float64{{1, -2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -2, 3}, single)

	v := []float64{0.25, 0.5, -0.75}
	copies, err := MeanPool([][]float64{v, v, v, v})
	require.NoError(t, err)
	assert.InDeltaSlice(t, v, copies, 1e-12)

	mixed, err := MeanPool([][]float64{{1, 0}, {0, 1}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5}, mixed)
}

func TestMeanPoolErrors(t *testing.T) {
	_, err := MeanPool(nil)
	assert.ErrorIs(t, err, common.ErrEmptyInput)

	_, err = MeanPool([][]float64{{}})
	assert.ErrorIs(t, err, common.ErrEmptyInput)

	_, err = MeanPool([][]float64{{1, 2}, {1}})
	assert.ErrorIs(t, err, common.ErrShape)
}

func TestFinalize(t *testing.T) {
	out, err := Finalize([][]float32{{3, 4}, {30, 40}, {0, 5}})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.InDelta(t, 1.0, Norm(out), 1e-5)

	// equal directions pool to the same direction
	same, err := Finalize([][]float32{{1, 1}, {10, 10}})
	require.NoError(t, err)
	assert.InDelta(t, same[0], same[1], 1e-7)

	_, err = Finalize(nil)
	assert.ErrorIs(t, err, common.ErrEmptyInput)
}
