package postprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
)

// Epsilon is added to every norm before dividing
const Epsilon = 1e-12

// L2Normalize returns v scaled to unit length. The all-zero vector maps to
// itself. v is not modified.
func L2Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	normalizeInPlace(out)
	return out
}

func normalizeInPlace(v []float64) {
	if len(v) == 0 {
		return
	}
	norm := floats.Norm(v, 2)
	floats.Scale(1/(norm+Epsilon), v)
}

// MeanPool averages vectors elementwise. Every vector must have the same
// non-zero length.
func MeanPool(vectors [][]float64) ([]float64, error) {
	if len(vectors) == 0 {
		return nil, common.NewEmbeddingError(common.ErrCodeEmptyInput, "mean pool", "no vectors to pool", nil)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, common.NewEmbeddingError(common.ErrCodeEmptyInput, "mean pool", "vectors are empty", nil)
	}

	pooled := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, common.NewEmbeddingError(common.ErrCodeShape, "mean pool",
				fmt.Sprintf("vector %d has dimension %d, want %d", i, len(v), dim), nil)
		}
		floats.Add(pooled, v)
	}
	floats.Scale(1/float64(len(vectors)), pooled)
	return pooled, nil
}

// Finalize reduces per-segment model outputs to one embedding: normalize each
// row, mean-pool the rows, normalize the pooled vector.
func Finalize(rows [][]float32) ([]float32, error) {
	normalized := make([][]float64, len(rows))
	for i, row := range rows {
		v := make([]float64, len(row))
		for j, x := range row {
			v[j] = float64(x)
		}
		normalizeInPlace(v)
		normalized[i] = v
	}

	pooled, err := MeanPool(normalized)
	if err != nil {
		return nil, err
	}
	normalizeInPlace(pooled)

	out := make([]float32, len(pooled))
	for i, x := range pooled {
		out[i] = float32(x)
	}
	return out, nil
}

// Norm returns the L2 norm of v
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
