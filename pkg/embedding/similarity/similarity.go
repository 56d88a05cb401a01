package similarity

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
)

// DefaultThreshold is the similarity above which two embeddings are treated
// as the same recording
const DefaultThreshold = 0.85

// Result is the outcome of comparing two vectors
type Result struct {
	CosineSimilarity float64 `json:"cosine_similarity" yaml:"cosine_similarity"`
	Threshold        float64 `json:"threshold" yaml:"threshold"`
	AboveThreshold   bool    `json:"above_threshold" yaml:"above_threshold"`
	Dimension        int     `json:"dimension" yaml:"dimension"`
}

// DimensionError reports vectors of different lengths
type DimensionError struct {
	Left  int
	Right int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: %d vs %d", e.Left, e.Right)
}

// Compare returns the cosine similarity of a and b. A zero-norm vector has
// similarity 0 with everything.
func Compare(a, b []float32, threshold float64) (*Result, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, common.NewEmbeddingError(common.ErrCodeEmptyInput, "compare", "cannot compare empty vectors", nil)
	}
	if len(a) != len(b) {
		dimErr := &DimensionError{Left: len(a), Right: len(b)}
		return nil, common.NewEmbeddingError(common.ErrCodeShape, "compare", "vectors differ in length", dimErr)
	}

	x := toFloat64(a)
	y := toFloat64(b)

	cos := 0.0
	na, nb := floats.Norm(x, 2), floats.Norm(y, 2)
	if na > 0 && nb > 0 {
		cos = floats.Dot(x, y) / (na * nb)
		cos = max(-1, min(1, cos))
	}

	return &Result{
		CosineSimilarity: cos,
		Threshold:        threshold,
		AboveThreshold:   cos >= threshold,
		Dimension:        len(a),
	}, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
