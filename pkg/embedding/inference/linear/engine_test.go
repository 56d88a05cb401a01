package linear

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/tensor"
)

func TestModelFileRoundTripThroughHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, WriteModelFile(path, &Model{
		Name:   "identity",
		Inputs: []string{"x"},
		Output: "embedding",
	}))

	err := inference.WithSession(NewEngine(), path, func(h *inference.SessionHandle) error {
		assert.Equal(t, []string{"x"}, h.InputNames())
		assert.Equal(t, []string{"embedding"}, h.OutputNames())

		out, err := h.Run(map[string]*tensor.Tensor{
			"x": {Data: []float32{1, 2, 3, 4, -1, -1, -1, -1}, Shape: []int64{2, 4}},
		})
		require.NoError(t, err)

		rows := out["embedding"]
		require.Len(t, rows, 2)
		// mean, std, min, max
		assert.InDeltaSlice(t, []float32{2.5, 1.118034, 1, 4}, rows[0], 1e-5)
		assert.Equal(t, []float32{-1, 0, -1, -1}, rows[1])
		return nil
	})
	require.NoError(t, err)
}

func TestWeightsAndBias(t *testing.T) {
	m := &Model{
		Inputs:  []string{"a", "b"},
		Output:  "y",
		Weights: [][]float64{{1, 0, 0, 0, 0, 0, 0, 1}},
		Bias:    []float64{0.5},
	}
	require.NoError(t, m.Validate())

	s := NewSession(m)
	out, err := s.Run(map[string]*tensor.Tensor{
		"a": {Data: []float32{2, 4}, Shape: []int64{1, 2}},
		"b": {Data: []float32{7, 9, 8}, Shape: []int64{1, 3}},
	})
	require.NoError(t, err)
	// mean(a) + max(b) + bias
	assert.Equal(t, [][]float32{{3 + 9 + 0.5}}, out["y"])
}

func TestValidateRejectsBadWeights(t *testing.T) {
	m := &Model{Inputs: []string{"a"}, Output: "y", Weights: [][]float64{{1, 2}}}
	assert.Error(t, m.Validate())

	m = &Model{Inputs: []string{"a"}, Output: "y", Bias: []float64{1}}
	assert.Error(t, m.Validate())

	assert.Error(t, (&Model{Output: "y"}).Validate())
	assert.Error(t, (&Model{Inputs: []string{"a"}}).Validate())
}

func TestRunRejectsMismatchedBatch(t *testing.T) {
	s := NewSession(&Model{Inputs: []string{"a", "b"}, Output: "y"})
	_, err := s.Run(map[string]*tensor.Tensor{
		"a": {Data: []float32{1, 2}, Shape: []int64{2, 1}},
		"b": {Data: []float32{1, 2, 3}, Shape: []int64{3, 1}},
	})
	assert.ErrorIs(t, err, common.ErrShape)
}

func TestLoadMissingModel(t *testing.T) {
	_, err := NewEngine().LoadModel(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
