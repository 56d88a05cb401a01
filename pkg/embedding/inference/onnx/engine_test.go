package onnx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference"
)

func TestEngineName(t *testing.T) {
	var e inference.Engine = NewEngine(Options{})
	assert.Equal(t, EngineName, e.Name())
}

func TestLoadMissingModelFails(t *testing.T) {
	h := inference.NewSessionHandle(NewEngine(Options{
		SharedLibraryPath: filepath.Join(t.TempDir(), "libonnxruntime.so"),
	}))

	err := h.Initialize(filepath.Join(t.TempDir(), "missing.onnx"))
	assert.ErrorIs(t, err, common.ErrInference)
	assert.False(t, h.Initialized())
	assert.NoError(t, h.Close())
}
