package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingErrorMessage(t *testing.T) {
	cause := errors.New("bad header")
	err := NewEmbeddingError(ErrCodeDecode, "decode", "cannot read audio", cause)

	assert.Equal(t, "decode: cannot read audio: bad header", err.Error())
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestSentinelsMatchByCode(t *testing.T) {
	err := fmt.Errorf("batch: %w", NewEmbeddingError(ErrCodeShape, "batch", "segment 2 mel is 64x10", nil))

	assert.ErrorIs(t, err, ErrShape)
	assert.NotErrorIs(t, err, ErrInference)
	assert.Equal(t, ErrCodeShape, CodeOf(err))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestSentinelDoesNotMatchConcreteError(t *testing.T) {
	concrete := NewEmbeddingError(ErrCodeShape, "op", "msg", nil)
	other := NewEmbeddingError(ErrCodeShape, "other", "msg", nil)
	assert.False(t, errors.Is(other, concrete))
}

type decodeFailure struct{}

func (decodeFailure) Error() string        { return "unsupported codec" }
func (decodeFailure) Is(target error) bool { return target == error(ErrDecode) }

func TestWrapKeepsCode(t *testing.T) {
	assert.Nil(t, Wrap("compute embedding", nil))

	inner := fmt.Errorf("inference: %w", NewEmbeddingError(ErrCodeInference, "run", "", errors.New("oom")))
	err := Wrap("compute embedding", inner)
	assert.Equal(t, ErrCodeInference, err.Code)
	assert.Equal(t, "compute embedding: inference: run: oom", err.Error())

	assert.Equal(t, ErrCodeDecode, Wrap("op", decodeFailure{}).Code)
	assert.Equal(t, ErrCodeInternal, Wrap("op", errors.New("plain")).Code)
}
