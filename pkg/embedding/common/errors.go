package common

import (
	"errors"
	"strings"
)

// EmbeddingError represents a typed failure anywhere in the embedding pipeline
type EmbeddingError struct {
	Code    string `json:"code"`
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *EmbeddingError) Error() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Op, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *EmbeddingError) Unwrap() error {
	return e.Cause
}

// Is matches any EmbeddingError carrying the same code, so the sentinels
// below work with errors.Is regardless of message or cause.
func (e *EmbeddingError) Is(target error) bool {
	var t *EmbeddingError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.Message == "" && t.Cause == nil
}

// Error codes
const (
	ErrCodeDecode          = "DECODE_FAILED"
	ErrCodeShape           = "SHAPE_MISMATCH"
	ErrCodeInference       = "INFERENCE_FAILED"
	ErrCodeEmptyInput      = "EMPTY_INPUT"
	ErrCodeInvalidArgument = "INVALID_ARGUMENT"
	ErrCodeInternal        = "INTERNAL"
)

var (
	ErrDecode          = &EmbeddingError{Code: ErrCodeDecode}
	ErrShape           = &EmbeddingError{Code: ErrCodeShape}
	ErrInference       = &EmbeddingError{Code: ErrCodeInference}
	ErrEmptyInput      = &EmbeddingError{Code: ErrCodeEmptyInput}
	ErrInvalidArgument = &EmbeddingError{Code: ErrCodeInvalidArgument}
	ErrInternal        = &EmbeddingError{Code: ErrCodeInternal}
)

// NewEmbeddingError creates a new embedding error
func NewEmbeddingError(code, op, message string, cause error) *EmbeddingError {
	return &EmbeddingError{
		Code:    code,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// CodeOf returns the code of the first EmbeddingError in err's chain, or "" if none
func CodeOf(err error) string {
	var e *EmbeddingError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Wrap converts err into a single EmbeddingError for op, keeping the code of
// the first typed error in its chain. Errors without a code are INTERNAL
// unless they match one of the sentinels.
func Wrap(op string, err error) *EmbeddingError {
	if err == nil {
		return nil
	}
	code := CodeOf(err)
	if code == "" {
		code = ErrCodeInternal
		for _, sentinel := range []*EmbeddingError{ErrDecode, ErrShape, ErrInference, ErrEmptyInput, ErrInvalidArgument} {
			if errors.Is(err, sentinel) {
				code = sentinel.Code
				break
			}
		}
	}
	return NewEmbeddingError(code, op, "", err)
}
