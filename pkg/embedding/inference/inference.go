package inference

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/tensor"
)

// Engine loads models into sessions
type Engine interface {
	Name() string
	LoadModel(path string) (Session, error)
}

// Session is a loaded model. Run returns one vector per leading-dimension row
// of the inputs for every declared output.
type Session interface {
	InputNames() []string
	OutputNames() []string
	Run(inputs map[string]*tensor.Tensor) (map[string][][]float32, error)
	Close() error
}

// SessionHandle owns a session for the lifetime of a pipeline. Initialize must
// be called exactly once and not concurrently; Run may be called from several
// goroutines once initialization has finished.
type SessionHandle struct {
	engine      Engine
	session     Session
	modelPath   string
	initialized bool
	closed      bool
	logger      logging.Logger
}

// NewSessionHandle creates an uninitialized handle for engine
func NewSessionHandle(engine Engine) *SessionHandle {
	return &SessionHandle{
		engine: engine,
		logger: logging.WithFields(logging.Fields{
			"component": "session_handle",
			"engine":    engine.Name(),
		}),
	}
}

// Initialize loads the model at path
func (h *SessionHandle) Initialize(path string) error {
	if h.initialized {
		return common.NewEmbeddingError(common.ErrCodeShape, "initialize session", "session already initialized", nil)
	}
	if h.closed {
		return common.NewEmbeddingError(common.ErrCodeShape, "initialize session", "session handle is closed", nil)
	}

	session, err := h.engine.LoadModel(path)
	if err != nil {
		return asInferenceError("load model", err)
	}

	h.session = session
	h.modelPath = path
	h.initialized = true

	h.logger.Info("Model loaded", logging.Fields{
		"function": "Initialize",
		"model":    path,
		"inputs":   session.InputNames(),
		"outputs":  session.OutputNames(),
	})
	return nil
}

// Initialized reports whether a model is loaded
func (h *SessionHandle) Initialized() bool {
	return h.initialized && !h.closed
}

// InputNames returns the inputs the loaded model declares
func (h *SessionHandle) InputNames() []string {
	if !h.Initialized() {
		return nil
	}
	return h.session.InputNames()
}

// OutputNames returns the outputs the loaded model declares
func (h *SessionHandle) OutputNames() []string {
	if !h.Initialized() {
		return nil
	}
	return h.session.OutputNames()
}

// Run checks that inputs name exactly the model's inputs and runs the model
func (h *SessionHandle) Run(inputs map[string]*tensor.Tensor) (map[string][][]float32, error) {
	if !h.Initialized() {
		return nil, common.NewEmbeddingError(common.ErrCodeShape, "run", "session not initialized", nil)
	}
	if err := CheckInputs(h.session.InputNames(), inputs); err != nil {
		return nil, err
	}

	outputs, err := h.session.Run(inputs)
	if err != nil {
		return nil, asInferenceError("run", err)
	}
	return outputs, nil
}

// Close releases the session. It is safe to call more than once.
func (h *SessionHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if h.session == nil {
		return nil
	}

	err := h.session.Close()
	h.session = nil
	if err != nil {
		return asInferenceError("close session", err)
	}
	h.logger.Debug("Session closed", logging.Fields{
		"function": "Close",
		"model":    h.modelPath,
	})
	return nil
}

// WithSession loads the model, calls fn with the handle and always closes it,
// also when loading fails.
func WithSession(engine Engine, path string, fn func(*SessionHandle) error) (err error) {
	h := NewSessionHandle(engine)
	defer func() {
		if cerr := h.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := h.Initialize(path); err != nil {
		return err
	}
	return fn(h)
}

// CheckInputs verifies that inputs carries exactly the declared names, each
// with a tensor whose data matches its shape.
func CheckInputs(declared []string, inputs map[string]*tensor.Tensor) error {
	if len(inputs) != len(declared) {
		return common.NewEmbeddingError(common.ErrCodeShape, "run",
			fmt.Sprintf("model expects %d inputs %v, got %d", len(declared), declared, len(inputs)), nil)
	}
	for _, name := range declared {
		t, ok := inputs[name]
		if !ok || t == nil {
			return common.NewEmbeddingError(common.ErrCodeShape, "run",
				fmt.Sprintf("missing input %q, have %s", name, strings.Join(sortedKeys(inputs), ", ")), nil)
		}
		if len(t.Shape) == 0 || t.Len() != len(t.Data) {
			return common.NewEmbeddingError(common.ErrCodeShape, "run",
				fmt.Sprintf("input %q has shape %v but %d values", name, t.Shape, len(t.Data)), nil)
		}
	}
	return nil
}

// SelectOutput returns the named output, or the only output when name is empty
func SelectOutput(outputs map[string][][]float32, name string) ([][]float32, error) {
	if name == "" {
		if len(outputs) != 1 {
			return nil, common.NewEmbeddingError(common.ErrCodeShape, "select output",
				fmt.Sprintf("model has %d outputs, an output name is required", len(outputs)), nil)
		}
		for _, rows := range outputs {
			return rows, nil
		}
	}
	rows, ok := outputs[name]
	if !ok {
		return nil, common.NewEmbeddingError(common.ErrCodeShape, "select output",
			fmt.Sprintf("model has no output %q", name), nil)
	}
	return rows, nil
}

func sortedKeys(m map[string]*tensor.Tensor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func asInferenceError(op string, err error) error {
	var embErr *common.EmbeddingError
	if errors.As(err, &embErr) {
		return err
	}
	return common.NewEmbeddingError(common.ErrCodeInference, op, "inference engine failed", err)
}
