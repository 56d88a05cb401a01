package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/tensor"
)

// EngineName identifies the ONNX Runtime engine in configuration
const EngineName = "onnx"

// Options configure the ONNX Runtime environment and sessions
type Options struct {
	// SharedLibraryPath points at libonnxruntime; empty uses the platform default
	SharedLibraryPath string
	IntraOpThreads    int
}

// the runtime environment is process wide
var (
	envMu   sync.Mutex
	envRefs int
)

// Engine runs models through ONNX Runtime
type Engine struct {
	opts   Options
	logger logging.Logger
}

// NewEngine creates a new ONNX Runtime engine
func NewEngine(opts Options) *Engine {
	return &Engine{
		opts: opts,
		logger: logging.WithFields(logging.Fields{
			"component": "onnx_engine",
		}),
	}
}

func (e *Engine) Name() string {
	return EngineName
}

// LoadModel reads the model's declared inputs and outputs and opens a session
func (e *Engine) LoadModel(path string) (inference.Session, error) {
	logger := e.logger.WithFields(logging.Fields{
		"function": "LoadModel",
		"model":    path,
	})

	if err := acquireEnvironment(e.opts.SharedLibraryPath); err != nil {
		return nil, err
	}

	session, err := e.open(path)
	if err != nil {
		releaseEnvironment()
		return nil, err
	}

	logger.Debug("ONNX session created", logging.Fields{
		"inputs":  session.inputs,
		"outputs": session.outputs,
	})
	return session, nil
}

func (e *Engine) open(path string) (*Session, error) {
	inputInfo, outputInfo, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	inputs := make([]string, len(inputInfo))
	for i, info := range inputInfo {
		inputs[i] = info.Name
	}
	outputs := make([]string, len(outputInfo))
	for i, info := range outputInfo {
		outputs[i] = info.Name
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if e.opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(e.opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("failed to set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(path, inputs, outputs, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Session{
		session: session,
		inputs:  inputs,
		outputs: outputs,
	}, nil
}

func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()

	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		_ = ort.DestroyEnvironment()
	}
}

// Session is an open ONNX Runtime session
type Session struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
	once    sync.Once
}

func (s *Session) InputNames() []string {
	return s.inputs
}

func (s *Session) OutputNames() []string {
	return s.outputs
}

// Run feeds the inputs in declared order and lets the runtime allocate outputs
func (s *Session) Run(inputs map[string]*tensor.Tensor) (map[string][][]float32, error) {
	values := make([]ort.Value, len(s.inputs))
	defer destroyAll(values)

	for i, name := range s.inputs {
		in, ok := inputs[name]
		if !ok {
			return nil, common.NewEmbeddingError(common.ErrCodeShape, "run", fmt.Sprintf("missing input %q", name), nil)
		}
		t, err := ort.NewTensor(ort.NewShape(in.Shape...), in.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to create input tensor %q: %w", name, err)
		}
		values[i] = t
	}

	outputs := make([]ort.Value, len(s.outputs))
	defer destroyAll(outputs)

	if err := s.session.Run(values, outputs); err != nil {
		return nil, fmt.Errorf("failed to run model: %w", err)
	}

	results := make(map[string][][]float32, len(outputs))
	for i, name := range s.outputs {
		rows, err := toRows(outputs[i])
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}
		results[name] = rows
	}
	return results, nil
}

// Close destroys the session and releases the environment reference
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		err = s.session.Destroy()
		releaseEnvironment()
	})
	return err
}

// toRows splits a float32 output along its leading dimension
func toRows(v ort.Value) ([][]float32, error) {
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, common.NewEmbeddingError(common.ErrCodeInference, "run", "output is not a float32 tensor", nil)
	}

	shape := t.GetShape()
	data := t.GetData()
	if len(shape) == 0 || shape[0] <= 0 {
		return nil, common.NewEmbeddingError(common.ErrCodeShape, "run", fmt.Sprintf("unexpected output shape %v", shape), nil)
	}

	n := int(shape[0])
	width := len(data) / n
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = append([]float32(nil), data[i*width:(i+1)*width]...)
	}
	return rows, nil
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}
