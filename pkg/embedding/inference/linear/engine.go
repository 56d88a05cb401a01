// Package linear is a pure Go inference engine for small projection models.
// Each input row is summarised by its mean, standard deviation, minimum and
// maximum; the concatenated summaries are projected by a dense layer.
package linear

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/inference"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/tensor"
)

// EngineName identifies the linear engine in configuration
const EngineName = "linear"

// statsPerInput is the summary width contributed by every input
const statsPerInput = 4

// Model is the on-disk description of a linear model
type Model struct {
	Name    string      `yaml:"name"`
	Inputs  []string    `yaml:"inputs"`
	Output  string      `yaml:"output"`
	Weights [][]float64 `yaml:"weights"`
	Bias    []float64   `yaml:"bias"`
}

// InputWidth is the length of the summary vector fed to the dense layer
func (m *Model) InputWidth() int {
	return len(m.Inputs) * statsPerInput
}

// Validate checks the weight matrix against the declared inputs. A model
// without weights uses the identity projection.
func (m *Model) Validate() error {
	if len(m.Inputs) == 0 {
		return fmt.Errorf("model declares no inputs")
	}
	if m.Output == "" {
		return fmt.Errorf("model declares no output")
	}
	width := m.InputWidth()
	for i, row := range m.Weights {
		if len(row) != width {
			return fmt.Errorf("weights row %d has %d columns, want %d", i, len(row), width)
		}
	}
	if len(m.Bias) > 0 && len(m.Bias) != m.OutputWidth() {
		return fmt.Errorf("bias has %d values, want %d", len(m.Bias), m.OutputWidth())
	}
	return nil
}

// OutputWidth is the embedding dimension
func (m *Model) OutputWidth() int {
	if len(m.Weights) == 0 {
		return m.InputWidth()
	}
	return len(m.Weights)
}

// LoadModelFile reads a YAML model
func LoadModelFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var m Model
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &m, nil
}

// WriteModelFile stores m as YAML
func WriteModelFile(path string, m *Model) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Engine loads linear models
type Engine struct {
	logger logging.Logger
}

// NewEngine creates a new linear engine
func NewEngine() *Engine {
	return &Engine{
		logger: logging.WithFields(logging.Fields{
			"component": "linear_engine",
		}),
	}
}

func (e *Engine) Name() string {
	return EngineName
}

func (e *Engine) LoadModel(path string) (inference.Session, error) {
	m, err := LoadModelFile(path)
	if err != nil {
		return nil, err
	}
	return NewSession(m), nil
}

// Session evaluates a loaded model
type Session struct {
	model   *Model
	weights *mat.Dense
	bias    *mat.VecDense
}

// NewSession builds a session from an in-memory model
func NewSession(m *Model) *Session {
	s := &Session{model: m}
	width := m.InputWidth()

	if len(m.Weights) == 0 {
		ident := mat.NewDiagDense(width, nil)
		for i := range width {
			ident.SetDiag(i, 1)
		}
		s.weights = mat.DenseCopyOf(ident)
	} else {
		flat := make([]float64, 0, len(m.Weights)*width)
		for _, row := range m.Weights {
			flat = append(flat, row...)
		}
		s.weights = mat.NewDense(len(m.Weights), width, flat)
	}

	if len(m.Bias) > 0 {
		s.bias = mat.NewVecDense(len(m.Bias), append([]float64(nil), m.Bias...))
	}
	return s
}

func (s *Session) InputNames() []string {
	return s.model.Inputs
}

func (s *Session) OutputNames() []string {
	return []string{s.model.Output}
}

// Run projects the summary of every batch row
func (s *Session) Run(inputs map[string]*tensor.Tensor) (map[string][][]float32, error) {
	batch := -1
	for _, name := range s.model.Inputs {
		t, ok := inputs[name]
		if !ok || len(t.Shape) == 0 {
			return nil, common.NewEmbeddingError(common.ErrCodeShape, "run", fmt.Sprintf("missing input %q", name), nil)
		}
		v := int(t.Shape[0])
		if batch >= 0 && v != batch {
			return nil, common.NewEmbeddingError(common.ErrCodeShape, "run",
				fmt.Sprintf("input %q has batch %d, want %d", name, v, batch), nil)
		}
		batch = v
	}
	if batch <= 0 {
		return nil, common.NewEmbeddingError(common.ErrCodeEmptyInput, "run", "empty batch", nil)
	}

	features := mat.NewDense(batch, s.model.InputWidth(), nil)
	for i, name := range s.model.Inputs {
		t := inputs[name]
		per := len(t.Data) / batch
		for row := range batch {
			summary := summarize(t.Data[row*per : (row+1)*per])
			for k, v := range summary {
				features.Set(row, i*statsPerInput+k, v)
			}
		}
	}

	// [V, width] x [width, D]
	var out mat.Dense
	out.Mul(features, s.weights.T())

	rows := make([][]float32, batch)
	for row := range batch {
		vec := mat.Row(nil, row, &out)
		if s.bias != nil {
			floats.Add(vec, s.bias.RawVector().Data)
		}
		rows[row] = make([]float32, len(vec))
		for k, v := range vec {
			rows[row][k] = float32(v)
		}
	}

	return map[string][][]float32{s.model.Output: rows}, nil
}

func (s *Session) Close() error {
	return nil
}

// summarize returns mean, standard deviation, minimum and maximum of values
func summarize(values []float32) [statsPerInput]float64 {
	var out [statsPerInput]float64
	if len(values) == 0 {
		return out
	}

	x := make([]float64, len(values))
	for i, v := range values {
		x[i] = float64(v)
	}

	mean, std := stat.PopMeanStdDev(x, nil)
	out[0] = mean
	out[1] = std
	out[2] = floats.Min(x)
	out[3] = floats.Max(x)
	return out
}
