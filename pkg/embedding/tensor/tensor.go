package tensor

import (
	"fmt"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
	"github.com/RyanBlaney/sonido-embed/pkg/embedding/extractors"
)

// Tensor is a flat float32 buffer with its shape. The leading dimension is
// the batch (segment) index.
type Tensor struct {
	Data  []float32 `json:"data"`
	Shape []int64   `json:"shape"`
}

// Len returns the product of the shape
func (t *Tensor) Len() int {
	if t == nil || len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return int(n)
}

// Batch is the model input for one file
type Batch struct {
	Mel    *Tensor
	Chroma *Tensor
	Tempo  *Tensor
}

// Get returns the tensor of a feature kind
func (b *Batch) Get(k extractors.Kind) *Tensor {
	switch k {
	case extractors.KindMel:
		return b.Mel
	case extractors.KindChroma:
		return b.Chroma
	case extractors.KindTempo:
		return b.Tempo
	default:
		return nil
	}
}

// Dims are the per-segment dimensions fixed by the first segment
type Dims struct {
	M int `json:"mel_bands"`
	T int `json:"frames"`
	C int `json:"chroma_bins"`
	L int `json:"tempo_lags"`
}

// PerSegment returns the element count of kind k in one segment
func (d Dims) PerSegment(k extractors.Kind) int {
	switch k {
	case extractors.KindMel:
		return d.M * d.T
	case extractors.KindChroma:
		return d.C * d.T
	case extractors.KindTempo:
		return d.L
	default:
		return 0
	}
}

// Shape returns the per-segment shape of kind k
func (d Dims) Shape(k extractors.Kind) []int {
	switch k {
	case extractors.KindMel:
		return []int{d.M, d.T}
	case extractors.KindChroma:
		return []int{d.C, d.T}
	case extractors.KindTempo:
		return []int{d.L}
	default:
		return nil
	}
}

// Batcher stacks per-segment features into [V, M, T], [V, C, T] and [V, L]
// tensors. Its buffers are reused across calls and grow to the largest batch
// seen, so tensors from one Build are overwritten by the next. A Batcher must
// not be used from more than one goroutine.
type Batcher struct {
	mel    []float32
	chroma []float32
	tempo  []float32
	logger logging.Logger
}

// NewBatcher creates a new tensor batcher
func NewBatcher() *Batcher {
	return &Batcher{
		logger: logging.WithFields(logging.Fields{
			"component": "tensor_batcher",
		}),
	}
}

// Dimensions derives the batch dimensions from the first segment and checks
// every segment against them. Chroma may carry more frames than mel; only the
// first T columns are used.
func Dimensions(segments []*extractors.SegmentFeatures) (Dims, error) {
	if len(segments) == 0 {
		return Dims{}, common.NewEmbeddingError(common.ErrCodeEmptyInput, "batch", "no segment features", nil)
	}

	first := segments[0]
	mel, okM := first.Get(extractors.KindMel)
	chroma, okC := first.Get(extractors.KindChroma)
	tempo, okT := first.Get(extractors.KindTempo)
	if !okM || !okC || !okT {
		return Dims{}, shapeError(0, fmt.Sprintf("missing features %v", first.Missing()))
	}
	if tempo.Rows != 1 {
		return Dims{}, shapeError(0, fmt.Sprintf("tempo must have one row, got %d", tempo.Rows))
	}

	d := Dims{M: mel.Rows, T: mel.Cols, C: chroma.Rows, L: tempo.Cols}
	for v, seg := range segments {
		if err := d.check(v, seg); err != nil {
			return Dims{}, err
		}
	}
	return d, nil
}

func (d Dims) check(v int, seg *extractors.SegmentFeatures) error {
	if seg == nil {
		return shapeError(v, "segment features are nil")
	}
	mel, ok := seg.Get(extractors.KindMel)
	if !ok {
		return shapeError(v, "mel missing")
	}
	if mel.Rows != d.M || mel.Cols != d.T {
		return shapeError(v, fmt.Sprintf("mel is %dx%d, want %dx%d", mel.Rows, mel.Cols, d.M, d.T))
	}
	chroma, ok := seg.Get(extractors.KindChroma)
	if !ok {
		return shapeError(v, "chroma missing")
	}
	if chroma.Rows != d.C || chroma.Cols < d.T {
		return shapeError(v, fmt.Sprintf("chroma is %dx%d, want %d rows and at least %d frames", chroma.Rows, chroma.Cols, d.C, d.T))
	}
	tempo, ok := seg.Get(extractors.KindTempo)
	if !ok {
		return shapeError(v, "tempo missing")
	}
	if tempo.Rows != 1 || tempo.Cols != d.L {
		return shapeError(v, fmt.Sprintf("tempo is %dx%d, want 1x%d", tempo.Rows, tempo.Cols, d.L))
	}
	return nil
}

func shapeError(v int, msg string) error {
	return common.NewEmbeddingError(common.ErrCodeShape, "batch", fmt.Sprintf("segment %d: %s", v, msg), nil)
}

// Build validates shapes and fills the three batched tensors
func (b *Batcher) Build(segments []*extractors.SegmentFeatures) (*Batch, Dims, error) {
	d, err := Dimensions(segments)
	if err != nil {
		return nil, Dims{}, err
	}

	v := len(segments)
	b.mel = grow(b.mel, v*d.M*d.T)
	b.chroma = grow(b.chroma, v*d.C*d.T)
	b.tempo = grow(b.tempo, v*d.L)

	for i, seg := range segments {
		fill(b.mel[i*d.M*d.T:], seg, extractors.KindMel, d)
		fill(b.chroma[i*d.C*d.T:], seg, extractors.KindChroma, d)
		fill(b.tempo[i*d.L:], seg, extractors.KindTempo, d)
	}

	b.logger.Debug("Input tensors built", logging.Fields{
		"function": "Build",
		"segments": v,
		"mel":      []int{v, d.M, d.T},
		"chroma":   []int{v, d.C, d.T},
		"tempo":    []int{v, d.L},
	})

	batch := &Batch{
		Mel:    &Tensor{Data: b.mel, Shape: []int64{int64(v), int64(d.M), int64(d.T)}},
		Chroma: &Tensor{Data: b.chroma, Shape: []int64{int64(v), int64(d.C), int64(d.T)}},
		Tempo:  &Tensor{Data: b.tempo, Shape: []int64{int64(v), int64(d.L)}},
	}
	return batch, d, nil
}

// Flatten copies one feature kind of every segment into a fresh [V, ...] buffer
// with the same layout and checks as Build.
func Flatten(segments []*extractors.SegmentFeatures, kind extractors.Kind) ([]float32, Dims, error) {
	d, err := Dimensions(segments)
	if err != nil {
		return nil, Dims{}, err
	}

	per := d.PerSegment(kind)
	out := make([]float32, len(segments)*per)
	for i, seg := range segments {
		fill(out[i*per:], seg, kind, d)
	}
	return out, d, nil
}

// fill copies the first d.T columns of a segment's matrix into dst
func fill(dst []float32, seg *extractors.SegmentFeatures, kind extractors.Kind, d Dims) {
	m, _ := seg.Get(kind)
	switch kind {
	case extractors.KindMel, extractors.KindChroma:
		for r := 0; r < m.Rows; r++ {
			copy(dst[r*d.T:(r+1)*d.T], m.Row(r)[:d.T])
		}
	case extractors.KindTempo:
		copy(dst[:d.L], m.Row(0))
	}
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
