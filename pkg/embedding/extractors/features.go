package extractors

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/RyanBlaney/sonido-embed/pkg/embedding/common"
)

// Kind is one of the three per-segment feature families fed to the model
type Kind int

const (
	KindMel Kind = iota
	KindChroma
	KindTempo
)

// Kinds lists every feature kind in model input order
var Kinds = [...]Kind{KindMel, KindChroma, KindTempo}

const numKinds = len(Kinds)

func (k Kind) String() string {
	switch k {
	case KindMel:
		return "mel"
	case KindChroma:
		return "chroma"
	case KindTempo:
		return "tempo"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// DisplayName is the human-facing label used in reports
func (k Kind) DisplayName() string {
	if k == KindMel {
		return "LogMel"
	}
	return cases.Title(language.English).String(k.String())
}

// ParseKind accepts "mel", "chroma", "tempo" and the single-letter aliases
// L, C and T, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mel", "l", "logmel":
		return KindMel, nil
	case "chroma", "c":
		return KindChroma, nil
	case "tempo", "t":
		return KindTempo, nil
	default:
		return 0, common.NewEmbeddingError(common.ErrCodeInvalidArgument, "parse feature kind",
			fmt.Sprintf("unknown feature type %q (want mel, chroma or tempo)", s), nil)
	}
}

// Matrix is a dense row-major grid of float32 values
type Matrix struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float32 `json:"data"`
}

// NewMatrix allocates a zeroed rows x cols matrix
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// Empty reports whether the matrix has no cells
func (m *Matrix) Empty() bool {
	return m == nil || m.Rows == 0 || m.Cols == 0
}

func (m *Matrix) At(r, c int) float32 {
	return m.Data[r*m.Cols+c]
}

func (m *Matrix) Set(r, c int, v float32) {
	m.Data[r*m.Cols+c] = v
}

// Row returns row r without copying
func (m *Matrix) Row(r int) []float32 {
	return m.Data[r*m.Cols : (r+1)*m.Cols]
}

// Shape returns [rows, cols]
func (m *Matrix) Shape() []int {
	if m == nil {
		return []int{0, 0}
	}
	return []int{m.Rows, m.Cols}
}

// SegmentFeatures holds the feature matrices of one segment. A slot is nil
// when its extractor produced nothing; the segment is still usable for the
// kinds that are present.
type SegmentFeatures struct {
	slots [numKinds]*Matrix
}

// Set stores m under k. Empty matrices clear the slot.
func (f *SegmentFeatures) Set(k Kind, m *Matrix) {
	if m.Empty() {
		f.slots[k] = nil
		return
	}
	f.slots[k] = m
}

// Get returns the matrix for k and whether it is present
func (f *SegmentFeatures) Get(k Kind) (*Matrix, bool) {
	if k < 0 || int(k) >= numKinds {
		return nil, false
	}
	m := f.slots[k]
	return m, m != nil
}

// Has reports whether k is present
func (f *SegmentFeatures) Has(k Kind) bool {
	_, ok := f.Get(k)
	return ok
}

// Complete reports whether all three kinds are present
func (f *SegmentFeatures) Complete() bool {
	for _, k := range Kinds {
		if !f.Has(k) {
			return false
		}
	}
	return true
}

// Missing lists the absent kinds
func (f *SegmentFeatures) Missing() []Kind {
	var missing []Kind
	for _, k := range Kinds {
		if !f.Has(k) {
			missing = append(missing, k)
		}
	}
	return missing
}
