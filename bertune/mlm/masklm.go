// Package mlm implements the masked-language-model prediction head: gather
// hidden vectors at requested positions and score them over the vocabulary.
package mlm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/ZanzyTHEbar/bertune/bertune/model"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Common error types for position gathering
var (
	ErrPositionOutOfRange = errors.New("prediction position out of range")
	ErrBatchMismatch      = errors.New("position set batch does not match hidden states batch")
	ErrRaggedPositions    = errors.New("position set rows have differing lengths")
)

const layerNormEps = 1e-5

// Config holds the fixed topology of the prediction head.
type Config struct {
	NumHiddens int // encoder hidden width (input features)
	MLPHiddens int // intermediate projection width
	VocabSize  int // output scores per prediction slot
}

// MaskLM owns the learned parameters of the MLM head: a dense projection to
// MLPHiddens, ReLU, layer normalization over the feature axis, and a dense
// projection to VocabSize. Parameters are mutated only through SetParameters;
// Forward never writes them.
type MaskLM struct {
	cfg Config

	w1    *mat.Dense // NumHiddens x MLPHiddens
	b1    []float64  // MLPHiddens
	gamma []float64  // MLPHiddens
	beta  []float64  // MLPHiddens
	w2    *mat.Dense // MLPHiddens x VocabSize
	b2    []float64  // VocabSize
}

// NewMaskLM creates a head with the given topology, parameters initialized
// from seed with std 1/sqrt(NumHiddens), layer norm at identity.
func NewMaskLM(cfg Config, seed int64) (*MaskLM, error) {
	if cfg.NumHiddens <= 0 || cfg.MLPHiddens <= 0 || cfg.VocabSize <= 0 {
		return nil, fmt.Errorf("invalid mlm head config: %+v", cfg)
	}
	rng := rand.New(rand.NewSource(seed))
	std := 1.0 / math.Sqrt(float64(cfg.NumHiddens))

	m := &MaskLM{
		cfg:   cfg,
		w1:    randDense(cfg.NumHiddens, cfg.MLPHiddens, std, rng),
		b1:    make([]float64, cfg.MLPHiddens),
		gamma: make([]float64, cfg.MLPHiddens),
		beta:  make([]float64, cfg.MLPHiddens),
		w2:    randDense(cfg.MLPHiddens, cfg.VocabSize, std, rng),
		b2:    make([]float64, cfg.VocabSize),
	}
	for i := range m.gamma {
		m.gamma[i] = 1.0
	}
	return m, nil
}

func randDense(r, c int, std float64, rng *rand.Rand) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return mat.NewDense(r, c, data)
}

// Config returns the head topology.
func (m *MaskLM) Config() Config { return m.cfg }

// Gather extracts the hidden vector at every requested (batch, position)
// pair, preserving batch order and the requested position order within each
// batch element. The result has one row per prediction slot, batch-major:
// row b*numPreds+k holds the vector at (b, positions[b][k]).
//
// Positions must be rectangular and in range; violations are hard errors
// rather than silent clamping.
func Gather(h *model.HiddenStates, positions [][]int) (*mat.Dense, error) {
	if len(positions) != h.Batch {
		return nil, fmt.Errorf("%w: %d position rows, %d batch elements", ErrBatchMismatch, len(positions), h.Batch)
	}
	if h.Batch == 0 {
		return nil, nil
	}
	numPreds := len(positions[0])
	for b, row := range positions {
		if len(row) != numPreds {
			return nil, fmt.Errorf("%w: row %d has %d entries, want %d", ErrRaggedPositions, b, len(row), numPreds)
		}
	}
	if numPreds == 0 {
		return nil, nil
	}
	out := mat.NewDense(h.Batch*numPreds, h.Features, nil)
	for b, row := range positions {
		for k, p := range row {
			if !h.ValidPosition(p) {
				return nil, fmt.Errorf("%w: position %d at (batch %d, slot %d), sequence length %d", ErrPositionOutOfRange, p, b, k, h.SeqLen)
			}
			out.SetRow(b*numPreds+k, h.Row(b, p))
		}
	}
	return out, nil
}

// Scores holds unnormalized vocabulary scores shaped
// (batch, numPreds, vocabSize) in one flat row-major arena.
type Scores struct {
	Data      []float64
	Batch     int
	NumPreds  int
	VocabSize int
}

// At returns the score of vocabulary entry v for prediction slot k of batch
// element b.
func (s *Scores) At(b, k, v int) float64 {
	return s.Data[(b*s.NumPreds+k)*s.VocabSize+v]
}

// Row returns the score distribution for one prediction slot as a subslice
// of the arena.
func (s *Scores) Row(b, k int) []float64 {
	start := (b*s.NumPreds + k) * s.VocabSize
	return s.Data[start : start+s.VocabSize]
}

// Forward gathers the requested hidden vectors and maps each independently
// through dense -> ReLU -> layer norm -> dense, producing a score
// distribution per prediction slot. Deterministic for fixed parameters.
func (m *MaskLM) Forward(h *model.HiddenStates, positions [][]int) (*Scores, error) {
	if h.Features != m.cfg.NumHiddens {
		return nil, fmt.Errorf("hidden states have %d features, head expects %d", h.Features, m.cfg.NumHiddens)
	}
	gathered, err := Gather(h, positions)
	if err != nil {
		return nil, err
	}
	numPreds := 0
	if len(positions) > 0 {
		numPreds = len(positions[0])
	}
	if gathered == nil {
		return &Scores{Data: nil, Batch: h.Batch, NumPreds: numPreds, VocabSize: m.cfg.VocabSize}, nil
	}

	// First projection: (rows, NumHiddens) x (NumHiddens, MLPHiddens)
	var hiddenOut mat.Dense
	hiddenOut.Mul(gathered, m.w1)
	rows, _ := hiddenOut.Dims()
	for r := 0; r < rows; r++ {
		row := hiddenOut.RawRowView(r)
		floats.Add(row, m.b1)
		relu(row)
		m.layerNorm(row)
	}

	// Output projection: (rows, MLPHiddens) x (MLPHiddens, VocabSize)
	var logits mat.Dense
	logits.Mul(&hiddenOut, m.w2)
	out := &Scores{
		Data:      make([]float64, rows*m.cfg.VocabSize),
		Batch:     h.Batch,
		NumPreds:  numPreds,
		VocabSize: m.cfg.VocabSize,
	}
	for r := 0; r < rows; r++ {
		row := logits.RawRowView(r)
		floats.Add(row, m.b2)
		copy(out.Data[r*m.cfg.VocabSize:(r+1)*m.cfg.VocabSize], row)
	}
	return out, nil
}

func relu(row []float64) {
	for i, v := range row {
		if v < 0 {
			row[i] = 0
		}
	}
}

// layerNorm normalizes one feature vector to zero mean and unit variance,
// then applies the learned scale and shift.
func (m *MaskLM) layerNorm(row []float64) {
	mean := floats.Sum(row) / float64(len(row))
	variance := 0.0
	for _, v := range row {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(row))
	inv := 1.0 / math.Sqrt(variance+layerNormEps)
	for i, v := range row {
		row[i] = (v-mean)*inv*m.gamma[i] + m.beta[i]
	}
}

// Parameters returns the head's learned parameters. The matrices and slices
// are the live backing storage: an external training procedure updates them
// in place between Forward calls.
func (m *MaskLM) Parameters() (w1 *mat.Dense, b1, gamma, beta []float64, w2 *mat.Dense, b2 []float64) {
	return m.w1, m.b1, m.gamma, m.beta, m.w2, m.b2
}

// SetParameters replaces the head's parameters after dimension checks.
func (m *MaskLM) SetParameters(w1 *mat.Dense, b1, gamma, beta []float64, w2 *mat.Dense, b2 []float64) error {
	if r, c := w1.Dims(); r != m.cfg.NumHiddens || c != m.cfg.MLPHiddens {
		return fmt.Errorf("w1 has shape (%d,%d), want (%d,%d)", r, c, m.cfg.NumHiddens, m.cfg.MLPHiddens)
	}
	if r, c := w2.Dims(); r != m.cfg.MLPHiddens || c != m.cfg.VocabSize {
		return fmt.Errorf("w2 has shape (%d,%d), want (%d,%d)", r, c, m.cfg.MLPHiddens, m.cfg.VocabSize)
	}
	if len(b1) != m.cfg.MLPHiddens || len(gamma) != m.cfg.MLPHiddens || len(beta) != m.cfg.MLPHiddens {
		return fmt.Errorf("intermediate parameter length mismatch")
	}
	if len(b2) != m.cfg.VocabSize {
		return fmt.Errorf("b2 has length %d, want %d", len(b2), m.cfg.VocabSize)
	}
	m.w1, m.b1, m.gamma, m.beta, m.w2, m.b2 = w1, b1, gamma, beta, w2, b2
	return nil
}
