// Package classify implements the sequence classification head fine-tuned on
// top of a pretrained encoder's [CLS] representation.
package classify

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ZanzyTHEbar/bertune/bertune/model"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Config holds the classification head topology.
type Config struct {
	NumHiddens int // encoder hidden width
	NumClasses int
}

// Classifier is a linear head over the position-0 ([CLS]) hidden vector.
// Parameters are owned by the instance and updated in place by the trainer.
type Classifier struct {
	cfg Config

	w *mat.Dense // NumHiddens x NumClasses
	b []float64  // NumClasses
}

// NewClassifier creates a classification head with parameters initialized
// from seed.
func NewClassifier(cfg Config, seed int64) (*Classifier, error) {
	if cfg.NumHiddens <= 0 || cfg.NumClasses <= 1 {
		return nil, fmt.Errorf("invalid classifier config: %+v", cfg)
	}
	rng := rand.New(rand.NewSource(seed))
	std := 1.0 / math.Sqrt(float64(cfg.NumHiddens))
	data := make([]float64, cfg.NumHiddens*cfg.NumClasses)
	for i := range data {
		data[i] = rng.NormFloat64() * std
	}
	return &Classifier{
		cfg: cfg,
		w:   mat.NewDense(cfg.NumHiddens, cfg.NumClasses, data),
		b:   make([]float64, cfg.NumClasses),
	}, nil
}

// Config returns the head topology.
func (c *Classifier) Config() Config { return c.cfg }

// LogitsFromFeatures maps one [CLS] feature vector per row to class logits.
func (c *Classifier) LogitsFromFeatures(features [][]float64) (*mat.Dense, error) {
	if len(features) == 0 {
		return nil, nil
	}
	for i, row := range features {
		if len(row) != c.cfg.NumHiddens {
			return nil, fmt.Errorf("feature row %d has %d values, want %d", i, len(row), c.cfg.NumHiddens)
		}
	}
	x := mat.NewDense(len(features), c.cfg.NumHiddens, nil)
	for i, row := range features {
		x.SetRow(i, row)
	}
	var logits mat.Dense
	logits.Mul(x, c.w)
	rows, _ := logits.Dims()
	for r := 0; r < rows; r++ {
		floats.Add(logits.RawRowView(r), c.b)
	}
	return &logits, nil
}

// Logits runs the head over the [CLS] vectors of a hidden state batch.
func (c *Classifier) Logits(h *model.HiddenStates) (*mat.Dense, error) {
	if h.Features != c.cfg.NumHiddens {
		return nil, fmt.Errorf("hidden states have %d features, head expects %d", h.Features, c.cfg.NumHiddens)
	}
	return c.LogitsFromFeatures(h.CLSVectors())
}

// Predict returns the argmax class per batch element.
func (c *Classifier) Predict(h *model.HiddenStates) ([]int, error) {
	logits, err := c.Logits(h)
	if err != nil {
		return nil, err
	}
	if logits == nil {
		return nil, nil
	}
	rows, _ := logits.Dims()
	out := make([]int, rows)
	for r := 0; r < rows; r++ {
		out[r] = floats.MaxIdx(logits.RawRowView(r))
	}
	return out, nil
}

// Parameters returns the live weight matrix and bias for in-place updates.
func (c *Classifier) Parameters() (*mat.Dense, []float64) { return c.w, c.b }
