package model

import "fmt"

// HiddenStates is a (batch, positions, features) tensor of encoder outputs
// stored as one flat row-major arena. It is created fresh per Encode call and
// owned by the caller for the duration of one prediction pass.
type HiddenStates struct {
	Data     []float64
	Batch    int
	SeqLen   int
	Features int
}

// NewHiddenStates allocates a zeroed hidden state tensor.
func NewHiddenStates(batch, seqLen, features int) *HiddenStates {
	return &HiddenStates{
		Data:     make([]float64, batch*seqLen*features),
		Batch:    batch,
		SeqLen:   seqLen,
		Features: features,
	}
}

// HiddenStatesFromFloat32 converts a flat float32 runtime output into a
// HiddenStates tensor.
func HiddenStatesFromFloat32(data []float32, batch, seqLen, features int) (*HiddenStates, error) {
	if len(data) != batch*seqLen*features {
		return nil, fmt.Errorf("%w: %d values for shape (%d,%d,%d)", ErrShapeMismatch, len(data), batch, seqLen, features)
	}
	h := NewHiddenStates(batch, seqLen, features)
	for i, v := range data {
		h.Data[i] = float64(v)
	}
	return h, nil
}

// At returns the feature value at (batch b, position p, feature f).
func (h *HiddenStates) At(b, p, f int) float64 {
	return h.Data[(b*h.SeqLen+p)*h.Features+f]
}

// Set writes the feature value at (batch b, position p, feature f).
func (h *HiddenStates) Set(b, p, f int, v float64) {
	h.Data[(b*h.SeqLen+p)*h.Features+f] = v
}

// Row returns the feature vector at (batch b, position p) as a subslice of
// the arena; callers must not retain it across writes.
func (h *HiddenStates) Row(b, p int) []float64 {
	start := (b*h.SeqLen + p) * h.Features
	return h.Data[start : start+h.Features]
}

// ValidPosition reports whether p indexes the position axis for any batch
// element.
func (h *HiddenStates) ValidPosition(p int) bool {
	return p >= 0 && p < h.SeqLen
}

// CLSVectors returns the position-0 feature vector of every batch element,
// the conventional aggregate sequence representation for classification.
func (h *HiddenStates) CLSVectors() [][]float64 {
	out := make([][]float64, h.Batch)
	for b := 0; b < h.Batch; b++ {
		row := make([]float64, h.Features)
		copy(row, h.Row(b, 0))
		out[b] = row
	}
	return out
}
