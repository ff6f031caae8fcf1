package classify

import (
	"testing"

	"github.com/ZanzyTHEbar/bertune/bertune/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierLogitsShape(t *testing.T) {
	head, err := NewClassifier(Config{NumHiddens: 8, NumClasses: 3}, 42)
	require.NoError(t, err)

	h := model.NewHiddenStates(4, 6, 8)
	logits, err := head.Logits(h)
	require.NoError(t, err)
	rows, cols := logits.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)
}

func TestClassifierPredictArgmax(t *testing.T) {
	head, err := NewClassifier(Config{NumHiddens: 2, NumClasses: 2}, 1)
	require.NoError(t, err)

	// Hand-set weights: class 0 fires on feature 0, class 1 on feature 1.
	w, b := head.Parameters()
	w.Set(0, 0, 1)
	w.Set(0, 1, 0)
	w.Set(1, 0, 0)
	w.Set(1, 1, 1)
	b[0], b[1] = 0, 0

	h := model.NewHiddenStates(2, 3, 2)
	h.Set(0, 0, 0, 5) // CLS of batch 0 points at class 0
	h.Set(1, 0, 1, 5) // CLS of batch 1 points at class 1

	preds, err := head.Predict(h)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, preds)
}

func TestClassifierUsesCLSPosition(t *testing.T) {
	head, err := NewClassifier(Config{NumHiddens: 2, NumClasses: 2}, 1)
	require.NoError(t, err)
	w, b := head.Parameters()
	w.Set(0, 0, 1)
	w.Set(0, 1, 0)
	w.Set(1, 0, 0)
	w.Set(1, 1, 1)
	b[0], b[1] = 0, 0

	// Signal placed away from position 0 must not affect the prediction.
	h := model.NewHiddenStates(1, 3, 2)
	h.Set(0, 0, 0, 1)
	h.Set(0, 2, 1, 100)

	preds, err := head.Predict(h)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, preds)
}

func TestClassifierFeatureMismatch(t *testing.T) {
	head, err := NewClassifier(Config{NumHiddens: 4, NumClasses: 2}, 1)
	require.NoError(t, err)
	h := model.NewHiddenStates(1, 2, 8)
	_, err = head.Logits(h)
	assert.Error(t, err)
}

func TestNewClassifierRejectsBadConfig(t *testing.T) {
	_, err := NewClassifier(Config{NumHiddens: 0, NumClasses: 2}, 1)
	assert.Error(t, err)
	_, err = NewClassifier(Config{NumHiddens: 4, NumClasses: 1}, 1)
	assert.Error(t, err)
}
