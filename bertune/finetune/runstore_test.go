package finetune

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStoreRoundTrip(t *testing.T) {
	store, err := NewRunStoreAt(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	runID, err := store.BeginRun(DefaultTrainingArguments())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	epochs := []EpochMetrics{
		{Epoch: 1, Loss: 0.9, Accuracy: 0.55},
		{Epoch: 2, Loss: 0.6, Accuracy: 0.71},
		{Epoch: 3, Loss: 0.4, Accuracy: 0.83},
	}
	for _, m := range epochs {
		require.NoError(t, store.RecordEpoch(runID, m))
	}

	history, err := store.History(runID)
	require.NoError(t, err)
	assert.Equal(t, epochs, history)
}

func TestRunStoreSeparatesRuns(t *testing.T) {
	store, err := NewRunStoreAt(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	runA, err := store.BeginRun(DefaultTrainingArguments())
	require.NoError(t, err)
	runB, err := store.BeginRun(DefaultTrainingArguments())
	require.NoError(t, err)
	require.NotEqual(t, runA, runB)

	require.NoError(t, store.RecordEpoch(runA, EpochMetrics{Epoch: 1, Loss: 1.0, Accuracy: 0.5}))

	history, err := store.History(runB)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRunStoreRejectsDuplicateEpoch(t *testing.T) {
	store, err := NewRunStoreAt(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	runID, err := store.BeginRun(DefaultTrainingArguments())
	require.NoError(t, err)
	require.NoError(t, store.RecordEpoch(runID, EpochMetrics{Epoch: 1, Loss: 1, Accuracy: 0.5}))
	assert.Error(t, store.RecordEpoch(runID, EpochMetrics{Epoch: 1, Loss: 1, Accuracy: 0.5}))
}
