package finetune

import (
	"context"
	"fmt"
	"math"

	internal "github.com/ZanzyTHEbar/bertune/bertune"
	"github.com/ZanzyTHEbar/bertune/bertune/classify"
	"github.com/ZanzyTHEbar/bertune/bertune/dataset"
	"github.com/ZanzyTHEbar/bertune/bertune/model"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// EpochMetrics are the aggregates of one training epoch.
type EpochMetrics struct {
	Epoch    int
	Loss     float64
	Accuracy float64
}

// RunResult summarizes a completed fine-tuning run.
type RunResult struct {
	RunID  string
	Epochs []EpochMetrics
}

// Trainer fine-tunes a classification head on top of a frozen encoder using
// minibatch gradient descent with softmax cross-entropy. Only the head's
// parameters are updated; the encoder is treated as a fixed feature
// extractor.
type Trainer struct {
	encoder model.Encoder
	head    *classify.Classifier
	args    TrainingArguments
	store   *RunStore
	logger  zerolog.Logger
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithRunStore attaches a run store; epoch metrics are persisted there.
func WithRunStore(store *RunStore) TrainerOption {
	return func(t *Trainer) { t.store = store }
}

// WithLogger overrides the default logger.
func WithLogger(logger zerolog.Logger) TrainerOption {
	return func(t *Trainer) { t.logger = logger }
}

// NewTrainer creates a trainer for the given encoder and head.
func NewTrainer(encoder model.Encoder, head *classify.Classifier, args TrainingArguments, opts ...TrainerOption) (*Trainer, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}
	if encoder.Hidden() != head.Config().NumHiddens {
		return nil, fmt.Errorf("encoder hidden width %d does not match head input %d", encoder.Hidden(), head.Config().NumHiddens)
	}
	t := &Trainer{
		encoder: encoder,
		head:    head,
		args:    args,
		logger:  internal.GetLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Fit runs the full training loop over pre-encoded batches, returning
// per-epoch metrics. When a run store is attached, every epoch is recorded
// under a fresh run id.
func (t *Trainer) Fit(ctx context.Context, batches []*dataset.EncodedBatch) (*RunResult, error) {
	if len(batches) == 0 {
		return nil, fmt.Errorf("no training batches")
	}
	result := &RunResult{}
	if t.store != nil {
		runID, err := t.store.BeginRun(t.args)
		if err != nil {
			return nil, fmt.Errorf("begin run: %w", err)
		}
		result.RunID = runID
	}

	for epoch := 1; epoch <= t.args.Epochs; epoch++ {
		totalLoss := 0.0
		correct := 0
		seen := 0
		for step, batch := range batches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			loss, hits, n, err := t.trainStep(ctx, batch)
			if err != nil {
				return nil, fmt.Errorf("epoch %d step %d: %w", epoch, step, err)
			}
			totalLoss += loss * float64(n)
			correct += hits
			seen += n
			if t.args.LogEvery > 0 && (step+1)%t.args.LogEvery == 0 {
				t.logger.Info().
					Int("epoch", epoch).
					Int("step", step+1).
					Float64("loss", loss).
					Msg("training step")
			}
		}
		m := EpochMetrics{
			Epoch:    epoch,
			Loss:     totalLoss / float64(seen),
			Accuracy: float64(correct) / float64(seen),
		}
		result.Epochs = append(result.Epochs, m)
		t.logger.Info().
			Int("epoch", epoch).
			Float64("loss", m.Loss).
			Float64("accuracy", m.Accuracy).
			Msg("epoch complete")
		if t.store != nil {
			if err := t.store.RecordEpoch(result.RunID, m); err != nil {
				return nil, fmt.Errorf("record epoch: %w", err)
			}
		}
	}
	return result, nil
}

// trainStep runs forward, loss and one gradient descent update on a batch.
// Returns the mean batch loss, the number of correct argmax predictions and
// the batch size.
func (t *Trainer) trainStep(ctx context.Context, batch *dataset.EncodedBatch) (float64, int, int, error) {
	h, err := t.encoder.Encode(ctx, batch.Input)
	if err != nil {
		return 0, 0, 0, err
	}
	features := h.CLSVectors()
	logits, err := t.head.LogitsFromFeatures(features)
	if err != nil {
		return 0, 0, 0, err
	}
	n, numClasses := logits.Dims()
	if n != len(batch.Labels) {
		return 0, 0, 0, fmt.Errorf("%d logit rows for %d labels", n, len(batch.Labels))
	}

	// Softmax cross-entropy and its gradient wrt logits.
	grad := mat.NewDense(n, numClasses, nil)
	loss := 0.0
	correct := 0
	for r := 0; r < n; r++ {
		row := logits.RawRowView(r)
		label := batch.Labels[r]
		if label < 0 || label >= numClasses {
			return 0, 0, 0, fmt.Errorf("label %d out of range for %d classes", label, numClasses)
		}
		if floats.MaxIdx(row) == label {
			correct++
		}
		maxLogit := floats.Max(row)
		sumExp := 0.0
		for _, v := range row {
			sumExp += math.Exp(v - maxLogit)
		}
		logSumExp := math.Log(sumExp) + maxLogit
		loss += logSumExp - row[label]

		gRow := grad.RawRowView(r)
		for c, v := range row {
			gRow[c] = math.Exp(v-logSumExp) / float64(n)
		}
		gRow[label] -= 1.0 / float64(n)
	}
	loss /= float64(n)

	// Parameter gradients: dW = X^T G, db = column sums of G.
	x := mat.NewDense(n, t.head.Config().NumHiddens, nil)
	for r, row := range features {
		x.SetRow(r, row)
	}
	var gw mat.Dense
	gw.Mul(x.T(), grad)

	w, b := t.head.Parameters()
	wData := w.RawMatrix().Data
	gwData := gw.RawMatrix().Data
	lr := t.args.LearningRate
	wd := t.args.WeightDecay
	for i := range wData {
		wData[i] -= lr * (gwData[i] + wd*wData[i])
	}
	for c := 0; c < numClasses; c++ {
		gb := 0.0
		for r := 0; r < n; r++ {
			gb += grad.At(r, c)
		}
		b[c] -= lr * gb
	}
	return loss, correct, n, nil
}

// Evaluate computes mean loss and accuracy over batches without updating
// parameters.
func (t *Trainer) Evaluate(ctx context.Context, batches []*dataset.EncodedBatch) (float64, float64, error) {
	totalLoss := 0.0
	correct := 0
	seen := 0
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		h, err := t.encoder.Encode(ctx, batch.Input)
		if err != nil {
			return 0, 0, err
		}
		logits, err := t.head.LogitsFromFeatures(h.CLSVectors())
		if err != nil {
			return 0, 0, err
		}
		n, numClasses := logits.Dims()
		for r := 0; r < n; r++ {
			row := logits.RawRowView(r)
			label := batch.Labels[r]
			if label < 0 || label >= numClasses {
				return 0, 0, fmt.Errorf("label %d out of range for %d classes", label, numClasses)
			}
			if floats.MaxIdx(row) == label {
				correct++
			}
			maxLogit := floats.Max(row)
			sumExp := 0.0
			for _, v := range row {
				sumExp += math.Exp(v - maxLogit)
			}
			totalLoss += math.Log(sumExp) + maxLogit - row[label]
		}
		seen += n
	}
	if seen == 0 {
		return 0, 0, fmt.Errorf("no evaluation examples")
	}
	return totalLoss / float64(seen), float64(correct) / float64(seen), nil
}
