// Package finetune drives classification-head fine-tuning over a frozen
// pretrained encoder: training arguments, the epoch loop, and a run store
// for metric history.
package finetune

import (
	"fmt"

	"github.com/ZanzyTHEbar/bertune/bertune/config"
)

// TrainingArguments are the hyperparameters of one fine-tuning run.
type TrainingArguments struct {
	LearningRate float64
	Epochs       int
	BatchSize    int
	WeightDecay  float64
	Seed         int64
	LogEvery     int
}

// DefaultTrainingArguments mirror the defaults the config package registers.
func DefaultTrainingArguments() TrainingArguments {
	return TrainingArguments{
		LearningRate: 1e-4,
		Epochs:       3,
		BatchSize:    32,
		WeightDecay:  0.01,
		Seed:         42,
		LogEvery:     50,
	}
}

// FromConfig builds arguments from the loaded application config.
func FromConfig(cfg *config.TrainingConfig) TrainingArguments {
	return TrainingArguments{
		LearningRate: cfg.LearningRate,
		Epochs:       cfg.Epochs,
		BatchSize:    cfg.BatchSize,
		WeightDecay:  cfg.WeightDecay,
		Seed:         cfg.Seed,
		LogEvery:     cfg.LogEvery,
	}
}

// Validate rejects arguments that cannot produce a meaningful run.
func (a TrainingArguments) Validate() error {
	if a.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", a.LearningRate)
	}
	if a.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", a.Epochs)
	}
	if a.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", a.BatchSize)
	}
	if a.WeightDecay < 0 {
		return fmt.Errorf("weight decay must be non-negative, got %g", a.WeightDecay)
	}
	return nil
}
