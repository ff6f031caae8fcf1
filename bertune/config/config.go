package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/bertune/bertune"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Model     ModelConfig     `mapstructure:"model"`
	Tokenizer TokenizerConfig `mapstructure:"tokenizer"`
	Training  TrainingConfig  `mapstructure:"training"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
}

// ModelConfig stores pretrained checkpoint geometry and artifact locations.
type ModelConfig struct {
	Repo       string `mapstructure:"repo"`
	ModelDir   string `mapstructure:"modelDir"`
	VocabSize  int    `mapstructure:"vocabSize"`
	HiddenSize int    `mapstructure:"hiddenSize"`
	MLPHiddens int    `mapstructure:"mlpHiddens"`
	MaxSeqLen  int    `mapstructure:"maxSeqLen"`
	NumClasses int    `mapstructure:"numClasses"`
}

// TokenizerConfig stores WordPiece tokenizer settings.
type TokenizerConfig struct {
	Backend   string `mapstructure:"backend"` // "sugarme" or "radix"
	Lowercase bool   `mapstructure:"lowercase"`
	MaxSeqLen int    `mapstructure:"maxSeqLen"`
}

// TrainingConfig stores fine-tuning hyperparameters.
type TrainingConfig struct {
	LearningRate float64 `mapstructure:"learningRate"`
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batchSize"`
	WeightDecay  float64 `mapstructure:"weightDecay"`
	Seed         int64   `mapstructure:"seed"`
	LogEvery     int     `mapstructure:"logEvery"`
	RunDBPath    string  `mapstructure:"runDBPath"`
}

// DatasetConfig stores dataset loading settings.
type DatasetConfig struct {
	Path        string `mapstructure:"path"`
	MaxExamples int    `mapstructure:"maxExamples"`
	Dedup       bool   `mapstructure:"dedup"`
}

var AppConfig Config

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("..")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values. Model geometry defaults match bert-base-uncased.
	viper.SetDefault("model.repo", "bert-base-uncased")
	viper.SetDefault("model.modelDir", internal.DefaultModelDir)
	viper.SetDefault("model.vocabSize", 30522)
	viper.SetDefault("model.hiddenSize", 768)
	viper.SetDefault("model.mlpHiddens", 768)
	viper.SetDefault("model.maxSeqLen", 512)
	viper.SetDefault("model.numClasses", 2)

	viper.SetDefault("tokenizer.backend", "sugarme")
	viper.SetDefault("tokenizer.lowercase", true)
	viper.SetDefault("tokenizer.maxSeqLen", 128)

	viper.SetDefault("training.learningRate", 1e-4)
	viper.SetDefault("training.epochs", 3)
	viper.SetDefault("training.batchSize", 32)
	viper.SetDefault("training.weightDecay", 0.01)
	viper.SetDefault("training.seed", 42)
	viper.SetDefault("training.logEvery", 50)
	viper.SetDefault("training.runDBPath", internal.DefaultRunDBPath)

	viper.SetDefault("dataset.path", "")
	viper.SetDefault("dataset.maxExamples", 0)
	viper.SetDefault("dataset.dedup", true)

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. training.learningRate becomes TRAINING_LEARNINGRATE

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; defaults will be used.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
