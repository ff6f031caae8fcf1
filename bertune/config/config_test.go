package config

import (
	"os"
	"path/filepath"
	"testing"

	internal "github.com/ZanzyTHEbar/bertune/bertune"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigTestSuite tests the config package functionality
type ConfigTestSuite struct {
	suite.Suite
	tempDir string
	origDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	viper.Reset()

	var err error
	suite.origDir, err = os.Getwd()
	require.NoError(suite.T(), err)

	tempDir, err := os.MkdirTemp("", "bertune-config-test-*")
	require.NoError(suite.T(), err)
	suite.tempDir = tempDir

	err = os.Chdir(tempDir)
	require.NoError(suite.T(), err)
}

func (suite *ConfigTestSuite) TearDownTest() {
	if suite.origDir != "" {
		os.Chdir(suite.origDir)
	}
	if suite.tempDir != "" {
		os.RemoveAll(suite.tempDir)
	}
}

func (suite *ConfigTestSuite) TestLoadConfigWithDefaults() {
	cfg, err := LoadConfig("")

	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), cfg)

	// Model geometry defaults match bert-base-uncased.
	assert.Equal(suite.T(), "bert-base-uncased", cfg.Model.Repo)
	assert.Equal(suite.T(), internal.DefaultModelDir, cfg.Model.ModelDir)
	assert.Equal(suite.T(), 30522, cfg.Model.VocabSize)
	assert.Equal(suite.T(), 768, cfg.Model.HiddenSize)
	assert.Equal(suite.T(), 768, cfg.Model.MLPHiddens)
	assert.Equal(suite.T(), 512, cfg.Model.MaxSeqLen)
	assert.Equal(suite.T(), 2, cfg.Model.NumClasses)

	assert.Equal(suite.T(), "sugarme", cfg.Tokenizer.Backend)
	assert.True(suite.T(), cfg.Tokenizer.Lowercase)
	assert.Equal(suite.T(), 128, cfg.Tokenizer.MaxSeqLen)

	assert.Equal(suite.T(), 1e-4, cfg.Training.LearningRate)
	assert.Equal(suite.T(), 3, cfg.Training.Epochs)
	assert.Equal(suite.T(), 32, cfg.Training.BatchSize)
	assert.Equal(suite.T(), 0.01, cfg.Training.WeightDecay)
	assert.Equal(suite.T(), int64(42), cfg.Training.Seed)
	assert.Equal(suite.T(), internal.DefaultRunDBPath, cfg.Training.RunDBPath)

	assert.True(suite.T(), cfg.Dataset.Dedup)
}

func (suite *ConfigTestSuite) TestLoadConfigFromFile() {
	configContent := `
model:
  repo: my-org/tiny-bert
  hiddenSize: 128
  vocabSize: 5000
tokenizer:
  backend: radix
  maxSeqLen: 64
training:
  learningRate: 0.001
  epochs: 5
dataset:
  path: /data/train.tsv
  dedup: false
`
	configFile := filepath.Join(suite.tempDir, "config.yaml")
	err := os.WriteFile(configFile, []byte(configContent), 0o644)
	require.NoError(suite.T(), err)

	cfg, err := LoadConfig(configFile)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "my-org/tiny-bert", cfg.Model.Repo)
	assert.Equal(suite.T(), 128, cfg.Model.HiddenSize)
	assert.Equal(suite.T(), 5000, cfg.Model.VocabSize)
	assert.Equal(suite.T(), "radix", cfg.Tokenizer.Backend)
	assert.Equal(suite.T(), 64, cfg.Tokenizer.MaxSeqLen)
	assert.Equal(suite.T(), 0.001, cfg.Training.LearningRate)
	assert.Equal(suite.T(), 5, cfg.Training.Epochs)
	assert.Equal(suite.T(), "/data/train.tsv", cfg.Dataset.Path)
	assert.False(suite.T(), cfg.Dataset.Dedup)

	// Unset keys still fall back to defaults.
	assert.Equal(suite.T(), 32, cfg.Training.BatchSize)
	assert.Equal(suite.T(), 512, cfg.Model.MaxSeqLen)
}
