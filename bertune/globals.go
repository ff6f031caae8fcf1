package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultConfigPath is the default path to the config file
	DefaultAppName    = "bertune"
	DefaultConfigPath = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultCacheDir   = filepath.Join(DefaultConfigPath, ".cache")
	DefaultModelDir   = filepath.Join(DefaultCacheDir, "models")
	DefaultRunDBPath  = filepath.Join(DefaultConfigPath, "runs.db")

	// Default checkpoint artifact names inside a model directory
	DefaultVocabFile = "vocab.txt"
	DefaultModelFile = "model.onnx"

	// Default special token ids (bert-base-uncased vocabulary ordering)
	DefaultPADTokenID  int64 = 0
	DefaultUNKTokenID  int64 = 100
	DefaultCLSTokenID  int64 = 101
	DefaultSEPTokenID  int64 = 102
	DefaultMaskTokenID int64 = 103

	// Default special token surface forms
	CLSToken  = "[CLS]"
	SEPToken  = "[SEP]"
	MaskToken = "[MASK]"
	PADToken  = "[PAD]"
	UNKToken  = "[UNK]"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			// Last resort - use tmp directory
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
