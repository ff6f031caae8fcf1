package tokenizer

import (
	"fmt"
)

// Tokenizer converts raw text to model-ready token IDs, attention masks and
// token type ids. TokenizePairs encodes sentence pairs in the BERT
// [CLS] a [SEP] b [SEP] layout with type id 1 over the second sentence.
type Tokenizer interface {
	Tokenize(texts []string) (inputIDs, attentionMasks, typeIDs [][]int64, err error)
	TokenizePairs(first, second []string) (inputIDs, attentionMasks, typeIDs [][]int64, err error)
}

// Config holds basic tokenizer settings
type Config struct {
	MaxSeqLen int
	Lowercase bool
}

// ErrUnsupported indicates the tokenizer could not be initialized
var ErrUnsupported = fmt.Errorf("unsupported tokenizer configuration")

// ErrPairMismatch indicates first/second sentence lists differ in length
var ErrPairMismatch = fmt.Errorf("first and second sentence lists have different lengths")

// New selects a tokenizer backend by name ("sugarme" or "radix") over a
// vocab.txt file. Unknown names fall back to the radix WordPiece.
func New(backend, vocabPath string, cfg Config) (Tokenizer, error) {
	switch backend {
	case "sugarme":
		t, err := NewSugarWordPiece(vocabPath, cfg.MaxSeqLen)
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		t, err := NewWordPiece(vocabPath, cfg)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}
