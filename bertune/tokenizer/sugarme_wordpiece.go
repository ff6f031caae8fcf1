package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"

	internal "github.com/ZanzyTHEbar/bertune/bertune"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/processor"
)

// SugarWordPiece wraps sugarme/tokenizer WordPiece (BERT-style)
type SugarWordPiece struct {
	t         *tk.Tokenizer
	maxSeqLen int
}

// NewSugarWordPiece loads vocab.txt and builds a BERT WordPiece tokenizer
// with the standard normalizer, pre-tokenizer and [CLS]/[SEP] post-processor.
func NewSugarWordPiece(vocabPath string, maxSeq int) (*SugarWordPiece, error) {
	if fi, err := os.Stat(vocabPath); err != nil || fi.IsDir() {
		alt := filepath.Join(vocabPath, internal.DefaultVocabFile)
		if fi2, err2 := os.Stat(alt); err2 == nil && !fi2.IsDir() {
			vocabPath = alt
		} else {
			return nil, fmt.Errorf("%w: vocab file not found at %s", ErrUnsupported, vocabPath)
		}
	}

	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, internal.UNKToken)
	if err != nil {
		return nil, fmt.Errorf("load wordpiece vocab: %w", err)
	}

	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, true, true))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	// Discover special token ids from the vocab itself, defaulting to the
	// bert-base-uncased layout.
	clsID := int(internal.DefaultCLSTokenID)
	sepID := int(internal.DefaultSEPTokenID)
	if id, ok := wp.TokenToId(internal.CLSToken); ok {
		clsID = int(id)
	}
	if id, ok := wp.TokenToId(internal.SEPToken); ok {
		sepID = int(id)
	}

	t.WithPostProcessor(processor.NewBertProcessing(
		processor.PostToken{Value: internal.SEPToken, Id: sepID},
		processor.PostToken{Value: internal.CLSToken, Id: clsID},
	))
	t.WithTruncation(&tk.TruncationParams{MaxLength: maxSeq})
	t.WithPadding(&tk.PaddingParams{})
	return &SugarWordPiece{t: t, maxSeqLen: maxSeq}, nil
}

// Tokenize encodes single sentences, fixed length maxSeqLen.
func (s *SugarWordPiece) Tokenize(texts []string) ([][]int64, [][]int64, [][]int64, error) {
	inputIDs := make([][]int64, len(texts))
	masks := make([][]int64, len(texts))
	typeIDs := make([][]int64, len(texts))
	for i, txt := range texts {
		enc, err := s.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(txt)), true)
		if err != nil {
			return nil, nil, nil, err
		}
		inputIDs[i], masks[i], typeIDs[i] = s.fixed(enc)
	}
	return inputIDs, masks, typeIDs, nil
}

// TokenizePairs encodes sentence pairs with segment ids from the
// post-processor (0 for the first sentence, 1 for the second).
func (s *SugarWordPiece) TokenizePairs(first, second []string) ([][]int64, [][]int64, [][]int64, error) {
	if len(first) != len(second) {
		return nil, nil, nil, fmt.Errorf("%w: %d vs %d", ErrPairMismatch, len(first), len(second))
	}
	inputIDs := make([][]int64, len(first))
	masks := make([][]int64, len(first))
	typeIDs := make([][]int64, len(first))
	for i := range first {
		input := tk.NewDualEncodeInput(tk.NewInputSequence(first[i]), tk.NewInputSequence(second[i]))
		enc, err := s.t.Encode(input, true)
		if err != nil {
			return nil, nil, nil, err
		}
		inputIDs[i], masks[i], typeIDs[i] = s.fixed(enc)
	}
	return inputIDs, masks, typeIDs, nil
}

// fixed enforces fixed-length output (pad/truncate to maxSeqLen).
func (s *SugarWordPiece) fixed(enc *tk.Encoding) ([]int64, []int64, []int64) {
	uids := enc.GetIds()
	umask := enc.GetAttentionMask()
	utype := enc.GetTypeIds()

	rowIDs := make([]int64, s.maxSeqLen)
	rowMask := make([]int64, s.maxSeqLen)
	rowType := make([]int64, s.maxSeqLen)
	n := len(uids)
	if n > s.maxSeqLen {
		n = s.maxSeqLen
	}
	for j := 0; j < n; j++ {
		rowIDs[j] = int64(uids[j])
		if j < len(umask) {
			rowMask[j] = int64(umask[j])
		} else {
			rowMask[j] = 1
		}
		if j < len(utype) {
			rowType[j] = int64(utype[j])
		}
	}
	return rowIDs, rowMask, rowType
}
