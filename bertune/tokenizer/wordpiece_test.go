package tokenizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeVocab(t *testing.T, tokens []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(tokens, "\n")+"\n"), 0o644))
	return path
}

var testVocab = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]",
	"the", "cat", "sat", "down", "un", "##aff", "##able", ".",
}

func newTestWordPiece(t *testing.T, maxSeq int) *WordPiece {
	t.Helper()
	wp, err := NewWordPiece(writeVocab(t, testVocab), Config{MaxSeqLen: maxSeq, Lowercase: true})
	require.NoError(t, err)
	return wp
}

func TestWordPieceSpecialIDsFromVocab(t *testing.T) {
	wp := newTestWordPiece(t, 16)
	assert.Equal(t, int64(0), wp.vocab.padID)
	assert.Equal(t, int64(1), wp.vocab.unkID)
	assert.Equal(t, int64(2), wp.vocab.clsID)
	assert.Equal(t, int64(3), wp.vocab.sepID)
	assert.Equal(t, int64(4), wp.vocab.maskID)
}

func TestWordPieceTokenizeText(t *testing.T) {
	wp := newTestWordPiece(t, 16)

	tests := []struct {
		text string
		want []string
	}{
		{"the cat sat", []string{"the", "cat", "sat"}},
		{"The Cat.", []string{"the", "cat", "."}},
		{"unaffable", []string{"un", "##aff", "##able"}},
		{"zebra", []string{"[UNK]"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wp.TokenizeText(tt.text), "text %q", tt.text)
	}
}

func TestWordPieceTokenizeFixedLength(t *testing.T) {
	wp := newTestWordPiece(t, 8)
	ids, masks, typeIDs, err := wp.Tokenize([]string{"the cat sat"})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	// [CLS] the cat sat [SEP] [PAD] [PAD] [PAD]
	assert.Equal(t, []int64{2, 5, 6, 7, 3, 0, 0, 0}, ids[0])
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 0, 0, 0}, masks[0])
	assert.Equal(t, []int64{0, 0, 0, 0, 0, 0, 0, 0}, typeIDs[0])
}

func TestWordPieceTokenizeTruncates(t *testing.T) {
	wp := newTestWordPiece(t, 5)
	ids, masks, _, err := wp.Tokenize([]string{"the cat sat down the cat"})
	require.NoError(t, err)
	// Room for 3 content tokens plus the two markers.
	assert.Equal(t, []int64{2, 5, 6, 7, 3}, ids[0])
	assert.Equal(t, []int64{1, 1, 1, 1, 1}, masks[0])
}

func TestWordPieceTokenizePairs(t *testing.T) {
	wp := newTestWordPiece(t, 10)
	ids, masks, typeIDs, err := wp.TokenizePairs([]string{"the cat"}, []string{"sat down"})
	require.NoError(t, err)

	// [CLS] the cat [SEP] sat down [SEP] [PAD]...
	assert.Equal(t, []int64{2, 5, 6, 3, 7, 8, 3, 0, 0, 0}, ids[0])
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 1, 1, 0, 0, 0}, masks[0])
	assert.Equal(t, []int64{0, 0, 0, 0, 1, 1, 1, 0, 0, 0}, typeIDs[0])
}

func TestWordPieceTokenizePairsTruncatesLongerFirst(t *testing.T) {
	wp := newTestWordPiece(t, 7)
	ids, _, typeIDs, err := wp.TokenizePairs([]string{"the cat sat down"}, []string{"the"}) // 4+1 tokens, budget 4
	require.NoError(t, err)

	// a truncated to 3 tokens: [CLS] the cat sat [SEP] the [SEP]
	assert.Equal(t, []int64{2, 5, 6, 7, 3, 5, 3}, ids[0])
	assert.Equal(t, []int64{0, 0, 0, 0, 0, 1, 1}, typeIDs[0])
}

func TestWordPiecePairMismatch(t *testing.T) {
	wp := newTestWordPiece(t, 8)
	_, _, _, err := wp.TokenizePairs([]string{"a", "b"}, []string{"c"})
	assert.ErrorIs(t, err, ErrPairMismatch)
}

func TestWordPieceRejectsTinyMaxSeqLen(t *testing.T) {
	_, err := NewWordPiece(writeVocab(t, testVocab), Config{MaxSeqLen: 2})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestWordPieceEmptyVocab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0o644))
	_, err := NewWordPiece(path, Config{MaxSeqLen: 8})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestNewSelectsBackend(t *testing.T) {
	tok, err := New("radix", writeVocab(t, testVocab), Config{MaxSeqLen: 8, Lowercase: true})
	require.NoError(t, err)
	_, ok := tok.(*WordPiece)
	assert.True(t, ok)
}
