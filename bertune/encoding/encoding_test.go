package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensAndSegmentsSingle(t *testing.T) {
	tests := []struct {
		name     string
		a        []string
		wantToks []string
		wantSegs []int
	}{
		{
			name:     "two tokens",
			a:        []string{"the", "cat"},
			wantToks: []string{"[CLS]", "the", "cat", "[SEP]"},
			wantSegs: []int{0, 0, 0, 0},
		},
		{
			name:     "empty first sequence",
			a:        []string{},
			wantToks: []string{"[CLS]", "[SEP]"},
			wantSegs: []int{0, 0},
		},
		{
			name:     "single token",
			a:        []string{"hello"},
			wantToks: []string{"[CLS]", "hello", "[SEP]"},
			wantSegs: []int{0, 0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, segs := TokensAndSegments(tt.a, nil)
			assert.Equal(t, tt.wantToks, toks)
			assert.Equal(t, tt.wantSegs, segs)
			assert.Len(t, segs, len(toks))
		})
	}
}

func TestTokensAndSegmentsPair(t *testing.T) {
	toks, segs := TokensAndSegments([]string{"the", "cat"}, []string{"sat", "down"})
	assert.Equal(t, []string{"[CLS]", "the", "cat", "[SEP]", "sat", "down", "[SEP]"}, toks)
	assert.Equal(t, []int{0, 0, 0, 0, 1, 1, 1}, segs)
}

func TestTokensAndSegmentsPairLengths(t *testing.T) {
	for _, lens := range [][2]int{{0, 0}, {1, 0}, {0, 3}, {5, 2}} {
		a := make([]string, lens[0])
		b := make([]string, lens[1])
		toks, segs := TokensAndSegments(a, b)
		require.Len(t, toks, lens[0]+lens[1]+3)
		require.Len(t, segs, len(toks))
		// Segment 0 covers [CLS]+a+[SEP]; segment 1 covers b+[SEP].
		for i, s := range segs {
			if i < lens[0]+2 {
				assert.Equal(t, 0, s, "index %d", i)
			} else {
				assert.Equal(t, 1, s, "index %d", i)
			}
		}
	}
}

func TestTokensAndSegmentsEmptyNonNilSecond(t *testing.T) {
	// An empty non-nil b still selects the pair form.
	toks, segs := TokensAndSegments([]string{"a"}, []string{})
	assert.Equal(t, []string{"[CLS]", "a", "[SEP]", "[SEP]"}, toks)
	assert.Equal(t, []int{0, 0, 0, 1}, segs)
}

func TestTokensAndSegmentsNotIdempotent(t *testing.T) {
	// Re-applying the formatter wraps again rather than no-opping.
	once, _ := TokensAndSegments([]string{"x"}, nil)
	twice, segs := TokensAndSegments(once, nil)
	assert.Equal(t, []string{"[CLS]", "[CLS]", "x", "[SEP]", "[SEP]"}, twice)
	assert.Len(t, twice, len(once)+2)
	assert.Len(t, segs, len(twice))
}

func TestTokenIDsAndSegments(t *testing.T) {
	ids, segs := TokenIDsAndSegments([]int64{2023, 4937}, []int64{2938, 2091})
	assert.Equal(t, []int64{101, 2023, 4937, 102, 2938, 2091, 102}, ids)
	assert.Equal(t, []int64{0, 0, 0, 0, 1, 1, 1}, segs)

	ids, segs = TokenIDsAndSegments(nil, nil)
	assert.Equal(t, []int64{101, 102}, ids)
	assert.Equal(t, []int64{0, 0}, segs)
}

func TestCheckAligned(t *testing.T) {
	require.NoError(t, CheckAligned(4, 4))
	err := CheckAligned(4, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSegmentMismatch)
}

func TestAttentionMask(t *testing.T) {
	mask := AttentionMask([]int64{101, 2023, 102, 0, 0}, 0)
	assert.Equal(t, []int64{1, 1, 1, 0, 0}, mask)
}

func TestPadTo(t *testing.T) {
	ids, segs, mask, err := PadTo([]int64{101, 7, 102}, []int64{0, 0, 0}, 6, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{101, 7, 102, 0, 0, 0}, ids)
	assert.Equal(t, []int64{0, 0, 0, 0, 0, 0}, segs)
	assert.Equal(t, []int64{1, 1, 1, 0, 0, 0}, mask)
}

func TestPadToErrors(t *testing.T) {
	_, _, _, err := PadTo([]int64{1, 2, 3}, []int64{0, 0}, 6, 0)
	assert.ErrorIs(t, err, ErrSegmentMismatch)

	_, _, _, err = PadTo([]int64{1, 2, 3}, []int64{0, 0, 0}, 2, 0)
	assert.ErrorIs(t, err, ErrSeqTooLong)
}
