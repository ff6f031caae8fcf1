// Package encoding assembles BERT model inputs: tagged token sequences with
// segment ids, attention masks, fixed-length padding, and MLM masking.
package encoding

import (
	"errors"
	"fmt"

	internal "github.com/ZanzyTHEbar/bertune/bertune"
)

// Common error types used across input assembly
var (
	ErrSegmentMismatch = errors.New("segment ids and tokens have different lengths")
	ErrSeqTooLong      = errors.New("sequence exceeds maximum length")
)

// TokensAndSegments builds a single BERT input sequence from one or two
// tokenized sentences. The first sentence is wrapped as [CLS] a... [SEP] with
// segment id 0; when b is non-nil it is appended as b... [SEP] with segment
// id 1. The returned slices always have identical length.
//
// A nil b selects the single-sentence form. An empty (non-nil) b still
// produces a trailing [SEP] with segment id 1, matching the pair form.
func TokensAndSegments(a []string, b []string) ([]string, []int) {
	tokens := make([]string, 0, len(a)+len(b)+3)
	tokens = append(tokens, internal.CLSToken)
	tokens = append(tokens, a...)
	tokens = append(tokens, internal.SEPToken)

	segments := make([]int, len(tokens), cap(tokens))
	// [CLS] + a + [SEP] all belong to segment 0; zero value is already 0.

	if b != nil {
		tokens = append(tokens, b...)
		tokens = append(tokens, internal.SEPToken)
		for i := 0; i < len(b)+1; i++ {
			segments = append(segments, 1)
		}
	}
	return tokens, segments
}

// TokenIDsAndSegments is TokensAndSegments over vocabulary ids, the form the
// encoder consumes directly. Special token ids default to the
// bert-base-uncased layout.
func TokenIDsAndSegments(a []int64, b []int64) ([]int64, []int64) {
	ids := make([]int64, 0, len(a)+len(b)+3)
	ids = append(ids, internal.DefaultCLSTokenID)
	ids = append(ids, a...)
	ids = append(ids, internal.DefaultSEPTokenID)

	segments := make([]int64, len(ids), cap(ids))

	if b != nil {
		ids = append(ids, b...)
		ids = append(ids, internal.DefaultSEPTokenID)
		for i := 0; i < len(b)+1; i++ {
			segments = append(segments, 1)
		}
	}
	return ids, segments
}

// CheckAligned validates that a segment id sequence labels its token sequence
// one to one. Callers assembling inputs from separate sources should check
// before feeding the encoder.
func CheckAligned(tokenLen, segmentLen int) error {
	if tokenLen != segmentLen {
		return fmt.Errorf("%w: %d tokens, %d segment ids", ErrSegmentMismatch, tokenLen, segmentLen)
	}
	return nil
}

// AttentionMask returns a 1/0 validity vector for ids: zero for padding
// positions, one elsewhere.
func AttentionMask(ids []int64, padID int64) []int64 {
	mask := make([]int64, len(ids))
	for i, id := range ids {
		if id != padID {
			mask[i] = 1
		}
	}
	return mask
}

// PadTo pads ids and segments with padID / segment 0 up to maxLen and returns
// them alongside the attention mask. Sequences longer than maxLen are
// rejected rather than silently truncated.
func PadTo(ids, segments []int64, maxLen int, padID int64) ([]int64, []int64, []int64, error) {
	if err := CheckAligned(len(ids), len(segments)); err != nil {
		return nil, nil, nil, err
	}
	if len(ids) > maxLen {
		return nil, nil, nil, fmt.Errorf("%w: %d > %d", ErrSeqTooLong, len(ids), maxLen)
	}
	outIDs := make([]int64, maxLen)
	outSegs := make([]int64, maxLen)
	mask := make([]int64, maxLen)
	copy(outIDs, ids)
	copy(outSegs, segments)
	for i := range outIDs {
		if i < len(ids) {
			mask[i] = 1
		} else {
			outIDs[i] = padID
		}
	}
	return outIDs, outSegs, mask, nil
}
