package encoding

import (
	"math/rand"

	internal "github.com/ZanzyTHEbar/bertune/bertune"
)

// IgnoreLabel marks positions that carry no MLM training signal.
const IgnoreLabel = -100

// MaskingConfig controls the MLM masking strategy applied to token ids.
type MaskingConfig struct {
	VocabSize   int
	MaskProb    float64 // probability of selecting a token for prediction
	MaskTokenID int64
	CLSTokenID  int64
	SEPTokenID  int64
	PADTokenID  int64
	UNKTokenID  int64
}

// DefaultMaskingConfig returns the standard BERT masking setup: 15% of
// non-special tokens selected, bert-base-uncased special token ids.
func DefaultMaskingConfig(vocabSize int) MaskingConfig {
	return MaskingConfig{
		VocabSize:   vocabSize,
		MaskProb:    0.15,
		MaskTokenID: internal.DefaultMaskTokenID,
		CLSTokenID:  internal.DefaultCLSTokenID,
		SEPTokenID:  internal.DefaultSEPTokenID,
		PADTokenID:  internal.DefaultPADTokenID,
		UNKTokenID:  internal.DefaultUNKTokenID,
	}
}

func (cfg MaskingConfig) isSpecial(id int64) bool {
	return id == cfg.MaskTokenID || id == cfg.CLSTokenID ||
		id == cfg.SEPTokenID || id == cfg.PADTokenID || id == cfg.UNKTokenID
}

// randomReplacementID draws a vocabulary id excluding the special ids.
// Reports false when the vocab holds no non-special id to draw.
func (cfg MaskingConfig) randomReplacementID(rng *rand.Rand) (int64, bool) {
	seen := make(map[int64]struct{}, 5)
	for _, id := range []int64{cfg.MaskTokenID, cfg.CLSTokenID, cfg.SEPTokenID, cfg.PADTokenID, cfg.UNKTokenID} {
		if id >= 0 && id < int64(cfg.VocabSize) {
			seen[id] = struct{}{}
		}
	}
	if cfg.VocabSize <= len(seen) {
		return 0, false
	}
	for {
		v := int64(rng.Intn(cfg.VocabSize))
		if !cfg.isSpecial(v) {
			return v, true
		}
	}
}

// MaskingResult holds the result of applying MLM masking to one sequence.
type MaskingResult struct {
	// MaskedIDs are the input ids after masking, same length as the input.
	MaskedIDs []int64

	// Positions are the indices selected for prediction, in ascending order.
	Positions []int

	// Labels hold the original id at selected positions and IgnoreLabel
	// elsewhere, ready for loss computation.
	Labels []int64
}

// ApplyMLMMasking applies the masked-language-model corruption strategy to a
// token id sequence. Each non-special token is selected with probability
// MaskProb; of the selected tokens 80% are replaced with [MASK], 10% with a
// random vocabulary token, and 10% are kept unchanged. Special tokens are
// never selected.
func ApplyMLMMasking(ids []int64, cfg MaskingConfig, rng *rand.Rand) *MaskingResult {
	result := &MaskingResult{
		MaskedIDs: make([]int64, len(ids)),
		Positions: make([]int, 0),
		Labels:    make([]int64, len(ids)),
	}
	copy(result.MaskedIDs, ids)
	for i := range result.Labels {
		result.Labels[i] = IgnoreLabel
	}

	for i, id := range ids {
		if cfg.isSpecial(id) {
			continue
		}
		if rng.Float64() >= cfg.MaskProb {
			continue
		}
		result.Positions = append(result.Positions, i)
		result.Labels[i] = id

		switch decision := rng.Float64(); {
		case decision < 0.8:
			result.MaskedIDs[i] = cfg.MaskTokenID
		case decision < 0.9:
			// Random replacement never emits a special token; with no
			// non-special id available the original is kept.
			if v, ok := cfg.randomReplacementID(rng); ok {
				result.MaskedIDs[i] = v
			}
		default:
			// Keep original.
		}
	}
	return result
}
