package dataset

import (
	"context"
	"runtime"

	"github.com/ZanzyTHEbar/bertune/bertune/model"
	"github.com/ZanzyTHEbar/bertune/bertune/tokenizer"

	"github.com/sourcegraph/conc/pool"
)

// EncodedBatch is one tokenized batch in the flat layout the encoder
// consumes, with labels alongside.
type EncodedBatch struct {
	Input  *model.EncoderInput
	Labels []int
}

// Mapper tokenizes dataset batches concurrently on a bounded worker pool.
type Mapper struct {
	tok        tokenizer.Tokenizer
	maxWorkers int
}

// NewMapper creates a mapper over the given tokenizer with a worker count
// sized for CPU-bound tokenization.
func NewMapper(tok tokenizer.Tokenizer) *Mapper {
	maxWorkers := min(max(runtime.NumCPU(), 2), 16)
	return &Mapper{tok: tok, maxWorkers: maxWorkers}
}

// Map tokenizes every batch and returns encoded batches in the same order.
// Batches are processed concurrently; the first tokenizer error cancels the
// remaining work.
func (m *Mapper) Map(ctx context.Context, batches [][]Example) ([]*EncodedBatch, error) {
	out := make([]*EncodedBatch, len(batches))
	p := pool.New().WithMaxGoroutines(m.maxWorkers).WithContext(ctx).WithCancelOnError()
	for i, batch := range batches {
		i, batch := i, batch
		p.Go(func(ctx context.Context) error {
			enc, err := m.encodeBatch(batch)
			if err != nil {
				return err
			}
			out[i] = enc
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// encodeBatch tokenizes one batch, choosing pair encoding when any example
// carries a second sentence.
func (m *Mapper) encodeBatch(batch []Example) (*EncodedBatch, error) {
	first := make([]string, len(batch))
	second := make([]string, len(batch))
	labels := make([]int, len(batch))
	pairs := false
	for i, ex := range batch {
		first[i] = ex.TextA
		second[i] = ex.TextB
		labels[i] = ex.Label
		if ex.TextB != "" {
			pairs = true
		}
	}

	var ids, masks, typeIDs [][]int64
	var err error
	if pairs {
		ids, masks, typeIDs, err = m.tok.TokenizePairs(first, second)
	} else {
		ids, masks, typeIDs, err = m.tok.Tokenize(first)
	}
	if err != nil {
		return nil, err
	}
	return &EncodedBatch{Input: flatten(ids, masks, typeIDs), Labels: labels}, nil
}

// flatten packs per-example rows into the flat row-major encoder layout.
func flatten(ids, masks, typeIDs [][]int64) *model.EncoderInput {
	batch := len(ids)
	if batch == 0 {
		return &model.EncoderInput{}
	}
	seqLen := len(ids[0])
	in := &model.EncoderInput{
		InputIDs:      make([]int64, batch*seqLen),
		AttentionMask: make([]int64, batch*seqLen),
		TokenTypeIDs:  make([]int64, batch*seqLen),
		Batch:         batch,
		SeqLen:        seqLen,
	}
	for i := 0; i < batch; i++ {
		copy(in.InputIDs[i*seqLen:(i+1)*seqLen], ids[i])
		if i < len(masks) {
			copy(in.AttentionMask[i*seqLen:(i+1)*seqLen], masks[i])
		}
		if i < len(typeIDs) {
			copy(in.TokenTypeIDs[i*seqLen:(i+1)*seqLen], typeIDs[i])
		}
	}
	return in
}
