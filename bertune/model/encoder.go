// Package model loads a pretrained BERT encoder and exposes its per-token
// hidden states to the prediction heads.
package model

import (
	"context"
	"errors"
	"fmt"
)

// Common error types for encoder input and shape validation
var (
	ErrShapeMismatch = errors.New("input length does not match batch*seqLen")
	ErrEmptyBatch    = errors.New("batch is empty")
)

// EncoderInput carries one tokenized batch in the flat row-major layout the
// runtime consumes: all slices have length Batch*SeqLen.
type EncoderInput struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	Batch         int
	SeqLen        int
}

// Validate checks the flat slices agree with the declared shape.
func (in *EncoderInput) Validate() error {
	if in.Batch <= 0 || in.SeqLen <= 0 {
		return ErrEmptyBatch
	}
	want := in.Batch * in.SeqLen
	if len(in.InputIDs) != want {
		return fmt.Errorf("%w: input_ids has %d values, want %d", ErrShapeMismatch, len(in.InputIDs), want)
	}
	if len(in.AttentionMask) != 0 && len(in.AttentionMask) != want {
		return fmt.Errorf("%w: attention_mask has %d values, want %d", ErrShapeMismatch, len(in.AttentionMask), want)
	}
	if len(in.TokenTypeIDs) != 0 && len(in.TokenTypeIDs) != want {
		return fmt.Errorf("%w: token_type_ids has %d values, want %d", ErrShapeMismatch, len(in.TokenTypeIDs), want)
	}
	return nil
}

// Split partitions the batch into chunks of at most size elements, in order.
// Chunks alias the input's flat arenas rather than copying; empty mask and
// type id slices stay empty. A non-positive size yields a single chunk.
func (in *EncoderInput) Split(size int) []*EncoderInput {
	if size <= 0 || in.Batch <= size {
		return []*EncoderInput{in}
	}
	chunks := make([]*EncoderInput, 0, (in.Batch+size-1)/size)
	for start := 0; start < in.Batch; start += size {
		n := min(size, in.Batch-start)
		lo, hi := start*in.SeqLen, (start+n)*in.SeqLen
		chunk := &EncoderInput{
			InputIDs: in.InputIDs[lo:hi],
			Batch:    n,
			SeqLen:   in.SeqLen,
		}
		if len(in.AttentionMask) != 0 {
			chunk.AttentionMask = in.AttentionMask[lo:hi]
		}
		if len(in.TokenTypeIDs) != 0 {
			chunk.TokenTypeIDs = in.TokenTypeIDs[lo:hi]
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// Encoder produces per-token hidden states for tokenized batches.
type Encoder interface {
	// Hidden returns the encoder's hidden width.
	Hidden() int
	// Encode runs the encoder over one batch and returns its last hidden
	// states shaped (batch, seqLen, hidden).
	Encode(ctx context.Context, in *EncoderInput) (*HiddenStates, error)
}
