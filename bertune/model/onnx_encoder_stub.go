//go:build !onnx
// +build !onnx

package model

import (
	"context"
	"fmt"
)

// onnxEncoder is a stub used when built without the "onnx" build tag.
type onnxEncoder struct {
	hidden    int
	modelPath string
}

// NewONNXEncoder returns a stub Encoder when ONNX support is not compiled in.
func NewONNXEncoder(modelPath string, hidden int) Encoder {
	return &onnxEncoder{hidden: hidden, modelPath: modelPath}
}

func (e *onnxEncoder) Hidden() int { return e.hidden }

func (e *onnxEncoder) Encode(ctx context.Context, in *EncoderInput) (*HiddenStates, error) {
	return nil, fmt.Errorf("onnx encoder not available: build with -tags onnx and provide a supported model")
}
