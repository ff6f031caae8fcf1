//go:build onnx
// +build onnx

package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX-backed encoder under the onnx build tag. Initializes ORT lazily and
// opens a dynamic session over a BERT checkpoint exported to ONNX with a
// last_hidden_state output.
type onnxEncoder struct {
	hidden      int
	modelPath   string
	mu          sync.Mutex
	session     *ort.DynamicAdvancedSession
	inputNames  []string
	outputNames []string
}

// NewONNXEncoder returns an Encoder backed by the ONNX checkpoint at
// modelPath with the given hidden width.
func NewONNXEncoder(modelPath string, hidden int) Encoder {
	return &onnxEncoder{hidden: hidden, modelPath: modelPath}
}

func (e *onnxEncoder) Hidden() int { return e.hidden }

func (e *onnxEncoder) ensureSession() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		return nil
	}
	if e.modelPath == "" {
		return fmt.Errorf("onnx model path is required")
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	// Probe IO
	ins, outs, err := ort.GetInputOutputInfo(e.modelPath)
	if err != nil {
		return fmt.Errorf("get IO info: %w", err)
	}
	var inputNames []string
	var idsName, maskName, tokTypeName string
	for _, ii := range ins {
		name := ii.Name
		n := strings.ToLower(name)
		if strings.Contains(n, "input_ids") || n == "ids" {
			idsName = name
		}
		if strings.Contains(n, "attention_mask") || n == "mask" {
			maskName = name
		}
		if strings.Contains(n, "token_type") {
			tokTypeName = name
		}
	}
	if idsName != "" {
		inputNames = append(inputNames, idsName)
	}
	if maskName != "" {
		inputNames = append(inputNames, maskName)
	}
	if tokTypeName != "" {
		inputNames = append(inputNames, tokTypeName)
	}
	// Fallback: take int64 tensor inputs in declared order
	if len(inputNames) == 0 {
		for _, ii := range ins {
			if ii.DataType == ort.TensorElementDataTypeInt64 {
				inputNames = append(inputNames, ii.Name)
			}
		}
	}
	if len(inputNames) == 0 {
		return fmt.Errorf("could not determine ONNX input names")
	}
	// Prefer an output named like last_hidden_state, else first float output
	var outputNames []string
	for _, oi := range outs {
		if oi.DataType == ort.TensorElementDataTypeFloat && strings.Contains(strings.ToLower(oi.Name), "hidden") {
			outputNames = append(outputNames, oi.Name)
			break
		}
	}
	if len(outputNames) == 0 {
		for _, oi := range outs {
			if oi.DataType == ort.TensorElementDataTypeFloat {
				outputNames = append(outputNames, oi.Name)
				break
			}
		}
	}
	if len(outputNames) == 0 {
		return fmt.Errorf("could not determine ONNX output name")
	}
	// EP detection and options; fall back to CPU if EP session creation fails.
	var opts *ort.SessionOptions
	if onnxEPPreference != "" && onnxEPPreference != "cpu" {
		if o, e2 := ort.NewSessionOptions(); e2 == nil {
			_ = o.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)
			_ = o.SetIntraOpNumThreads(0)
			_ = o.SetInterOpNumThreads(0)
			switch onnxEPPreference {
			case "cuda":
				if cu, e3 := ort.NewCUDAProviderOptions(); e3 == nil {
					_ = o.AppendExecutionProviderCUDA(cu)
					_ = cu.Destroy()
				}
			case "tensorrt":
				if trt, e3 := ort.NewTensorRTProviderOptions(); e3 == nil {
					_ = o.AppendExecutionProviderTensorRT(trt)
					_ = trt.Destroy()
				}
			case "coreml":
				_ = o.AppendExecutionProviderCoreMLV2(map[string]string{})
			case "dml":
				_ = o.AppendExecutionProviderDirectML(onnxDeviceID)
			}
			opts = o
		}
	}
	var s *ort.DynamicAdvancedSession
	if opts != nil {
		s, err = ort.NewDynamicAdvancedSession(e.modelPath, inputNames, outputNames, opts)
		_ = opts.Destroy()
	} else {
		s, err = ort.NewDynamicAdvancedSession(e.modelPath, inputNames, outputNames, nil)
	}
	if err != nil {
		return fmt.Errorf("create onnx session: %w", err)
	}
	e.session = s
	e.inputNames = inputNames
	e.outputNames = outputNames
	return nil
}

func (e *onnxEncoder) Encode(ctx context.Context, in *EncoderInput) (*HiddenStates, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := e.ensureSession(); err != nil {
		return nil, err
	}

	chunks := in.Split(onnxBatchSize)
	if len(chunks) == 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return e.encodeChunk(chunks[0])
	}
	var out *HiddenStates
	offset := 0
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := e.encodeChunk(chunk)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = NewHiddenStates(in.Batch, h.SeqLen, h.Features)
		}
		if h.SeqLen != out.SeqLen || h.Features != out.Features {
			return nil, fmt.Errorf("%w: chunk emits (%d,%d), want (%d,%d)", ErrShapeMismatch, h.SeqLen, h.Features, out.SeqLen, out.Features)
		}
		copy(out.Data[offset:], h.Data)
		offset += len(h.Data)
	}
	return out, nil
}

func (e *onnxEncoder) encodeChunk(in *EncoderInput) (*HiddenStates, error) {
	shape := ort.NewShape(int64(in.Batch), int64(in.SeqLen))
	idsTensor, err := ort.NewTensor(shape, in.InputIDs)
	if err != nil {
		return nil, fmt.Errorf("ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	mask := in.AttentionMask
	if len(mask) == 0 {
		mask = make([]int64, in.Batch*in.SeqLen)
		for i := range mask {
			mask[i] = 1
		}
	}
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typeIDs := in.TokenTypeIDs
	if len(typeIDs) == 0 {
		typeIDs = make([]int64, in.Batch*in.SeqLen)
	}
	typeTensor, err := ort.NewTensor(shape, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("token type tensor: %w", err)
	}
	defer typeTensor.Destroy()

	// Match inputs to probed names
	inVals := make([]ort.Value, len(e.inputNames))
	for i, name := range e.inputNames {
		ln := strings.ToLower(name)
		switch {
		case strings.Contains(ln, "input_ids") || ln == "ids":
			inVals[i] = idsTensor
		case strings.Contains(ln, "attention_mask") || ln == "mask":
			inVals[i] = maskTensor
		default:
			inVals[i] = typeTensor
		}
	}
	outs := make([]ort.Value, len(e.outputNames))
	if err := e.session.Run(inVals, outs); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}
	defer func() {
		for _, v := range outs {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	t, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type")
	}
	outShape := t.GetShape()
	if len(outShape) != 3 {
		return nil, fmt.Errorf("unexpected output rank %d, want 3", len(outShape))
	}
	batch, seqLen, hidden := int(outShape[0]), int(outShape[1]), int(outShape[2])
	if hidden != e.hidden {
		return nil, fmt.Errorf("%w: model emits hidden width %d, configured %d", ErrShapeMismatch, hidden, e.hidden)
	}
	return HiddenStatesFromFloat32(t.GetData(), batch, seqLen, hidden)
}
