//go:build onnx

package worker

import (
	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/types"
	"github.com/amdinfer/inference-server/pkg/worker/executor"
)

func init() {
	builtins["onnx"] = newONNXBackend
}

// newONNXBackend builds a backend over the ONNX Runtime executor. It
// requires a "modelPath" string parameter naming the .onnx file to load;
// "useGpu" (bool) selects the CUDA execution provider when available.
func newONNXBackend(name, platform string, params types.Parameters) (Backend, *types.ModelMetadata, error) {
	p, ok := params["modelPath"]
	if !ok || p.Kind != types.ParamString {
		return nil, nil, errors.New(errors.InvalidArgument, "onnx worker %q requires a modelPath parameter", name)
	}

	useGPU := false
	if gp, ok := params["useGpu"]; ok && gp.Kind == types.ParamBool {
		useGPU = gp.Bool
	}

	exec, err := executor.NewONNX(p.String, useGPU)
	if err != nil {
		return nil, nil, errors.Wrap(errors.Runtime, err, "loading onnx model %q", p.String)
	}

	batchSize := 1
	if bp, ok := params["batchSize"]; ok && bp.Kind == types.ParamInt32 {
		batchSize = int(bp.Int32)
	}

	metadata := types.NewModelMetadata(name, platform)
	metadata.Outputs = []types.TensorMetadata{
		{Name: "output", Shape: types.Shape{-1}, Datatype: types.F32},
	}

	backend := &executorBackend{
		exec:       exec,
		outputs:    metadata.Outputs,
		modelName:  name,
		batchSize:  batchSize,
		allocators: []memory.Kind{memory.Cpu},
	}
	return backend, metadata, nil
}
