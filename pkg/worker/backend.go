package worker

import (
	"github.com/amdinfer/inference-server/pkg/batch"
	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/types"
	"github.com/amdinfer/inference-server/pkg/worker/executor"
)

// Factory constructs a Backend and its starting (not-ready) metadata for a
// model load. Built-in kinds are registered in the builtins table; kinds
// not found there are resolved through a dynamically loaded plugin.
type Factory func(name, platform string, params types.Parameters) (Backend, *types.ModelMetadata, error)

var builtins = map[string]Factory{
	"simulation": newSimulationBackend,
}

// executorBackend adapts an executor.Executor to the Backend interface:
// DoRun pulls batches off the channel, executes them, and completes every
// request's callback before releasing the batch's buffers.
type executorBackend struct {
	exec       executor.Executor
	outputs    []types.TensorMetadata
	modelName  string
	batchSize  int
	allocators []memory.Kind
}

func (b *executorBackend) Allocators() []memory.Kind { return b.allocators }
func (b *executorBackend) BatchSize() int            { return b.batchSize }

func (b *executorBackend) DoInit(types.Parameters) error  { return nil }
func (b *executorBackend) DoAcquire(types.Parameters) error { return nil }
func (b *executorBackend) DoRelease() error                { return nil }
func (b *executorBackend) DoDestroy() error                 { return nil }

func (b *executorBackend) DoRun(batches <-chan *batch.Batch) error {
	for bat := range batches {
		reqs := bat.Requests()
		outputs, err := b.exec.Execute(reqs, b.outputs)
		if err != nil {
			for _, req := range reqs {
				req.Fail(err)
			}
			bat.Close()
			continue
		}
		for i, req := range reqs {
			req.Complete(&types.Response{
				ID:      req.ID,
				Model:   b.modelName,
				Outputs: outputs[i],
				Trace:   bat.Trace(i),
			})
		}
		bat.Close()
	}
	return nil
}

// newSimulationBackend builds a backend over the simulation executor. It
// is registered under the "simulation" worker kind and never fails to
// construct.
func newSimulationBackend(name, platform string, params types.Parameters) (Backend, *types.ModelMetadata, error) {
	baseLatency := int32(5)
	if params.Has("latencyMs") {
		if p, ok := params["latencyMs"]; ok && p.Kind == types.ParamInt32 {
			baseLatency = p.Int32
		}
	}
	batchSize := 1
	if p, ok := params["batchSize"]; ok && p.Kind == types.ParamInt32 {
		batchSize = int(p.Int32)
	}

	metadata := types.NewModelMetadata(name, platform)
	metadata.Outputs = []types.TensorMetadata{
		{Name: "output", Shape: types.Shape{1000}, Datatype: types.F32},
	}

	backend := &executorBackend{
		exec:       executor.NewSimulated(int(baseLatency)),
		outputs:    metadata.Outputs,
		modelName:  name,
		batchSize:  batchSize,
		allocators: []memory.Kind{memory.Cpu},
	}
	return backend, metadata, nil
}

// NewBackend resolves a Factory for kind, preferring a compiled-in
// implementation and falling back to a dynamically loaded plugin from
// pluginDir.
func NewBackend(kind, pluginDir string, name, platform string, params types.Parameters) (Backend, *types.ModelMetadata, error) {
	if factory, ok := builtins[kind]; ok {
		return factory(name, platform, params)
	}
	if pluginDir == "" {
		return nil, nil, errors.New(errors.InvalidArgument, "unknown worker kind %q and no plugin directory configured", kind)
	}
	factory, err := loadPluginFactory(pluginDir, kind)
	if err != nil {
		return nil, nil, err
	}
	return factory(name, platform, params)
}
