package worker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/amdinfer/inference-server/pkg/batch"
	"github.com/amdinfer/inference-server/pkg/batcher"
	"github.com/amdinfer/inference-server/pkg/buffer"
	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/request"
	"github.com/amdinfer/inference-server/pkg/types"
)

// member is one running instance of a worker within a group: its lifecycle
// wrapper, the batchers feeding it, and the goroutine driving its run loop.
type member struct {
	lifecycle *Lifecycle
	batchers  []*batcher.SoftBatcher
	runDone   chan error
}

// Info is the per-endpoint bookkeeping the registry keeps: the worker
// group (one or more instances of the same kind/config sharing load), the
// memory pool they draw buffers from, and the parameters they were loaded
// with. It is the Go counterpart of amdinfer's WorkerInfo, generalized
// from dlopen'd *.so handles to the builtin-or-plugin Factory resolution
// in backend.go.
type Info struct {
	Name      string
	Kind      string
	PluginDir string
	Params    types.Parameters

	pool *memory.Pool

	mu      sync.Mutex
	group   []*member

	submitCounter atomic.Uint64
}

// New constructs a worker group with no members yet; call AddWorker to
// bring the first instance up.
func New(name, kind, pluginDir string, params types.Parameters, pool *memory.Pool) *Info {
	return &Info{Name: name, Kind: kind, PluginDir: pluginDir, Params: params, pool: pool}
}

// AddWorker brings up one more instance of this worker's kind: builds its
// backend, runs it through Init/Acquire, attaches batchers, and starts its
// run loop, mirroring addAndStartWorker.
func (wi *Info) AddWorker() error {
	backend, metadata, err := NewBackend(wi.Kind, wi.PluginDir, wi.Name, wi.Kind, wi.Params)
	if err != nil {
		return err
	}

	lifecycle := NewLifecycle(backend, metadata)
	if err := lifecycle.Init(wi.Params); err != nil {
		return errors.Wrap(errors.Runtime, err, "initializing worker %q", wi.Name)
	}
	if err := lifecycle.Acquire(wi.Params); err != nil {
		return errors.Wrap(errors.External, err, "acquiring worker %q", wi.Name)
	}

	wi.mu.Lock()
	defer wi.mu.Unlock()

	batcherCount := 1
	if p, ok := wi.Params["batchers"]; ok && p.Kind == types.ParamInt32 && p.Int32 > 0 {
		batcherCount = int(p.Int32)
	}

	var softBatchers []*batcher.SoftBatcher
	if len(wi.group) > 0 {
		// Subsequent instances in the group share the first instance's
		// batchers rather than creating their own input queues.
		softBatchers = wi.group[0].batchers
	} else {
		timeout := batcher.DefaultTimeout
		if p, ok := wi.Params["timeout"]; ok && p.Kind == types.ParamInt32 {
			timeout = time.Duration(p.Int32) * time.Millisecond
		}
		priorityAware := false
		if p, ok := wi.Params["priorityAware"]; ok && p.Kind == types.ParamBool {
			priorityAware = p.Bool
		}
		for i := 0; i < batcherCount; i++ {
			var b *batcher.SoftBatcher
			if priorityAware {
				b = batcher.NewPriorityAware(wi.Name, lifecycle.BatchSize(), timeout, wi)
			} else {
				b = batcher.New(wi.Name, lifecycle.BatchSize(), timeout, wi)
			}
			b.Start()
			softBatchers = append(softBatchers, b)
		}
	}

	input := fanIn(softBatchers)
	runDone := make(chan error, 1)
	go func() {
		runDone <- lifecycle.Run(input)
	}()

	wi.group = append(wi.group, &member{lifecycle: lifecycle, batchers: softBatchers, runDone: runDone})
	return nil
}

// fanIn merges multiple batchers' output channels into one, since a
// worker's DoRun expects a single input stream.
func fanIn(batchers []*batcher.SoftBatcher) <-chan *batch.Batch {
	if len(batchers) == 1 {
		return batchers[0].Output()
	}
	out := make(chan *batch.Batch)
	var wg sync.WaitGroup
	wg.Add(len(batchers))
	for _, b := range batchers {
		go func(b *batcher.SoftBatcher) {
			defer wg.Done()
			for batch := range b.Output() {
				out <- batch
			}
		}(b)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Submit hands an adapter to one of the worker group's batchers,
// round-robining across them when more than one batcher was configured.
func (wi *Info) Submit(a *request.Adapter) error {
	wi.mu.Lock()
	if len(wi.group) == 0 {
		wi.mu.Unlock()
		return errors.New(errors.InvalidArgument, "worker %q has no running instances", wi.Name)
	}
	batchers := wi.group[0].batchers
	wi.mu.Unlock()

	idx := int(wi.submitCounter.Add(1)-1) % len(batchers)
	batchers[idx].Enqueue(a)
	return nil
}

// AcquireInputBuffers satisfies batcher.WorkerBuffers by drawing one buffer
// per requested size from the worker group's memory pool, trying the
// backend's preferred allocator kinds in order.
func (wi *Info) AcquireInputBuffers(sizes []int) ([]*buffer.Buffer, error) {
	wi.mu.Lock()
	allocators := wi.group[0].lifecycle.Allocators()
	wi.mu.Unlock()

	bufs := make([]*buffer.Buffer, len(sizes))
	for i, size := range sizes {
		b, err := buffer.Acquire(wi.pool, allocators, size)
		if err != nil {
			for _, acquired := range bufs[:i] {
				_ = acquired.Release()
			}
			return nil, err
		}
		bufs[i] = b
	}
	return bufs, nil
}

// PutInputBuffers and PutOutputBuffers satisfy batch.BufferReleaser.
func (wi *Info) PutInputBuffers(bufs []*buffer.Buffer) {
	for _, b := range bufs {
		_ = b.Release()
	}
}

func (wi *Info) PutOutputBuffers(bufs []*buffer.Buffer) {
	for _, b := range bufs {
		_ = b.Release()
	}
}

// GroupSize reports how many worker instances are currently running.
func (wi *Info) GroupSize() int {
	wi.mu.Lock()
	defer wi.mu.Unlock()
	return len(wi.group)
}

// Metadata returns the model metadata shared by the worker group.
func (wi *Info) Metadata() *types.ModelMetadata {
	wi.mu.Lock()
	defer wi.mu.Unlock()
	if len(wi.group) == 0 {
		return nil
	}
	return wi.group[0].lifecycle.Metadata()
}

// Unload tears down one instance from the group: stops the shared
// batchers once this is the last instance, releases, and destroys,
// mirroring WorkerInfo::unload.
func (wi *Info) Unload() error {
	wi.mu.Lock()
	if len(wi.group) == 0 {
		wi.mu.Unlock()
		return errors.New(errors.InvalidArgument, "worker %q has no running instances", wi.Name)
	}
	last := wi.group[len(wi.group)-1]
	lastInGroup := len(wi.group) == 1
	wi.group = wi.group[:len(wi.group)-1]
	wi.mu.Unlock()

	if lastInGroup {
		for _, b := range last.batchers {
			b.Stop()
		}
	}
	<-last.runDone

	if err := last.lifecycle.Release(); err != nil {
		return errors.Wrap(errors.Runtime, err, "releasing worker %q", wi.Name)
	}
	if err := last.lifecycle.Destroy(); err != nil {
		return errors.Wrap(errors.Runtime, err, "destroying worker %q", wi.Name)
	}
	return nil
}

// Shutdown unloads every instance in the group.
func (wi *Info) Shutdown() error {
	for wi.GroupSize() > 0 {
		if err := wi.Unload(); err != nil {
			return err
		}
	}
	return nil
}
