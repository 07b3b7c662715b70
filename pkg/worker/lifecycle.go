// Package worker implements the worker lifecycle state machine, dynamic
// loading of worker plugins, and the WorkerInfo bookkeeping the endpoint
// registry keeps per loaded model.
package worker

import (
	"sync/atomic"

	"github.com/amdinfer/inference-server/pkg/batch"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/types"
)

// Status is the worker's lifecycle state. The Lifecycle wrapper sets it
// as each hook runs, in the order New -> Init -> Acquire -> Run ->
// Inactive -> Release -> Destroy -> Dead (spec §4.5); it does not check
// the current state first, so a hook called out of that order is not
// rejected.
type Status int32

const (
	StatusNew Status = iota
	StatusInit
	StatusAcquire
	StatusRun
	StatusInactive
	StatusRelease
	StatusDestroy
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusInit:
		return "init"
	case StatusAcquire:
		return "acquire"
	case StatusRun:
		return "run"
	case StatusInactive:
		return "inactive"
	case StatusRelease:
		return "release"
	case StatusDestroy:
		return "destroy"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Backend is what a worker plugin implements: the five lifecycle hooks
// plus the metadata/allocator declarations the wrapper needs to drive it.
// Implementations never call these directly; the Lifecycle wrapper below
// records the status transition around each one, mirroring the private
// doInit/doAcquire/doRun/doRelease/doDestroy split in the original Worker
// class. The wrapper does not verify the previous status before calling a
// hook.
type Backend interface {
	// Allocators lists, in preference order, which memory kinds this
	// worker's input buffers should be drawn from.
	Allocators() []memory.Kind
	// BatchSize reports the worker's preferred batch size. It is only
	// meaningful after DoInit has run.
	BatchSize() int

	DoInit(params types.Parameters) error
	DoAcquire(params types.Parameters) error
	DoRun(batches <-chan *batch.Batch) error
	DoRelease() error
	DoDestroy() error
}

// Lifecycle wraps a Backend with the status bookkeeping and metadata-ready
// flag the original Worker base class applies around every hook.
type Lifecycle struct {
	backend  Backend
	metadata *types.ModelMetadata
	status   atomic.Int32
}

// NewLifecycle constructs a Lifecycle in the New state.
func NewLifecycle(backend Backend, metadata *types.ModelMetadata) *Lifecycle {
	l := &Lifecycle{backend: backend, metadata: metadata}
	l.status.Store(int32(StatusNew))
	return l
}

// Status reports the current lifecycle state.
func (l *Lifecycle) Status() Status { return Status(l.status.Load()) }

// Metadata returns the worker's model metadata.
func (l *Lifecycle) Metadata() *types.ModelMetadata { return l.metadata }

// Allocators exposes the backend's preferred memory kinds.
func (l *Lifecycle) Allocators() []memory.Kind { return l.backend.Allocators() }

// BatchSize exposes the backend's batch size after Init.
func (l *Lifecycle) BatchSize() int { return l.backend.BatchSize() }

// Init performs low-cost setup.
func (l *Lifecycle) Init(params types.Parameters) error {
	l.status.Store(int32(StatusInit))
	return l.backend.DoInit(params)
}

// Acquire performs expensive hardware/model setup and flips the model to
// ready on success.
func (l *Lifecycle) Acquire(params types.Parameters) error {
	l.status.Store(int32(StatusAcquire))
	if err := l.backend.DoAcquire(params); err != nil {
		return err
	}
	l.metadata.SetReady(true)
	return nil
}

// Run drives the worker's main loop until batches is closed.
func (l *Lifecycle) Run(batches <-chan *batch.Batch) error {
	l.status.Store(int32(StatusRun))
	err := l.backend.DoRun(batches)
	l.status.Store(int32(StatusInactive))
	return err
}

// Release tears down hardware resources and flips the model to not-ready.
func (l *Lifecycle) Release() error {
	l.status.Store(int32(StatusRelease))
	l.metadata.SetReady(false)
	return l.backend.DoRelease()
}

// Destroy performs any final cleanup before the worker is discarded.
func (l *Lifecycle) Destroy() error {
	l.status.Store(int32(StatusDestroy))
	err := l.backend.DoDestroy()
	l.status.Store(int32(StatusDead))
	return err
}
