package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/batch"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/types"
)

// fakeBackend records which lifecycle hooks were called, in order.
type fakeBackend struct {
	calls     []string
	batchSize int
	initErr   error
	acquireErr error
}

func (f *fakeBackend) Allocators() []memory.Kind { return []memory.Kind{memory.Cpu} }
func (f *fakeBackend) BatchSize() int            { return f.batchSize }

func (f *fakeBackend) DoInit(types.Parameters) error {
	f.calls = append(f.calls, "init")
	return f.initErr
}

func (f *fakeBackend) DoAcquire(types.Parameters) error {
	f.calls = append(f.calls, "acquire")
	return f.acquireErr
}

func (f *fakeBackend) DoRun(batches <-chan *batch.Batch) error {
	f.calls = append(f.calls, "run")
	for range batches {
	}
	return nil
}

func (f *fakeBackend) DoRelease() error {
	f.calls = append(f.calls, "release")
	return nil
}

func (f *fakeBackend) DoDestroy() error {
	f.calls = append(f.calls, "destroy")
	return nil
}

func TestLifecycleAdvancesThroughEveryState(t *testing.T) {
	backend := &fakeBackend{batchSize: 4}
	metadata := types.NewModelMetadata("m", "simulation")
	lc := NewLifecycle(backend, metadata)

	assert.Equal(t, StatusNew, lc.Status())

	require.NoError(t, lc.Init(types.NewParameters()))
	assert.Equal(t, StatusInit, lc.Status())

	require.NoError(t, lc.Acquire(types.NewParameters()))
	assert.Equal(t, StatusAcquire, lc.Status())
	assert.True(t, metadata.Ready())

	batches := make(chan *batch.Batch)
	close(batches)
	require.NoError(t, lc.Run(batches))
	assert.Equal(t, StatusInactive, lc.Status())

	require.NoError(t, lc.Release())
	assert.Equal(t, StatusRelease, lc.Status())
	assert.False(t, metadata.Ready())

	require.NoError(t, lc.Destroy())
	assert.Equal(t, StatusDead, lc.Status())

	assert.Equal(t, []string{"init", "acquire", "run", "release", "destroy"}, backend.calls)
}

func TestLifecycleAcquireFailureLeavesModelNotReady(t *testing.T) {
	backend := &fakeBackend{acquireErr: assert.AnError}
	metadata := types.NewModelMetadata("m", "simulation")
	lc := NewLifecycle(backend, metadata)

	require.NoError(t, lc.Init(types.NewParameters()))
	err := lc.Acquire(types.NewParameters())
	require.Error(t, err)
	assert.False(t, metadata.Ready())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "new", StatusNew.String())
	assert.Equal(t, "dead", StatusDead.String())
	assert.Equal(t, "unknown", Status(99).String())
}
