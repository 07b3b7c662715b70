package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/batch"
	"github.com/amdinfer/inference-server/pkg/buffer"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/types"
)

type nopReleaser struct{}

func (nopReleaser) PutInputBuffers([]*buffer.Buffer)  {}
func (nopReleaser) PutOutputBuffers([]*buffer.Buffer) {}

func TestNewBackendResolvesBuiltinSimulationKind(t *testing.T) {
	params := types.NewParameters()
	params.PutInt32("batchSize", 4)

	backend, metadata, err := NewBackend("simulation", "", "m", "simulation", params)
	require.NoError(t, err)
	assert.Equal(t, 4, backend.BatchSize())
	assert.Equal(t, []memory.Kind{memory.Cpu}, backend.Allocators())
	assert.False(t, metadata.Ready())
}

func TestNewBackendUnknownKindWithoutPluginDirFails(t *testing.T) {
	_, _, err := NewBackend("bogus", "", "m", "bogus", types.NewParameters())
	assert.Error(t, err)
}

func TestExecutorBackendDoRunCompletesRequests(t *testing.T) {
	backend, _, err := NewBackend("simulation", "", "m", "simulation", types.NewParameters())
	require.NoError(t, err)

	respCh := make(chan *types.Response, 1)
	req := types.NewRequest("r1", types.NewParameters(), []types.Tensor{
		{Name: "input", Shape: types.Shape{1}, Datatype: types.F32, Data: []byte{0, 0, 0, 0}},
	}, nil, func(r *types.Response) {
		respCh <- r
	})

	b := batch.New(nopReleaser{}, nil, nil)
	b.AddRequest(req)

	batches := make(chan *batch.Batch, 1)
	batches <- b
	close(batches)

	require.NoError(t, backend.(*executorBackend).DoRun(batches))

	select {
	case resp := <-respCh:
		assert.False(t, resp.IsError())
		assert.Equal(t, "r1", resp.ID)
	default:
		t.Fatal("expected a completed response")
	}
}
