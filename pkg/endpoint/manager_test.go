package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/types"
)

func newTestManager() *Manager {
	return NewManager(memory.NewPool(), "")
}

func TestLoadWorkerAssignsBareNameFirst(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	name, err := m.LoadWorker("simulation", types.NewParameters(), true)
	require.NoError(t, err)
	assert.Equal(t, "simulation", name)
	assert.True(t, m.ModelReady(name))
}

func TestLoadWorkerDedupsByParameters(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	params := types.NewParameters()
	params.PutInt32("batchSize", 4)

	first, err := m.LoadWorker("simulation", params, true)
	require.NoError(t, err)

	second, err := m.LoadWorker("simulation", params, true)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical (kind, params) must reuse the same endpoint")
}

func TestLoadWorkerAllocatesSuffixForDifferentParameters(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	params1 := types.NewParameters()
	params1.PutInt32("batchSize", 4)
	params2 := types.NewParameters()
	params2.PutInt32("batchSize", 8)

	first, err := m.LoadWorker("simulation", params1, true)
	require.NoError(t, err)

	second, err := m.LoadWorker("simulation", params2, true)
	require.NoError(t, err)

	assert.Equal(t, "simulation", first)
	assert.Equal(t, "simulation-1", second)
}

func TestUnloadWorkerRemovesEmptyGroup(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	name, err := m.LoadWorker("simulation", types.NewParameters(), true)
	require.NoError(t, err)

	require.NoError(t, m.UnloadWorker(name))
	_, err = m.GetWorker(name)
	assert.Error(t, err)
	assert.False(t, m.ModelReady(name))
}

func TestUnloadWorkerUnknownEndpointIsNoop(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	assert.NoError(t, m.UnloadWorker("does-not-exist"))
}

func TestGetWorkerUnknownEndpointFails(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	_, err := m.GetWorker("nope")
	assert.Error(t, err)
}

func TestModelListReflectsLoadedEndpoints(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	_, err := m.LoadWorker("simulation", types.NewParameters(), true)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"simulation"}, m.ModelList())
}
