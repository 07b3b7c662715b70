package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/endpoint"
	"github.com/amdinfer/inference-server/pkg/memory"
)

func TestScanOnceContinuesWhenModelLoadFails(t *testing.T) {
	repo := t.TempDir()
	modelDir := filepath.Join(repo, "sim1")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	writeConfig(t, modelDir, `name: "sim1"
platform: "onnx_onnxv1"
`)

	mgr := endpoint.NewManager(memory.NewPool(), "")
	t.Cleanup(mgr.Shutdown)

	w := New(repo, mgr)
	require.NoError(t, w.ScanOnce())

	// migraphx isn't a builtin kind and has no plugin dir configured, so
	// the load is expected to fail — ScanOnce should log and continue
	// rather than stopping the scan.
	assert.Empty(t, mgr.ModelList())
}

func TestScanOnceSkipsDirectoriesWithoutConfig(t *testing.T) {
	repo := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repo, "empty"), 0o755))

	mgr := endpoint.NewManager(memory.NewPool(), "")
	t.Cleanup(mgr.Shutdown)

	w := New(repo, mgr)
	require.NoError(t, w.ScanOnce())
	assert.Empty(t, mgr.ModelList())
}

func TestStartPollingRescans(t *testing.T) {
	repo := t.TempDir()
	mgr := endpoint.NewManager(memory.NewPool(), "")
	t.Cleanup(mgr.Shutdown)

	w := New(repo, mgr)
	w.StartPolling(10 * time.Millisecond)
	defer w.Stop()

	modelDir := filepath.Join(repo, "sim1")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	writeConfig(t, modelDir, `name: "sim1"
platform: "tensorflow_graphdef"
`)

	time.Sleep(100 * time.Millisecond)
	// Same reasoning as above: tfzendnn isn't a builtin/plugin kind in
	// this test environment, so we only assert the scan ran without
	// panicking or deadlocking; LoadWorker's failure path is covered by
	// the manager's own tests.
}
