package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/types"
)

const sampleConfig = `
name: "resnet50"
platform: "onnx_onnxv1"
inputs {
  name: "input"
  datatype: "FP32"
  shape: [1, 3, 224, 224]
}
outputs {
  name: "output"
  datatype: "FP32"
  shape: [1, 1000]
}
parameters {
  batchSize: 8
  useGpu: true
}
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.pbtxt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)

	cfg, err := ParseConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, "resnet50", cfg.Name)
	assert.Equal(t, "onnx_onnxv1", cfg.Platform)
	require.Len(t, cfg.Inputs, 1)
	assert.Equal(t, "input", cfg.Inputs[0].Name)
	assert.Equal(t, types.F32, cfg.Inputs[0].Datatype)
	assert.Equal(t, types.Shape{1, 3, 224, 224}, cfg.Inputs[0].Shape)
	require.Len(t, cfg.Outputs, 1)
	assert.Equal(t, types.Shape{1, 1000}, cfg.Outputs[0].Shape)

	kind, err := cfg.WorkerKind()
	require.NoError(t, err)
	assert.Equal(t, "migraphx", kind)

	assert.True(t, cfg.Parameters.Has("batchSize"))
	assert.True(t, cfg.Parameters.Has("useGpu"))
}

func TestUnknownPlatformFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `name: "m"
platform: "bogus"
`)
	cfg, err := ParseConfigFile(path)
	require.NoError(t, err)
	_, err = cfg.WorkerKind()
	assert.Error(t, err)
}

func TestParseConfigFileMissingFails(t *testing.T) {
	_, err := ParseConfigFile(filepath.Join(t.TempDir(), "missing.pbtxt"))
	assert.Error(t, err)
}
