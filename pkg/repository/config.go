// Package repository discovers models under a repository directory and
// parses their config.pbtxt descriptors, the Go counterpart of
// model_repository.cpp's modelLoad path. A real protobuf text-format
// parser needs a compiled descriptor this environment cannot build, so
// this is a small permissive reader of the grammar spec.md §6 describes:
// top-level "key: value" pairs plus "inputs { ... }"/"outputs { ... }"
// blocks and a flat "parameters { ... }" block.
package repository

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/types"
)

// ModelConfig is the parsed shape of one model's config.pbtxt.
type ModelConfig struct {
	Name       string
	Platform   string
	Inputs     []types.TensorMetadata
	Outputs    []types.TensorMetadata
	Parameters types.Parameters
}

// platformWorkerKind maps a config.pbtxt platform string to the worker
// kind that serves it, per spec §6.
var platformWorkerKind = map[string]string{
	"tensorflow_graphdef": "tfzendnn",
	"pytorch_torchscript": "ptzendnn",
	"onnx_onnxv1":         "migraphx",
	"vitis_xmodel":        "xmodel",
}

// WorkerKind resolves this config's platform to a worker kind, failing
// InvalidArgument for an unrecognized platform exactly as the original
// modelLoad does.
func (c *ModelConfig) WorkerKind() (string, error) {
	kind, ok := platformWorkerKind[c.Platform]
	if !ok {
		return "", errors.New(errors.InvalidArgument, "unknown platform %q", c.Platform)
	}
	return kind, nil
}

// ParseConfigFile reads and parses a config.pbtxt file at path.
func ParseConfigFile(path string) (*ModelConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.FileNotFound, err, "opening config file %q", path)
	}
	defer f.Close()

	cfg, err := parseConfig(f)
	if err != nil {
		return nil, errors.Wrap(errors.InvalidArgument, err, "parsing config file %q", path)
	}
	return cfg, nil
}

// parseConfig walks the file one line at a time, handling the grammar's
// "key: value" pairs and "inputs {"/"outputs {"/"parameters {" blocks —
// sufficient for the non-nested config.pbtxt files this server reads.
func parseConfig(f *os.File) (*ModelConfig, error) {
	cfg := &ModelConfig{Parameters: types.NewParameters()}

	scanner := bufio.NewScanner(f)
	var currentInput, currentOutput *types.TensorMetadata
	section := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case line == "}":
			switch section {
			case "inputs":
				if currentInput != nil {
					cfg.Inputs = append(cfg.Inputs, *currentInput)
					currentInput = nil
				}
			case "outputs":
				if currentOutput != nil {
					cfg.Outputs = append(cfg.Outputs, *currentOutput)
					currentOutput = nil
				}
			}
			section = ""
			continue
		case strings.HasPrefix(line, "inputs") && strings.HasSuffix(line, "{"):
			section = "inputs"
			currentInput = &types.TensorMetadata{}
			continue
		case strings.HasPrefix(line, "outputs") && strings.HasSuffix(line, "{"):
			section = "outputs"
			currentOutput = &types.TensorMetadata{}
			continue
		case strings.HasPrefix(line, "parameters") && strings.HasSuffix(line, "{"):
			section = "parameters"
			continue
		}

		key, value, ok := splitField(line)
		if !ok {
			continue
		}

		switch section {
		case "inputs":
			applyTensorField(currentInput, key, value)
		case "outputs":
			applyTensorField(currentOutput, key, value)
		case "parameters":
			applyParameterField(cfg.Parameters, key, value)
		default:
			switch key {
			case "name":
				cfg.Name = unquote(value)
			case "platform":
				cfg.Platform = unquote(value)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitField(line string) (key, value string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func applyTensorField(t *types.TensorMetadata, key, value string) {
	if t == nil {
		return
	}
	switch key {
	case "name":
		t.Name = unquote(value)
	case "datatype":
		dt, err := types.ParseDataType(unquote(value))
		if err == nil {
			t.Datatype = dt
		}
	case "shape":
		t.Shape = parseShape(value)
	}
}

func applyParameterField(params types.Parameters, key, value string) {
	switch {
	case strings.HasPrefix(value, `"`):
		params.PutString(key, unquote(value))
	case value == "true" || value == "false":
		params.PutBool(key, value == "true")
	default:
		if n, err := strconv.ParseInt(value, 10, 32); err == nil {
			params.PutInt32(key, int32(n))
			return
		}
		if d, err := strconv.ParseFloat(value, 64); err == nil {
			params.PutDouble(key, d)
		}
	}
}

func parseShape(value string) types.Shape {
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	parts := strings.Split(value, ",")
	shape := make(types.Shape, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err == nil {
			shape = append(shape, n)
		}
	}
	return shape
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
