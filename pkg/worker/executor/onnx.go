//go:build onnx

package executor

/*
#cgo LDFLAGS: -lonnxruntime
#include <onnxruntime_c_api.h>
#include <stdlib.h>

static const OrtApi* g_ort = NULL;
static OrtEnv* g_env = NULL;
static OrtSession* g_session = NULL;
static OrtSessionOptions* g_session_opts = NULL;
static OrtMemoryInfo* g_memory_info = NULL;
static OrtAllocator* g_allocator = NULL;

static int ort_init(const char* model_path, int use_gpu) {
    g_ort = OrtGetApiBase()->GetApi(ORT_API_VERSION);
    if (!g_ort) return -1;

    OrtStatus* status = NULL;

    status = g_ort->CreateEnv(ORT_LOGGING_LEVEL_WARNING, "inference-server", &g_env);
    if (status) { g_ort->ReleaseStatus(status); return -2; }

    status = g_ort->CreateSessionOptions(&g_session_opts);
    if (status) { g_ort->ReleaseStatus(status); return -3; }

    if (use_gpu) {
        status = OrtSessionOptionsAppendExecutionProvider_CUDA(g_session_opts, 0);
        if (status) {
            g_ort->ReleaseStatus(status);
        }
    }

    g_ort->SetIntraOpNumThreads(g_session_opts, 4);
    g_ort->SetSessionGraphOptimizationLevel(g_session_opts, ORT_ENABLE_ALL);

    status = g_ort->CreateSession(g_env, model_path, g_session_opts, &g_session);
    if (status) { g_ort->ReleaseStatus(status); return -4; }

    status = g_ort->CreateCpuMemoryInfo(OrtArenaAllocator, OrtMemTypeDefault, &g_memory_info);
    if (status) { g_ort->ReleaseStatus(status); return -5; }

    status = g_ort->GetAllocatorWithDefaultOptions(&g_allocator);
    if (status) { g_ort->ReleaseStatus(status); return -6; }

    return 0;
}

// Runs inference on a single flat float32 input of input_len elements per
// batch entry and writes output_len float32 elements per batch entry.
static int ort_run_batch(float* input_data, int batch_size, int64_t input_len,
                          float* output_data, int output_len) {
    if (!g_session || !g_ort) return -1;

    OrtStatus* status = NULL;
    const int64_t input_shape[] = {batch_size, input_len};
    const size_t total_input_bytes = (size_t)batch_size * (size_t)input_len * sizeof(float);

    OrtValue* input_tensor = NULL;
    status = g_ort->CreateTensorWithDataAsOrtValue(
        g_memory_info, input_data, total_input_bytes,
        input_shape, 2, ONNX_TENSOR_ELEMENT_DATA_TYPE_FLOAT,
        &input_tensor
    );
    if (status) { g_ort->ReleaseStatus(status); return -2; }

    char* input_name = NULL;
    char* output_name = NULL;
    g_ort->SessionGetInputName(g_session, 0, g_allocator, &input_name);
    g_ort->SessionGetOutputName(g_session, 0, g_allocator, &output_name);

    const char* input_names[] = { input_name };
    const char* output_names[] = { output_name };
    OrtValue* output_tensor = NULL;

    status = g_ort->Run(
        g_session, NULL,
        input_names, (const OrtValue* const*)&input_tensor, 1,
        output_names, 1,
        &output_tensor
    );

    g_ort->AllocatorFree(g_allocator, input_name);
    g_ort->AllocatorFree(g_allocator, output_name);
    g_ort->ReleaseValue(input_tensor);

    if (status) {
        g_ort->ReleaseStatus(status);
        return -3;
    }

    float* out_ptr = NULL;
    g_ort->GetTensorMutableData(output_tensor, (void**)&out_ptr);
    for (int i = 0; i < batch_size * output_len; i++) {
        output_data[i] = out_ptr[i];
    }

    g_ort->ReleaseValue(output_tensor);
    return 0;
}

static void ort_cleanup() {
    if (g_session) g_ort->ReleaseSession(g_session);
    if (g_session_opts) g_ort->ReleaseSessionOptions(g_session_opts);
    if (g_memory_info) g_ort->ReleaseMemoryInfo(g_memory_info);
    if (g_env) g_ort->ReleaseEnv(g_env);
}
*/
import "C"

import (
	"encoding/binary"
	"math"
	"sync"
	"unsafe"

	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/types"
)

// ONNX runs real inference through ONNX Runtime's C API, supporting either
// the CPU or CUDA execution provider. It assumes a single flat float32
// input and a single flat float32 output per request, which is the common
// case for classification/embedding models; richer topologies need a
// dedicated executor.
type ONNX struct {
	mu        sync.Mutex
	modelPath string
	useGPU    bool
	ready     bool
}

// NewONNX loads modelPath into a fresh ONNX Runtime session.
func NewONNX(modelPath string, useGPU bool) (*ONNX, error) {
	e := &ONNX{modelPath: modelPath, useGPU: useGPU}

	cModelPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cModelPath))

	gpuFlag := C.int(0)
	if useGPU {
		gpuFlag = 1
	}

	if rc := C.ort_init(cModelPath, gpuFlag); rc != 0 {
		return nil, errors.New(errors.External, "onnx runtime init failed (code %d)", rc)
	}

	e.ready = true
	return e, nil
}

func (e *ONNX) Name() string {
	if e.useGPU {
		return "onnx-gpu"
	}
	return "onnx-cpu"
}

// Execute flattens each request's first input tensor into one contiguous
// float32 batch, runs one ONNX Runtime session call, and splits the
// resulting float32 batch back out into per-request output tensors shaped
// per outputSpecs[0].
func (e *ONNX) Execute(reqs []*types.Request, outputSpecs []types.TensorMetadata) ([][]types.Tensor, error) {
	if !e.ready {
		return nil, errors.New(errors.Runtime, "onnx executor not initialized")
	}
	if len(outputSpecs) == 0 {
		return nil, errors.New(errors.InvalidArgument, "onnx executor requires at least one output spec")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	batchSize := len(reqs)
	if batchSize == 0 {
		return nil, errors.New(errors.InvalidArgument, "empty batch")
	}

	inputLen := int64(len(reqs[0].Inputs[0].Data)) / 4
	inputData := make([]float32, int64(batchSize)*inputLen)
	for i, req := range reqs {
		bytesToFloat32Slice(req.Inputs[0].Data, inputData[int64(i)*inputLen:])
	}

	outputSpec := outputSpecs[0]
	outputLen := outputSpec.Shape.Elements()
	outputData := make([]float32, int64(batchSize)*outputLen)

	rc := C.ort_run_batch(
		(*C.float)(unsafe.Pointer(&inputData[0])),
		C.int(batchSize),
		C.int64_t(inputLen),
		(*C.float)(unsafe.Pointer(&outputData[0])),
		C.int(outputLen),
	)
	if rc != 0 {
		return nil, errors.New(errors.External, "onnx inference failed (code %d)", rc)
	}

	results := make([][]types.Tensor, batchSize)
	for i := 0; i < batchSize; i++ {
		slice := outputData[int64(i)*outputLen : int64(i+1)*outputLen]
		results[i] = []types.Tensor{{
			Name:     outputSpec.Name,
			Shape:    outputSpec.Shape,
			Datatype: types.F32,
			Data:     float32SliceToBytes(slice),
		}}
	}

	return results, nil
}

// Cleanup releases ONNX Runtime session resources.
func (e *ONNX) Cleanup() {
	C.ort_cleanup()
	e.ready = false
}

func bytesToFloat32Slice(src []byte, dst []float32) {
	n := len(src) / 4
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(src[i*4 : i*4+4])
		dst[i] = math.Float32frombits(bits)
	}
}

func float32SliceToBytes(src []float32) []byte {
	out := make([]byte, len(src)*4)
	for i, v := range src {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(v))
	}
	return out
}
