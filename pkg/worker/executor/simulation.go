package executor

import (
	"math"
	"math/rand"
	"time"

	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/types"
)

// Simulated mimics computation with CPU work plus a sleep scaled to batch
// size, standing in for a real backend when no model library is linked in.
// It produces realistic latency patterns without requiring any hardware.
type Simulated struct {
	BaseLatencyMs int // per-batch base latency (default 5)
}

// NewSimulated constructs a Simulated executor, defaulting BaseLatencyMs to
// 5 when given a non-positive value.
func NewSimulated(baseLatencyMs int) *Simulated {
	if baseLatencyMs <= 0 {
		baseLatencyMs = 5
	}
	return &Simulated{BaseLatencyMs: baseLatencyMs}
}

func (s *Simulated) Name() string { return "simulation" }

// Execute ignores the actual tensor contents and fabricates output tensors
// matching outputSpecs' shape and datatype for every request, after an
// artificial delay that grows sublinearly with batch size the way a real
// GPU kernel would.
func (s *Simulated) Execute(reqs []*types.Request, outputSpecs []types.TensorMetadata) ([][]types.Tensor, error) {
	batchSize := len(reqs)
	if batchSize == 0 {
		return nil, errors.New(errors.InvalidArgument, "empty batch")
	}

	latency := time.Duration(s.BaseLatencyMs) * time.Millisecond
	latency += time.Duration(float64(batchSize)*1.5) * time.Millisecond

	matrixWork(64)
	time.Sleep(latency)

	results := make([][]types.Tensor, batchSize)
	for i := range results {
		tensors := make([]types.Tensor, len(outputSpecs))
		for j, spec := range outputSpecs {
			tensors[j] = types.Tensor{
				Name:     spec.Name,
				Shape:    spec.Shape,
				Datatype: spec.Datatype,
				Data:     randomBytes(spec.Shape.Elements() * int64(spec.Datatype.Size())),
			}
		}
		results[i] = tensors
	}
	return results, nil
}

func randomBytes(n int64) []byte {
	buf := make([]byte, n)
	rand.Read(buf) //nolint:errcheck // math/rand.Read never errors
	return buf
}

// matrixWork performs an NxN matrix multiplication to create real CPU load,
// approximating the cost of a model forward pass.
func matrixWork(n int) {
	a := make([][]float64, n)
	b := make([][]float64, n)
	c := make([][]float64, n)
	for i := 0; i < n; i++ {
		a[i] = make([]float64, n)
		b[i] = make([]float64, n)
		c[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			a[i][j] = rand.Float64()
			b[i][j] = rand.Float64()
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for k := 0; k < n; k++ {
				sum += a[i][k] * b[k][j]
			}
			c[i][j] = sum
		}
	}
	_ = math.Sqrt(c[0][0])
}
