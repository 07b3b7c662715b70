// Package executor defines the boundary between the batching/lifecycle
// machinery and the actual computation a worker performs. What happens
// inside Execute is deliberately opaque to the rest of the pipeline — the
// spec's non-goal carves out model-specific inference logic, leaving this
// interface as the seam a real backend plugs into.
package executor

import "github.com/amdinfer/inference-server/pkg/types"

// Executor runs one batch of already-materialized requests and produces
// one output tensor set per request, in the same order as reqs.
type Executor interface {
	// Execute runs the batch and returns len(reqs) output tensor sets,
	// each matching outputSpecs in order.
	Execute(reqs []*types.Request, outputSpecs []types.TensorMetadata) ([][]types.Tensor, error)

	// Name identifies the executor for logging and metrics labels.
	Name() string
}
