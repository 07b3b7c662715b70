// Package request adapts already-decoded wire payloads into the
// protocol-agnostic types.Request the batcher and workers operate on. Each
// transport (REST, gRPC, WebSocket, native Go callers) decodes its own wire
// format into types.Tensor values and then builds an Adapter; from that
// point on the pipeline no longer cares which protocol originated the
// call (spec §4.3's "Interface" role).
package request

import (
	"time"

	"github.com/amdinfer/inference-server/pkg/buffer"
	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/types"
)

// Adapter holds one decoded inference call until the batcher has pool
// buffers ready for it. InputCount/InputByteSizes let the batcher size and
// acquire those buffers before calling Materialize.
type Adapter struct {
	ID         string
	Parameters types.Parameters
	Inputs     []types.Tensor
	Outputs    []types.Tensor
	Callback   types.Callback
	Trace      map[string]string
	ArrivedAt  time.Time

	// Priority ranks this call against others waiting in the same
	// batcher when PriorityAware mode is enabled (pkg/batcher); higher
	// values are dequeued first. It has no effect on the default FIFO
	// soft batcher.
	Priority int32
}

// New constructs an Adapter, stamping ArrivedAt with the current time.
func New(id string, params types.Parameters, inputs, outputs []types.Tensor, cb types.Callback) *Adapter {
	return &Adapter{ID: id, Parameters: params, Inputs: inputs, Outputs: outputs, Callback: cb, ArrivedAt: time.Now()}
}

// InputCount returns the number of input tensors this call carries.
func (a *Adapter) InputCount() int { return len(a.Inputs) }

// InputByteSizes returns the number of bytes each input tensor needs from
// its buffer, in tensor order.
func (a *Adapter) InputByteSizes() []int {
	sizes := make([]int, len(a.Inputs))
	for i, t := range a.Inputs {
		sizes[i] = len(t.Data)
	}
	return sizes
}

// Materialize copies each input tensor's bytes into the corresponding
// buffer at its current offset and returns a pool-backed types.Request plus
// the offsets advanced past the written ranges. On any size mismatch it
// returns an error and leaves offsets untouched, so the caller can revert
// per the soft-batcher's acquire/materialize/revert invariant (spec §4.4).
func (a *Adapter) Materialize(buffers []*buffer.Buffer, offsets []int) (*types.Request, []int, error) {
	if len(buffers) != len(a.Inputs) {
		return nil, nil, errors.New(errors.InvalidArgument,
			"adapter has %d inputs but was given %d buffers", len(a.Inputs), len(buffers))
	}

	newOffsets := make([]int, len(offsets))
	copy(newOffsets, offsets)

	inputs := make([]types.Tensor, len(a.Inputs))
	for i, t := range a.Inputs {
		buf := buffers[i]
		start := newOffsets[i]
		if start+len(t.Data) > buf.Len() {
			return nil, nil, errors.New(errors.InvalidArgument,
				"input %q does not fit in buffer %d: need %d bytes at offset %d, buffer has %d",
				t.Name, i, len(t.Data), start, buf.Len())
		}
		end := buf.Write(t.Data, start)
		inputs[i] = types.Tensor{
			Name:       t.Name,
			Shape:      t.Shape,
			Datatype:   t.Datatype,
			Parameters: t.Parameters,
			Data:       buf.Data(start)[:len(t.Data)],
		}
		newOffsets[i] = end
	}

	req := types.NewRequest(a.ID, a.Parameters, inputs, a.Outputs, a.Callback)
	return req, newOffsets, nil
}

// ErrorHandler delivers err to the adapter's caller without ever going
// through the batcher, for requests rejected before they can be batched
// (e.g. zero-length input).
func (a *Adapter) ErrorHandler(err error) {
	if a.Callback != nil {
		a.Callback(&types.Response{ID: a.ID, Error: err.Error()})
	}
}
