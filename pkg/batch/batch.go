// Package batch holds the Batch type: a group of requests that share one
// round of buffers and will be submitted to a worker together.
package batch

import (
	"time"

	"github.com/amdinfer/inference-server/pkg/buffer"
	"github.com/amdinfer/inference-server/pkg/types"
)

// BufferReleaser returns a set of buffers to whatever pool produced them.
// Workers implement this so a Batch can give buffers back without knowing
// which allocator kinds backed them.
type BufferReleaser interface {
	PutInputBuffers([]*buffer.Buffer)
	PutOutputBuffers([]*buffer.Buffer)
}

// Batch groups requests that will be submitted to a worker's doRun in one
// call. It owns the input/output buffers for the round and is responsible
// for returning them to the worker's buffer pool when the batch is done,
// mirroring the original Batch's constructor/destructor acquire-release
// pairing (spec §4.3).
type Batch struct {
	worker BufferReleaser

	requests      []*types.Request
	inputBuffers  []*buffer.Buffer
	outputBuffers []*buffer.Buffer
	traces        []map[string]string
	startTimes    []time.Time
}

// New constructs an empty Batch bound to the buffers a worker hands out for
// this round.
func New(worker BufferReleaser, inputBuffers, outputBuffers []*buffer.Buffer) *Batch {
	return &Batch{worker: worker, inputBuffers: inputBuffers, outputBuffers: outputBuffers}
}

// AddRequest appends a request to the batch. Callers must keep
// requests/traces/start-times in lockstep (spec invariant: len(requests) ==
// len(traces) == len(start_times) when those features are enabled).
func (b *Batch) AddRequest(req *types.Request) { b.requests = append(b.requests, req) }

// AddTrace records the trace context for the request at the same index.
func (b *Batch) AddTrace(trace map[string]string) { b.traces = append(b.traces, trace) }

// AddTime records the ingress timestamp for the request at the same index.
func (b *Batch) AddTime(t time.Time) { b.startTimes = append(b.startTimes, t) }

// Requests returns the batch's requests in arrival order.
func (b *Batch) Requests() []*types.Request { return b.requests }

// Request returns the request at index.
func (b *Batch) Request(index int) *types.Request { return b.requests[index] }

// Trace returns the trace context for the request at index, or nil if
// tracing wasn't recorded for this batch.
func (b *Batch) Trace(index int) map[string]string {
	if index >= len(b.traces) {
		return nil
	}
	return b.traces[index]
}

// Time returns the ingress timestamp for the request at index.
func (b *Batch) Time(index int) time.Time { return b.startTimes[index] }

// Empty reports whether the batch has no requests.
func (b *Batch) Empty() bool { return len(b.requests) == 0 }

// Size returns the number of requests in the batch.
func (b *Batch) Size() int { return len(b.requests) }

// InputBuffers returns the batch's input buffers, one per model input.
func (b *Batch) InputBuffers() []*buffer.Buffer { return b.inputBuffers }

// OutputBuffers returns the batch's output buffers, one per model output.
func (b *Batch) OutputBuffers() []*buffer.Buffer { return b.outputBuffers }

// Close returns the batch's buffers to the worker's pool. It must be called
// exactly once the executor is done with them, whether the run succeeded or
// failed.
func (b *Batch) Close() {
	b.worker.PutInputBuffers(b.inputBuffers)
	b.worker.PutOutputBuffers(b.outputBuffers)
}
