// Package batcher implements the soft (timeout-bounded dynamic) batching
// engine that groups individual requests into worker-sized batches.
package batcher

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amdinfer/inference-server/pkg/batch"
	"github.com/amdinfer/inference-server/pkg/buffer"
	"github.com/amdinfer/inference-server/pkg/errors"
	"github.com/amdinfer/inference-server/pkg/request"
)

var errInvalidInputSize = errors.New(errors.InvalidArgument, "input size is zero")

// DefaultTimeout is the batcher's remaining-time budget once the first
// request of a batch has arrived, matching the original's kDefaultTimeout.
const DefaultTimeout = 100 * time.Millisecond

// WorkerBuffers is what a SoftBatcher needs from the worker it feeds:
// enough to acquire the input buffers a batch will write into and to
// return them once the batch is done. Output buffers are not acquired here
// — workers allocate those themselves at run time (DESIGN.md open question
// resolution).
type WorkerBuffers interface {
	AcquireInputBuffers(sizes []int) ([]*buffer.Buffer, error)
	batch.BufferReleaser
}

// Status mirrors BatcherStatus from the original: New before Start, Run
// while the loop is active, Inactive once doRun returns, Dead after the
// goroutine has been joined.
type Status int32

const (
	StatusNew Status = iota
	StatusRun
	StatusInactive
	StatusDead
)

// SoftBatcher collects adapters from an input channel into Batches of up
// to BatchSize requests, flushing early on a per-batch timeout. It blocks
// indefinitely for the first request of a batch and then bounds the
// remaining collection time to Timeout minus elapsed, exactly as the
// original SoftBatcher::doRun does (spec §4.4).
type SoftBatcher struct {
	Name      string
	BatchSize int
	Timeout   time.Duration

	worker WorkerBuffers
	input  chan *request.Adapter
	output chan *batch.Batch

	// priorityAware, queue and notify back Enqueue/dequeue with a
	// priority heap instead of the plain FIFO input channel; see
	// NewPriorityAware.
	priorityAware bool
	queue         *PriorityQueue
	notify        chan struct{}

	status atomic.Int32
	stopCh chan struct{}
	wg     sync.WaitGroup

	// pending holds an adapter that was read off input but couldn't be
	// materialized into the current batch's buffers (spec §4.4 step 4);
	// it carries over to open the next batch instead of being dropped.
	pending *request.Adapter

	ingressCount atomic.Int64
	egressCount  atomic.Int64
}

// New constructs a SoftBatcher. If timeout is zero, DefaultTimeout is used,
// matching the original's parameter-or-default resolution.
func New(name string, batchSize int, timeout time.Duration, worker WorkerBuffers) *SoftBatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SoftBatcher{
		Name:      name,
		BatchSize: batchSize,
		Timeout:   timeout,
		worker:    worker,
		input:     make(chan *request.Adapter, 256),
		output:    make(chan *batch.Batch, 16),
		stopCh:    make(chan struct{}),
	}
}

// NewPriorityAware constructs a SoftBatcher that dequeues through a
// PriorityQueue instead of FIFO order, ranking waiting adapters by their
// Priority field (opt-in, default off per worker load parameters).
func NewPriorityAware(name string, batchSize int, timeout time.Duration, worker WorkerBuffers) *SoftBatcher {
	b := New(name, batchSize, timeout, worker)
	b.priorityAware = true
	b.queue = NewPriorityQueue()
	b.notify = make(chan struct{}, 1)
	return b
}

// Enqueue submits one adapter for batching.
func (b *SoftBatcher) Enqueue(a *request.Adapter) {
	if b.priorityAware {
		b.queue.Enqueue(a)
		select {
		case b.notify <- struct{}{}:
		default:
		}
		return
	}
	b.input <- a
}

// Output returns the channel batches are published on once full or timed
// out.
func (b *SoftBatcher) Output() <-chan *batch.Batch { return b.output }

// Status reports the batcher's current lifecycle state.
func (b *SoftBatcher) Status() Status { return Status(b.status.Load()) }

// Start begins the batching loop in a background goroutine.
func (b *SoftBatcher) Start() {
	b.status.Store(int32(StatusRun))
	b.wg.Add(1)
	go b.run()
	log.Printf("batcher %s started: batch_size=%d timeout=%v", b.Name, b.BatchSize, b.Timeout)
}

// Stop signals the loop to exit after finishing any in-flight batch and
// waits for it to join, matching the original's end() semantics.
func (b *SoftBatcher) Stop() {
	close(b.stopCh)
	b.wg.Wait()
	close(b.output)
	b.status.Store(int32(StatusDead))
}

func (b *SoftBatcher) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}
		batchDone, shutdown := b.collectBatch()
		if batchDone != nil && !batchDone.Empty() {
			b.egressCount.Add(1)
			b.output <- batchDone
		}
		if shutdown {
			b.status.Store(int32(StatusInactive))
			return
		}
	}
}

// collectBatch implements the original's do-while loop: block for the
// first request, then keep dequeuing with a shrinking timeout budget until
// the batch is full, the timeout elapses, or the batcher is stopped.
func (b *SoftBatcher) collectBatch() (*batch.Batch, bool) {
	var buffers []*buffer.Buffer
	var offsets []int
	var current *batch.Batch
	size := 0
	start := time.Now()

	for {
		var adapter *request.Adapter
		var ok bool

		switch {
		case b.pending != nil:
			adapter, ok = b.pending, true
			b.pending = nil
			if size == 0 {
				start = time.Now()
			}
		case size == 0 && b.priorityAware:
			a, shutdown := b.waitForQueueItem()
			if shutdown {
				return current, true
			}
			adapter, ok = a, true
			start = time.Now()
			b.ingressCount.Add(1)
		case size == 0:
			select {
			case <-b.stopCh:
				return current, true
			case adapter, ok = <-b.input:
				if !ok {
					return current, true
				}
				start = time.Now()
			}
			b.ingressCount.Add(1)
		case b.priorityAware:
			remaining := b.Timeout - time.Since(start)
			if remaining < 0 {
				remaining = 0
			}
			a, timedOut, shutdown := b.waitForQueueItemTimeout(remaining)
			if shutdown {
				return current, true
			}
			if timedOut {
				return current, false
			}
			adapter, ok = a, true
			b.ingressCount.Add(1)
		default:
			remaining := b.Timeout - time.Since(start)
			if remaining < 0 {
				remaining = 0
			}
			timer := time.NewTimer(remaining)
			select {
			case <-b.stopCh:
				timer.Stop()
				return current, true
			case <-timer.C:
				return current, false
			case adapter, ok = <-b.input:
				timer.Stop()
				if !ok {
					return current, true
				}
			}
			b.ingressCount.Add(1)
		}

		if adapter.InputCount() == 0 {
			adapter.ErrorHandler(errInvalidInputSize)
			continue
		}

		if buffers == nil {
			sizes := adapter.InputByteSizes()
			scaled := make([]int, len(sizes))
			for i, s := range sizes {
				scaled[i] = s * b.BatchSize
			}
			var err error
			buffers, err = b.worker.AcquireInputBuffers(scaled)
			if err != nil {
				adapter.ErrorHandler(err)
				continue
			}
			offsets = make([]int, len(buffers))
			current = batch.New(b.worker, buffers, nil)
		}

		req, newOffsets, err := adapter.Materialize(buffers, offsets)
		if err != nil {
			if size == 0 {
				// The first request of a batch failed against buffers
				// sized for itself: a genuine reject, not a full batch.
				adapter.ErrorHandler(err)
				continue
			}
			// A later request didn't fit the buffers sized off the
			// first one (e.g. a longer String tensor) — treat this as
			// "batch full" per spec §4.4 step 4: close the batch as-is
			// and carry the adapter over to open the next one, rather
			// than losing it.
			b.pending = adapter
			return current, false
		}
		offsets = newOffsets
		current.AddRequest(req)
		current.AddTrace(adapter.Trace)
		current.AddTime(adapter.ArrivedAt)
		size++

		if size >= b.BatchSize {
			return current, false
		}
	}
}

// waitForQueueItem blocks until the priority queue has an adapter to
// dequeue or the batcher is stopped.
func (b *SoftBatcher) waitForQueueItem() (adapter *request.Adapter, shutdown bool) {
	for {
		if items := b.queue.DequeueN(1); len(items) > 0 {
			return items[0], false
		}
		select {
		case <-b.stopCh:
			return nil, true
		case <-b.notify:
		}
	}
}

// waitForQueueItemTimeout is waitForQueueItem bounded by timeout, used once
// a batch already has its first request and is only waiting out the
// remaining budget for more.
func (b *SoftBatcher) waitForQueueItemTimeout(timeout time.Duration) (adapter *request.Adapter, timedOut, shutdown bool) {
	deadline := time.Now().Add(timeout)
	for {
		if items := b.queue.DequeueN(1); len(items) > 0 {
			return items[0], false, false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, true, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-b.stopCh:
			timer.Stop()
			return nil, false, true
		case <-timer.C:
			return nil, true, false
		case <-b.notify:
			timer.Stop()
		}
	}
}

// IngressCount returns the number of adapters this batcher has accepted.
func (b *SoftBatcher) IngressCount() int64 { return b.ingressCount.Load() }

// EgressCount returns the number of batches this batcher has emitted.
func (b *SoftBatcher) EgressCount() int64 { return b.egressCount.Load() }
