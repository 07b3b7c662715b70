package batcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdinfer/inference-server/pkg/buffer"
	"github.com/amdinfer/inference-server/pkg/memory"
	"github.com/amdinfer/inference-server/pkg/request"
	"github.com/amdinfer/inference-server/pkg/types"
)

// fakeWorker satisfies WorkerBuffers directly over a memory.Pool, standing
// in for a real worker's buffer bookkeeping in these tests.
type fakeWorker struct {
	pool *memory.Pool
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{pool: memory.NewPool()}
}

func (f *fakeWorker) AcquireInputBuffers(sizes []int) ([]*buffer.Buffer, error) {
	bufs := make([]*buffer.Buffer, len(sizes))
	for i, s := range sizes {
		b, err := buffer.Acquire(f.pool, []memory.Kind{memory.Cpu}, s)
		if err != nil {
			return nil, err
		}
		bufs[i] = b
	}
	return bufs, nil
}

func (f *fakeWorker) PutInputBuffers(bufs []*buffer.Buffer) {
	for _, b := range bufs {
		_ = b.Release()
	}
}

func (f *fakeWorker) PutOutputBuffers(bufs []*buffer.Buffer) {
	for _, b := range bufs {
		_ = b.Release()
	}
}

func makeAdapter(id string) *request.Adapter {
	data := []byte{1, 2, 3, 4}
	tensor := types.Tensor{Name: "input", Shape: types.Shape{4}, Datatype: types.U8, Data: data}
	return request.New(id, types.NewParameters(), []types.Tensor{tensor}, nil, nil)
}

func makeAdapterWithPriority(id string, priority int32) *request.Adapter {
	a := makeAdapter(id)
	a.Priority = priority
	return a
}

func TestSoftBatcherFlushesOnFullBatch(t *testing.T) {
	worker := newFakeWorker()
	b := New("model", 2, time.Hour, worker)
	b.Start()
	defer b.Stop()

	b.Enqueue(makeAdapter("a"))
	b.Enqueue(makeAdapter("b"))

	select {
	case out := <-b.Output():
		assert.Equal(t, 2, out.Size())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for full batch")
	}
}

func TestSoftBatcherFlushesOnTimeout(t *testing.T) {
	worker := newFakeWorker()
	b := New("model", 10, 50*time.Millisecond, worker)
	b.Start()
	defer b.Stop()

	b.Enqueue(makeAdapter("a"))

	select {
	case out := <-b.Output():
		assert.Equal(t, 1, out.Size(), "timeout should flush a partial batch")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timeout-flushed batch")
	}
}

func TestSoftBatcherRejectsEmptyInput(t *testing.T) {
	worker := newFakeWorker()
	b := New("model", 2, 50*time.Millisecond, worker)
	b.Start()
	defer b.Stop()

	errCh := make(chan string, 1)
	empty := request.New("empty", types.NewParameters(), nil, nil, func(r *types.Response) {
		errCh <- r.Error
	})
	b.Enqueue(empty)

	select {
	case msg := <-errCh:
		assert.NotEmpty(t, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error callback")
	}
}

func TestSoftBatcherDrainsOnStop(t *testing.T) {
	worker := newFakeWorker()
	b := New("model", 10, time.Hour, worker)
	b.Start()

	b.Enqueue(makeAdapter("a"))
	time.Sleep(20 * time.Millisecond)
	b.Stop()

	require.Equal(t, StatusDead, b.Status())
}

// TestSoftBatcherClosesOutputOnStop guards against the Output channel
// staying open after Stop, which would leave a `for range batcher.Output()`
// consumer (the worker's DoRun loop) blocked forever.
func TestSoftBatcherClosesOutputOnStop(t *testing.T) {
	worker := newFakeWorker()
	b := New("model", 10, time.Hour, worker)
	b.Start()
	b.Stop()

	_, ok := <-b.Output()
	assert.False(t, ok, "Output channel should be closed after Stop")
}

// TestSoftBatcherScenario3LeftoverBatchOrdering covers batch size 2 with 3
// requests arriving together: the first two fill a batch immediately, and
// the third flushes alone once the timeout elapses.
func TestSoftBatcherScenario3LeftoverBatchOrdering(t *testing.T) {
	worker := newFakeWorker()
	b := New("model", 2, 50*time.Millisecond, worker)
	b.Start()
	defer b.Stop()

	b.Enqueue(makeAdapter("a"))
	b.Enqueue(makeAdapter("b"))
	b.Enqueue(makeAdapter("c"))

	select {
	case out := <-b.Output():
		assert.Equal(t, 2, out.Size(), "first batch should be full")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first batch")
	}

	select {
	case out := <-b.Output():
		assert.Equal(t, 1, out.Size(), "second batch should be the leftover request")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for leftover batch")
	}
}

// TestPriorityAwareBatcherDequeuesHighestPriorityFirst enqueues two
// low-priority adapters, one high-priority adapter and one more
// low-priority adapter before the batcher starts, and checks the
// high-priority adapter is dequeued ahead of the earlier-arrived
// low-priority ones.
func TestPriorityAwareBatcherDequeuesHighestPriorityFirst(t *testing.T) {
	worker := newFakeWorker()
	b := NewPriorityAware("model", 1, time.Hour, worker)

	// Enqueue before Start so all four are already queued when the
	// batcher's loop begins draining, removing any race over arrival
	// order versus goroutine scheduling.
	b.Enqueue(makeAdapterWithPriority("low-1", 0))
	b.Enqueue(makeAdapterWithPriority("low-2", 0))
	b.Enqueue(makeAdapterWithPriority("high", 10))
	b.Enqueue(makeAdapterWithPriority("low-3", 0))

	b.Start()
	defer b.Stop()

	var ids []string
	for i := 0; i < 4; i++ {
		select {
		case out := <-b.Output():
			require.Equal(t, 1, out.Size())
			ids = append(ids, out.Request(0).ID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a batch")
		}
	}

	assert.Equal(t, "high", ids[0], "high-priority adapter should dequeue before earlier-arrived low-priority ones")
	assert.ElementsMatch(t, []string{"low-1", "low-2", "low-3"}, ids[1:])
}

// TestSoftBatcherCarriesOverAdapterThatDoesNotFitCurrentBatch exercises
// spec §4.4 step 4: a non-first request whose tensor doesn't fit the
// buffers sized off the first request closes the batch as full and carries
// the request over to open the next batch, rather than rejecting it.
func TestSoftBatcherCarriesOverAdapterThatDoesNotFitCurrentBatch(t *testing.T) {
	worker := newFakeWorker()
	b := New("model", 2, 50*time.Millisecond, worker)
	b.Start()
	defer b.Stop()

	small := makeAdapter("a") // 4 bytes; buffers get sized to 4*BatchSize=8
	big := request.New("big", types.NewParameters(), []types.Tensor{
		{Name: "input", Shape: types.Shape{5}, Datatype: types.U8, Data: make([]byte, 5)},
	}, nil, nil) // doesn't fit at offset 4 in an 8-byte buffer

	b.Enqueue(small)
	b.Enqueue(big)

	select {
	case out := <-b.Output():
		require.Equal(t, 1, out.Size())
		assert.Equal(t, "a", out.Request(0).ID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first batch")
	}

	select {
	case out := <-b.Output():
		require.Equal(t, 1, out.Size())
		assert.Equal(t, "big", out.Request(0).ID, "carried-over adapter should open the next batch, not be dropped")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for carried-over batch")
	}
}
