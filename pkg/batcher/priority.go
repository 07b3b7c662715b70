package batcher

import (
	"container/heap"
	"sync"

	"github.com/amdinfer/inference-server/pkg/request"
)

// priorityItem tracks an adapter's position in the heap alongside its
// arrival order, so Less can break priority ties FIFO.
type priorityItem struct {
	adapter *request.Adapter
	seq     int64
	index   int
}

// priorityHeap implements container/heap.Interface: higher Priority is
// dequeued first; equal priority falls back to arrival order.
type priorityHeap []*priorityItem

func (h priorityHeap) Len() int { return len(h) }

func (h priorityHeap) Less(i, j int) bool {
	if h[i].adapter.Priority != h[j].adapter.Priority {
		return h[i].adapter.Priority > h[j].adapter.Priority
	}
	return h[i].seq < h[j].seq
}

func (h priorityHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *priorityHeap) Push(x any) {
	item := x.(*priorityItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// PriorityQueue is an opt-in, thread-safe priority queue of adapters. A
// SoftBatcher can be configured to dequeue from one of these instead of its
// plain input channel when requests carry a meaningful Priority (spec
// supplemented feature, not in the base model).
type PriorityQueue struct {
	mu   sync.Mutex
	heap priorityHeap
	next int64
}

// NewPriorityQueue returns an empty priority queue.
func NewPriorityQueue() *PriorityQueue {
	pq := &PriorityQueue{}
	heap.Init(&pq.heap)
	return pq
}

// Enqueue adds an adapter, ranked by its Priority field.
func (pq *PriorityQueue) Enqueue(a *request.Adapter) {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	heap.Push(&pq.heap, &priorityItem{adapter: a, seq: pq.next})
	pq.next++
}

// DequeueN removes up to n highest-priority adapters.
func (pq *PriorityQueue) DequeueN(n int) []*request.Adapter {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	if len(pq.heap) == 0 {
		return nil
	}
	if n > len(pq.heap) {
		n = len(pq.heap)
	}
	out := make([]*request.Adapter, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, heap.Pop(&pq.heap).(*priorityItem).adapter)
	}
	return out
}

// Depth returns the current queue length.
func (pq *PriorityQueue) Depth() int {
	pq.mu.Lock()
	defer pq.mu.Unlock()
	return len(pq.heap)
}
