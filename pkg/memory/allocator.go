// Package memory implements the pooled byte allocators that back every
// tensor buffer passed through the pipeline. Requests never touch the Go
// heap directly for tensor payloads; they borrow a range from a pool-owned
// arena and return it when the batch finishes (spec §4.2).
package memory

import (
	"container/list"
	"sync"

	"github.com/amdinfer/inference-server/pkg/errors"
)

// Kind identifies which backing allocator produced an Address. Only Cpu
// exists today; Non-goals exclude GPU-resident pools (spec Non-goals).
type Kind uint8

const (
	Cpu Kind = iota
)

func (k Kind) String() string {
	switch k {
	case Cpu:
		return "cpu"
	default:
		return "unknown"
	}
}

// Address names a range inside one allocator's arenas: which block it came
// from and the byte offset into that block. It stands in for the original
// implementation's raw std::byte* (Go has no pointer arithmetic over byte
// slices, so the block/offset pair plays the same role).
type Address struct {
	BlockID uint64
	Offset  int
	Size    int
}

// Allocator is the interface every pool-managed arena implements. Get
// reserves size bytes and returns an Address; Put releases a previously
// returned Address back to the free list; Bytes resolves an Address to the
// live byte slice backing it.
type Allocator interface {
	Get(size int) (Address, error)
	Put(addr Address) error
	Bytes(addr Address) []byte
}

// header mirrors MemoryHeader from the original best-fit allocator: one
// entry per live region (free or in-use) inside a block's arena.
type header struct {
	offset  int
	size    int
	free    bool
	blockID uint64
}

// CPUAllocator is a best-fit, coalescing allocator over a growable set of
// byte arenas ("blocks"), each max(request, blockSize) bytes long. It is a
// direct port of
// amdinfer's CpuAllocator: a std::list<MemoryHeader> becomes a
// container/list.List of *header, and std::vector<std::byte> blocks become
// a map of block ID to []byte.
type CPUAllocator struct {
	mu sync.Mutex

	blockSize   int
	maxAllocate int
	allocated   int
	nextBlockID uint64

	headers *list.List
	blocks  map[uint64][]byte
}

// NewCPUAllocator creates an allocator that grows in blockSize-byte
// increments, refusing to grow past maxAllocate total bytes. maxAllocate <=
// 0 means unbounded.
func NewCPUAllocator(blockSize, maxAllocate int) *CPUAllocator {
	return &CPUAllocator{
		blockSize:   blockSize,
		maxAllocate: maxAllocate,
		headers:     list.New(),
		blocks:      make(map[uint64][]byte),
	}
}

// Get performs a best-fit scan of the free list, splitting the smallest
// free region that fits. If nothing fits, it grows by a new block of
// max(size, blockSize) bytes, mirroring the original's get().
func (a *CPUAllocator) Get(size int) (Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var best *list.Element
	for e := a.headers.Front(); e != nil; e = e.Next() {
		h := e.Value.(*header)
		if h.free && h.size >= size && (best == nil || h.size < best.Value.(*header).size) {
			best = e
		}
	}

	if best != nil {
		h := best.Value.(*header)
		if h.size == size {
			h.free = false
			return Address{BlockID: h.blockID, Offset: h.offset, Size: h.size}, nil
		}
		newHeader := &header{offset: h.offset, size: size, free: false, blockID: h.blockID}
		a.headers.InsertBefore(newHeader, best)
		h.size -= size
		h.offset += size
		return Address{BlockID: newHeader.blockID, Offset: newHeader.offset, Size: newHeader.size}, nil
	}

	sizeToAllocate := size
	if a.blockSize > sizeToAllocate {
		sizeToAllocate = a.blockSize
	}
	if a.maxAllocate > 0 && a.allocated+sizeToAllocate > a.maxAllocate {
		return Address{}, errors.New(errors.Runtime, "memory pool exhausted: requested %d bytes, %d/%d allocated", size, a.allocated, a.maxAllocate)
	}

	a.nextBlockID++
	blockID := a.nextBlockID
	a.blocks[blockID] = make([]byte, sizeToAllocate)
	a.allocated += sizeToAllocate

	a.headers.PushBack(&header{offset: 0, size: size, free: false, blockID: blockID})
	if size < sizeToAllocate {
		a.headers.PushBack(&header{offset: size, size: sizeToAllocate - size, free: true, blockID: blockID})
	}
	return Address{BlockID: blockID, Offset: 0, Size: size}, nil
}

// Put returns an Address to the free list, coalescing with an immediately
// adjacent free region from the same block on either side, mirroring the
// original's put().
func (a *CPUAllocator) Put(addr Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var found *list.Element
	for e := a.headers.Front(); e != nil; e = e.Next() {
		h := e.Value.(*header)
		if h.blockID == addr.BlockID && h.offset == addr.Offset {
			found = e
			break
		}
	}
	if found == nil {
		return errors.New(errors.Runtime, "address not found in allocator")
	}

	if prev := found.Prev(); prev != nil {
		ph := prev.Value.(*header)
		fh := found.Value.(*header)
		if ph.blockID == fh.blockID && ph.free {
			ph.size += fh.size
			a.headers.Remove(found)
			found = prev
		}
	}

	if next := found.Next(); next != nil {
		fh := found.Value.(*header)
		nh := next.Value.(*header)
		if nh.blockID == fh.blockID && nh.free {
			nh.size += fh.size
			nh.offset = fh.offset
			a.headers.Remove(found)
			return nil
		}
	}

	found.Value.(*header).free = true
	return nil
}

// Bytes returns the live slice backing addr. The caller must not retain it
// past the matching Put call.
func (a *CPUAllocator) Bytes(addr Address) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	block := a.blocks[addr.BlockID]
	return block[addr.Offset : addr.Offset+addr.Size]
}
