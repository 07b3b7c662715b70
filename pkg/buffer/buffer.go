// Package buffer wraps pool-allocated memory ranges with a writable,
// pool-aware handle that tensors reference by view instead of copy.
package buffer

import (
	"github.com/amdinfer/inference-server/pkg/memory"
)

// Buffer is a single contiguous range borrowed from a memory.Pool. It
// tracks which allocator kind produced it so Release can return it to the
// right pool, mirroring amdinfer's Buffer/MemoryPool pairing.
type Buffer struct {
	pool *memory.Pool
	kind memory.Kind
	addr memory.Address
}

// Acquire reserves size bytes from pool, trying candidates in order.
func Acquire(pool *memory.Pool, candidates []memory.Kind, size int) (*Buffer, error) {
	kind, addr, err := pool.Get(candidates, size)
	if err != nil {
		return nil, err
	}
	return &Buffer{pool: pool, kind: kind, addr: addr}, nil
}

// Data returns the live byte slice backing this buffer starting at offset.
func (b *Buffer) Data(offset int) []byte {
	return b.pool.Bytes(b.kind, b.addr)[offset:]
}

// Write copies data into the buffer at offset and returns the offset
// immediately past the written range, so callers can chain writes for
// successive tensors the way the original Buffer::write does.
func (b *Buffer) Write(data []byte, offset int) int {
	copy(b.Data(offset), data)
	return offset + len(data)
}

// Len returns the total size of the underlying allocation.
func (b *Buffer) Len() int { return b.addr.Size }

// Kind reports which allocator produced this buffer.
func (b *Buffer) Kind() memory.Kind { return b.kind }

// Release returns the buffer to its owning pool. It is an error to use the
// Buffer after calling Release.
func (b *Buffer) Release() error {
	return b.pool.Put(b.kind, b.addr)
}
