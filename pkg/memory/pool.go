package memory

import "github.com/amdinfer/inference-server/pkg/errors"

// DefaultCPUBlockSize is the arena growth increment for the CPU allocator,
// matching the original's arbitrarily-chosen 1 MiB default.
const DefaultCPUBlockSize = 1 << 20

// Pool routes allocation requests to one of several registered Allocators
// by Kind, trying each candidate kind in order until one succeeds. It is
// the Go counterpart of amdinfer's MemoryPool, generalized from a single
// hardcoded Cpu entry to an open registry so additional kinds can be
// registered without changing callers.
type Pool struct {
	allocators map[Kind]Allocator
}

// NewPool constructs a pool pre-populated with a CPU allocator sized to
// DefaultCPUBlockSize, unbounded.
func NewPool() *Pool {
	p := &Pool{allocators: make(map[Kind]Allocator)}
	p.Register(Cpu, NewCPUAllocator(DefaultCPUBlockSize, 0))
	return p
}

// Register installs or replaces the Allocator backing a Kind.
func (p *Pool) Register(kind Kind, a Allocator) {
	p.allocators[kind] = a
}

// Get tries each candidate kind in order and returns the first successful
// allocation along with which kind served it.
func (p *Pool) Get(candidates []Kind, size int) (Kind, Address, error) {
	var lastErr error
	for _, kind := range candidates {
		a, ok := p.allocators[kind]
		if !ok {
			continue
		}
		addr, err := a.Get(size)
		if err != nil {
			lastErr = err
			continue
		}
		return kind, addr, nil
	}
	if lastErr == nil {
		lastErr = errors.New(errors.InvalidArgument, "no allocator registered for requested kinds")
	}
	return 0, Address{}, errors.Wrap(errors.Runtime, lastErr, "memory could not be allocated")
}

// Put releases an Address back to the allocator that produced it.
func (p *Pool) Put(kind Kind, addr Address) error {
	a, ok := p.allocators[kind]
	if !ok {
		return errors.New(errors.InvalidArgument, "no allocator registered for kind %s", kind)
	}
	return a.Put(addr)
}

// Bytes resolves an Address through the allocator that produced it.
func (p *Pool) Bytes(kind Kind, addr Address) []byte {
	a, ok := p.allocators[kind]
	if !ok {
		return nil
	}
	return a.Bytes(addr)
}
