package usermem

import (
	"errors"
	"sync"
)

// Flat is a flat in-memory address space starting at address zero. It stands
// in for a real page-table context in tests and in the demo task shipped with
// cmd/kernel.
type Flat struct {
	mu  sync.Mutex
	mem []byte
}

// NewFlat allocates a flat space of the given size.
func NewFlat(size int) *Flat {
	return &Flat{mem: make([]byte, size)}
}

var errUnmapped = errors.New("address not mapped")

// ReadAt implements AddressSpace.
func (f *Flat) ReadAt(p []byte, addr uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	end := addr + uint64(len(p))
	if end > uint64(len(f.mem)) || end < addr {
		return errUnmapped
	}
	copy(p, f.mem[addr:end])
	return nil
}

// WriteAt implements AddressSpace.
func (f *Flat) WriteAt(p []byte, addr uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	end := addr + uint64(len(p))
	if end > uint64(len(f.mem)) || end < addr {
		return errUnmapped
	}
	copy(f.mem[addr:end], p)
	return nil
}
