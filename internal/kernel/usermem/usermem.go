package usermem

import (
	"fmt"

	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Ceiling is the exclusive upper bound of user addresses. Anything at or
// above it belongs to the kernel half of the address space.
const Ceiling uint64 = 1 << 47

// Slice describes a region of user memory without granting access to it.
type Slice struct {
	Addr uint64
	Len  uint32
}

// End returns the exclusive end address and whether addr+len overflowed.
func (s Slice) End() (uint64, bool) {
	end := s.Addr + uint64(s.Len)
	return end, end < s.Addr
}

// Valid reports whether the region lies entirely under the user ceiling
// without address overflow. Zero-length slices are valid at any in-range
// address.
func (s Slice) Valid() bool {
	end, overflow := s.End()
	return !overflow && end <= Ceiling
}

// FaultError reports a rejected or failed user-memory access. It is never
// returned to the faulting process; the dispatcher terminates the process
// and records types.ErrFault as its exit status.
type FaultError struct {
	Slice Slice
	Op    string
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("user memory fault: %s of %d bytes at %#x", e.Op, e.Slice.Len, e.Slice.Addr)
}

// Errno returns the numeric code recorded for the fault.
func (e *FaultError) Errno() types.Errno { return types.ErrFault }

// AddressSpace is the opaque page-table contract a process context exposes.
// Implementations are outside the core; tests use Flat.
type AddressSpace interface {
	// ReadAt fills p from user address addr. The region is pre-validated.
	ReadAt(p []byte, addr uint64) error
	// WriteAt stores p at user address addr. The region is pre-validated.
	WriteAt(p []byte, addr uint64) error
}

// Access is the proof that the owning process's address space is currently
// active. It is opened by the dispatcher and closed before any suspension.
type Access struct {
	_  noCopy
	as AddressSpace
}

// Open constructs a validity proof over the active address space.
func Open(as AddressSpace) *Access {
	if as == nil {
		panic("usermem: Open with nil address space")
	}
	return &Access{as: as}
}

// Close drops the proof. Any later use is an unrecoverable kernel bug.
func (a *Access) Close() { a.as = nil }

func (a *Access) space() AddressSpace {
	if a.as == nil {
		// A suspended computation smuggled the proof across a suspension
		// point. There is no safe way to continue.
		panic("usermem: Access used after Close")
	}
	return a.as
}

// CopyIn copies the region into fresh kernel-owned storage.
func (a *Access) CopyIn(s Slice) ([]byte, error) {
	if !s.Valid() {
		return nil, &FaultError{Slice: s, Op: "read"}
	}
	buf := make([]byte, s.Len)
	if err := a.space().ReadAt(buf, s.Addr); err != nil {
		return nil, &FaultError{Slice: s, Op: "read"}
	}
	return buf, nil
}

// CopyOut stores kernel-produced bytes into the region. The destination must
// be at least len(b) long.
func (a *Access) CopyOut(s Slice, b []byte) error {
	if !s.Valid() || int(s.Len) < len(b) {
		return &FaultError{Slice: s, Op: "write"}
	}
	if err := a.space().WriteAt(b, s.Addr); err != nil {
		return &FaultError{Slice: s, Op: "write"}
	}
	return nil
}

// noCopy makes go vet flag any copy of an Access value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
