// Package id provides centralized ID allocation for the kernel.
//
// Two allocation regimes coexist:
//   - PIDs: monotonically increasing u32, never reused for the kernel
//     lifetime, so a stale handle or waiter can never alias a new process.
//   - Boot ID: a UUID minted once per boot, exposed on the monitor API so
//     observers can detect restarts.
//
// Handle sequence ids are allocated per-process by the handle table, not
// here, because their uniqueness scope is a single process.
package id

import (
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// PIDs start above zero so the zero PID stays an "absent" sentinel.
const firstPID = 1

// Allocator hands out process identifiers.
type Allocator struct {
	next atomic.Uint32
}

// NewAllocator creates a PID allocator.
func NewAllocator() *Allocator {
	a := &Allocator{}
	a.next.Store(firstPID)
	return a
}

// NextPID returns a fresh, never-reused PID.
func (a *Allocator) NextPID() types.PID {
	return types.PID(a.next.Add(1) - 1)
}

// NewBootID mints the per-boot identifier.
func NewBootID() string {
	return "boot_" + uuid.New().String()
}
