package handle

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/kernel/resource"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Capacity bounds live entries per process. Exceeding it is reported to the
// caller, never silently dropped.
const Capacity = 4096

// maxSeq is the last allocatable 24-bit sequence id.
const maxSeq = 1<<24 - 1

// Table maps handle ids to resource ownership for one process. It is mutated
// only by that process's own syscalls; there is no cross-process access.
type Table struct {
	mu      sync.RWMutex
	entries map[types.Handle]resource.Resource
	nextSeq uint32
}

// NewTable creates an empty table. Sequence ids start above the reserved
// range and are never reused for the process lifetime.
func NewTable() *Table {
	return &Table{
		entries: make(map[types.Handle]resource.Resource),
		nextSeq: uint32(types.MaxReserved) + 1,
	}
}

// Insert stores a resource under a fresh id carrying the resource's kind tag.
func (t *Table) Insert(r resource.Resource) (types.Handle, types.Errno) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) >= Capacity || t.nextSeq > maxSeq {
		return 0, types.ErrNoSpace
	}

	h := types.MakeHandle(r.Kind(), t.nextSeq)
	t.nextSeq++
	t.entries[h] = r
	return h, types.OK
}

// InsertReserved installs a well-known resource at one of the reserved ids.
// Called only during process creation.
func (t *Table) InsertReserved(h types.Handle, r resource.Resource) {
	if h > types.MaxReserved {
		panic("handle: InsertReserved outside the reserved range")
	}

	t.mu.Lock()
	t.entries[h] = r
	t.mu.Unlock()
}

// Get resolves a handle. Reserved ids resolve by position; all others must
// match the entry's kind tag. Unknown id and tag mismatch are the same
// failure.
func (t *Table) Get(h types.Handle) (resource.Resource, types.Errno) {
	t.mu.RLock()
	r, ok := t.entries[h]
	t.mu.RUnlock()

	if !ok {
		return nil, types.ErrBadHandle
	}
	if h > types.MaxReserved && h.Kind() != r.Kind() {
		return nil, types.ErrBadHandle
	}
	return r, types.OK
}

// Remove deletes an entry and returns the evicted resource for the caller to
// close. Removing an unknown id is a no-op, not an error: ids are never
// reused while live, so a double close cannot alias a newer entry.
func (t *Table) Remove(h types.Handle) (resource.Resource, bool) {
	t.mu.Lock()
	r, ok := t.entries[h]
	if ok {
		delete(t.entries, h)
	}
	t.mu.Unlock()
	return r, ok
}

// Len reports the number of live entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Each calls fn for every live entry. Used by teardown and the monitor API.
func (t *Table) Each(fn func(h types.Handle, r resource.Resource)) {
	t.mu.RLock()
	snapshot := make(map[types.Handle]resource.Resource, len(t.entries))
	for h, r := range t.entries {
		snapshot[h] = r
	}
	t.mu.RUnlock()

	for h, r := range snapshot {
		fn(h, r)
	}
}

// CloseAll tears the table down at process exit, closing every resource so
// peers observe closure.
func (t *Table) CloseAll() {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[types.Handle]resource.Resource)
	t.mu.Unlock()

	for _, r := range entries {
		r.Close()
	}
}
