package ipc

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/kernel/resource"
	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// MailboxCapacity bounds pending entries per mailbox.
const MailboxCapacity = 256

// Entry is one pending (handle, events) readiness record.
type Entry struct {
	Handle types.Handle
	Events types.Events
}

// Mailbox aggregates readiness events from attached handles into a single
// wait point. One entry per handle is pending at a time; new events OR into
// it. When full, the oldest entry is evicted to admit a non-coalescable new
// one.
type Mailbox struct {
	mu       sync.Mutex
	pending  []Entry
	interest map[types.Handle]types.Events
	waker    *resource.Waker
	att      resource.Attachment
	closed   bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox(wake resource.WakeFunc) *Mailbox {
	return &Mailbox{
		interest: make(map[types.Handle]types.Events),
		waker:    resource.NewWaker(wake),
	}
}

// Kind implements resource.Resource.
func (m *Mailbox) Kind() types.HandleKind { return types.KindMailbox }

// Events implements resource.Resource.
func (m *Mailbox) Events() types.Events { return types.EventReadable }

// Attach implements resource.Resource; a mailbox can itself feed another
// mailbox, reporting readable when entries are pending.
func (m *Mailbox) Attach(p resource.Poster, h types.Handle, mask types.Events) {
	m.att.Set(p, h, mask)

	m.mu.Lock()
	hasPending := len(m.pending) > 0
	m.mu.Unlock()
	if hasPending {
		m.att.Notify(types.EventReadable)
	}
}

// Detach implements resource.Resource.
func (m *Mailbox) Detach(p resource.Poster) { m.att.Clear(p) }

// Close implements resource.Resource. A blocked waiter is released and
// observes an empty queue.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.pending = nil
	m.interest = make(map[types.Handle]types.Events)
	m.mu.Unlock()

	m.waker.Wake()
}

// SetInterest records the mask for an attached handle.
func (m *Mailbox) SetInterest(h types.Handle, mask types.Events) {
	m.mu.Lock()
	m.interest[h] = mask
	m.mu.Unlock()
}

// RemoveInterest drops the mask and any pending entry for the handle.
func (m *Mailbox) RemoveInterest(h types.Handle) {
	m.mu.Lock()
	delete(m.interest, h)
	for i, e := range m.pending {
		if e.Handle == h {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
}

// Post implements resource.Poster. Events are masked against the handle's
// registered interest; survivors coalesce into an existing entry or append,
// evicting the oldest entry when full. A registered waiter is woken.
func (m *Mailbox) Post(h types.Handle, ev types.Events) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	ev &= m.interest[h]
	if ev == 0 {
		m.mu.Unlock()
		return
	}

	coalesced := false
	for i := range m.pending {
		if m.pending[i].Handle == h {
			m.pending[i].Events |= ev
			coalesced = true
			break
		}
	}
	if !coalesced {
		if len(m.pending) >= MailboxCapacity {
			m.pending = m.pending[1:]
		}
		m.pending = append(m.pending, Entry{Handle: h, Events: ev})
	}
	m.mu.Unlock()

	m.waker.Wake()
	m.att.Notify(types.EventReadable)
}

// TryWait pops the oldest pending entry without blocking.
func (m *Mailbox) TryWait() (Entry, types.Errno) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return Entry{}, types.ErrWouldBlock
	}
	e := m.pending[0]
	m.pending = m.pending[1:]
	return e, types.OK
}

// Waker exposes the waker a blocking wait registers with.
func (m *Mailbox) Waker() *resource.Waker { return m.waker }

// Pending reports the queued entry count for the monitor API.
func (m *Mailbox) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
