package resource

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Source is a device-side event source: a driver raises condition bits on it
// (typically from an interrupt context) and attached mailboxes plus any
// blocked reader are notified. It is the Resource variant drivers hand to
// processes for keyboards, timers, and similar readiness-only devices.
type Source struct {
	mu      sync.Mutex
	kind    types.HandleKind
	can     types.Events
	pending types.Events
	waker   *Waker
	att     Attachment
	closed  bool
}

// NewSource creates an event source generating the given event set.
func NewSource(kind types.HandleKind, can types.Events, wake WakeFunc) *Source {
	return &Source{kind: kind, can: can, waker: NewWaker(wake)}
}

// Kind implements Resource.
func (s *Source) Kind() types.HandleKind { return s.kind }

// Events implements Resource.
func (s *Source) Events() types.Events { return s.can }

// Attach implements Resource.
func (s *Source) Attach(p Poster, h types.Handle, mask types.Events) {
	s.att.Set(p, h, mask)

	// Level-triggered: conditions already raised are visible immediately.
	s.mu.Lock()
	pending := s.pending
	s.mu.Unlock()
	if pending != 0 {
		s.att.Notify(pending)
	}
}

// Detach implements Resource.
func (s *Source) Detach(p Poster) { s.att.Clear(p) }

// Close implements Resource.
func (s *Source) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Raise ORs condition bits into the source and notifies observers.
func (s *Source) Raise(ev types.Events) {
	ev &= s.can
	if ev == 0 {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending |= ev
	s.mu.Unlock()

	s.att.Notify(ev)
	s.waker.Wake()
}

// Take atomically reads and clears the bits in mask that are raised.
func (s *Source) Take(mask types.Events) types.Events {
	s.mu.Lock()
	got := s.pending & mask
	s.pending &^= got
	s.mu.Unlock()
	return got
}

// Waker exposes the source's waker for blocking readers.
func (s *Source) Waker() *Waker { return s.waker }
