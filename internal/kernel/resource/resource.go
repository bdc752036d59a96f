package resource

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// Poster receives masked readiness events for an attached handle. It is
// implemented by the mailbox; resources hold it as a non-owning reference.
type Poster interface {
	Post(h types.Handle, ev types.Events)
}

// Resource is the polymorphic capability object behind every handle.
type Resource interface {
	// Kind reports the variant tag the handle id must carry.
	Kind() types.HandleKind
	// Events reports the set of event bits this resource can generate.
	Events() types.Events
	// Attach registers a mailbox back-reference; subsequent state changes
	// that intersect mask are posted under the given handle id.
	Attach(p Poster, h types.Handle, mask types.Events)
	// Detach drops the mailbox back-reference if p is the attached poster.
	Detach(p Poster)
	// Close releases the resource. Idempotent.
	Close()
}

// Attachment is the shared non-owning mailbox back-reference. Resources embed
// one and call Notify on state changes.
type Attachment struct {
	mu     sync.Mutex
	poster Poster
	handle types.Handle
	mask   types.Events
}

// Set installs the back-reference, replacing any previous one.
func (a *Attachment) Set(p Poster, h types.Handle, mask types.Events) {
	a.mu.Lock()
	a.poster = p
	a.handle = h
	a.mask = mask
	a.mu.Unlock()
}

// Clear drops the back-reference if p is the attached poster.
func (a *Attachment) Clear(p Poster) {
	a.mu.Lock()
	if a.poster == p {
		a.poster = nil
		a.mask = 0
	}
	a.mu.Unlock()
}

// Notify posts the events that survive the attachment mask. No-op when
// nothing is attached or nothing survives.
func (a *Attachment) Notify(ev types.Events) {
	a.mu.Lock()
	poster, handle := a.poster, a.handle
	ev &= a.mask
	a.mu.Unlock()

	if poster != nil && ev != 0 {
		poster.Post(handle, ev)
	}
}
