// Package resource defines the capability object every kernel-exposed entity
// implements, and the waker bridge that turns readiness into scheduler state.
//
// A Resource is reachable only through a process's handle table; possession
// of a correctly-tagged handle is the entire access-control model. Narrower
// capability views (channel endpoint, process handle, ...) are obtained by
// type assertion at the use site, which keeps the variant set closed within
// this module.
//
// Ownership: the handle table owns resources; a mailbox observing a resource
// holds only the interest mask, and the resource keeps a non-owning
// back-reference to the mailbox it notifies. That back-reference is what
// breaks the resource/mailbox ownership cycle.
package resource
