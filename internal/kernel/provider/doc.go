// Package provider declares the contracts the kernel core expects from its
// collaborators: the asynchronous file service, the process image factory,
// and device event sources.
//
// Collaborator operations return a suspending Op rather than blocking: the
// dispatcher polls the op once per scheduling turn and parks the enclosing
// syscall when it reports not-ready. An op that suspends must arrange for the
// supplied wake callback to fire when progress becomes possible; one callback
// is consumed per notification, so the dispatcher passes a fresh one on every
// poll.
package provider
