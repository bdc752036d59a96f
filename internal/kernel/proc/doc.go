// Package proc defines the schedulable entity: user processes and kernel
// background tasks, handled uniformly by the scheduler.
//
// A process owns its handle table, an opaque address-space reference, and
// exactly one resumption mechanism at a time: a SavedState register snapshot
// (after preemption), a pending suspended syscall (after a blocking
// suspension), or neither (the fast-return path while running). Holding two
// at once is an unrecoverable kernel bug and halts.
package proc
