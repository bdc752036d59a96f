// Package sched implements fair selection among runnable entities on a
// single execution core.
//
// One entity runs at a time. The runnable set is ordered by
// least-recently-scheduled-first (arrival order breaks ties), which yields
// round-robin fairness with no starvation regardless of submission order;
// there are no priorities, so no priority inversion is possible. User
// processes and kernel background tasks share the one schedulable set.
//
// The scheduler's per-state collections are the only kernel-global mutable
// state and are guarded by the scheduler's own mutex. The scheduler itself
// cannot fail in normal operation: an empty runnable set with no pending
// hardware event is the terminal idle condition, not an error.
package sched
