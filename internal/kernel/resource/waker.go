package resource

import (
	"sync"

	"github.com/heliosproject/helios/kernel/internal/shared/types"
)

// WakeFunc marks a process runnable. The scheduler provides it at boot; the
// operation is idempotent, so waking an already-runnable process is a no-op.
type WakeFunc func(pid types.PID)

// Waker bridges readiness notification to scheduler state. Two producers
// converge here: device interrupt paths calling Wake directly, and suspended
// computations whose nested wake callbacks are wired to the same WakeFunc.
//
// A registration is consumed by one wake, so a computation re-registers on
// every not-ready return.
type Waker struct {
	mu        sync.Mutex
	wake      WakeFunc
	signaled  bool
	waiter    types.PID
	hasWaiter bool
}

// NewWaker creates a waker that wakes through fn.
func NewWaker(fn WakeFunc) *Waker {
	return &Waker{wake: fn}
}

// Register records pid as the waiting process, replacing any previous
// registration.
func (w *Waker) Register(pid types.PID) {
	w.mu.Lock()
	w.waiter = pid
	w.hasWaiter = true
	w.mu.Unlock()
}

// Wake sets the signaled flag and, if a process is registered, marks it
// runnable and consumes the registration. Safe from any context, interrupt
// handlers included.
func (w *Waker) Wake() {
	w.mu.Lock()
	w.signaled = true
	pid, wake := w.waiter, w.hasWaiter
	w.hasWaiter = false
	fn := w.wake
	w.mu.Unlock()

	if wake && fn != nil {
		fn(pid)
	}
}

// Consume atomically reads and clears the signaled flag. Device-style
// computations use it to decide whether data became available between
// registration and re-poll.
func (w *Waker) Consume() bool {
	w.mu.Lock()
	s := w.signaled
	w.signaled = false
	w.mu.Unlock()
	return s
}
