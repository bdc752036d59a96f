// Package future defines the suspended-computation unit the syscall layer
// runs on: a boxed, one-shot-pollable piece of work.
//
// A Computation is polled exactly once per syscall entry or resume. It either
// completes, yielding a numeric result plus any bytes destined for user
// memory as deferred copy-outs, or reports that it is not ready after
// registering interest with a waker. Computations are parameterized only by
// plain copyable values, usermem.Slice included, never by a usermem.Access
// proof, so suspending one can never pin user memory.
package future
