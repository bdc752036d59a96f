// Package syscall implements the dispatch protocol between user processes
// and the kernel core.
//
// Every call that cannot diverge is turned into a computation and polled
// exactly once on the calling process's scheduling turn. A computation that
// completes delivers its result immediately; one that suspends is parked on
// the process, the process blocks, and a later wake leads the scheduler back
// here for a re-poll (Resume).
//
// User memory is touched only under a usermem.Access proof. The proof is
// opened on entry, used for copy-ins while building the computation, and
// closed before the first poll; completions that produce user-visible bytes
// carry them as deferred copy-outs performed under a freshly opened proof.
// A computation therefore never holds live access across a suspension.
//
// Failure handling is two-tier: expected failures become negative Errno
// results, while a user memory violation terminates the calling process with
// ErrFault as its exit status and no syscall return at all.
package syscall
