// Package usermem mediates every access to user process memory.
//
// Two types split the capability:
//   - Slice: a plain (address, length) descriptor. Freely copyable, storable
//     inside suspended computations, and deliberately unable to dereference
//     anything.
//   - Access: the validity proof required to dereference a Slice. One is
//     opened fresh at each syscall entry or resume, while the calling
//     process's address space is known to be active, and is closed before
//     any suspension point.
//
// Access values must not be captured by suspended computations: the type has
// no copy semantics (noCopy, flagged by go vet), cannot be constructed
// outside a dispatch boundary, and using one after Close halts the kernel.
// A computation therefore carries Slices only, and the dispatcher performs
// copy-in before suspension and copy-out after completion under a fresh
// proof. This turns use-after-unmap bugs into immediate, loud failures at
// the exact boundary where they would otherwise corrupt memory.
package usermem
