// Package hostfs implements the kernel's file service on top of a host
// directory.
//
// Every operation runs on its own goroutine and completes asynchronously, so
// the syscall layer observes the same suspend-and-wake behavior a real block
// device would produce. Host filesystem calls are guarded by a circuit
// breaker: a misbehaving backing store trips it and further operations fail
// fast with no-entry instead of piling up goroutines.
//
// Paths are interpreted relative to the service root and cleaned before use;
// a process cannot escape the root with dot-dot segments.
package hostfs
