// Package types defines the identifiers, error codes, and event bits shared
// across the kernel core.
//
// Everything here is a plain value type so it can cross the syscall boundary
// and be stored inside suspended computations without carrying any capability
// to touch process memory or kernel state.
package types
