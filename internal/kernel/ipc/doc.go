// Package ipc provides the kernel's inter-process communication resources.
//
// Channels are bounded bidirectional message queues between exactly two
// endpoints. Messages are delivered whole or not at all: a queue slot holds
// one message of up to 4 KiB, sixteen per direction, and a receive never
// splits or merges messages. Closing one endpoint leaves in-flight messages
// readable by the peer; a drained closed-peer channel reports peer-closed
// instead of suspending forever.
//
// Mailboxes aggregate readiness from many attached handles into one wait
// point, the per-process analogue of a readiness-multiplexing primitive.
// Events are level-triggered condition flags, so a new event for a handle
// with an entry already pending ORs into that entry instead of appending.
// On overflow the oldest entry is evicted; every event kind in this kernel
// (readable, writable, peer-closed, child-exit, signal, timer, key) is
// re-derivable from resource state, which is what makes the lossy policy
// safe per kind.
package ipc
