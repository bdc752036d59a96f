// Package kernel wires the concurrency core together: scheduler, syscall
// dispatcher, IPC, and the collaborator providers, behind one facade.
//
// The facade owns process creation (reserved handle seeding, parent channel
// plumbing), the single-core run loop, and the simulated userland: programs
// are Go closures standing in for machine code, each driven on its own
// goroutine in strict alternation with the kernel so exactly one entity runs
// at a time.
package kernel
