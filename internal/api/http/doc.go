// Package http provides the monitor API's REST handlers.
//
// The monitor is a read-only window into the running kernel: process lists,
// scheduler counters, syscall statistics, and metric snapshots. The single
// mutating endpoint injects console input into a process's stdin.
package http
