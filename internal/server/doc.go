// Package server assembles the monitor API: router, middleware, routes, and
// the HTTP listener's lifecycle.
//
// The monitor runs beside the kernel loop in the same process. It reads
// scheduler and dispatcher state through the kernel facade and never touches
// kernel internals directly.
package server
