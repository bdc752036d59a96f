// Package ws streams scheduler events to monitor clients over WebSocket.
//
// Each connection gets its own subscription to the kernel's event hub. The
// hub drops events for slow consumers rather than blocking the scheduler, so
// a stalled dashboard never backs up into the kernel loop.
package ws
