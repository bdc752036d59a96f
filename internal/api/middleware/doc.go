// Package middleware provides HTTP middleware for the monitor API.
//
// The monitor surface is read-mostly and unauthenticated, so the middleware
// stack is small: CORS for browser-based dashboards and per-IP rate limiting
// to keep a misbehaving poller from starving the kernel loop's host.
package middleware
