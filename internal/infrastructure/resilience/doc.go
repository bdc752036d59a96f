/*
Package resilience provides a circuit breaker guarding the kernel's
collaborator providers.

# Overview

Provider operations (file service, image loader) run against backing stores
the kernel does not control. The breaker keeps a failing backing store from
piling up goroutines: after enough consecutive failures it opens, and
further operations fail fast until a probe succeeds.

# Usage

	breaker := resilience.New("hostfs", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures > 5
		},
	})

	result, err := breaker.Execute(func() (interface{}, error) {
		return os.Open(path)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                             |
	                                         [failure]
	                                             v
	                                           Open
*/
package resilience
