/*
Package resilience provides a circuit breaker for calls to notebook servers.

# Overview

A notebook server that has crashed or hung makes every kernel lookup wait for
the full HTTP timeout. The breaker notices repeated transport failures and
fails subsequent calls immediately until the server has had time to recover.

# Usage

	breakers := resilience.NewGroup(resilience.Settings{
		MaxRequests: 1,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
		IsFailure: isTransportError,
	})

	err := breakers.Get(baseURL).Do(func() error {
		return call(ctx)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open

HTTP error statuses are not transport failures; a server answering 500 is
reachable and does not trip its breaker.
*/
package resilience
