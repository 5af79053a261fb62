/*
Package resilience provides the failure-handling primitives used around the
remote classifier.

# Overview

Two pieces live here:

  - Breaker: a three-state circuit breaker that refuses attempts while the
    classifier is known to be down, so a dead backend is probed at a bounded
    rate instead of on every retry.
  - Retrier: an unbounded retry loop driven by a Backoff policy. The classifier
    client treats "temporarily unavailable" as something the user waits
    through, so the loop only ends on success, a Permanent error or context
    cancellation.

Both take a clock.Clock so tests run with a fake clock and never sleep.

# Usage

	breaker := resilience.NewBreaker("classifier", resilience.Settings{
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	retrier := resilience.NewRetrier(resilience.DefaultBackoff(), nil)

	err := retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		return breaker.Execute(func() error { return call(ctx) })
	}, nil)

# Backoff

Linear and capped: Initial, 2*Initial, 3*Initial, ... up to Max, with optional
jitter expressed as a fraction of the delay.

# Breaker states

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
