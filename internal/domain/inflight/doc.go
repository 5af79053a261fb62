// Package inflight keeps at most one upstream classifier call per URL.
//
// Callers that arrive while a call for the same URL is outstanding attach to
// it and receive the identical Decision. The call is registered before it
// starts running, which closes the race between concurrent first callers.
// When the call settles the Decision is written to the cache first, then the
// ticket is dropped and every waiter is released. A shared call re-reads the
// cache before fetching, so a caller that missed just as an earlier call
// settled gets the cached Decision.
//
// Built on golang.org/x/sync/singleflight.
//
// Example Usage:
//
//	group := inflight.New(decisionCache, logger, inflight.WithPendingHook(metrics.SetInFlight))
//	d, shared, err := group.Resolve(ctx, url, client.FetchDecision)
package inflight
