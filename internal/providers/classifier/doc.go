/*
Package classifier is the client for the remote phishing classifier.

A check is a POST of {"url": "..."} to /check_url. The response is an object
with a "decision" (SAFE, PHISHING or ERROR) and an optional "score".

FetchDecision never surfaces transport failures. Network errors, timeouts,
non-2xx statuses, bodies that are not a JSON object and refusals by the
circuit breaker are all retried with linear capped backoff (1s, 2s, ... up
to 5s) until an attempt succeeds or the caller's context ends. A
well-formed response reporting ERROR, or an unrecognized decision, is a
settled result and is returned as an ERROR decision.

	client := classifier.New(cfg,
		classifier.WithLogger(logger),
		classifier.WithMetrics(metrics),
	)
	d, err := client.FetchDecision(ctx, "https://example.com/login")
*/
package classifier
