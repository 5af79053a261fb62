// Package providers holds the daemon's adapters to external collaborators.
//
// Available Providers:
//   - classifier: HTTP client for the remote phishing classifier, with
//     bounded backoff, a circuit breaker and a client-side rate limit
//   - settings: key/value settings store (memory or SQLite) and a typed
//     mirror of the protection toggle and user whitelist
package providers
