// Package middleware provides the gin middleware shared by the HTTP API:
// CORS for the extension's pages and per-client rate limiting.
package middleware
