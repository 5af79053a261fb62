// Package server assembles the PhishGuard daemon.
//
// NewServer builds every collaborator from a config.Config: the logger,
// metrics registry, tracer, settings store and mirror, classifier client,
// stream hub and decision coordinator, then mounts the middleware chain and
// routes on a gin engine.
//
// Middleware order: recovery, tracing, metrics, CORS, per-client rate limit.
//
// Routes:
//   - render-layer API (see package api/http)
//   - GET /stream: WebSocket push (see package api/ws)
//   - GET /metrics: Prometheus exposition
//
// Shutdown stops the HTTP server first so no new checks start, then closes
// the coordinator (cancelling outstanding navigation checks), the hub, the
// settings store and the tracer.
package server
