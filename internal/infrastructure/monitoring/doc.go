/*
Package monitoring provides Prometheus metrics for the detection service.

# Overview

Metrics are registered on an injected prometheus.Registerer so tests can use
an isolated registry. A JSON-friendly Snapshot is kept alongside the
Prometheus collectors for the stats endpoint.

# Metrics

- HTTP request latency, size and status
- Classifier attempts by result and per-attempt latency
- Circuit breaker state
- Decisions by outcome and source (cache, allowlist, classifier, ...)
- Decision cache hits, misses and size
- Deduplicated checks and in-flight classifier calls
- Navigation actions and tracked tabs
- WebSocket connections and messages
- Uptime

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	metrics.RecordCacheLookup(true)
	metrics.RecordDecision("SAFE", "cache")
*/
package monitoring
