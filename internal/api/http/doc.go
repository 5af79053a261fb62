// Package http provides the render-layer REST API of the PhishGuard daemon.
//
// Content scripts, the popup and the warning page call these endpoints
// instead of messaging the extension background. Every handler is a thin
// translation onto the coordinator.
//
// Endpoints:
//   - Checks: POST /api/check-link, POST /api/check-page
//   - Navigation: POST /api/nav/overlay-init, POST /api/nav/skip,
//     POST /api/tabs/:tabId/navigation, DELETE /api/tabs/:tabId
//   - Settings: GET|PUT /api/state, POST /api/whitelist,
//     DELETE /api/whitelist/:host, POST /api/proceed
//   - Diagnostics: GET /health, GET /api/stats, POST /api/logs
//
// A missing url is a 400. When the check timeout elapses before the
// classifier answers the response is 504 with "pending": true, and the
// shared classifier call keeps running so a retry hits the cache.
//
// Example Usage:
//
//	handlers := http.NewHandlers(coord, classifierClient, metrics, logger)
//	handlers.Register(router)
package http
