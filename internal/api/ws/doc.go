// Package ws pushes coordinator messages to the render layer over WebSocket.
//
// A content script opens GET /stream?tab=<id> and receives the messages for
// its tab. A connection without a tab (the popup, debugging tools) receives
// all of them.
//
// Message Types (Server → Client):
//   - connected: sent once, carries the client id
//   - pageCheckStart, pageCheckResult, latePhishingWarning, redirect
//   - pong, error
//
// Message Types (Client → Server):
//   - ping: keep-alive
//
// Example Usage:
//
//	hub := ws.NewHub(logger, metrics)
//	coord := coordinator.New(cfg, client, mirror, coordinator.WithNotifier(hub))
//	router.GET("/stream", hub.HandleConnection)
package ws
