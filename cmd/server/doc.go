// Package main is the entry point for the PhishGuard daemon.
//
// The daemon is the background half of the PhishGuard browser extension.
// Content scripts, the popup and the warning page talk to it over HTTP and a
// WebSocket stream; it asks the remote classifier about URLs and decides
// what the render layer shows.
//
// Architecture:
//
//	Extension (render layer) → PhishGuard daemon → Classifier (/check_url)
//	                         ← WebSocket stream
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Defaults: listen on 127.0.0.1:5031, classifier on 127.0.0.1:5030
//	./server
//
//	# Persist settings and use a remote classifier
//	./server -settings ~/.phishguard/settings.db -classifier http://10.0.0.5:5030
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
