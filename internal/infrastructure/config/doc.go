// Package config provides 12-factor configuration management for the
// PhishGuard daemon.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Classifier: remote classifier URL, per-attempt timeout and backoff
//   - Detection: cache TTL, hover threshold, skip window, safe domain file
//   - Settings: settings database path (in-memory when empty)
//   - Logging: log level and output format
//   - RateLimit: per-client rate limiting
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println("listening on", cfg.Addr())
//
// Environment Variables:
//   - PORT, HOST
//   - CLASSIFIER_URL, CLASSIFIER_ATTEMPT_TIMEOUT, CLASSIFIER_BACKOFF_INITIAL,
//     CLASSIFIER_BACKOFF_MAX, CLASSIFIER_BACKOFF_JITTER, CLASSIFIER_RPS
//   - DECISION_CACHE_TTL, HOVER_RISK_THRESHOLD, NAV_SKIP_WINDOW, CHECK_TIMEOUT,
//     SAFE_DOMAINS_FILE, WARNING_PAGE_URL, NAV_SESSION_PRUNE
//   - SETTINGS_DB
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
