// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for log shippers
//   - Development: colored console output
//
// Components receive a named child logger so every entry carries its
// origin (classifier, coordinator, ws, ...).
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	defer logger.Close()
//	log := logger.Component("classifier")
//	log.Warn("Classifier unavailable, retrying", zap.Int("attempt", 3))
package logging
