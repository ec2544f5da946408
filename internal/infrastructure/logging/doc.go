// Package logging provides structured logging for the alarm controller.
//
// This package wraps Go's standard log/slog package so every component
// logs the same way:
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("alarm armed", "source", "alarm/button")
//	logger.Error("publish failed", "topic", topic, "error", err)
//
// Never log broker passwords or the InfluxDB token.
package logging
