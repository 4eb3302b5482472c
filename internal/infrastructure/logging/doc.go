// Package logging provides structured logging for ha-monitor.
//
// This package wraps Go's standard log/slog package. The log stream is the
// only observability surface of the service, so every status message,
// connection event and action outcome ends up here as exactly one line.
//
// # Features
//
//   - Text output (default): timestamped human-readable lines
//   - JSON output for log shippers
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # text, json
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("status", "status", "online")
//	logger.Error("action failed", "error", err)
//
// Never log broker passwords or InfluxDB tokens.
package logging
