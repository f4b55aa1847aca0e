// Package logging provides structured logging for homeapps.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the service and every app.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Per-app child loggers via ForApp
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
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "apps", 12)
//	climateLog := logger.ForApp("climate", "climate")
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
