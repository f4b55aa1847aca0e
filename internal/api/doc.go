// Package api implements the HTTP status API and WebSocket feed for homeapps.
//
// This package provides:
//   - REST endpoints for process health, running apps and mirrored entities
//   - WebSocket hub for state changes, issued commands and app status
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The API is read-only. Apps are driven by Home Assistant over MQTT; the
// server exposes what the runtime sees and what apps report through their
// Status method. Runtime broadcasts reach WebSocket clients subscribed to
// the matching channel.
//
// # Graceful Degradation
//
// The server runs without MQTT or InfluxDB. Health reports each configured
// dependency separately so a dead telemetry sink does not mask app status.
package api
