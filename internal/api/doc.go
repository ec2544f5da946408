// Package api implements the read-only status API for the alarm controller.
//
// This package provides:
//   - REST endpoints for health, current alarm state and the event journal
//   - WebSocket hub pushing alarm.state_changed events to connected clients
//   - Middleware stack (request ID, logging, recovery)
//
// # Architecture
//
// The server is an alarm.Observer. The controller loop hands it every
// transition; the server keeps a snapshot for GET /api/v1/alarm and
// broadcasts state changes to WebSocket clients. Nothing here publishes to
// the broker: the API observes the alarm, it never drives it.
//
// # Graceful Degradation
//
// The journal and the MQTT status are optional. Without a journal the
// history endpoint answers 503; without MQTT the health endpoint reports
// "mqtt": false.
package api
