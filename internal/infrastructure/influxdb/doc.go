// Package influxdb writes alarm state telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes and health monitoring. Every state
// the controller passes through becomes an alarm_state point, so arming
// history and alarm activations can be graphed next to other home telemetry.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteAlarmState(influxdb.AlarmSample{Trigger: "button", Mode: "armed", Armed: true})
//
// # Error Handling
//
// Writes never block the controller loop. Batch errors arrive asynchronously
// through the SetOnError callback. Connection and health check errors are
// returned directly.
package influxdb
