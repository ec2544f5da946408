package main

import (
	"github.com/nerrad567/gray-logic-alarm/internal/alarm"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/influxdb"
)

// telemetryObserver writes every transition to InfluxDB.
// Writes are batched by the client and never block the controller.
type telemetryObserver struct {
	client *influxdb.Client
}

// Observe implements alarm.Observer.
func (o telemetryObserver) Observe(t alarm.Transition) {
	o.client.WriteAlarmState(sampleFrom(t))
}

// sampleFrom maps a controller transition to an InfluxDB sample.
func sampleFrom(t alarm.Transition) influxdb.AlarmSample {
	return influxdb.AlarmSample{
		Trigger:    string(t.Kind),
		Mode:       string(t.After.Mode()),
		Armed:      t.After.Armed,
		EntryAlarm: t.After.EntryAlarm,
		Published:  t.Published,
		At:         t.At,
	}
}
