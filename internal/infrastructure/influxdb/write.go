package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementAlarm is the measurement holding alarm state samples.
const MeasurementAlarm = "alarm_state"

// AlarmSample is one alarm state observation.
type AlarmSample struct {
	// Trigger is the event kind that produced the state (boot, button, pir, ...).
	Trigger string

	// Mode is the named state: disarmed, armed or alarm.
	Mode string

	Armed      bool
	EntryAlarm bool

	// Published is the number of state messages the controller sent.
	Published int

	At time.Time
}

// WriteAlarmState records an alarm state sample.
//
// Tags carry the low-cardinality trigger and mode; the flags are stored as
// integer fields (0/1) so they can be graphed and summed.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteAlarmState(influxdb.AlarmSample{
//	    Trigger: "pir", Mode: "alarm", Armed: true, EntryAlarm: true, At: time.Now(),
//	})
func (c *Client) WriteAlarmState(s AlarmSample) {
	if !c.IsConnected() {
		return
	}

	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	c.writeAPI.WritePoint(alarmPoint(s, at))
}

// alarmPoint builds the line-protocol point for a sample.
func alarmPoint(s AlarmSample, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementAlarm,
		map[string]string{
			"trigger": s.Trigger,
			"mode":    s.Mode,
		},
		map[string]interface{}{
			"armed":       boolToInt(s.Armed),
			"entry_alarm": boolToInt(s.EntryAlarm),
			"published":   s.Published,
		},
		at,
	)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Example:
//
//	client.WritePoint("controller_stats",
//	    map[string]string{"host": "alarm-01"},
//	    map[string]interface{}{"events": 42})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
