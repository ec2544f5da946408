// Package alarm implements the alarm controller state machine.
//
// The controller owns two flags, armed and entry_alarm, and reacts to
// messages under the alarm topic namespace:
//
//	alarm/armed        mirror: armed = payload == "1"
//	alarm/entry_alarm  mirror: entry_alarm = payload == "1"
//	alarm/button       toggle armed, publish the new value
//	alarm/pir          raise entry_alarm when armed and not already raised
//	alarm/stop         end the loop
//
// Every publication is retained so the broker holds the last known state.
// Any other topic under the namespace is ignored.
//
// # Concurrency
//
// Transport callbacks push events into a Source. Controller.Run is the only
// consumer of the Source channel and the only code that touches State, so
// events are processed one at a time in arrival order without locks.
//
// # Observers
//
// After each recognised event the controller hands a Transition to its
// observers (journal, telemetry, status API). Observers run on the loop
// goroutine and must return quickly. They cannot change state.
package alarm
