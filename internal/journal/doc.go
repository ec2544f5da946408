// Package journal keeps an audit trail of alarm events in SQLite.
//
// Each event the controller recognises becomes one row in alarm_journal with
// the state it produced and how many publications succeeded. Rows carry the
// session ID of the controller run that wrote them, so restarts are visible.
//
// The journal is write-only from the controller's point of view: alarm state
// is never restored from it. The status API reads it to serve history.
package journal
