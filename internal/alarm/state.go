package alarm

// State is the controller's view of the alarm system.
//
// Invariant: EntryAlarm implies Armed.
type State struct {
	Armed      bool `json:"armed"`
	EntryAlarm bool `json:"entry_alarm"`
}

// Mode names the three reachable states.
type Mode string

const (
	ModeDisarmed Mode = "disarmed"
	ModeArmed    Mode = "armed"
	ModeAlarm    Mode = "alarm"
)

// Mode returns the named state. A state that breaks the invariant reports
// ModeAlarm so it is never shown as quiet.
func (s State) Mode() Mode {
	switch {
	case s.EntryAlarm:
		return ModeAlarm
	case s.Armed:
		return ModeArmed
	default:
		return ModeDisarmed
	}
}

// Valid reports whether the state satisfies the invariant.
func (s State) Valid() bool {
	return s.Armed || !s.EntryAlarm
}
