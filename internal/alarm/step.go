package alarm

// Step applies one event to s and returns the next state, the commands to
// publish and whether the loop should stop. It has no side effects.
//
// Mirror topics follow the broker (last write wins) within the invariant:
// entry_alarm="1" while disarmed is not taken, and armed="0" drops any
// entry alarm.
func Step(s State, kind Kind, payload string, t Topics) (State, []Command, bool) {
	switch kind {
	case KindArmed:
		s.Armed = flag(payload)
		if !s.Armed {
			s.EntryAlarm = false
		}
		return s, nil, false

	case KindEntryAlarm:
		s.EntryAlarm = flag(payload) && s.Armed
		return s, nil, false

	case KindButton:
		if !s.Armed {
			s.Armed = true
			return s, []Command{retained(t.Armed(), true)}, false
		}
		cmds := []Command{retained(t.Armed(), false)}
		if s.EntryAlarm {
			cmds = append(cmds, retained(t.EntryAlarm(), false))
		}
		return State{}, cmds, false

	case KindPIR:
		if !s.Armed || s.EntryAlarm {
			return s, nil, false
		}
		s.EntryAlarm = true
		return s, []Command{retained(t.EntryAlarm(), true)}, false

	case KindStop:
		return s, nil, true

	default:
		return s, nil, false
	}
}

// BootCommands returns the publications that force the clear boot state.
func BootCommands(t Topics) []Command {
	return ClearCommands(t)
}

// ClearCommands de-asserts both state topics.
func ClearCommands(t Topics) []Command {
	return []Command{
		retained(t.Armed(), false),
		retained(t.EntryAlarm(), false),
	}
}

func retained(topic string, on bool) Command {
	return Command{Topic: topic, Payload: payloadFor(on), Retain: true}
}
