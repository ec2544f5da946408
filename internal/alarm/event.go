package alarm

// Event is one message received on a subscribed topic.
type Event struct {
	Topic   string
	Payload string
}

// Command is one message the controller wants published.
type Command struct {
	Topic   string
	Payload string
	Retain  bool
}

// Kind classifies an event by topic.
type Kind string

const (
	KindBoot       Kind = "boot"
	KindArmed      Kind = "armed"
	KindEntryAlarm Kind = "entry_alarm"
	KindButton     Kind = "button"
	KindPIR        Kind = "pir"
	KindStop       Kind = "stop"
	KindUnknown    Kind = "unknown"
)

// Payloads used on the state topics.
const (
	PayloadOn  = "1"
	PayloadOff = "0"
)

// flag maps a state payload to a boolean. Only "1" is true.
func flag(payload string) bool {
	return payload == PayloadOn
}

func payloadFor(on bool) string {
	if on {
		return PayloadOn
	}
	return PayloadOff
}
