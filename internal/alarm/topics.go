package alarm

import "strings"

// DefaultPrefix is the root of the alarm topic namespace.
const DefaultPrefix = "alarm"

// Topics builds and classifies topics under one namespace prefix.
type Topics struct {
	prefix string
}

// NewTopics returns the topic set rooted at prefix. An empty prefix uses
// DefaultPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the namespace root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultPrefix
	}
	return t.prefix
}

func (t Topics) topic(name string) string {
	return t.Prefix() + "/" + name
}

// Armed returns the armed state topic, e.g. alarm/armed.
func (t Topics) Armed() string { return t.topic("armed") }

// EntryAlarm returns the entry alarm state topic, e.g. alarm/entry_alarm.
func (t Topics) EntryAlarm() string { return t.topic("entry_alarm") }

// Button returns the arm/disarm button topic.
func (t Topics) Button() string { return t.topic("button") }

// PIR returns the motion sensor topic.
func (t Topics) PIR() string { return t.topic("pir") }

// Stop returns the shutdown topic.
func (t Topics) Stop() string { return t.topic("stop") }

// Filter returns the wildcard subscription covering the namespace.
func (t Topics) Filter() string { return t.topic("#") }

// Classify maps a topic to its Kind by exact match.
func (t Topics) Classify(topic string) Kind {
	switch topic {
	case t.Armed():
		return KindArmed
	case t.EntryAlarm():
		return KindEntryAlarm
	case t.Button():
		return KindButton
	case t.PIR():
		return KindPIR
	case t.Stop():
		return KindStop
	default:
		return KindUnknown
	}
}
