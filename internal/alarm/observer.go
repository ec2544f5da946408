package alarm

import (
	"time"

	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/logging"
)

// Transition records one processed event.
type Transition struct {
	Kind   Kind
	Event  Event
	Before State
	After  State

	// Commands lists what the controller tried to publish.
	Commands []Command

	// Published counts the commands the broker accepted.
	Published int

	At time.Time
}

// Changed reports whether the event altered the state.
func (t Transition) Changed() bool {
	return t.Before != t.After
}

// Observer receives every transition from the controller loop.
//
// Observe runs on the loop goroutine. Implementations must not block.
type Observer interface {
	Observe(t Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t Transition)

// Observe calls f(t).
func (f ObserverFunc) Observe(t Transition) {
	f(t)
}

// LogObserver logs state changes at info and other transitions at debug.
func LogObserver(logger *logging.Logger) Observer {
	return ObserverFunc(func(t Transition) {
		args := []any{
			"kind", t.Kind,
			"topic", t.Event.Topic,
			"state", t.After.Mode(),
			"armed", t.After.Armed,
			"entry_alarm", t.After.EntryAlarm,
			"published", t.Published,
		}
		if t.Changed() || t.Kind == KindBoot {
			logger.Info("alarm state", args...)
			return
		}
		logger.Debug("alarm event", args...)
	})
}
