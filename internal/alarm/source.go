package alarm

import (
	"sync"
)

// DefaultBuffer is the Source capacity used when none is given.
const DefaultBuffer = 64

// Source funnels transport callbacks into a single event channel.
//
// Deliver may be called from any goroutine. Events() is read by exactly one
// consumer, Controller.Run.
type Source struct {
	events chan Event
	done   chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewSource returns a Source buffering up to size events.
func NewSource(size int) *Source {
	if size < 1 {
		size = DefaultBuffer
	}
	return &Source{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// Events returns the receive side of the channel.
func (s *Source) Events() <-chan Event {
	return s.events
}

// Deliver queues a message. It blocks while the buffer is full and returns
// ErrSourceClosed once Close has been called.
//
// The signature matches an MQTT message handler so it can be passed to
// Subscribe directly.
func (s *Source) Deliver(topic string, payload []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrSourceClosed
	}

	select {
	case s.events <- Event{Topic: topic, Payload: string(payload)}:
		return nil
	case <-s.done:
		return ErrSourceClosed
	}
}

// Close stops accepting events and closes the channel. Blocked Deliver
// calls return ErrSourceClosed. Close is idempotent.
func (s *Source) Close() {
	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}
